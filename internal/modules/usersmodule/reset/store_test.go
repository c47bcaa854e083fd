package reset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStoreTokensAreSingleUse(t *testing.T) {
	s := NewStore(10 * time.Minute)
	token := s.Put(Entry{UserID: "u1", Email: "ann@example.com", TempPassword: "tmp"})
	assert.Len(t, token, 36)

	entry, ok := s.Take(token)
	require.True(t, ok)
	assert.Equal(t, "u1", entry.UserID)
	assert.Equal(t, "tmp", entry.TempPassword)

	_, ok = s.Take(token)
	assert.False(t, ok)
	_, ok = s.Take("00000000-0000-0000-0000-000000000000")
	assert.False(t, ok)
}

func TestStoreExpiry(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(600 * time.Second)
	s.now = c.now

	expired := s.Put(Entry{UserID: "u1"})
	c.advance(5 * time.Minute)
	fresh := s.Put(Entry{UserID: "u2"})
	c.advance(5 * time.Minute)

	_, ok := s.Take(expired)
	assert.False(t, ok, "token is gone after exactly one TTL")

	assert.Equal(t, 0, s.Sweep())
	c.advance(5 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	_, ok = s.Take(fresh)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestLimiterOnePerWindow(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(time.Minute)
	l.now = c.now

	assert.True(t, l.Allow("ann@example.com"))
	assert.False(t, l.Allow("ann@example.com"))
	assert.True(t, l.Allow("bob@example.com"), "keys are independent")

	c.advance(time.Minute)
	assert.True(t, l.Allow("ann@example.com"))

	c.advance(2 * time.Minute)
	assert.Equal(t, 2, l.Sweep())
}

func TestSweeperStopsOnCancel(t *testing.T) {
	sw := NewSweeper(NewStore(time.Minute), NewLimiter(time.Minute), time.Millisecond)
	assert.Equal(t, "password-reset-sweeper", sw.String())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sw.Serve(ctx), context.DeadlineExceeded)
}
