// Package reset holds pending password resets and throttles reset requests
package reset

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Entry is a pending reset waiting for confirmation
type Entry struct {
	UserID       string
	Email        string
	TempPassword string
	expires      time.Time
}

// Store keeps pending resets in memory for a fixed TTL. Tokens are single use.
type Store struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a store whose tokens expire after ttl
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{entries: make(map[string]Entry), ttl: ttl, now: time.Now}
}

// TTL returns how long a token stays valid
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Put stores entry under a fresh random token and returns the token
func (s *Store) Put(entry Entry) string {
	token := uuid.NewString()
	entry.expires = s.now().Add(s.ttl)

	s.mu.Lock()
	s.entries[token] = entry
	s.mu.Unlock()
	return token
}

// Take returns and removes the entry for token. Expired tokens are not returned.
func (s *Store) Take(token string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[token]
	if !ok {
		return Entry{}, false
	}
	delete(s.entries, token)
	if !s.now().Before(entry.expires) {
		return Entry{}, false
	}
	return entry, true
}

// Sweep drops expired entries and returns how many were removed
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, entry := range s.entries {
		if !now.Before(entry.expires) {
			delete(s.entries, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of pending entries
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Limiter allows one request per key per window
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	window   time.Duration
	now      func() time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewLimiter creates a limiter with the given window
func NewLimiter(window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{limiters: make(map[string]*limiterEntry), window: window, now: time.Now}
}

// Allow reports whether a request for key may proceed and records it
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Every(l.window), 1)}
		l.limiters[key] = entry
	}
	entry.lastAccess = now
	return entry.limiter.AllowN(now, 1)
}

// Sweep forgets keys idle for longer than one window
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	threshold := l.now().Add(-l.window)
	removed := 0
	for key, entry := range l.limiters {
		if entry.lastAccess.Before(threshold) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Sweeper periodically clears expired resets and idle limiter keys
type Sweeper struct {
	store    *Store
	limiter  *Limiter
	interval time.Duration
}

// NewSweeper creates a sweeper running every interval
func NewSweeper(store *Store, limiter *Limiter, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{store: store, limiter: limiter, interval: interval}
}

// Serve implements suture.Service
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.store.Sweep()
			s.limiter.Sweep()
		}
	}
}

func (s *Sweeper) String() string {
	return "password-reset-sweeper"
}
