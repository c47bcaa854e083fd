package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	stop    chan struct{}
	failErr error
	stopped atomic.Bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{stop: make(chan struct{})}
}

func (s *fakeServer) ListenAndServe() error {
	if s.failErr != nil {
		return s.failErr
	}
	<-s.stop
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	s.stopped.Store(true)
	close(s.stop)
	return nil
}

func quietLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{Level: hclog.Off})
}

func TestNewAppliesDefaults(t *testing.T) {
	tree := New(quietLogger(), Config{FailureBackoff: time.Second})
	assert.Equal(t, 5.0, tree.cfg.FailureThreshold)
	assert.Equal(t, 30.0, tree.cfg.FailureDecay)
	assert.Equal(t, time.Second, tree.cfg.FailureBackoff)
	assert.Equal(t, 10*time.Second, tree.cfg.ShutdownTimeout)
}

func TestTreeRunsBothLayers(t *testing.T) {
	tree := New(quietLogger(), Config{FailureBackoff: 10 * time.Millisecond, ShutdownTimeout: time.Second})

	server := newFakeServer()
	tree.AddAPI(NewHTTPService(server, time.Second))

	var runs atomic.Int32
	tree.AddJob(NewFuncService("job", func(ctx context.Context) error {
		runs.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := tree.ServeBackground(ctx)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop")
	}
	assert.True(t, server.stopped.Load())
}

func TestHTTPServiceReportsStartFailure(t *testing.T) {
	server := newFakeServer()
	server.failErr = errors.New("address in use")
	err := NewHTTPService(server, time.Second).Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}

func TestFuncServiceStopsAfterCleanReturn(t *testing.T) {
	tree := New(quietLogger(), Config{FailureBackoff: 10 * time.Millisecond, ShutdownTimeout: time.Second})
	var runs atomic.Int32
	tree.AddJob(NewFuncService("once", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	<-tree.ServeBackground(ctx)
	assert.Equal(t, int32(1), runs.Load())
}
