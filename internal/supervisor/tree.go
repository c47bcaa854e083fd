// Package supervisor runs the long-lived parts of the process under a suture
// tree: the HTTP server in one layer, background jobs in another, so a
// crashing job never takes the API down.
package supervisor

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/thejerf/suture/v4"
)

// Config holds the restart policy shared by every layer
type Config struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultConfig returns suture's stock policy with a 10s shutdown timeout
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the root supervisor with its api and jobs layers
type Tree struct {
	root *suture.Supervisor
	api  *suture.Supervisor
	jobs *suture.Supervisor
	cfg  Config
}

// New builds the tree. Zero fields of cfg take the defaults.
func New(log hclog.Logger, cfg Config) *Tree {
	def := DefaultConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = eventHook(log)

	t := &Tree{
		root: suture.New("medialibrary", rootSpec),
		api:  suture.New("api-layer", spec),
		jobs: suture.New("jobs-layer", spec),
		cfg:  cfg,
	}
	t.root.Add(t.api)
	t.root.Add(t.jobs)
	return t
}

// AddAPI adds a service to the api layer
func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// AddJob adds a service to the jobs layer
func (t *Tree) AddJob(svc suture.Service) suture.ServiceToken {
	return t.jobs.Add(svc)
}

// Serve runs the tree until ctx is done
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored the shutdown timeout
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

func eventHook(log hclog.Logger) suture.EventHook {
	return func(e suture.Event) {
		args := make([]interface{}, 0, 2*len(e.Map()))
		for k, v := range e.Map() {
			args = append(args, k, v)
		}
		switch e.Type() {
		case suture.EventTypeResume:
			log.Info("supervisor resumed", args...)
		case suture.EventTypeServicePanic:
			log.Error("service panicked", args...)
		case suture.EventTypeServiceTerminate:
			log.Warn("service terminated", args...)
		case suture.EventTypeBackoff:
			log.Warn("supervisor backing off", args...)
		case suture.EventTypeStopTimeout:
			log.Error("service failed to stop in time", args...)
		default:
			log.Debug(e.String(), args...)
		}
	}
}
