// Package logger provides the process-wide structured logger.
//
// Messages are logged through hashicorp/go-hclog with alternating key/value
// pairs, the same convention every module uses for its named sub-loggers:
//
//	logger.Info("import finished", "records", 1000, "duration", d)
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Options configures the root logger
type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // json or text
	Output io.Writer
}

var (
	mu   sync.RWMutex
	root hclog.Logger = hclog.New(&hclog.LoggerOptions{
		Name:   "medialibrary",
		Level:  hclog.Info,
		Output: os.Stderr,
	})
)

// Configure replaces the root logger. Loggers obtained through Named before
// the call keep writing to the previous sink.
func Configure(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	l := hclog.New(&hclog.LoggerOptions{
		Name:            "medialibrary",
		Level:           ParseLevel(opts.Level),
		Output:          out,
		JSONFormat:      strings.EqualFold(opts.Format, "json"),
		IncludeLocation: false,
	})

	mu.Lock()
	root = l
	mu.Unlock()
}

// ParseLevel converts a config level string to an hclog level, defaulting to info
func ParseLevel(level string) hclog.Level {
	l := hclog.LevelFromString(level)
	if l == hclog.NoLevel {
		return hclog.Info
	}
	return l
}

// SetLevel changes the level of the root logger
func SetLevel(level string) {
	Root().SetLevel(ParseLevel(level))
}

// Root returns the current root logger
func Root() hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Named returns a sub-logger for a component
func Named(name string) hclog.Logger {
	return Root().Named(name)
}

// Info logs informational messages
func Info(msg string, args ...interface{}) {
	Root().Info(msg, args...)
}

// Warn logs warning messages
func Warn(msg string, args ...interface{}) {
	Root().Warn(msg, args...)
}

// Error logs error messages
func Error(msg string, args ...interface{}) {
	Root().Error(msg, args...)
}

// Debug logs debug messages
func Debug(msg string, args ...interface{}) {
	Root().Debug(msg, args...)
}
