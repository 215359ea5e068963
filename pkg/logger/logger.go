// Package logger holds the process-wide zerolog logger and the helpers that
// derive component and request scoped children from it.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the root logger.
type Options struct {
	// Level is one of trace, debug, info, warn or error. Anything else means info.
	Level string
	// Pretty switches to coloured console output for local runs.
	Pretty bool
	// Output defaults to os.Stdout.
	Output io.Writer
	// Service is stamped on every entry as "service".
	Service string
}

var (
	mu   sync.RWMutex
	once sync.Once
	root *zerolog.Logger
)

// Init builds the root logger on the first call and returns it. Later calls
// return the same logger and ignore their options.
func Init(opts Options) zerolog.Logger {
	once.Do(func() {
		l := build(opts)
		mu.Lock()
		root = &l
		mu.Unlock()
	})
	return Get()
}

func build(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(lvl)

	c := zerolog.New(out).Level(lvl).With().Timestamp()
	if opts.Service != "" {
		c = c.Str("service", opts.Service)
	}
	// Console output stays compact; JSON carries the call site.
	if !opts.Pretty {
		c = c.Caller()
	}
	return c.Logger()
}

// Get returns the root logger. It panics before Init.
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if root == nil {
		panic("logger: Get() called before Init()")
	}
	return *root
}

// Component returns a child of the root logger tagged with name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// WithRequest returns a copy of ctx carrying base tagged with requestID.
func WithRequest(ctx context.Context, base zerolog.Logger, requestID string) context.Context {
	l := base.With().Str("request_id", requestID).Logger()
	return l.WithContext(ctx)
}

// FromContext returns the logger stored by WithRequest, if any.
func FromContext(ctx context.Context) (zerolog.Logger, bool) {
	l := zerolog.Ctx(ctx)
	if l == nil || l == zerolog.DefaultContextLogger || l.GetLevel() == zerolog.Disabled {
		return zerolog.Nop(), false
	}
	return *l, true
}

// Reset drops the root logger so tests can call Init again.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	once = sync.Once{}
	root = nil
}

func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	switch lvl, err := zerolog.ParseLevel(s); {
	case err != nil, s == "", lvl > zerolog.ErrorLevel:
		return zerolog.InfoLevel
	default:
		return lvl
	}
}
