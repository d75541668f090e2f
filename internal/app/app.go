// Package app is the shared bootstrap of the tabular binaries: config
// loading and validation, logging, metrics backend selection, the store
// manager, and the mapping of errors to exit codes.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"tabular/internal/config"
	"tabular/internal/metrics"
	"tabular/internal/metrics/datadog"
	"tabular/internal/metrics/prompush"
	"tabular/internal/sandbox"
	"tabular/internal/source"
	"tabular/internal/store"
)

// Exit codes shared by every binary.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitInvalid  = 2
	ExitNotFound = 3
)

// ErrInvalidConfig is returned by Setup when validation reports errors.
var ErrInvalidConfig = errors.New("invalid configuration")

// Env is what a command needs after bootstrap.
type Env struct {
	Config config.Config
	Log    *logrus.Logger
	Stores *store.Manager

	closers []func()
}

// Options for Setup.
type Options struct {
	ConfigPath string
	Verbose    bool

	// Stderr receives logs and validation issues.
	Stderr io.Writer
}

// Setup loads and validates configuration, builds the logger and the store
// manager, and installs the configured metrics backend. Callers must Close
// the Env so buffered metrics are flushed.
func Setup(ctx context.Context, opts Options) (*Env, error) {
	log := NewLogger(opts.Stderr, opts.Verbose)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		entry := log.WithField("path", iss.Path)
		if iss.Severity == config.SeverityError {
			entry.Error(iss.Message)
		} else {
			entry.Warn(iss.Message)
		}
	}
	if config.HasErrors(issues) {
		return nil, fmt.Errorf("%w: %d error(s)", ErrInvalidConfig, len(issues))
	}

	stores, err := store.NewManager(store.Options{BaseDir: cfg.DataDir, Logger: log})
	if err != nil {
		return nil, err
	}

	env := &Env{Config: cfg, Log: log, Stores: stores}
	env.setupMetrics(ctx)
	return env, nil
}

// NewLogger returns a text logrus logger writing to w at Info, or Debug
// when verbose.
func NewLogger(w io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	if w != nil {
		log.SetOutput(w)
	}
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func (e *Env) setupMetrics(ctx context.Context) {
	m := e.Config.Metrics
	switch m.Backend {
	case "datadog":
		tags := datadog.ParseTagsCSV(m.Tags)
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    m.Job,
			Tags:       tags,
			FlushEvery: m.FlushEvery,
		})
		if err != nil {
			e.Log.WithError(err).Warn("metrics: failed to init datadog backend; using nop")
			return
		}
		e.Log.WithFields(logrus.Fields{"backend": m.Backend, "job": m.Job, "tags": tags}).Debug("metrics enabled")
		metrics.SetBackend(b)
		e.closers = append(e.closers, func() {
			if err := b.Close(); err != nil {
				e.Log.WithError(err).Warn("metrics: datadog close/flush error")
			}
			metrics.SetBackend(nil)
		})

	case "pushgateway":
		b, err := prompush.NewBackend(m.Job, m.PushgatewayURL)
		if err != nil {
			e.Log.WithError(err).Warn("metrics: failed to init prom push backend; using nop")
			return
		}
		e.Log.WithFields(logrus.Fields{"backend": m.Backend, "job": m.Job, "url": m.PushgatewayURL}).Debug("metrics enabled")
		metrics.SetBackend(b)
		e.closers = append(e.closers, func() {
			if err := b.Close(); err != nil {
				e.Log.WithError(err).Warn("metrics: push error")
			}
			metrics.SetBackend(nil)
		})

	case "", "none":
		e.Log.Debug("metrics: disabled")

	default:
		e.Log.Warnf("metrics: unknown backend %q; metrics disabled", m.Backend)
	}
}

// Close flushes metrics and releases resources, in reverse setup order.
func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, sandbox.ErrForbidden),
		errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrUsage):
		return ExitInvalid
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, source.ErrUnknownTable):
		return ExitNotFound
	default:
		return ExitFailure
	}
}

// ErrUsage marks bad command-line arguments.
var ErrUsage = errors.New("usage")

// Usagef returns an ErrUsage with a message.
func Usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
