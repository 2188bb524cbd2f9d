package engine

import (
	"github.com/rs/zerolog"

	"github.com/vnykmshr/pipesim/pkg/metrics"
)

// Observer receives pipeline snapshots in diagnostic mode.
type Observer func(Snapshot)

// Option configures a run.
type Option func(*options)

type options struct {
	name     string
	observer Observer
	metrics  *metrics.Registry
	logger   zerolog.Logger
}

func newOptions(opts []Option) options {
	o := options{
		name:   "pipesim",
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithObserver calls fn at the start and end of every controller step.
func WithObserver(fn Observer) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithMetrics records run progress into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(o *options) {
		o.metrics = r
	}
}

// WithLogger sets the logger. Runs are silent by default.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithName labels the run in logs.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}
