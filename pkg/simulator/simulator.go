// Package simulator runs the serial baseline and the pipelined engine for a
// parameter set and reports how they compare.
package simulator

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/pipesim/pkg/engine"
	"github.com/vnykmshr/pipesim/pkg/metrics"
	"github.com/vnykmshr/pipesim/pkg/params"
	"github.com/vnykmshr/pipesim/pkg/report"
	"github.com/vnykmshr/pipesim/pkg/workqueue"
)

// Simulator compares both strategies for one parameter set. A Simulator may
// be run repeatedly; each Run gets a fresh run ID and fresh queues.
type Simulator struct {
	params   params.ParameterSet
	metrics  *metrics.Registry
	observer engine.Observer
	logger   zerolog.Logger
	newID    func() string
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithMetrics records every run into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(s *Simulator) {
		s.metrics = r
	}
}

// WithObserver enables diagnostic snapshots of the pipelined run. A
// single-stage run with an observer goes through the barrier engine so that
// every round is still reported.
func WithObserver(fn engine.Observer) Option {
	return func(s *Simulator) {
		s.observer = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Simulator) {
		s.logger = l
	}
}

// New creates a simulator for p. The parameter set is validated by Run.
func New(p params.ParameterSet, opts ...Option) *Simulator {
	s := &Simulator{
		params: p,
		logger: zerolog.Nop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Params returns the normalized parameter set.
func (s *Simulator) Params() params.ParameterSet {
	p := s.params
	p.Normalize()
	return p
}

// Run executes the baseline, unless skipped, then the pipelined strategy.
// A single stage is run through the serial code path for both, unless an
// observer is set.
func (s *Simulator) Run() (report.Report, error) {
	p := s.Params()
	if err := p.Validate(); err != nil {
		return report.Report{}, err
	}

	runID := s.newID()
	log := s.logger.With().Str("run_id", runID).Logger()
	delays := p.StageDelays()
	opts := []engine.Option{
		engine.WithName(runID),
		engine.WithMetrics(s.metrics),
		engine.WithLogger(log),
	}

	var serial *time.Duration
	if !p.SkipNoPipeline {
		log.Info().Msg("starting non-pipelined simulation")
		q := workqueue.New(workqueue.ForParams(p, workqueue.Serial))
		res := engine.RunSerial(q, delays, opts...)
		serial = &res.Duration
		s.recordRun(engine.StrategySerial, p.NumWorkItems, res.Duration)
	}

	log.Info().Msg("starting pipelined simulation")
	q := workqueue.New(workqueue.ForParams(p, workqueue.Pipelined))
	var pipelined engine.Result
	if p.NumStages == 1 && s.observer == nil {
		pipelined = engine.RunSerial(q, delays, opts...)
	} else {
		var err error
		pipelined, err = engine.RunPipelined(q, delays, append(opts, engine.WithObserver(s.observer))...)
		if err != nil {
			log.Error().Err(err).Msg("pipelined simulation failed")
			return report.Report{}, err
		}
	}
	s.recordRun(engine.StrategyPipelined, p.NumWorkItems, pipelined.Duration)

	rep := report.New(runID, p, serial, pipelined.Duration)
	if rep.SpeedupAvailable() {
		s.metrics.ObserveSpeedup(rep.Speedup)
	}

	ev := log.Info().Dur("pipelined", pipelined.Duration).Str("speedup_status", string(rep.SpeedupStatus))
	if serial != nil {
		ev = ev.Dur("serial", *serial)
	}
	ev.Msg("simulation finished")

	return rep, nil
}

func (s *Simulator) recordRun(strategy engine.Strategy, items int, d time.Duration) {
	tp, _ := report.Throughput(items, d)
	s.metrics.ObserveRun(string(strategy), d, tp)
}
