// Package schedule repeats a job on a cron schedule until a run limit is
// reached, the job fails, or the context is cancelled.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/pipesim/pkg/common/validation"
)

const module = "schedule"

// parser accepts an optional seconds field and descriptors such as
// "@hourly" or "@every 30s".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Job is one scheduled execution. run counts from 1.
type Job func(ctx context.Context, run int) error

// Config controls a schedule.
type Config struct {
	// Expression is a cron expression. Ignored when Schedule is set.
	Expression string

	// Schedule overrides Expression.
	Schedule cron.Schedule

	// MaxRuns stops the schedule after that many runs (0 = unlimited).
	MaxRuns int

	// RunImmediately executes the first run before waiting for the schedule.
	RunImmediately bool

	// StopOnError ends the schedule with the first job error. Otherwise
	// errors are logged and the schedule continues.
	StopOnError bool

	Logger zerolog.Logger
}

// Parse validates a cron expression.
func Parse(expr string) (cron.Schedule, error) {
	if err := validation.ValidateNotEmpty(module, "expression", expr); err != nil {
		return nil, err
	}
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression '%s': %w", expr, err)
	}
	return s, nil
}

// Run executes job according to cfg and blocks until the schedule ends.
// Executions never overlap. It returns the number of completed runs and
// the job error that stopped the schedule, if any. Cancelling ctx is a
// normal way to end an unlimited schedule and is not reported as an error.
func Run(ctx context.Context, cfg Config, job Job) (int, error) {
	if job == nil {
		return 0, errors.New("job cannot be nil")
	}
	if err := validation.ValidateNonNegative(module, "max_runs", cfg.MaxRuns); err != nil {
		return 0, err
	}

	sched := cfg.Schedule
	if sched == nil {
		var err error
		if sched, err = Parse(cfg.Expression); err != nil {
			return 0, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &runner{cfg: cfg, job: job, cancel: cancel}

	if cfg.RunImmediately {
		r.execute(ctx)
		if r.finished() {
			return r.result()
		}
	}

	c := cron.New(
		cron.WithLogger(cronLogger{cfg.Logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{cfg.Logger})),
	)
	c.Schedule(sched, cron.FuncJob(func() { r.execute(ctx) }))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	return r.result()
}

type runner struct {
	cfg    Config
	job    Job
	cancel context.CancelFunc

	mu   sync.Mutex
	runs int
	err  error
	done bool
}

func (r *runner) execute(ctx context.Context) {
	r.mu.Lock()
	if r.done || ctx.Err() != nil {
		r.mu.Unlock()
		return
	}
	run := r.runs + 1
	r.mu.Unlock()

	err := r.job(ctx, run)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = run

	if err != nil {
		r.cfg.Logger.Error().Err(err).Int("run", run).Msg("scheduled run failed")
		if r.cfg.StopOnError {
			r.err = err
			r.stop()
			return
		}
	}
	if r.cfg.MaxRuns > 0 && run >= r.cfg.MaxRuns {
		r.cfg.Logger.Debug().Int("runs", run).Msg("run limit reached")
		r.stop()
	}
}

// stop must be called with mu held.
func (r *runner) stop() {
	r.done = true
	r.cancel()
}

func (r *runner) finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *runner) result() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs, r.err
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
