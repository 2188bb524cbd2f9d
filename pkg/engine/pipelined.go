package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/marusama/cyclicbarrier"
	"github.com/rs/zerolog"

	pserrors "github.com/vnykmshr/pipesim/pkg/common/errors"
	"github.com/vnykmshr/pipesim/pkg/common/validation"
	"github.com/vnykmshr/pipesim/pkg/workqueue"
)

const module = "engine"

// RunPipelined consumes q with one worker per stage. Stage 0 runs on the
// calling goroutine and acts as the controller. It returns once every
// worker has left the round loop.
func RunPipelined(q *workqueue.Queue, delays []time.Duration, opts ...Option) (Result, error) {
	if err := validation.ValidatePositive(module, "stages", len(delays)); err != nil {
		return Result{}, err
	}

	o := newOptions(opts)
	log := o.logger.With().Str("run", o.name).Str("strategy", string(StrategyPipelined)).Logger()

	res := Result{
		Strategy:  StrategyPipelined,
		Doses:     q.Len(),
		Processed: make([]int, len(delays)),
	}
	if q.Empty() {
		log.Debug().Msg("empty queue, nothing to run")
		return res, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &pipelineRun{
		state:   newPipelineState(q, delays),
		barrier: cyclicbarrier.New(len(delays)),
		ctx:     ctx,
		cancel:  cancel,
		opts:    o,
		log:     log,
	}

	log.Debug().
		Int("stages", len(delays)).
		Int("doses", res.Doses).
		Int("units", q.Remaining()).
		Msg("starting run")

	start := time.Now()

	dose, _ := r.state.seed()
	o.metrics.ObserveDose(dose)
	r.publishSignals()

	errs := make([]error, len(delays))
	var wg sync.WaitGroup
	for s := 1; s < len(delays); s++ {
		wg.Add(1)
		go func(stage int) {
			defer wg.Done()
			errs[stage] = r.worker(stage)
		}(s)
	}
	errs[0] = r.worker(0)
	wg.Wait()

	res.Duration = time.Since(start)

	if err := joinFailures(errs); err != nil {
		log.Error().Err(err).Msg("run abandoned")
		return Result{}, pserrors.NewOperationError(module, "RunPipelined", err).
			WithContext(fmt.Sprintf("run %s", o.name))
	}

	res.Rounds = r.state.rounds
	res.Processed = r.state.processed()

	log.Debug().
		Dur("duration", res.Duration).
		Int("rounds", res.Rounds).
		Msg("run finished")
	return res, nil
}

type pipelineRun struct {
	state   *PipelineState
	barrier cyclicbarrier.CyclicBarrier
	ctx     context.Context
	cancel  context.CancelFunc
	opts    options
	log     zerolog.Logger
}

// stagePanic is the failure of a worker that panicked.
type stagePanic struct {
	stage int
	value interface{}
	stack []byte
}

func (p *stagePanic) Error() string {
	return fmt.Sprintf("stage %d panicked: %v\n%s", p.stage, p.value, p.stack)
}

// worker runs the round loop of one stage.
func (r *pipelineRun) worker(stage int) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &stagePanic{stage: stage, value: v, stack: debug.Stack()}
			r.cancel()
		}
	}()

	// Gather every worker before the first round.
	if err := r.await(); err != nil {
		return err
	}

	for {
		units := r.state.execute(stage)
		r.opts.metrics.AddStageUnits(stage, units)

		if err := r.await(); err != nil {
			return err
		}

		if stage == 0 {
			r.control()
		}

		if err := r.await(); err != nil {
			return err
		}

		if r.state.terminate {
			return nil
		}
	}
}

// control runs the controller step on stage 0's worker.
func (r *pipelineRun) control() {
	ps := r.state
	ps.rounds++
	r.observe(StepStart)

	dose, popped := ps.advance()
	if popped {
		r.opts.metrics.ObserveDose(dose)
	}
	r.opts.metrics.ObserveRound()
	r.publishSignals()

	r.log.Trace().
		Int("round", ps.rounds).
		Int("dose", dose).
		Bool("terminate", ps.terminate).
		Msg("controller step")

	r.observe(StepEnd)
}

func (r *pipelineRun) observe(point Point) {
	if r.opts.observer != nil {
		r.opts.observer(r.state.snapshot(point))
	}
}

func (r *pipelineRun) publishSignals() {
	if r.opts.metrics == nil {
		return
	}
	for s := range r.state.slots {
		r.opts.metrics.SetStageState(s, int(r.state.slots[s].signal))
	}
}

func (r *pipelineRun) await() error {
	err := r.barrier.Await(r.ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, cyclicbarrier.ErrBrokenBarrier) || errors.Is(err, context.Canceled) {
		return pserrors.ErrBrokenBarrier
	}
	return err
}

// joinFailures reports the panics that ended a run, or a broken barrier
// when no worker panicked.
func joinFailures(errs []error) error {
	var panics []error
	broken := false
	for _, err := range errs {
		if err == nil {
			continue
		}
		var sp *stagePanic
		if errors.As(err, &sp) {
			panics = append(panics, err)
		} else {
			broken = true
		}
	}

	switch {
	case len(panics) > 0:
		return fmt.Errorf("%w: %w", pserrors.ErrWorkerFailed, errors.Join(panics...))
	case broken:
		return fmt.Errorf("%w: %w", pserrors.ErrWorkerFailed, pserrors.ErrBrokenBarrier)
	default:
		return nil
	}
}
