package engine

import (
	"time"

	"github.com/vnykmshr/pipesim/pkg/workqueue"
)

// Strategy names the execution strategy of a Result.
type Strategy string

const (
	StrategySerial    Strategy = "serial"
	StrategyPipelined Strategy = "pipelined"
)

// Result describes a completed run.
type Result struct {
	Strategy Strategy      `json:"strategy" yaml:"strategy"`
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Rounds is the number of controller rounds. Zero for serial runs.
	Rounds int `json:"rounds" yaml:"rounds"`

	// Doses is the number of doses consumed from the queue.
	Doses int `json:"doses" yaml:"doses"`

	// Processed holds the units handled by each stage.
	Processed []int `json:"processed" yaml:"processed"`
}

// Units returns the number of work units that went through the whole
// pipeline, which is what the last stage processed.
func (r Result) Units() int {
	if len(r.Processed) == 0 {
		return 0
	}
	return r.Processed[len(r.Processed)-1]
}

// process simulates units of work at one stage.
func process(units int, delay time.Duration) {
	for i := 0; i < units; i++ {
		time.Sleep(delay)
	}
}

// RunSerial consumes q on the calling goroutine, running every dose through
// each stage in order.
func RunSerial(q *workqueue.Queue, delays []time.Duration, opts ...Option) Result {
	o := newOptions(opts)
	log := o.logger.With().Str("run", o.name).Str("strategy", string(StrategySerial)).Logger()

	res := Result{
		Strategy:  StrategySerial,
		Doses:     q.Len(),
		Processed: make([]int, len(delays)),
	}
	log.Debug().Int("doses", res.Doses).Int("units", q.Remaining()).Msg("starting run")

	start := time.Now()
	for {
		dose, ok := q.Pop()
		if !ok {
			break
		}
		for s, delay := range delays {
			process(dose, delay)
			res.Processed[s] += dose
			o.metrics.AddStageUnits(s, dose)
		}
	}
	res.Duration = time.Since(start)

	log.Debug().Dur("duration", res.Duration).Msg("run finished")
	return res
}
