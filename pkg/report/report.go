// Package report turns the durations of a comparison into throughput and
// speedup figures.
package report

import (
	"time"

	"github.com/vnykmshr/pipesim/pkg/engine"
	"github.com/vnykmshr/pipesim/pkg/params"
)

// SpeedupStatus tells whether a speedup ratio could be computed.
type SpeedupStatus string

const (
	// Available means Speedup holds serial/pipelined.
	Available SpeedupStatus = "available"

	// BaselineSkipped means the non-pipelined run was disabled.
	BaselineSkipped SpeedupStatus = "baseline_skipped"

	// SingleStage means both strategies ran the same serial code path.
	SingleStage SpeedupStatus = "single_stage"

	// NoWork means there were no work items, or a run took no measurable time.
	NoWork SpeedupStatus = "no_work"
)

// Reason returns a human readable explanation of an unavailable speedup.
func (s SpeedupStatus) Reason() string {
	switch s {
	case BaselineSkipped:
		return "non-pipelined run was skipped"
	case SingleStage:
		return "a single stage cannot be pipelined"
	case NoWork:
		return "no work items were processed"
	default:
		return ""
	}
}

// Measurement is the outcome of one strategy.
type Measurement struct {
	Strategy engine.Strategy `json:"strategy" yaml:"strategy"`
	Duration time.Duration   `json:"duration" yaml:"duration"`

	// Throughput is in work items per second. It is only meaningful when
	// ThroughputAvailable is true.
	Throughput          float64 `json:"throughput" yaml:"throughput"`
	ThroughputAvailable bool    `json:"throughput_available" yaml:"throughput_available"`
}

// Throughput returns items/seconds, and false when it is undefined because
// there were no items or no measurable duration.
func Throughput(items int, d time.Duration) (float64, bool) {
	if items <= 0 || d <= 0 {
		return 0, false
	}
	return float64(items) / d.Seconds(), true
}

// Measure builds the Measurement of a run over items work items.
func Measure(strategy engine.Strategy, items int, d time.Duration) Measurement {
	tp, ok := Throughput(items, d)
	return Measurement{
		Strategy:            strategy,
		Duration:            d,
		Throughput:          tp,
		ThroughputAvailable: ok,
	}
}

// Report is the result of a full comparison.
type Report struct {
	RunID  string              `json:"run_id" yaml:"run_id"`
	Params params.ParameterSet `json:"params" yaml:"params"`

	// Serial is nil when the baseline was skipped.
	Serial    *Measurement `json:"serial,omitempty" yaml:"serial,omitempty"`
	Pipelined Measurement  `json:"pipelined" yaml:"pipelined"`

	Speedup       float64       `json:"speedup" yaml:"speedup"`
	SpeedupStatus SpeedupStatus `json:"speedup_status" yaml:"speedup_status"`
}

// New assembles a report. serial is nil when the baseline was skipped.
func New(runID string, p params.ParameterSet, serial *time.Duration, pipelined time.Duration) Report {
	pipelinedStrategy := engine.StrategyPipelined
	if p.NumStages == 1 {
		pipelinedStrategy = engine.StrategySerial
	}

	r := Report{
		RunID:     runID,
		Params:    p,
		Pipelined: Measure(pipelinedStrategy, p.NumWorkItems, pipelined),
	}
	if serial != nil {
		m := Measure(engine.StrategySerial, p.NumWorkItems, *serial)
		r.Serial = &m
	}

	switch {
	case serial == nil:
		r.SpeedupStatus = BaselineSkipped
	case p.NumStages == 1:
		r.SpeedupStatus = SingleStage
	case p.NumWorkItems == 0 || *serial <= 0 || pipelined <= 0:
		r.SpeedupStatus = NoWork
	default:
		r.SpeedupStatus = Available
		r.Speedup = serial.Seconds() / pipelined.Seconds()
	}
	return r
}

// SpeedupAvailable reports whether Speedup holds a ratio.
func (r Report) SpeedupAvailable() bool {
	return r.SpeedupStatus == Available
}
