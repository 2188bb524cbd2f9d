package display

import (
	"time"

	"github.com/vnykmshr/pipesim/pkg/engine"
	"github.com/vnykmshr/pipesim/pkg/params"
	"github.com/vnykmshr/pipesim/pkg/report"
)

// Structured encodings use these views so durations read as milliseconds
// and unavailable figures are omitted instead of printed as zero.

type measurementView struct {
	Strategy   string   `json:"strategy" yaml:"strategy"`
	DurationMS float64  `json:"duration_ms" yaml:"duration_ms"`
	Throughput *float64 `json:"throughput_wips,omitempty" yaml:"throughput_wips,omitempty"`
}

type reportView struct {
	RunID         string              `json:"run_id" yaml:"run_id"`
	Params        params.ParameterSet `json:"params" yaml:"params"`
	Serial        *measurementView    `json:"serial,omitempty" yaml:"serial,omitempty"`
	Pipelined     measurementView     `json:"pipelined" yaml:"pipelined"`
	Speedup       *float64            `json:"speedup,omitempty" yaml:"speedup,omitempty"`
	SpeedupStatus string              `json:"speedup_status" yaml:"speedup_status"`
	SpeedupReason string              `json:"speedup_reason,omitempty" yaml:"speedup_reason,omitempty"`
}

type snapshotView struct {
	Round     int    `json:"round" yaml:"round"`
	Point     string `json:"point" yaml:"point"`
	Inputs    []int  `json:"inputs" yaml:"inputs"`
	Outputs   []int  `json:"outputs" yaml:"outputs"`
	Signals   []int  `json:"signals" yaml:"signals"`
	Terminate bool   `json:"terminate" yaml:"terminate"`
	Queued    int    `json:"queued" yaml:"queued"`
}

func newMeasurementView(m report.Measurement) measurementView {
	v := measurementView{
		Strategy:   string(m.Strategy),
		DurationMS: float64(m.Duration) / float64(time.Millisecond),
	}
	if m.ThroughputAvailable {
		tp := m.Throughput
		v.Throughput = &tp
	}
	return v
}

func newReportView(r report.Report) reportView {
	v := reportView{
		RunID:         r.RunID,
		Params:        r.Params,
		Pipelined:     newMeasurementView(r.Pipelined),
		SpeedupStatus: string(r.SpeedupStatus),
		SpeedupReason: r.SpeedupStatus.Reason(),
	}
	if r.Serial != nil {
		serial := newMeasurementView(*r.Serial)
		v.Serial = &serial
	}
	if r.SpeedupAvailable() {
		speedup := r.Speedup
		v.Speedup = &speedup
	}
	return v
}

func newSnapshotView(s engine.Snapshot) snapshotView {
	signals := make([]int, len(s.Signals))
	for i, sig := range s.Signals {
		signals[i] = int(sig)
	}
	return snapshotView{
		Round:     s.Round,
		Point:     s.Point.String(),
		Inputs:    s.Inputs,
		Outputs:   s.Outputs,
		Signals:   signals,
		Terminate: s.Terminate,
		Queued:    s.Queued,
	}
}
