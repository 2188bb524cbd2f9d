package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/pipesim/internal/testutil"
	pserrors "github.com/vnykmshr/pipesim/pkg/common/errors"
	"github.com/vnykmshr/pipesim/pkg/metrics"
	"github.com/vnykmshr/pipesim/pkg/workqueue"
)

func zeroDelays(n int) []time.Duration {
	return make([]time.Duration, n)
}

func TestRunSerial(t *testing.T) {
	doses := workqueue.Build(23, 5, 3, workqueue.Serial)
	q := workqueue.New(doses)

	res := RunSerial(q, zeroDelays(3))

	testutil.AssertEqual(t, res.Strategy, StrategySerial)
	testutil.AssertEqual(t, res.Doses, len(doses))
	testutil.AssertEqual(t, res.Rounds, 0)
	testutil.AssertSliceEqual(t, res.Processed, []int{23, 23, 23})
	testutil.AssertEqual(t, res.Units(), 23)
	testutil.AssertEqual(t, q.Empty(), true)
}

func TestRunSerialAppliesDelays(t *testing.T) {
	q := workqueue.New([]int{2, 2})
	delay := 200 * time.Microsecond

	res := RunSerial(q, []time.Duration{delay, delay})

	// 4 units through 2 stages, at least one delay each.
	if res.Duration < 8*delay {
		t.Errorf("duration %v shorter than the summed delays %v", res.Duration, 8*delay)
	}
}

func TestRunSerialEmptyQueue(t *testing.T) {
	res := RunSerial(workqueue.New(nil), zeroDelays(2))

	testutil.AssertEqual(t, res.Doses, 0)
	testutil.AssertSliceEqual(t, res.Processed, []int{0, 0})
	testutil.AssertEqual(t, res.Units(), 0)
}

func TestRunPipelinedProcessesEveryUnitOnce(t *testing.T) {
	tests := []struct {
		name                        string
		workItems, capacity, stages int
	}{
		{"reference example", 11, 5, 2},
		{"single stage", 10, 5, 1},
		{"single dose", 1, 5, 3},
		{"many stages", 97, 16, 8},
		{"capacity equals stages", 20, 4, 4},
		{"no remainder", 40, 10, 4},
		{"drain only", 7, 100, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doses := workqueue.Build(tt.workItems, tt.capacity, tt.stages, workqueue.Pipelined)

			var res Result
			var err error
			testutil.Finishes(t, func() {
				res, err = RunPipelined(workqueue.New(doses), zeroDelays(tt.stages))
			})

			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, res.Strategy, StrategyPipelined)
			testutil.AssertEqual(t, res.Doses, len(doses))
			testutil.AssertEqual(t, res.Rounds, len(doses)+tt.stages-1)
			for s, units := range res.Processed {
				if units != tt.workItems {
					t.Errorf("stage %d processed %d units, want %d", s, units, tt.workItems)
				}
			}
		})
	}
}

func TestRunPipelinedEmptyQueue(t *testing.T) {
	tracker := testutil.NewCallbackTracker()

	var res Result
	var err error
	testutil.Finishes(t, func() {
		res, err = RunPipelined(workqueue.New(nil), zeroDelays(4),
			WithObserver(func(Snapshot) { tracker.Mark() }))
	})

	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, res.Rounds, 0)
	testutil.AssertSliceEqual(t, res.Processed, []int{0, 0, 0, 0})
	tracker.AssertNotCalled(t)
}

func TestRunPipelinedRejectsNoStages(t *testing.T) {
	_, err := RunPipelined(workqueue.New([]int{1}), nil)

	testutil.AssertError(t, err)
	var ve *pserrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	testutil.AssertEqual(t, ve.Field, "stages")
	testutil.AssertEqual(t, ve.Value, interface{}(0))
}

func TestRunPipelinedSignalsAreMonotonic(t *testing.T) {
	doses := workqueue.Build(29, 6, 3, workqueue.Pipelined)

	var snaps []Snapshot
	res, err := RunPipelined(workqueue.New(doses), zeroDelays(3),
		WithObserver(func(s Snapshot) { snaps = append(snaps, s) }))
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, len(snaps), 2*res.Rounds)

	prev := []StageState{Running, NotStarted, NotStarted}
	for i, snap := range snaps {
		for s, sig := range snap.Signals {
			if sig < prev[s] {
				t.Fatalf("snapshot %d: stage %d moved from %v to %v", i, s, prev[s], sig)
			}
		}
		prev = snap.Signals

		if snap.Point == StepStart && snap.Terminate {
			t.Fatalf("snapshot %d: terminate set before the final controller step", i)
		}
	}

	final := snaps[len(snaps)-1]
	testutil.AssertEqual(t, final.Point, StepEnd)
	testutil.AssertEqual(t, final.Terminate, true)
	testutil.AssertEqual(t, final.Queued, 0)
	for s, sig := range final.Signals {
		if sig != Finished {
			t.Errorf("stage %d ended in state %v", s, sig)
		}
	}
}

func TestRunPipelinedControllerStep(t *testing.T) {
	var snaps []Snapshot
	_, err := RunPipelined(workqueue.New([]int{3, 2, 3, 2, 1}), zeroDelays(2),
		WithObserver(func(s Snapshot) { snaps = append(snaps, s) }))
	testutil.AssertNoError(t, err)

	type step struct {
		inputs  []int
		signals []StageState
		queued  int
	}
	// State at the end of each controller step.
	want := []step{
		{[]int{2, 3}, []StageState{Running, Running}, 6},
		{[]int{3, 2}, []StageState{Running, Running}, 3},
		{[]int{2, 3}, []StageState{Running, Running}, 1},
		{[]int{1, 2}, []StageState{Running, Running}, 0},
		{[]int{0, 1}, []StageState{Finished, Running}, 0},
		{[]int{0, 0}, []StageState{Finished, Finished}, 0},
	}

	var ends []Snapshot
	for _, s := range snaps {
		if s.Point == StepEnd {
			ends = append(ends, s)
		}
	}
	testutil.AssertEqual(t, len(ends), len(want))

	for i, w := range want {
		testutil.AssertEqual(t, ends[i].Round, i+1)
		testutil.AssertSliceEqual(t, ends[i].Inputs, w.inputs)
		testutil.AssertSliceEqual(t, ends[i].Outputs, []int{0, 0})
		testutil.AssertSliceEqual(t, ends[i].Signals, w.signals)
		testutil.AssertEqual(t, ends[i].Queued, w.queued)
	}

	// Units left after seeding, not doses.
	testutil.AssertEqual(t, snaps[0].Queued, 8)

	// Outputs are visible to the controller before it consumes them.
	testutil.AssertSliceEqual(t, snaps[0].Outputs, []int{3, 0})
}

func TestRunPipelinedObserverPanic(t *testing.T) {
	doses := workqueue.Build(50, 8, 4, workqueue.Pipelined)

	var res Result
	var err error
	testutil.Finishes(t, func() {
		res, err = RunPipelined(workqueue.New(doses), zeroDelays(4),
			WithObserver(func(s Snapshot) {
				if s.Round == 3 {
					panic("observer failure")
				}
			}))
	})

	testutil.AssertError(t, err)
	if !pserrors.IsWorkerFailure(err) {
		t.Errorf("expected worker failure, got %v", err)
	}
	var opErr *pserrors.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *OperationError, got %T", err)
	}
	testutil.AssertEqual(t, opErr.Operation, "RunPipelined")
	testutil.AssertEqual(t, res.Processed == nil, true)
}

func TestRunPipelinedWorkerPanic(t *testing.T) {
	doses := workqueue.Build(60, 9, 3, workqueue.Pipelined)

	t.Run("stage goroutine", func(t *testing.T) {
		m := metrics.NewRegistry(prometheus.NewRegistry())
		m.StageUnits = prometheus.V2.NewCounterVec(prometheus.CounterVecOpts{
			CounterOpts:    prometheus.CounterOpts{Name: "units_total", Help: "units"},
			VariableLabels: prometheus.ConstrainedLabels{{
				Name:       "stage",
				Constraint: func(v string) string {
					if v == "2" {
						panic("stage 2 failure")
					}
					return v
				},
			}},
		})

		var err error
		testutil.Finishes(t, func() {
			_, err = RunPipelined(workqueue.New(doses), zeroDelays(3), WithMetrics(m))
		})

		if !pserrors.IsWorkerFailure(err) {
			t.Fatalf("expected worker failure, got %v", err)
		}
		var sp *stagePanic
		if !errors.As(err, &sp) {
			t.Fatalf("expected a stage panic in %v", err)
		}
		testutil.AssertEqual(t, sp.stage, 2)
	})

	t.Run("every stage", func(t *testing.T) {
		m := metrics.NewRegistry(prometheus.NewRegistry())
		m.StageUnits = nil

		var err error
		testutil.Finishes(t, func() {
			_, err = RunPipelined(workqueue.New(doses), zeroDelays(3), WithMetrics(m))
		})

		if !pserrors.IsWorkerFailure(err) {
			t.Fatalf("expected worker failure, got %v", err)
		}
	})
}

func TestRunPipelinedIndependentRuns(t *testing.T) {
	var wg sync.WaitGroup
	errs := make([]error, 4)
	results := make([]Result, 4)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doses := workqueue.Build(30+i, 5, 3, workqueue.Pipelined)
			results[i], errs[i] = RunPipelined(workqueue.New(doses), zeroDelays(3))
		}(i)
	}
	wg.Wait()

	for i := range results {
		testutil.AssertNoError(t, errs[i])
		testutil.AssertEqual(t, results[i].Units(), 30+i)
	}
}

func TestRunPipelinedMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)
	doses := []int{3, 2, 3, 2, 1}

	_, err := RunPipelined(workqueue.New(doses), zeroDelays(2), WithMetrics(m))
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, promtest.ToFloat64(m.ControllerRounds), 6.0)
	testutil.AssertEqual(t, promtest.ToFloat64(m.StageUnits.WithLabelValues("0")), 11.0)
	testutil.AssertEqual(t, promtest.ToFloat64(m.StageUnits.WithLabelValues("1")), 11.0)
	testutil.AssertEqual(t, promtest.ToFloat64(m.StageState.WithLabelValues("1")), float64(Finished))
}

func TestPipelinedFasterThanSerial(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	delays := []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond, time.Millisecond}
	serial := RunSerial(workqueue.New(workqueue.Build(40, 8, 4, workqueue.Serial)), delays)
	pipelined, err := RunPipelined(workqueue.New(workqueue.Build(40, 8, 4, workqueue.Pipelined)), delays)
	testutil.AssertNoError(t, err)

	if pipelined.Duration >= serial.Duration {
		t.Errorf("pipelined %v not faster than serial %v", pipelined.Duration, serial.Duration)
	}
}

func TestStageStateString(t *testing.T) {
	testutil.AssertEqual(t, NotStarted.String(), "not_started")
	testutil.AssertEqual(t, Running.String(), "running")
	testutil.AssertEqual(t, Finished.String(), "finished")
	testutil.AssertEqual(t, StageState(7).String(), "unknown")
	testutil.AssertEqual(t, StepStart.String(), "start")
	testutil.AssertEqual(t, StepEnd.String(), "end")
}
