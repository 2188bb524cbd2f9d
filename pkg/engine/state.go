package engine

import (
	"time"

	"golang.org/x/sys/cpu"

	"github.com/vnykmshr/pipesim/pkg/workqueue"
)

// StageState is the control signal of one pipeline stage. It only moves
// forward: NotStarted, Running, Finished.
type StageState int

const (
	NotStarted StageState = -1
	Running    StageState = 0
	Finished   StageState = 1
)

// String returns the state name.
func (s StageState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// stageSlot is owned by one stage worker. The pad keeps neighbouring slots
// off the same cache line.
type stageSlot struct {
	input     int
	output    int
	signal    StageState
	processed int
	_         cpu.CacheLinePad
}

// PipelineState is the mutable state of a single pipelined run. It is
// created per run and handed to every worker.
type PipelineState struct {
	queue     *workqueue.Queue
	delays    []time.Duration
	slots     []stageSlot
	terminate bool
	rounds    int
}

func newPipelineState(q *workqueue.Queue, delays []time.Duration) *PipelineState {
	ps := &PipelineState{
		queue:  q,
		delays: delays,
		slots:  make([]stageSlot, len(delays)),
	}
	for i := range ps.slots {
		ps.slots[i].signal = NotStarted
	}
	return ps
}

// seed loads the first dose into stage 0. It returns false for an empty queue.
func (ps *PipelineState) seed() (int, bool) {
	dose, ok := ps.queue.Pop()
	if !ok {
		return 0, false
	}
	ps.slots[0].input = dose
	ps.slots[0].signal = Running
	return dose, true
}

// execute runs the stage-execution point of stage s for the current round.
func (ps *PipelineState) execute(s int) int {
	slot := &ps.slots[s]
	if slot.signal != Running {
		return 0
	}
	process(slot.input, ps.delays[s])
	slot.output = slot.input
	slot.processed += slot.input
	return slot.input
}

// advance is the controller step of the current round. It must only run while
// every other worker is parked between the two barriers of a round.
func (ps *PipelineState) advance() (dose int, popped bool) {
	last := len(ps.slots) - 1

	if next, ok := ps.queue.Pop(); ok {
		ps.slots[0].input = next
		dose, popped = next, true
	} else {
		ps.slots[0].signal = Finished
		ps.slots[0].input = 0
	}

	for s := 1; s <= last; s++ {
		ps.slots[s].input = ps.slots[s-1].output
	}

	for s := range ps.slots {
		ps.slots[s].output = 0
	}

	for s := 1; s <= last; s++ {
		slot := &ps.slots[s]
		if slot.signal == NotStarted && slot.input != 0 {
			slot.signal = Running
		}
	}

	for s := 1; s <= last; s++ {
		slot := &ps.slots[s]
		if slot.signal == Running && slot.input == 0 {
			slot.signal = Finished
		}
	}

	if ps.slots[last].signal == Finished {
		ps.terminate = true
	}
	return dose, popped
}

// Point tells whether a Snapshot was taken before or after a controller step.
type Point int

const (
	StepStart Point = iota
	StepEnd
)

// String returns the point name.
func (p Point) String() string {
	if p == StepEnd {
		return "end"
	}
	return "start"
}

// MarshalText encodes the point by name.
func (p Point) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Snapshot is a copy of the pipeline state at a controller step boundary.
type Snapshot struct {
	Round     int          `json:"round" yaml:"round"`
	Point     Point        `json:"point" yaml:"point"`
	Inputs    []int        `json:"inputs" yaml:"inputs"`
	Outputs   []int        `json:"outputs" yaml:"outputs"`
	Signals   []StageState `json:"signals" yaml:"signals"`
	Terminate bool         `json:"terminate" yaml:"terminate"`

	// Queued is the number of work units not yet fed into stage 0.
	Queued int `json:"queued" yaml:"queued"`
}

func (ps *PipelineState) snapshot(point Point) Snapshot {
	snap := Snapshot{
		Round:     ps.rounds,
		Point:     point,
		Inputs:    make([]int, len(ps.slots)),
		Outputs:   make([]int, len(ps.slots)),
		Signals:   make([]StageState, len(ps.slots)),
		Terminate: ps.terminate,
		Queued:    ps.queue.Remaining(),
	}
	for i := range ps.slots {
		snap.Inputs[i] = ps.slots[i].input
		snap.Outputs[i] = ps.slots[i].output
		snap.Signals[i] = ps.slots[i].signal
	}
	return snap
}

func (ps *PipelineState) processed() []int {
	out := make([]int, len(ps.slots))
	for i := range ps.slots {
		out[i] = ps.slots[i].processed
	}
	return out
}
