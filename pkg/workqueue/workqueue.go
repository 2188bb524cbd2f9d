package workqueue

import (
	"github.com/vnykmshr/pipesim/pkg/params"
)

// Mode selects how the work is split into doses.
type Mode int

const (
	// Serial feeds one dose per capacity-sized block, for the baseline run.
	Serial Mode = iota

	// Pipelined feeds one dose per controller round, keeping the pipeline
	// full without exceeding capacity.
	Pipelined
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Serial:
		return "serial"
	case Pipelined:
		return "pipelined"
	default:
		return "unknown"
	}
}

// Build splits workItems into an ordered sequence of doses.
//
// Steady state: workItems/capacity iterations. A serial iteration is a single
// dose of capacity. A pipelined iteration is exactly stages doses summing to
// capacity: capacity/stages each, with capacity%stages added to the first.
//
// Drain: the remainder workItems%capacity. Serial pushes it as one dose.
// Pipelined pushes stages doses of remainder/stages (when non-zero), then
// remainder%stages doses of one unit.
//
// The doses always sum to workItems and are never zero. Callers guarantee
// capacity >= stages >= 1 and workItems >= 0.
func Build(workItems, capacity, stages int, mode Mode) []int {
	iterations := workItems / capacity
	remainder := workItems % capacity

	var doses []int
	push := func(n, size int) {
		if size <= 0 {
			return
		}
		for i := 0; i < n; i++ {
			doses = append(doses, size)
		}
	}

	for i := 0; i < iterations; i++ {
		if mode == Pipelined {
			perStage := capacity / stages
			push(1, perStage+capacity%stages)
			push(stages-1, perStage)
		} else {
			push(1, capacity)
		}
	}

	if remainder > 0 {
		if mode == Pipelined {
			push(stages, remainder/stages)
			push(remainder%stages, 1)
		} else {
			push(1, remainder)
		}
	}

	return doses
}

// ForParams builds the queue contents for a validated parameter set.
func ForParams(p params.ParameterSet, mode Mode) []int {
	return Build(p.NumWorkItems, p.MaxPipelineCapacity, p.NumStages, mode)
}

// Queue is a FIFO of doses consumed front-to-back exactly once.
// It is not safe for concurrent use; the pipeline controller is its only
// consumer.
type Queue struct {
	doses     []int
	head      int
	remaining int
}

// New creates a queue over doses. The slice is copied.
func New(doses []int) *Queue {
	q := &Queue{doses: make([]int, len(doses))}
	copy(q.doses, doses)
	for _, d := range doses {
		q.remaining += d
	}
	return q
}

// Pop removes and returns the next dose. ok is false when the queue is empty.
func (q *Queue) Pop() (dose int, ok bool) {
	if q.head >= len(q.doses) {
		return 0, false
	}
	dose = q.doses[q.head]
	q.head++
	q.remaining -= dose
	return dose, true
}

// Len returns the number of doses left.
func (q *Queue) Len() int {
	return len(q.doses) - q.head
}

// Empty reports whether every dose has been popped.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Remaining returns the number of work units still queued.
func (q *Queue) Remaining() int {
	return q.remaining
}

// Doses returns a copy of the doses not yet popped.
func (q *Queue) Doses() []int {
	out := make([]int, q.Len())
	copy(out, q.doses[q.head:])
	return out
}
