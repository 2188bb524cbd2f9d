/*
Package pipesim measures how much a pipelined execution of staged work
gains over running the same work serially.

Work is a stream of identical units passing through a fixed number of
stages; each unit is simulated by sleeping for its stage delay.

Parameters (pkg/params):
  - stage count, work item count, pipeline capacity
  - base delay and per-stage imbalance, in microseconds

Execution (pkg/workqueue, pkg/engine):
  - workqueue: splits the work into doses that keep the pipeline full
  - engine: serial runner and barrier-synchronised pipeline controller

Results (pkg/report, pkg/simulator, pkg/metrics):
  - report: throughput per strategy and speedup
  - simulator: runs both strategies for a parameter set
  - metrics: Prometheus instrumentation

Example usage:

	import (
		"github.com/vnykmshr/pipesim/pkg/params"
		"github.com/vnykmshr/pipesim/pkg/simulator"
	)

	p := params.Default()
	p.NumWorkItems = 1000

	rep, err := simulator.New(p).Run()
	if err != nil {
		return err
	}
	fmt.Printf("speedup: %.2fx\n", rep.Speedup)

The pipesim command (cmd/pipesim) wraps the simulator with layered
configuration, console reporting and cron repetition.
*/
package pipesim
