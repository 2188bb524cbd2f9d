/*
Package params defines the validated parameter set of a simulation run.

A ParameterSet fixes, for one run, the number of stages, the total number of
simulated work items, the maximum number of items in flight in the pipelined
run, and the per-unit delay of each stage (BaseDelay plus that stage's
ImbalanceFactor, in microseconds).

	p := params.Default()
	p.NumStages = 3
	p.ImbalanceFactor = nil
	p.Normalize() // one zero imbalance entry per stage
	if err := p.Validate(); err != nil {
		return err
	}
	delays := p.StageDelays()

Once validated, a ParameterSet is treated as immutable: the work queue
builder, the engine and the simulator only read it.
*/
package params
