/*
Package engine runs a dose queue through a fixed number of simulated stages,
either serially or as a barrier-synchronised pipeline.

Every stage handles a unit of work by sleeping for its stage delay. The
serial runner walks each dose through all stages in order on one goroutine.
The pipelined runner starts one worker per stage; stage 0 runs on the calling
goroutine and doubles as the controller.

# Quick Start

	doses := workqueue.ForParams(p, workqueue.Pipelined)
	res, err := engine.RunPipelined(workqueue.New(doses), p.StageDelays())
	if err != nil {
		return err
	}
	fmt.Printf("%s: %v in %d rounds\n", res.Strategy, res.Duration, res.Rounds)

# Round Protocol

Workers advance in lockstep. Each round a worker whose stage is Running
processes its input and publishes it as output. All workers then meet at a
cyclic barrier, the controller advances the pipeline state, and all workers
meet again before reading their next input:

  - pop the next dose into stage 0, or finish stage 0 once the queue is empty
  - hand every stage the output of the stage before it
  - clear all outputs
  - start stages that received work, finish stages whose input ran dry
  - terminate once the last stage has finished

Shared state is only written by the controller between the two barriers and
by each worker into its own slot, so the state needs no mutex. A run of d
doses over n stages takes d+n-1 rounds.

# Diagnostics

WithObserver receives a Snapshot at the start and end of every controller
step. The observer runs on the controller goroutine while every other worker
is parked at the barrier.

# Failure

A panic in a worker or in the observer breaks the barrier for every other
worker. RunPipelined joins all workers and returns an error matching
errors.ErrWorkerFailed; no partial result is reported.
*/
package engine
