/*
Package workqueue turns a parameter set into the ordered doses fed to stage 0.

A dose is the number of simulated units handed to one stage for one
controller round. The pipelined split keeps the pipeline exactly full: each
steady-state iteration is one dose per stage summing to the configured
capacity, so any window of NumStages consecutive doses (the units in flight
at a round boundary) never exceeds it. The drain phase hands out what is
left in smaller doses.

For 11 work items, capacity 5 and 2 stages:

	workqueue.Build(11, 5, 2, workqueue.Pipelined) // [3 2 3 2 1]
	workqueue.Build(11, 5, 2, workqueue.Serial)    // [5 5 1]

Queues are built fresh for each run and consumed once:

	q := workqueue.New(workqueue.ForParams(p, workqueue.Pipelined))
	for dose, ok := q.Pop(); ok; dose, ok = q.Pop() {
		// ...
	}
*/
package workqueue
