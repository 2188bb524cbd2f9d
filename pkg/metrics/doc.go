// Package metrics provides Prometheus instrumentation for pipesim runs.
//
// A Registry is handed to the engine and the simulator, which record run
// durations, throughput, speedup, controller rounds, dose sizes and per-stage
// progress into it. pipesim exposes no network surface; metrics are gathered
// at the end of a run and written as text with WriteText.
//
// # Quick Start
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistry(reg)
//
//	sim := simulator.New(p, simulator.WithMetrics(m))
//	if _, err := sim.Run(); err != nil {
//		return err
//	}
//	_ = metrics.WriteText(os.Stdout, reg)
//
// # Available Metrics
//
//   - pipesim_run_duration_seconds{strategy}: duration of the last run
//   - pipesim_run_throughput{strategy}: work items per second of the last run
//   - pipesim_runs_total{strategy}: completed runs
//   - pipesim_run_speedup: non-pipelined over pipelined duration
//   - pipesim_controller_rounds_total: controller rounds executed
//   - pipesim_controller_dose_size: histogram of doses fed to stage 0
//   - pipesim_stage_units_total{stage}: units processed per stage
//   - pipesim_stage_state{stage}: control signal per stage
//
// The strategy label is "serial" or "pipelined".
//
// # Nil Registry
//
// Every recording method is a no-op on a nil *Registry, so components take
// an optional registry without guarding each call. NewRegistryWithConfig
// returns nil when Config.Enabled is false.
package metrics
