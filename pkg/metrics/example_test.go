package metrics

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Example_basicUsage demonstrates recording a comparison into a private registry.
func Example_basicUsage() {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.ObserveRun("serial", 2*time.Second, 50)
	m.ObserveRun("pipelined", time.Second, 100)
	m.ObserveSpeedup(2)

	families, _ := reg.Gather()
	for _, f := range families {
		fmt.Println(f.GetName())
	}

	// Output:
	// pipesim_controller_dose_size
	// pipesim_controller_rounds_total
	// pipesim_run_duration_seconds
	// pipesim_run_speedup
	// pipesim_run_throughput
	// pipesim_runs_total
}

// Example_configuration demonstrates different metrics configurations.
func Example_configuration() {
	defaultConfig := DefaultConfig()
	fmt.Printf("Default enabled: %v\n", defaultConfig.Enabled)
	fmt.Printf("Default namespace: %s\n", defaultConfig.Namespace)

	disabled := NewRegistryWithConfig(Config{Enabled: false})
	fmt.Printf("Disabled registry is nil: %v\n", disabled == nil)

	// Output:
	// Default enabled: true
	// Default namespace: pipesim
	// Disabled registry is nil: true
}

// Example_writeText demonstrates dumping metrics without an HTTP endpoint.
func Example_writeText() {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)
	m.ObserveSpeedup(1.5)

	var buf bytes.Buffer
	_ = WriteText(&buf, reg)
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "pipesim_run_speedup") {
			fmt.Println(line)
		}
	}

	// Output:
	// # HELP pipesim_run_speedup Non-pipelined duration divided by pipelined duration of the last comparison
	// # TYPE pipesim_run_speedup gauge
	// pipesim_run_speedup 1.5
}
