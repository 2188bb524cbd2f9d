// Package integration contains integration tests that verify cross-package functionality.
// These tests drive the configuration loader, simulator, metrics and display together.
package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vnykmshr/pipesim/internal/config"
	"github.com/vnykmshr/pipesim/internal/display"
	"github.com/vnykmshr/pipesim/internal/schedule"
	"github.com/vnykmshr/pipesim/pkg/engine"
	"github.com/vnykmshr/pipesim/pkg/metrics"
	"github.com/vnykmshr/pipesim/pkg/report"
	"github.com/vnykmshr/pipesim/pkg/simulator"
	"github.com/vnykmshr/pipesim/pkg/workqueue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func noEnv(string) (string, bool) { return "", false }

// TestKeywordFileToReport runs a keyword config file through the whole
// stack and checks the text report.
func TestKeywordFileToReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.conf")
	require.NoError(t, os.WriteFile(path, []byte(`# three unbalanced stages
numStages 3
numWorkItems 60
maxPipelineCapacity 12
baseDelay 20
imbalanceFactor 0 10 -10
`), 0o600))

	cfg, err := config.Load(config.Options{ConfigFile: path, LookupEnv: noEnv})
	require.NoError(t, err)
	p, err := cfg.Params()
	require.NoError(t, err)

	rep, err := simulator.New(p).Run()
	require.NoError(t, err)

	var out bytes.Buffer
	printer, err := display.New(&out, cfg.Output)
	require.NoError(t, err)
	require.NoError(t, printer.Params(p))
	require.NoError(t, printer.Report(rep))

	assert.Contains(t, out.String(), "imbalanceFactor: [ 0 10 -10 ]")
	assert.Contains(t, out.String(), "Non pipelined time taken:")
	assert.Equal(t, report.Available, rep.SpeedupStatus)
}

// TestPipelineBeatsBaseline checks that overlapping stages pays off once
// stage delays dominate the synchronisation cost.
func TestPipelineBeatsBaseline(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	cfg, err := config.Load(config.Options{LookupEnv: noEnv})
	require.NoError(t, err)
	cfg.NumStages = 4
	cfg.NumWorkItems = 400
	cfg.MaxPipelineCapacity = 40
	cfg.BaseDelay = 200
	p, err := cfg.Params()
	require.NoError(t, err)

	rep, err := simulator.New(p).Run()
	require.NoError(t, err)

	require.True(t, rep.SpeedupAvailable())
	assert.Greater(t, rep.Speedup, 1.5)
	assert.Greater(t, rep.Pipelined.Throughput, rep.Serial.Throughput)
}

// TestDiagnosticSnapshotsMatchQueue checks that every dose of the queue is
// fed into stage 0 exactly once, in order.
func TestDiagnosticSnapshotsMatchQueue(t *testing.T) {
	cfg, err := config.Load(config.Options{LookupEnv: noEnv})
	require.NoError(t, err)
	cfg.NumStages = 3
	cfg.NumWorkItems = 50
	cfg.MaxPipelineCapacity = 7
	cfg.BaseDelay = 0
	cfg.SkipNoPipeline = true
	p, err := cfg.Params()
	require.NoError(t, err)

	var fed []int
	observer := func(s engine.Snapshot) {
		if s.Point == engine.StepEnd && s.Inputs[0] > 0 {
			fed = append(fed, s.Inputs[0])
		}
	}

	_, err = simulator.New(p, simulator.WithObserver(observer)).Run()
	require.NoError(t, err)

	doses := workqueue.ForParams(p, workqueue.Pipelined)
	assert.Equal(t, doses[1:], fed, "the first dose is seeded before round 1")
}

// TestScheduledComparisonsShareMetrics repeats comparisons on a schedule
// and checks the metrics accumulate across runs.
func TestScheduledComparisonsShareMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)

	cfg, err := config.Load(config.Options{LookupEnv: noEnv})
	require.NoError(t, err)
	cfg.NumStages = 2
	cfg.NumWorkItems = 20
	cfg.MaxPipelineCapacity = 4
	cfg.BaseDelay = 0
	p, err := cfg.Params()
	require.NoError(t, err)

	sim := simulator.New(p, simulator.WithMetrics(m))

	var mu sync.Mutex
	var ids []string
	runs, err := schedule.Run(context.Background(), schedule.Config{
		Expression:     "@every 1s",
		MaxRuns:        2,
		RunImmediately: true,
		StopOnError:    true,
	}, func(_ context.Context, _ int) error {
		rep, err := sim.Run()
		if err != nil {
			return err
		}
		mu.Lock()
		ids = append(ids, rep.RunID)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, runs)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Equal(t, 2.0, promtest.ToFloat64(m.RunsTotal.WithLabelValues("pipelined")))

	var text bytes.Buffer
	require.NoError(t, metrics.WriteText(&text, reg))
	assert.True(t, strings.Contains(text.String(), "pipesim_controller_rounds_total 22"))
}

// TestConcurrentSimulators runs independent simulators side by side.
func TestConcurrentSimulators(t *testing.T) {
	cfg, err := config.Load(config.Options{LookupEnv: noEnv})
	require.NoError(t, err)
	cfg.NumWorkItems = 200
	cfg.MaxPipelineCapacity = 20
	cfg.BaseDelay = 1
	p, err := cfg.Params()
	require.NoError(t, err)

	const n = 4
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := simulator.New(p).Run()
			errs <- err
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("simulators did not finish")
	}
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
