// Command pipesim compares the throughput of a serial and a pipelined
// execution of simulated work. It resolves the configuration, runs the
// comparison once or on a cron schedule, and prints the report.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/vnykmshr/pipesim/internal/config"
	"github.com/vnykmshr/pipesim/internal/display"
	"github.com/vnykmshr/pipesim/internal/logging"
	"github.com/vnykmshr/pipesim/internal/schedule"
	"github.com/vnykmshr/pipesim/pkg/engine"
	"github.com/vnykmshr/pipesim/pkg/metrics"
	"github.com/vnykmshr/pipesim/pkg/simulator"
)

// version and commit are set at build time via -ldflags.
var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// 1. Parse flags; at most one positional config file.
	fs := config.NewFlagSet("pipesim")
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pipesim [flags] [config-file]\n\nFlags:\n%s", fs.FlagUsages())
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "pipesim: %v\n", err)
		return exitUsage
	}

	if showVersion, _ := fs.GetBool("version"); showVersion {
		fmt.Fprintf(stdout, "pipesim %s (%s)\n", version, commit)
		return exitOK
	}

	if fs.NArg() > 1 {
		fmt.Fprintf(stderr, "pipesim: more than one argument provided, expected at most one config file\n")
		fs.Usage()
		return exitUsage
	}

	// 2. Resolve configuration and the parameter set.
	envFile, _ := fs.GetString("env-file")
	cfg, err := config.Load(config.Options{
		ConfigFile: fs.Arg(0),
		EnvFile:    envFile,
		Flags:      fs,
	})
	if err != nil {
		return fail(stderr, err)
	}

	p, err := cfg.Params()
	if err != nil {
		return fail(stderr, err)
	}

	base := logging.New(cfg.Log, stderr)
	log := logging.Component(base, "cli")

	printer, err := display.New(stdout, cfg.Output)
	if err != nil {
		return fail(stderr, err)
	}

	// 3. Wire the simulator.
	var reg *prometheus.Registry
	opts := []simulator.Option{simulator.WithLogger(logging.Component(base, "simulator"))}
	if cfg.Metrics {
		reg = prometheus.NewRegistry()
		mc := metrics.DefaultConfig()
		mc.Registry = reg
		opts = append(opts, simulator.WithMetrics(metrics.NewRegistryWithConfig(mc)))
	}
	if cfg.Debug {
		opts = append(opts, simulator.WithObserver(func(s engine.Snapshot) {
			if err := printer.Snapshot(s); err != nil {
				log.Warn().Err(err).Msg("cannot write snapshot")
			}
		}))
	}
	sim := simulator.New(p, opts...)

	if err := printer.Params(p); err != nil {
		return fail(stderr, err)
	}

	compare := func(_ context.Context, _ int) error {
		rep, err := sim.Run()
		if err != nil {
			return err
		}
		if err := printer.Report(rep); err != nil {
			return err
		}
		if reg != nil {
			return metrics.WriteText(stdout, reg)
		}
		return nil
	}

	// 4. Run once, or until the schedule ends.
	if cfg.Schedule == "" {
		if err := compare(context.Background(), 1); err != nil {
			return fail(stderr, err)
		}
		return exitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("schedule", cfg.Schedule).Int("max_runs", cfg.MaxRuns).Msg("running on schedule")
	runs, err := schedule.Run(ctx, schedule.Config{
		Expression:     cfg.Schedule,
		MaxRuns:        cfg.MaxRuns,
		RunImmediately: true,
		StopOnError:    true,
		Logger:         logging.Component(base, "schedule"),
	}, compare)
	log.Info().Int("runs", runs).Msg("schedule ended")
	if err != nil {
		return fail(stderr, err)
	}
	return exitOK
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "pipesim: %v\n", err)
	return exitError
}
