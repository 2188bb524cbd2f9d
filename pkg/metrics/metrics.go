package metrics

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Registry holds all metric instances of a simulator.
//
// All methods are safe on a nil *Registry, which records nothing.
type Registry struct {
	// Run Metrics
	RunDuration   *prometheus.GaugeVec
	RunThroughput *prometheus.GaugeVec
	RunsTotal     *prometheus.CounterVec
	Speedup       prometheus.Gauge

	// Pipeline Controller Metrics
	ControllerRounds prometheus.Counter
	StageUnits       *prometheus.CounterVec
	StageState       *prometheus.GaugeVec
	DoseSize         prometheus.Histogram
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Enabled: true, Registry: reg})
}

// NewRegistryWithConfig creates a registry honoring namespace and constant
// labels. It returns nil when metrics are disabled.
func NewRegistryWithConfig(config Config) *Registry {
	if !config.Enabled {
		return nil
	}

	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := config.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	buckets := config.DoseBuckets
	if len(buckets) == 0 {
		buckets = DefaultDoseBuckets
	}
	factory := promauto.With(reg)

	return &Registry{
		RunDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "run",
				Name:        "duration_seconds",
				Help:        "Wall-clock duration of the last run of each strategy",
				ConstLabels: config.Labels,
			},
			[]string{"strategy"},
		),

		RunThroughput: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "run",
				Name:        "throughput",
				Help:        "Work items per second of the last run of each strategy",
				ConstLabels: config.Labels,
			},
			[]string{"strategy"},
		),

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Name:        "runs_total",
				Help:        "Total number of completed runs of each strategy",
				ConstLabels: config.Labels,
			},
			[]string{"strategy"},
		),

		Speedup: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "run",
				Name:        "speedup",
				Help:        "Non-pipelined duration divided by pipelined duration of the last comparison",
				ConstLabels: config.Labels,
			},
		),

		ControllerRounds: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "controller",
				Name:        "rounds_total",
				Help:        "Total number of controller rounds executed",
				ConstLabels: config.Labels,
			},
		),

		StageUnits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "stage",
				Name:        "units_total",
				Help:        "Total number of work units processed by each stage",
				ConstLabels: config.Labels,
			},
			[]string{"stage"},
		),

		StageState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "stage",
				Name:        "state",
				Help:        "Control signal of each stage (-1 not started, 0 running, 1 finished)",
				ConstLabels: config.Labels,
			},
			[]string{"stage"},
		),

		DoseSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "controller",
				Name:        "dose_size",
				Help:        "Size of the doses fed into stage 0",
				Buckets:     buckets,
				ConstLabels: config.Labels,
			},
		),
	}
}

// ObserveRun records the outcome of one strategy run.
func (r *Registry) ObserveRun(strategy string, d time.Duration, throughput float64) {
	if r == nil {
		return
	}
	r.RunDuration.WithLabelValues(strategy).Set(d.Seconds())
	r.RunThroughput.WithLabelValues(strategy).Set(throughput)
	r.RunsTotal.WithLabelValues(strategy).Inc()
}

// ObserveSpeedup records the ratio of the last comparison.
func (r *Registry) ObserveSpeedup(speedup float64) {
	if r == nil {
		return
	}
	r.Speedup.Set(speedup)
}

// ObserveRound counts one controller round.
func (r *Registry) ObserveRound() {
	if r == nil {
		return
	}
	r.ControllerRounds.Inc()
}

// ObserveDose records a dose popped from the work queue.
func (r *Registry) ObserveDose(units int) {
	if r == nil {
		return
	}
	r.DoseSize.Observe(float64(units))
}

// AddStageUnits counts units processed by a stage. Safe for concurrent use.
func (r *Registry) AddStageUnits(stage, units int) {
	if r == nil || units == 0 {
		return
	}
	r.StageUnits.WithLabelValues(strconv.Itoa(stage)).Add(float64(units))
}

// SetStageState publishes the control signal of a stage.
func (r *Registry) SetStageState(stage, signal int) {
	if r == nil {
		return
	}
	r.StageState.WithLabelValues(strconv.Itoa(stage)).Set(float64(signal))
}

// WriteText writes every metric family gathered from g to w in the
// Prometheus text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
