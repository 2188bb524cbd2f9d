// Package config resolves the settings of a pipesim invocation from
// defaults, a config file, a .env file, PIPESIM_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"github.com/spf13/pflag"

	"github.com/vnykmshr/pipesim/internal/logging"
	"github.com/vnykmshr/pipesim/pkg/common/validation"
	"github.com/vnykmshr/pipesim/pkg/params"
)

const module = "config"

// EnvPrefix prefixes the environment variable of every key.
const EnvPrefix = "PIPESIM"

// Output formats of the report.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Keys of every setting.
const (
	KeyNumStages           = "num_stages"
	KeyNumWorkItems        = "num_work_items"
	KeyMaxPipelineCapacity = "max_pipeline_capacity"
	KeyBaseDelay           = "base_delay"
	KeyImbalanceFactor     = "imbalance_factor"
	KeySkipNoPipeline      = "skip_no_pipeline"
	KeyDebug               = "debug"
	KeyOutput              = "output"
	KeyMetrics             = "metrics"
	KeySchedule            = "schedule"
	KeyMaxRuns             = "max_runs"
	KeyLogLevel            = "log.level"
	KeyLogFormat           = "log.format"
	KeyLogNoColor          = "log.no_color"
)

// Config is the resolved configuration of one invocation.
type Config struct {
	NumStages           int   `json:"num_stages" mapstructure:"num_stages"`
	NumWorkItems        int   `json:"num_work_items" mapstructure:"num_work_items"`
	MaxPipelineCapacity int   `json:"max_pipeline_capacity" mapstructure:"max_pipeline_capacity"`
	BaseDelay           int   `json:"base_delay" mapstructure:"base_delay"`
	ImbalanceFactor     []int `json:"imbalance_factor" mapstructure:"imbalance_factor"`
	SkipNoPipeline      bool  `json:"skip_no_pipeline" mapstructure:"skip_no_pipeline"`

	// Debug enables per-round snapshot dumps of the pipelined run.
	Debug bool `json:"debug" mapstructure:"debug"`

	// Output selects the report encoding.
	Output string `json:"output" mapstructure:"output" validate:"oneof=text json yaml"`

	// Metrics writes the gathered metrics after every run.
	Metrics bool `json:"metrics" mapstructure:"metrics"`

	// Schedule is a cron expression repeating the comparison. Empty runs once.
	Schedule string `json:"schedule" mapstructure:"schedule"`

	// MaxRuns stops a schedule after that many runs. Zero means unbounded.
	MaxRuns int `json:"max_runs" mapstructure:"max_runs" validate:"gte=0"`

	Log logging.Config `json:"log" mapstructure:"log"`

	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string `json:"-" mapstructure:"-"`
}

// defaults maps every key to its default value.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		KeyNumStages:           params.DefaultNumStages,
		KeyNumWorkItems:        params.DefaultNumWorkItems,
		KeyMaxPipelineCapacity: params.DefaultMaxPipelineCapacity,
		KeyBaseDelay:           params.DefaultBaseDelay,
		KeyImbalanceFactor:     []int{},
		KeySkipNoPipeline:      false,
		KeyDebug:               false,
		KeyOutput:              OutputText,
		KeyMetrics:             false,
		KeySchedule:            "",
		KeyMaxRuns:             0,
		KeyLogLevel:            "warn",
		KeyLogFormat:           logging.FormatConsole,
		KeyLogNoColor:          false,
	}
}

// flagKeys maps command-line flags to the keys they set.
var flagKeys = map[string]string{
	"stages":        KeyNumStages,
	"work-items":    KeyNumWorkItems,
	"capacity":      KeyMaxPipelineCapacity,
	"base-delay":    KeyBaseDelay,
	"imbalance":     KeyImbalanceFactor,
	"skip-baseline": KeySkipNoPipeline,
	"debug":         KeyDebug,
	"output":        KeyOutput,
	"metrics":       KeyMetrics,
	"schedule":      KeySchedule,
	"max-runs":      KeyMaxRuns,
	"log-level":     KeyLogLevel,
	"log-format":    KeyLogFormat,
	"no-color":      KeyLogNoColor,
}

// NewFlagSet defines every pipesim flag on a new flag set.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.IntP("stages", "s", params.DefaultNumStages, "number of pipeline stages")
	fs.IntP("work-items", "n", params.DefaultNumWorkItems, "number of work items to process")
	fs.IntP("capacity", "c", params.DefaultMaxPipelineCapacity, "maximum work items in flight in the pipeline")
	fs.IntP("base-delay", "d", params.DefaultBaseDelay, "per-item delay of every stage, in microseconds")
	fs.IntSlice("imbalance", nil, "extra per-item delay of each stage, in microseconds")
	fs.Bool("skip-baseline", false, "skip the non-pipelined run")
	fs.Bool("debug", false, "dump the pipeline state around every controller step")
	fs.StringP("output", "o", OutputText, "report format: text, json or yaml")
	fs.Bool("metrics", false, "print Prometheus metrics after every run")
	fs.String("schedule", "", "cron expression repeating the comparison")
	fs.Int("max-runs", 0, "stop a schedule after this many runs (0 = unbounded)")
	fs.String("env-file", "", "load PIPESIM_* variables from this .env file")
	fs.String("log-level", "warn", "log level: trace, debug, info, warn, error, disabled")
	fs.String("log-format", logging.FormatConsole, "log format: console, pretty or json")
	fs.Bool("no-color", false, "disable colored log output")
	fs.BoolP("version", "v", false, "print the version and exit")

	return fs
}

// Params returns the normalized and validated parameter set.
func (c *Config) Params() (params.ParameterSet, error) {
	p := params.ParameterSet{
		NumStages:           c.NumStages,
		NumWorkItems:        c.NumWorkItems,
		MaxPipelineCapacity: c.MaxPipelineCapacity,
		BaseDelay:           c.BaseDelay,
		ImbalanceFactor:     append([]int(nil), c.ImbalanceFactor...),
		SkipNoPipeline:      c.SkipNoPipeline,
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return params.ParameterSet{}, err
	}
	return p, nil
}

// Validate checks the settings that are not simulation parameters.
func (c *Config) Validate() error {
	if err := validation.Struct(module, c); err != nil {
		return err
	}
	return c.Log.Validate()
}
