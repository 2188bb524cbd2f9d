package params

import (
	"fmt"
	"time"

	pserrors "github.com/vnykmshr/pipesim/pkg/common/errors"
	"github.com/vnykmshr/pipesim/pkg/common/validation"
)

const module = "params"

// Reference defaults, used when a setting is not configured.
const (
	DefaultNumStages           = 4
	DefaultNumWorkItems        = 10000
	DefaultMaxPipelineCapacity = 100
	DefaultBaseDelay           = 20
)

// DelayUnit is the unit of BaseDelay and ImbalanceFactor.
const DelayUnit = time.Microsecond

// ParameterSet holds the parameters of one simulation run.
type ParameterSet struct {
	// NumStages is the number of sequential processing stages.
	NumStages int `json:"num_stages" yaml:"num_stages" validate:"min=1"`

	// NumWorkItems is the total number of work units pushed through every stage.
	NumWorkItems int `json:"num_work_items" yaml:"num_work_items" validate:"gte=0"`

	// MaxPipelineCapacity bounds the number of units in flight across all
	// stages of the pipelined run.
	MaxPipelineCapacity int `json:"max_pipeline_capacity" yaml:"max_pipeline_capacity" validate:"min=1"`

	// BaseDelay is the per-unit processing time of every stage, in DelayUnit.
	BaseDelay int `json:"base_delay" yaml:"base_delay" validate:"gte=0"`

	// ImbalanceFactor is added to BaseDelay for each stage.
	ImbalanceFactor []int `json:"imbalance_factor" yaml:"imbalance_factor"`

	// SkipNoPipeline skips the non-pipelined baseline run.
	SkipNoPipeline bool `json:"skip_no_pipeline" yaml:"skip_no_pipeline"`
}

// Default returns the reference parameter set.
func Default() ParameterSet {
	p := ParameterSet{
		NumStages:           DefaultNumStages,
		NumWorkItems:        DefaultNumWorkItems,
		MaxPipelineCapacity: DefaultMaxPipelineCapacity,
		BaseDelay:           DefaultBaseDelay,
	}
	p.Normalize()
	return p
}

// Normalize fills an unset imbalance list with one zero per stage.
func (p *ParameterSet) Normalize() {
	if len(p.ImbalanceFactor) == 0 && p.NumStages > 0 {
		p.ImbalanceFactor = make([]int, p.NumStages)
	}
}

// Validate checks every field and the relations between them. It returns
// nil or an error matching errors.ErrInvalidConfiguration.
func (p ParameterSet) Validate() error {
	if err := validation.Struct(module, p); err != nil {
		return err
	}

	if len(p.ImbalanceFactor) != p.NumStages {
		return pserrors.NewValidationError(module, "imbalance_factor", p.ImbalanceFactor,
			fmt.Sprintf("has %d entries for %d stages", len(p.ImbalanceFactor), p.NumStages)).
			WithHint("give one imbalance entry per stage, or none")
	}

	for i, imbalance := range p.ImbalanceFactor {
		if p.BaseDelay+imbalance < 0 {
			return pserrors.NewValidationError(module, fmt.Sprintf("imbalance_factor[%d]", i), imbalance,
				fmt.Sprintf("delay of stage %d is below 0", i+1)).
				WithHint("increase base_delay or decrease the imbalance factor for that stage")
		}
	}

	// Smaller capacities would split an iteration into empty doses.
	if p.MaxPipelineCapacity < p.NumStages {
		return pserrors.NewValidationError(module, "max_pipeline_capacity", p.MaxPipelineCapacity,
			fmt.Sprintf("is smaller than num_stages (%d)", p.NumStages)).
			WithHint("allow at least one unit in flight per stage")
	}

	return nil
}

// StageDelay returns the per-unit delay of stage i.
func (p ParameterSet) StageDelay(i int) time.Duration {
	return time.Duration(p.BaseDelay+p.ImbalanceFactor[i]) * DelayUnit
}

// StageDelays derives the per-unit delay of every stage.
func (p ParameterSet) StageDelays() []time.Duration {
	delays := make([]time.Duration, p.NumStages)
	for i := range delays {
		delays[i] = p.StageDelay(i)
	}
	return delays
}
