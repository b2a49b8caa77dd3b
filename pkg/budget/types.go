// Package budget computes per-source token allocations from a model's
// context window, a reserve ratio for model output, and a ratio map —
// either flat or, for the adaptive variant, keyed by task-progress phase.
package budget

import "github.com/arkveil/ctxkernel/pkg/tokencount"

// Phase is a task-progress bucket selecting an adaptive manager's active
// ratio template.
type Phase string

const (
	PhaseEarly  Phase = "early"
	PhaseMiddle Phase = "middle"
	PhaseLate   Phase = "late"
)

// earlyBoundary and lateBoundary mark the progress fractions at which the
// active phase changes: <=0.3 is early, >0.7 is late, otherwise middle.
const (
	earlyBoundary = 0.3
	lateBoundary  = 0.7
)

// phaseForProgress computes the phase tag for iteration/maxIterations.
func phaseForProgress(iteration, maxIterations int) Phase {
	if maxIterations <= 0 {
		return PhaseEarly
	}
	progress := float64(iteration) / float64(maxIterations)
	switch {
	case progress <= earlyBoundary:
		return PhaseEarly
	case progress > lateBoundary:
		return PhaseLate
	default:
		return PhaseMiddle
	}
}

// RatioMap assigns an allocation share to each named source. It need not
// sum to 1; Allocate normalizes it first.
type RatioMap map[string]float64

// DefaultRatios is the spec's fixed/dialogue/shared/retrieval allocation
// table (fraction of `available`), by phase.
var DefaultRatios = map[Phase]RatioMap{
	PhaseEarly: {
		"system_prompt": 0.18,
		"tools":         0.15,
		"skills":        0.12,
		"L1_recent":     0.17,
		"L2_important":  0.10,
		"shared_pool":   0.03,
		"retrieval":     0.20,
		"INHERITED":     0.05,
	},
	PhaseMiddle: {
		"system_prompt": 0.10,
		"tools":         0.10,
		"skills":        0.06,
		"L1_recent":     0.26,
		"L2_important":  0.16,
		"shared_pool":   0.06,
		"retrieval":     0.20,
		"INHERITED":     0.06,
	},
	PhaseLate: {
		"system_prompt": 0.08,
		"tools":         0.08,
		"skills":        0.04,
		"L1_recent":     0.17,
		"L2_important":  0.11,
		"shared_pool":   0.04,
		"retrieval":     0.18,
		"INHERITED":     0.30,
	},
}

// TokenBudget is the outcome of CreateBudget for one agent iteration.
type TokenBudget struct {
	Window        int
	ReservedOutput int
	SystemPrompt  int
	Available     int
}

// Config configures a Manager.
type Config struct {
	Counter            tokencount.Counter `yaml:"-"`
	Window             int                `yaml:"window"`
	OutputReserveRatio float64            `yaml:"output_reserve_ratio"`
	Ratios             RatioMap           `yaml:"ratios"`
}

// SetDefaults fills unset fields with the manager's defaults.
func (c *Config) SetDefaults() {
	if c.OutputReserveRatio <= 0 {
		c.OutputReserveRatio = 0.25
	}
	if c.Counter == nil {
		c.Counter = tokencount.NewEstimatorCounter()
	}
}
