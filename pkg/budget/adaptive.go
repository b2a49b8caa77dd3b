package budget

import "sync"

// AdaptiveConfig configures an AdaptiveManager.
type AdaptiveConfig struct {
	Config `yaml:",inline"`

	// Templates maps phase to its ratio map. Defaults to DefaultRatios
	// when nil.
	Templates map[Phase]RatioMap `yaml:"templates"`
}

// SetDefaults fills unset fields with the adaptive manager's defaults.
func (c *AdaptiveConfig) SetDefaults() {
	c.Config.SetDefaults()
	if c.Templates == nil {
		c.Templates = DefaultRatios
	}
}

// AdaptiveManager wraps Manager, swapping the active ratio map for the
// phase template matching task progress: <=30% early, 30-70% middle,
// >70% late (spec §9's resolved 0.3/0.7 boundaries).
//
// AdaptiveManager is safe for concurrent use.
type AdaptiveManager struct {
	*Manager

	mu        sync.RWMutex
	templates map[Phase]RatioMap
	phase     Phase
	lastIter  int
	lastMax   int
	hasRun    bool
}

// NewAdaptive creates an AdaptiveManager from cfg, starting in the early
// phase template.
func NewAdaptive(cfg AdaptiveConfig) *AdaptiveManager {
	cfg.SetDefaults()
	inner := New(cfg.Config)
	inner.cfg.Ratios = cfg.Templates[PhaseEarly]
	return &AdaptiveManager{
		Manager:   inner,
		templates: cfg.Templates,
		phase:     PhaseEarly,
	}
}

// Phase returns the manager's current phase tag.
func (a *AdaptiveManager) Phase() Phase {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.phase
}

// UpdatePhase recomputes the phase from iteration/maxIterations and swaps
// in that phase's ratio template. Calling it again with the same
// (iteration, maxIterations) is a no-op (spec §8 idempotence).
func (a *AdaptiveManager) UpdatePhase(iteration, maxIterations int) {
	a.mu.Lock()
	if a.hasRun && iteration == a.lastIter && maxIterations == a.lastMax {
		a.mu.Unlock()
		return
	}
	a.lastIter, a.lastMax, a.hasRun = iteration, maxIterations, true
	phase := phaseForProgress(iteration, maxIterations)
	a.phase = phase
	a.mu.Unlock()

	a.Manager.mu.Lock()
	a.Manager.cfg.Ratios = a.templates[phase]
	a.Manager.mu.Unlock()
}
