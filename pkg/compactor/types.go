// Package compactor periodically compresses the currently assembled
// context into L2 summaries (and, for high-importance messages, L3
// facts) once context utilization crosses a configured threshold,
// gated by a per-session cooldown so a single busy session can't
// thrash compaction on every turn.
package compactor

import (
	"context"

	"github.com/arkveil/ctxkernel/pkg/persistent"
	"github.com/arkveil/ctxkernel/pkg/working"
)

// Strategy controls when compaction is allowed to run.
type Strategy string

const (
	// StrategySilent compacts automatically whenever CheckAndCompact
	// observes the utilization threshold crossed and cooldown elapsed.
	StrategySilent Strategy = "silent"
	// StrategyExplicit only compacts when Compact is called directly;
	// CheckAndCompact is a no-op.
	StrategyExplicit Strategy = "explicit"
	// StrategyNone disables compaction entirely.
	StrategyNone Strategy = "none"
)

// Message is one entry of the currently assembled context under
// consideration for compaction.
type Message struct {
	Role       string
	Content    string
	Importance float64 // in [0,1]
}

// Segment is a verbatim backup of one compressed message, stored before
// its content is replaced by a truncated summary.
type Segment struct {
	Content   string
	Role      string
	SessionID string
}

// SegmentStore persists verbatim message segments so a later summary
// entry can carry a back-reference to the original content. Optional:
// when nil, compaction proceeds without verbatim backups.
type SegmentStore interface {
	Store(ctx context.Context, segment Segment) (string, error)
}

// Summarizer optionally condenses a high-importance message with an
// LLM before it's promoted to L3. Optional: when nil, the compactor
// always falls back to its rule-based excerpt.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// MemoryWriter narrows memorycore.Core to the two capabilities
// compaction needs, so it depends on behavior rather than the concrete
// core type.
type MemoryWriter interface {
	AddWorkingMemory(entry *working.Entry) (evicted []*working.Entry, stored bool)
	SavePersistent(ctx context.Context, record *persistent.Record) (string, error)
}

// Config configures a Compactor.
type Config struct {
	Enabled bool

	// Threshold is the context-utilization ratio (current/max tokens)
	// that triggers compaction. Default 0.85.
	Threshold float64

	// CooldownSeconds bounds how often a single session may compact.
	// Default 300.
	CooldownSeconds int

	Strategy Strategy

	// HighImportance is the Message.Importance cutoff at or above which
	// a message is additionally promoted to an L3 fact. Default 0.75.
	HighImportance float64

	// ExcerptRunes bounds the rule-based summary excerpt length, in
	// runes. Default 200.
	ExcerptRunes int
}

// SetDefaults fills unset fields with the compactor's defaults.
func (c *Config) SetDefaults() {
	if c.Threshold <= 0 {
		c.Threshold = 0.85
	}
	if c.CooldownSeconds <= 0 {
		c.CooldownSeconds = 300
	}
	if c.Strategy == "" {
		c.Strategy = StrategySilent
	}
	if c.HighImportance <= 0 {
		c.HighImportance = 0.75
	}
	if c.ExcerptRunes <= 0 {
		c.ExcerptRunes = 200
	}
}
