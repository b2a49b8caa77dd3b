// Package unified implements a retrieval context source: a non-LLM query
// rewrite, parallel recall across
// semantic memory and every configured knowledge base, a unified rerank
// (pkg/rerank), and budget-aware injection into context blocks.
package unified

import "context"

// Message is the minimal shape the query rewriter needs from a
// conversation turn.
type Message struct {
	Role    string
	Content string
}

// SemanticSource is L4 semantic memory, consulted alongside knowledge
// bases during parallel recall.
type SemanticSource interface {
	Search(ctx context.Context, query string, limit int) ([]SemanticHit, error)
}

// SemanticHit is a single L4 semantic-memory recall.
type SemanticHit struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

// KnowledgeBase is one configured external knowledge source.
type KnowledgeBase interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]KnowledgeHit, error)
}

// KnowledgeHit is a single knowledge-base recall.
type KnowledgeHit struct {
	ID        string
	Content   string
	Relevance float64
	Metadata  map[string]any
}

// Config configures a Source.
type Config struct {
	// RecallLimit caps candidates requested from each backend. Default 20.
	RecallLimit int

	// PromoteThreshold is the final-score cutoff at or above which a block
	// receives HighPriority rather than LowPriority. Default 0.7.
	PromoteThreshold float64

	// HighPriority/LowPriority are the context-block priorities assigned
	// by the promote-threshold split. Defaults 0.75/0.35.
	HighPriority float64
	LowPriority  float64
}

// SetDefaults fills unset fields with the source's defaults.
func (c *Config) SetDefaults() {
	if c.RecallLimit <= 0 {
		c.RecallLimit = 20
	}
	if c.PromoteThreshold <= 0 {
		c.PromoteThreshold = 0.7
	}
	if c.HighPriority <= 0 {
		c.HighPriority = 0.75
	}
	if c.LowPriority <= 0 {
		c.LowPriority = 0.35
	}
}
