// Package orchestrator assembles the final per-iteration message list: a
// deterministic walk over named context sources, each budgeted from a
// fresh TokenBudget and consulted in a fixed priority order, concatenated
// with separators and prompt-cache markers into a bounded message list.
package orchestrator

import (
	"context"

	"github.com/arkveil/ctxkernel/pkg/budget"
	"github.com/arkveil/ctxkernel/pkg/contextblock"
	"github.com/arkveil/ctxkernel/pkg/tokencount"
)

// Source is one named context contributor the orchestrator consults.
type Source interface {
	Collect(ctx context.Context, query string, budget int, counter tokencount.Counter) ([]*contextblock.Block, error)
}

// sourceOrder is the deterministic per-iteration consultation order.
var sourceOrder = []string{
	"system_prompt", "user_input", "tools", "skills",
	"L1_recent", "L2_important", "shared_pool", "retrieval", "inherited",
}

// Message is one entry in the final assembled message list handed to the
// execution-loop collaborator.
type Message struct {
	Role    string
	Content string

	// CacheControl marks an ephemeral prompt-cache boundary.
	CacheControl bool
}

// BudgetProvider narrows budget.Manager/budget.AdaptiveManager to what
// the orchestrator needs, so either can be wired in interchangeably.
type BudgetProvider interface {
	CreateBudget(systemPrompt string) budget.TokenBudget
	AllocateForSources(b budget.TokenBudget, sourceNames []string) map[string]int
}

// Config configures an Orchestrator.
type Config struct {
	Budget  BudgetProvider
	Counter tokencount.Counter

	// Sources is keyed by name; only names from sourceOrder are consulted.
	Sources map[string]Source

	// CacheControlEnabled inserts an ephemeral cache-control marker after
	// the system prompt and after any block at or above LargeBlockTokens.
	CacheControlEnabled bool

	// LargeBlockTokens is the size, in tokens, at or above which a block earns
	// its own cache boundary. Default 200.
	LargeBlockTokens int
}

// SetDefaults fills unset fields with the orchestrator's defaults.
func (c *Config) SetDefaults() {
	if c.LargeBlockTokens <= 0 {
		c.LargeBlockTokens = 200
	}
}

// Result is the outcome of an Assemble call.
type Result struct {
	Messages    []Message
	TotalTokens int
}
