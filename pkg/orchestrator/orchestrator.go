package orchestrator

import (
	"context"
	"log/slog"

	"github.com/arkveil/ctxkernel/pkg/contextblock"
)

// fragmentSeparator is inserted between consecutive blocks emitted by the
// same source, keeping fragmentary output legible without spending much
// budget on it.
const fragmentSeparator = "---"

// Orchestrator assembles the final message list for one iteration.
type Orchestrator struct {
	cfg Config
}

// New creates an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	cfg.SetDefaults()
	return &Orchestrator{cfg: cfg}
}

// Assemble builds the final message list for a single iteration:
// request a fresh budget, allocate it across the sources actually
// consulted, walk them in deterministic order, concatenate their blocks
// with separators, prepend the system prompt, and optionally mark
// prompt-cache boundaries.
func (o *Orchestrator) Assemble(ctx context.Context, query string, systemPrompt string) Result {
	tb := o.cfg.Budget.CreateBudget(systemPrompt)

	consulted := o.consultedSources()
	allocation := o.cfg.Budget.AllocateForSources(tb, consulted)

	var blocks []*contextblock.Block
	for _, name := range sourceOrder {
		src, ok := o.cfg.Sources[name]
		if !ok {
			continue
		}
		got, err := src.Collect(ctx, query, allocation[name], o.cfg.Counter)
		if err != nil {
			// A failing source degrades, it never aborts assembly.
			slog.Warn("orchestrator: source collect failed, skipping", "source", name, "error", err)
			continue
		}
		blocks = append(blocks, got...)
	}

	messages := o.render(systemPrompt, blocks)

	total := 0
	for _, m := range messages {
		total += o.cfg.Counter.Count(m.Content)
	}

	return Result{Messages: messages, TotalTokens: total}
}

// consultedSources returns the configured source names, in sourceOrder,
// restricted to sources this Orchestrator actually has.
func (o *Orchestrator) consultedSources() []string {
	var names []string
	for _, name := range sourceOrder {
		if _, ok := o.cfg.Sources[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// render prepends the system prompt, concatenates blocks with separators
// between same-source fragments, and inserts cache-control markers.
func (o *Orchestrator) render(systemPrompt string, blocks []*contextblock.Block) []Message {
	var messages []Message

	if systemPrompt != "" {
		messages = append(messages, Message{
			Role:         "system",
			Content:      systemPrompt,
			CacheControl: o.cfg.CacheControlEnabled,
		})
	}

	prevSource := ""
	for i, b := range blocks {
		if i > 0 && b.Source == prevSource {
			messages = append(messages, Message{Role: "system", Content: fragmentSeparator})
		}
		messages = append(messages, Message{
			Role:         b.Role,
			Content:      b.Content,
			CacheControl: o.cfg.CacheControlEnabled && b.TokenCount >= o.cfg.LargeBlockTokens,
		})
		prevSource = b.Source
	}

	return messages
}
