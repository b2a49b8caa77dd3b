package unified

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arkveil/ctxkernel/pkg/contextblock"
	"github.com/arkveil/ctxkernel/pkg/rerank"
	"github.com/arkveil/ctxkernel/pkg/tokencount"
)

// SourceConfig wires a Source's collaborators.
type SourceConfig struct {
	Config
	Rewriter  *QueryRewriter
	Semantic  SemanticSource // optional
	Knowledge []KnowledgeBase
	Reranker  *rerank.Reranker
}

// Source is the unified retrieval context source. Its Collect takes the
// recent conversation messages as an extra argument, so a Source does not
// satisfy orchestrator.Source as is.
type Source struct {
	cfg SourceConfig
}

// NewSource creates a Source from cfg, filling in defaults.
func NewSource(cfg SourceConfig) *Source {
	cfg.SetDefaults()
	if cfg.Rewriter == nil {
		cfg.Rewriter = NewQueryRewriter()
	}
	if cfg.Reranker == nil {
		cfg.Reranker = rerank.New(rerank.Config{})
	}
	return &Source{cfg: cfg}
}

// Collect implements the source's collect contract: rewrite, parallel
// recall, unified rerank, budget-aware injection into context blocks.
func (s *Source) Collect(ctx context.Context, query string, recentMessages []Message, budget int, counter tokencount.Counter) ([]*contextblock.Block, error) {
	if query == "" || budget <= 0 {
		return nil, nil
	}

	start := time.Now()
	rewritten := s.cfg.Rewriter.Rewrite(query, recentMessages)

	candidates := s.recall(ctx, rewritten.Rewritten)

	result := s.cfg.Reranker.Rerank(candidates, rewritten.Rewritten, 0, time.Since(start))

	return s.inject(result.Candidates, budget, counter), nil
}

// recall fans the enriched query out across semantic memory and every
// knowledge base in parallel. A backend that errors is logged and
// skipped rather than failing the whole collect (spec §7: a missing or
// failing optional collaborator degrades, it never raises).
func (s *Source) recall(ctx context.Context, query string) []*rerank.Candidate {
	limit := s.cfg.RecallLimit

	var mu sync.Mutex
	var all []*rerank.Candidate

	g, gctx := errgroup.WithContext(ctx)

	if s.cfg.Semantic != nil {
		g.Go(func() error {
			hits, err := s.cfg.Semantic.Search(gctx, query, limit)
			if err != nil {
				slog.Debug("unified source: semantic recall failed, skipping", "error", err)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, h := range hits {
				all = append(all, rerank.FromMemoryResult(h.Content, h.Score, h.ID, h.Metadata))
			}
			return nil
		})
	}

	for _, kb := range s.cfg.Knowledge {
		kb := kb
		g.Go(func() error {
			hits, err := kb.Search(gctx, query, limit)
			if err != nil {
				slog.Debug("unified source: knowledge base recall failed, skipping", "source", kb.Name(), "error", err)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, h := range hits {
				all = append(all, rerank.FromKnowledgeItem(h.ID, h.Content, kb.Name(), h.Relevance, h.Metadata))
			}
			return nil
		})
	}

	_ = g.Wait() // every goroutine swallows its own error; this never fails

	return all
}

// inject converts reranked candidates into context blocks under budget.
// Blocks exceeding the remaining budget are skipped, not fatal: a
// shorter surviving candidate further down the list may still fit.
func (s *Source) inject(candidates []*rerank.Candidate, budget int, counter tokencount.Counter) []*contextblock.Block {
	var blocks []*contextblock.Block
	used := 0

	for _, c := range candidates {
		if used >= budget {
			break
		}

		content := formatContent(c)
		tokens := counter.Count(content)
		if used+tokens > budget {
			continue
		}

		promoted := c.FinalScore >= s.cfg.PromoteThreshold
		priority := s.cfg.LowPriority
		if promoted {
			priority = s.cfg.HighPriority
		}

		blocks = append(blocks, &contextblock.Block{
			Content:      content,
			Role:         "system",
			TokenCount:   tokens,
			Priority:     priority,
			Source:       "retrieval",
			Compressible: true,
			Metadata: map[string]any{
				"candidate_id": c.ID,
				"origin":       string(c.Origin),
				"final_score":  c.FinalScore,
				"vector_score": c.VectorScore,
				"promoted":     promoted,
			},
		})
		used += tokens
	}

	return blocks
}

// formatContent prefixes a candidate's content with its source label.
func formatContent(c *rerank.Candidate) string {
	if c.Origin == rerank.OriginKnowledge {
		source, _ := c.Metadata["knowledge_source"].(string)
		if source == "" {
			source = "knowledge"
		}
		return fmt.Sprintf("[Knowledge: %s] %s", source, c.Content)
	}
	return "[Retrieved Memory] " + c.Content
}
