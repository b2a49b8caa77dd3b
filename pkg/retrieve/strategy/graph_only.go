package strategy

import (
	"context"

	"github.com/arkveil/ctxkernel/pkg/retrieve/backend"
)

// GraphOnlyConfig configures a GraphOnly strategy.
type GraphOnlyConfig struct {
	Graph *backend.GraphBackend
}

// GraphOnly is the internal fallback used when no vector capability is
// configured at all: it never attempts a vector call, scoring graph
// chunks purely by traversal order (1 - rank/count).
type GraphOnly struct {
	cfg GraphOnlyConfig
}

// NewGraphOnly creates a GraphOnly strategy from cfg.
func NewGraphOnly(cfg GraphOnlyConfig) *GraphOnly {
	return &GraphOnly{cfg: cfg}
}

// Retrieve implements the strategy.
func (s *GraphOnly) Retrieve(ctx context.Context, query string, topK int) (RetrievalResult, error) {
	entities, relations, chunks, err := s.cfg.Graph.Retrieve(ctx, query, topK)
	if err != nil {
		return RetrievalResult{}, err
	}

	scores := make(map[string]float64, len(chunks))
	n := len(chunks)
	for i, c := range chunks {
		scores[c.ID] = 1.0 - float64(i)/float64(n)
	}

	return RetrievalResult{Chunks: chunks, Entities: entities, Relations: relations, Scores: scores}, nil
}
