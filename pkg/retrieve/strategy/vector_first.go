package strategy

import (
	"context"

	"github.com/arkveil/ctxkernel/pkg/retrieve/backend"
)

// VectorFirstConfig configures a VectorFirst strategy.
type VectorFirstConfig struct {
	Vector *backend.VectorBackend

	// MinScore floors the recalled similarity scores. Default 0 (no floor).
	MinScore float64
}

// VectorFirst is pure vector retrieval with an optional score floor.
type VectorFirst struct {
	cfg VectorFirstConfig
}

// NewVectorFirst creates a VectorFirst strategy from cfg.
func NewVectorFirst(cfg VectorFirstConfig) *VectorFirst {
	return &VectorFirst{cfg: cfg}
}

// Retrieve implements the strategy.
func (s *VectorFirst) Retrieve(ctx context.Context, query string, topK int) (RetrievalResult, error) {
	hits, err := s.cfg.Vector.Retrieve(ctx, query, topK, s.cfg.MinScore)
	if err != nil {
		return RetrievalResult{}, err
	}

	out := RetrievalResult{Scores: make(map[string]float64, len(hits))}
	for _, h := range hits {
		out.Chunks = append(out.Chunks, h.Chunk)
		out.Scores[h.Chunk.ID] = h.Score
	}
	return out, nil
}
