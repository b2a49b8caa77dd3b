package strategy

import (
	"context"
	"sort"

	"github.com/arkveil/ctxkernel/pkg/embedder"
	"github.com/arkveil/ctxkernel/pkg/retrieve/backend"
)

// GraphFirstConfig configures a GraphFirst strategy.
type GraphFirstConfig struct {
	Graph    *backend.GraphBackend
	Vector   *backend.VectorBackend
	Embedder embedder.Embedder
}

// GraphFirst runs the graph backend; if it recalls no chunks, it falls
// back to the vector backend with raw similarity scores. Otherwise it
// reranks the graph chunks by cosine-to-query using their stored
// embeddings.
type GraphFirst struct {
	cfg GraphFirstConfig
}

// NewGraphFirst creates a GraphFirst strategy from cfg.
func NewGraphFirst(cfg GraphFirstConfig) *GraphFirst {
	return &GraphFirst{cfg: cfg}
}

// Retrieve implements the strategy.
func (s *GraphFirst) Retrieve(ctx context.Context, query string, topK int) (RetrievalResult, error) {
	entities, relations, chunks, err := s.cfg.Graph.Retrieve(ctx, query, 0)
	if err != nil {
		return RetrievalResult{}, err
	}

	if len(chunks) == 0 {
		if s.cfg.Vector == nil {
			return RetrievalResult{FallbackToVector: true}, nil
		}
		hits, err := s.cfg.Vector.Retrieve(ctx, query, topK, 0)
		if err != nil {
			return RetrievalResult{}, err
		}
		out := RetrievalResult{FallbackToVector: true, Scores: make(map[string]float64, len(hits))}
		for _, h := range hits {
			out.Chunks = append(out.Chunks, h.Chunk)
			out.Scores[h.Chunk.ID] = h.Score
		}
		return out, nil
	}

	scores := make(map[string]float64, len(chunks))
	if s.cfg.Embedder != nil {
		queryVec, err := s.cfg.Embedder.Embed(ctx, query)
		if err == nil {
			for _, c := range chunks {
				scores[c.ID] = cosine(queryVec, c.Embedding)
			}
		}
	}
	if len(scores) == 0 {
		// No embedder (or embed failure): degrade to original order
		// rather than raise (spec §7).
		for i, c := range chunks {
			scores[c.ID] = 1.0 - float64(i)/float64(len(chunks))
		}
	}

	sort.SliceStable(chunks, func(i, j int) bool { return scores[chunks[i].ID] > scores[chunks[j].ID] })
	if topK > 0 && len(chunks) > topK {
		chunks = chunks[:topK]
	}

	return RetrievalResult{Chunks: chunks, Entities: entities, Relations: relations, Scores: scores}, nil
}
