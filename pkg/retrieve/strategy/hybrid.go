package strategy

import (
	"context"
	"sort"

	"github.com/arkveil/ctxkernel/pkg/graphstore"
	"github.com/arkveil/ctxkernel/pkg/retrieve/backend"
)

// HybridConfig configures a Hybrid strategy.
type HybridConfig struct {
	Graph  *backend.GraphBackend
	Vector *backend.VectorBackend

	// Entities and Chunks back the one-hop expansion step: once vector
	// hits are in hand, their entity ids are used to pull in neighboring
	// chunks the vector search itself never surfaced.
	Entities *graphstore.Store
	Chunks   backend.ChunkFetcher

	Weights Weights

	// ExpansionLimit bounds how many additional chunks the one-hop
	// expansion may contribute. Default 5.
	ExpansionLimit int
}

// SetDefaults fills unset fields with the strategy's defaults.
func (c *HybridConfig) SetDefaults() {
	c.Weights.SetDefaults()
	if c.ExpansionLimit <= 0 {
		c.ExpansionLimit = 5
	}
}

// Hybrid runs graph retrieval and then vector retrieval, one after the
// other in the calling goroutine (they are not run in parallel), merges
// their scores, and expands one hop from the vector hits' entities to
// surface chunks neither backend recalled directly.
type Hybrid struct {
	cfg HybridConfig
}

// NewHybrid creates a Hybrid strategy from cfg.
func NewHybrid(cfg HybridConfig) *Hybrid {
	cfg.SetDefaults()
	return &Hybrid{cfg: cfg}
}

// Retrieve implements the strategy.
func (s *Hybrid) Retrieve(ctx context.Context, query string, topK int) (RetrievalResult, error) {
	var graphEntities []*graphstore.Entity
	var graphRelations []*graphstore.Relation
	var graphChunks []*backend.Chunk
	if s.cfg.Graph != nil {
		var err error
		graphEntities, graphRelations, graphChunks, err = s.cfg.Graph.Retrieve(ctx, query, 0)
		if err != nil {
			return RetrievalResult{}, err
		}
	}

	var vectorHits []backend.VectorHit
	if s.cfg.Vector != nil {
		var err error
		vectorHits, err = s.cfg.Vector.Retrieve(ctx, query, topK, 0)
		if err != nil {
			return RetrievalResult{}, err
		}
	}

	scores := make(map[string]float64)
	chunkByID := make(map[string]*backend.Chunk)
	var order []string

	addChunk := func(c *backend.Chunk, delta float64) {
		if _, ok := chunkByID[c.ID]; !ok {
			chunkByID[c.ID] = c
			order = append(order, c.ID)
		}
		scores[c.ID] += delta
	}

	n := len(graphChunks)
	for i, c := range graphChunks {
		addChunk(c, s.cfg.Weights.Graph*(1.0-float64(i)/float64(n)))
	}
	for _, h := range vectorHits {
		addChunk(h.Chunk, s.cfg.Weights.Vector*h.Score)
	}

	var expansionEntities []*graphstore.Entity
	if s.cfg.Entities != nil && s.cfg.Chunks != nil {
		var seedIDs []string
		seenSeed := make(map[string]bool)
		for _, h := range vectorHits {
			for _, eid := range h.Chunk.EntityIDs {
				if !seenSeed[eid] {
					seenSeed[eid] = true
					seedIDs = append(seedIDs, eid)
				}
			}
		}
		if len(seedIDs) > 0 {
			visitedIDs, _ := s.cfg.Entities.NHop(seedIDs, 1)
			expansionEntities = s.cfg.Entities.GetEntitiesByIDs(visitedIDs)

			var expansionChunkIDs []string
			seenChunk := make(map[string]bool)
			for _, e := range expansionEntities {
				for _, cid := range e.ChunkIDs {
					if _, already := chunkByID[cid]; already {
						continue
					}
					if !seenChunk[cid] {
						seenChunk[cid] = true
						expansionChunkIDs = append(expansionChunkIDs, cid)
					}
				}
			}
			if s.cfg.ExpansionLimit > 0 && len(expansionChunkIDs) > s.cfg.ExpansionLimit {
				expansionChunkIDs = expansionChunkIDs[:s.cfg.ExpansionLimit]
			}

			expansionChunks := s.cfg.Chunks.GetByIDs(expansionChunkIDs)
			m := len(expansionChunks)
			for i, c := range expansionChunks {
				addChunk(c, s.cfg.Weights.Expansion*(1.0-float64(i)/float64(m)))
			}
		}
	}

	chunks := make([]*backend.Chunk, 0, len(order))
	for _, id := range order {
		chunks = append(chunks, chunkByID[id])
	}
	sort.SliceStable(chunks, func(i, j int) bool { return scores[chunks[i].ID] > scores[chunks[j].ID] })
	if topK > 0 && len(chunks) > topK {
		chunks = chunks[:topK]
	}

	return RetrievalResult{
		Chunks:    chunks,
		Entities:  append(append([]*graphstore.Entity{}, graphEntities...), expansionEntities...),
		Relations: graphRelations,
		Scores:    scores,
	}, nil
}
