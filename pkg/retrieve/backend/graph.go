package backend

import (
	"context"

	"github.com/arkveil/ctxkernel/pkg/graphstore"
)

// GraphConfig configures a GraphBackend.
type GraphConfig struct {
	Store  *graphstore.Store
	Chunks ChunkFetcher

	// SeedLimit bounds how many entities the initial name/substring match
	// returns. Default 5.
	SeedLimit int

	// NHop bounds traversal depth from the seed entities. Default 2.
	NHop int
}

// SetDefaults fills unset fields with the backend's defaults.
func (c *GraphConfig) SetDefaults() {
	if c.SeedLimit <= 0 {
		c.SeedLimit = 5
	}
	if c.NHop <= 0 {
		c.NHop = 2
	}
}

// GraphBackend retrieves by seed-entity lookup followed by bounded
// bidirectional graph traversal, locating chunks via entities'
// back-references.
type GraphBackend struct {
	cfg GraphConfig
}

// NewGraphBackend creates a GraphBackend from cfg.
func NewGraphBackend(cfg GraphConfig) *GraphBackend {
	cfg.SetDefaults()
	return &GraphBackend{cfg: cfg}
}

// Retrieve looks up seed entities by query, traverses up to NHop hops,
// fetches every visited entity, and resolves their chunk back-references
// to chunks, capped at limit.
func (b *GraphBackend) Retrieve(ctx context.Context, query string, limit int) (entities []*graphstore.Entity, relations []*graphstore.Relation, chunks []*Chunk, err error) {
	seeds := b.cfg.Store.SearchEntities(query, b.cfg.SeedLimit)
	if len(seeds) == 0 {
		return nil, nil, nil, nil
	}

	seedIDs := make([]string, len(seeds))
	for i, e := range seeds {
		seedIDs[i] = e.ID
	}

	visitedIDs, relations := b.cfg.Store.NHop(seedIDs, b.cfg.NHop)
	entities = b.cfg.Store.GetEntitiesByIDs(visitedIDs)

	seenChunk := make(map[string]bool)
	var chunkIDs []string
	for _, e := range entities {
		for _, cid := range e.ChunkIDs {
			if !seenChunk[cid] {
				seenChunk[cid] = true
				chunkIDs = append(chunkIDs, cid)
			}
		}
	}
	if limit > 0 && len(chunkIDs) > limit {
		chunkIDs = chunkIDs[:limit]
	}

	if b.cfg.Chunks != nil {
		chunks = b.cfg.Chunks.GetByIDs(chunkIDs)
	}
	return entities, relations, chunks, nil
}
