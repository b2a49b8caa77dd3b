package backend

import (
	"context"
	"fmt"

	"github.com/arkveil/ctxkernel/pkg/embedder"
	"github.com/arkveil/ctxkernel/pkg/vectorstore"
)

// VectorHit pairs a chunk with its similarity score, most similar first.
type VectorHit struct {
	Chunk *Chunk
	Score float64
}

// VectorConfig configures a VectorBackend.
type VectorConfig struct {
	Provider   vectorstore.Provider
	Embedder   embedder.Embedder
	Collection string
}

// SetDefaults fills unset fields with the backend's defaults.
func (c *VectorConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "ctxkernel_chunks"
	}
}

// VectorBackend embeds the query and asks a vectorstore.Provider-backed
// chunk index for top-k cosine hits, optionally filtered by minScore.
type VectorBackend struct {
	cfg VectorConfig
}

// NewVectorBackend creates a VectorBackend from cfg.
func NewVectorBackend(cfg VectorConfig) (*VectorBackend, error) {
	cfg.SetDefaults()
	if cfg.Provider == nil {
		return nil, fmt.Errorf("backend: vector provider is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("backend: embedder is required")
	}
	return &VectorBackend{cfg: cfg}, nil
}

// Index upserts a chunk's content into the vector provider under its id.
func (b *VectorBackend) Index(ctx context.Context, chunk *Chunk) error {
	vec, err := b.cfg.Embedder.Embed(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("backend: embed chunk: %w", err)
	}
	metadata := map[string]any{"content": chunk.Content, "entity_ids": chunk.EntityIDs, "keywords": chunk.Keywords}
	if err := b.cfg.Provider.Upsert(ctx, b.cfg.Collection, chunk.ID, vec, metadata); err != nil {
		return fmt.Errorf("backend: upsert chunk: %w", err)
	}
	return nil
}

// Retrieve embeds query and returns up to limit chunks by cosine
// similarity, dropping hits scoring below minScore.
func (b *VectorBackend) Retrieve(ctx context.Context, query string, limit int, minScore float64) ([]VectorHit, error) {
	vec, err := b.cfg.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("backend: embed query: %w", err)
	}

	results, err := b.cfg.Provider.Search(ctx, b.cfg.Collection, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("backend: vector search: %w", err)
	}

	out := make([]VectorHit, 0, len(results))
	for _, r := range results {
		if float64(r.Score) < minScore {
			continue
		}
		content, _ := r.Metadata["content"].(string)
		var entityIDs []string
		if raw, ok := r.Metadata["entity_ids"].([]string); ok {
			entityIDs = raw
		}
		out = append(out, VectorHit{
			Chunk: &Chunk{ID: r.ID, Content: content, EntityIDs: entityIDs},
			Score: float64(r.Score),
		})
	}
	return out, nil
}
