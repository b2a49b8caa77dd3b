package persistent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arkveil/ctxkernel/pkg/embedder"
	"github.com/arkveil/ctxkernel/pkg/vectorstore"
)

// VectorStoreConfig configures VectorStore.
type VectorStoreConfig struct {
	// Provider performs vector storage and similarity search (required).
	Provider vectorstore.Provider

	// Embedder generates embeddings for new records (required; embedding
	// is computed lazily, only when a record is saved or searched
	// semantically).
	Embedder embedder.Embedder

	// CollectionName groups records. Default: "ctxkernel_memory".
	CollectionName string
}

// VectorStore implements Store (substring-via-scan) and SemanticStore,
// delegating embedding and similarity search to the wired provider and
// embedder. It keeps a small in-memory mirror of saved records so
// substring search and result hydration don't require a second backend.
type VectorStore struct {
	provider   vectorstore.Provider
	embedder   embedder.Embedder
	collection string

	mu      sync.RWMutex
	records map[string]*Record
}

// NewVectorStore creates a VectorStore from cfg.
func NewVectorStore(cfg VectorStoreConfig) (*VectorStore, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("persistent: vector provider is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("persistent: embedder is required for a vector-backed store")
	}
	collection := cfg.CollectionName
	if collection == "" {
		collection = "ctxkernel_memory"
	}
	return &VectorStore{
		provider:   cfg.Provider,
		embedder:   cfg.Embedder,
		collection: collection,
		records:    make(map[string]*Record),
	}, nil
}

// Save embeds record's content, upserts it into the vector provider, and
// mirrors it for substring search.
func (s *VectorStore) Save(ctx context.Context, record *Record) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	embedding := record.Embedding
	if embedding == nil {
		var err error
		embedding, err = s.embedder.Embed(ctx, record.Content)
		if err != nil {
			return "", fmt.Errorf("persistent: embed record: %w", err)
		}
		record.Embedding = embedding
	}

	metadata := map[string]any{
		"content":    record.Content,
		"user_id":    record.UserID,
		"session_id": record.SessionID,
		"importance": record.Importance,
	}
	if err := s.provider.Upsert(ctx, s.collection, record.ID, embedding, metadata); err != nil {
		return "", fmt.Errorf("persistent: upsert record: %w", err)
	}

	s.mu.Lock()
	s.records[record.ID] = record
	s.mu.Unlock()
	return record.ID, nil
}

// Search performs a substring match over the in-memory mirror of saved
// records, most recent first, capped at limit.
func (s *VectorStore) Search(ctx context.Context, query string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	var out []*Record
	for _, r := range s.records {
		if strings.Contains(strings.ToLower(r.Content), strings.ToLower(query)) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchSemantic embeds query and returns the topK most similar records
// whose similarity score meets minScore.
func (s *VectorStore) SearchSemantic(ctx context.Context, query string, topK int, minScore float64) ([]*Record, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("persistent: embed query: %w", err)
	}

	results, err := s.provider.Search(ctx, s.collection, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("persistent: semantic search: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(results))
	for _, res := range results {
		if float64(res.Score) < minScore {
			continue
		}
		if r, ok := s.records[res.ID]; ok {
			out = append(out, r)
			continue
		}
		// Fall back to reconstructing from provider metadata when the
		// record wasn't saved through this process (e.g. shared store).
		content, _ := res.Metadata["content"].(string)
		out = append(out, &Record{ID: res.ID, Content: content})
	}
	return out, nil
}

var (
	_ Store         = (*VectorStore)(nil)
	_ SemanticStore = (*VectorStore)(nil)
)
