package backend

import (
	"strings"
	"sync"
)

// KeywordBackend matches a query substring against chunk content or
// chunk keywords, returning hits in insertion order (no scoring).
//
// KeywordBackend is safe for concurrent use.
type KeywordBackend struct {
	mu     sync.RWMutex
	chunks map[string]*Chunk
	order  []string
}

// NewKeywordBackend creates an empty KeywordBackend.
func NewKeywordBackend() *KeywordBackend {
	return &KeywordBackend{chunks: make(map[string]*Chunk)}
}

// Index inserts or replaces a chunk.
func (b *KeywordBackend) Index(chunk *Chunk) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.chunks[chunk.ID]; !exists {
		b.order = append(b.order, chunk.ID)
	}
	b.chunks[chunk.ID] = chunk
}

// GetByIDs implements ChunkFetcher.
func (b *KeywordBackend) GetByIDs(ids []string) []*Chunk {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := b.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Retrieve returns chunks whose content or keywords contain query as a
// case-insensitive substring, in insertion order, capped at limit.
func (b *KeywordBackend) Retrieve(query string, limit int) []*Chunk {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q := strings.ToLower(query)
	if q == "" {
		return nil
	}

	var out []*Chunk
	for _, id := range b.order {
		c := b.chunks[id]
		if strings.Contains(strings.ToLower(c.Content), q) || matchesKeyword(c.Keywords, q) {
			out = append(out, c)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

func matchesKeyword(keywords []string, q string) bool {
	for _, k := range keywords {
		if strings.Contains(strings.ToLower(k), q) {
			return true
		}
	}
	return false
}

var _ ChunkFetcher = (*KeywordBackend)(nil)
