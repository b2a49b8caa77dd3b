package strategy_test

import (
	"context"
	"sync"
	"testing"

	"github.com/arkveil/ctxkernel/pkg/graphstore"
	"github.com/arkveil/ctxkernel/pkg/retrieve/backend"
	"github.com/arkveil/ctxkernel/pkg/retrieve/strategy"
	"github.com/arkveil/ctxkernel/pkg/vectorstore"
)

type fakeProvider struct {
	mu   sync.Mutex
	docs map[string]struct {
		vec      []float32
		metadata map[string]any
	}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{docs: make(map[string]struct {
		vec      []float32
		metadata map[string]any
	})}
}

func (p *fakeProvider) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[id] = struct {
		vec      []float32
		metadata map[string]any
	}{vec: vector, metadata: metadata}
	return nil
}

func (p *fakeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]vectorstore.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]vectorstore.Result, 0, len(p.docs))
	for id, d := range p.docs {
		out = append(out, vectorstore.Result{ID: id, Score: 0.9, Metadata: d.metadata})
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (p *fakeProvider) Delete(ctx context.Context, collection, id string) error { return nil }
func (p *fakeProvider) Name() string                                           { return "fake" }
func (p *fakeProvider) Close() error                                           { return nil }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (e fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (fakeEmbedder) Dimension() int { return 2 }
func (fakeEmbedder) Model() string  { return "fake" }

func TestGraphFirst_FallsBackToVectorWhenGraphRecallsNoChunks(t *testing.T) {
	store := graphstore.New()
	gb := backend.NewGraphBackend(backend.GraphConfig{Store: store})

	vp := newFakeProvider()
	vb, _ := backend.NewVectorBackend(backend.VectorConfig{Provider: vp, Embedder: fakeEmbedder{}})
	ctx := context.Background()
	vb.Index(ctx, &backend.Chunk{ID: "c1", Content: "paris weather"})

	s := strategy.NewGraphFirst(strategy.GraphFirstConfig{Graph: gb, Vector: vb, Embedder: fakeEmbedder{}})
	got, err := s.Retrieve(ctx, "paris", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.FallbackToVector {
		t.Fatalf("expected FallbackToVector to be true")
	}
	if len(got.Chunks) != 1 || got.Chunks[0].ID != "c1" {
		t.Fatalf("expected vector fallback to surface c1, got %+v", got.Chunks)
	}
}

func TestGraphFirst_ReordersGraphChunksByCosine(t *testing.T) {
	store := graphstore.New()
	store.AddEntity(&graphstore.Entity{ID: "E1", Name: "Paris", ChunkIDs: []string{"c1", "c2"}})
	kb := backend.NewKeywordBackend()
	kb.Index(&backend.Chunk{ID: "c1", Content: "far", Embedding: []float32{0, 1}})
	kb.Index(&backend.Chunk{ID: "c2", Content: "near", Embedding: []float32{1, 0}})
	gb := backend.NewGraphBackend(backend.GraphConfig{Store: store, Chunks: kb})

	s := strategy.NewGraphFirst(strategy.GraphFirstConfig{Graph: gb, Embedder: fakeEmbedder{}})
	got, err := s.Retrieve(context.Background(), "paris", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FallbackToVector {
		t.Fatalf("did not expect a fallback")
	}
	if len(got.Chunks) != 2 || got.Chunks[0].ID != "c2" {
		t.Fatalf("expected c2 (cosine 1.0) ranked first, got %+v", got.Chunks)
	}
}

func TestVectorFirst_ReturnsHitsWithScores(t *testing.T) {
	vp := newFakeProvider()
	vb, _ := backend.NewVectorBackend(backend.VectorConfig{Provider: vp, Embedder: fakeEmbedder{}})
	ctx := context.Background()
	vb.Index(ctx, &backend.Chunk{ID: "c1", Content: "hello"})

	s := strategy.NewVectorFirst(strategy.VectorFirstConfig{Vector: vb})
	got, err := s.Retrieve(ctx, "hello", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Chunks) != 1 || got.Chunks[0].ID != "c1" {
		t.Fatalf("expected 1 hit for c1, got %+v", got.Chunks)
	}
	// The provider reports scores as float32; the backend widens them.
	if got.Scores["c1"] != float64(float32(0.9)) {
		t.Fatalf("expected score 0.9, got %v", got.Scores["c1"])
	}
}

// TestHybrid_ExpandsFromVectorHitEntities is the spec's worked scenario:
// graph recalls no chunks directly, vector recalls C1 (entity E1), E1
// links to E2 whose chunk C2 the vector search never saw. Hybrid must
// surface both, with C2 scored at or below the expansion weight.
func TestHybrid_ExpandsFromVectorHitEntities(t *testing.T) {
	store := graphstore.New()
	store.AddEntity(&graphstore.Entity{ID: "E1", Name: "Unrelated", ChunkIDs: []string{"c1"}})
	store.AddEntity(&graphstore.Entity{ID: "E2", Name: "Neighbor", ChunkIDs: []string{"c2"}})
	store.AddRelation(&graphstore.Relation{ID: "R1", SourceID: "E1", TargetID: "E2", Type: "related_to"})

	kb := backend.NewKeywordBackend()
	kb.Index(&backend.Chunk{ID: "c2", Content: "neighbor chunk"})

	// Graph backend's own seed search matches nothing for this query, so
	// it recalls zero chunks directly.
	gb := backend.NewGraphBackend(backend.GraphConfig{Store: store, Chunks: kb})

	vp := newFakeProvider()
	vb, _ := backend.NewVectorBackend(backend.VectorConfig{Provider: vp, Embedder: fakeEmbedder{}})
	ctx := context.Background()
	vb.Index(ctx, &backend.Chunk{ID: "c1", Content: "some query", EntityIDs: []string{"E1"}})

	weights := strategy.Weights{Graph: 0.5, Vector: 0.5, Expansion: 0.3}
	s := strategy.NewHybrid(strategy.HybridConfig{
		Graph: gb, Vector: vb, Entities: store, Chunks: kb, Weights: weights,
	})

	got, err := s.Retrieve(ctx, "some query", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Chunks) != 2 {
		t.Fatalf("expected both c1 and the expanded c2, got %+v", got.Chunks)
	}
	ids := map[string]bool{got.Chunks[0].ID: true, got.Chunks[1].ID: true}
	if !ids["c1"] || !ids["c2"] {
		t.Fatalf("expected c1 and c2, got %+v", got.Chunks)
	}
	if got.Scores["c2"] > weights.Expansion {
		t.Fatalf("expected c2's expansion score <= %v, got %v", weights.Expansion, got.Scores["c2"])
	}
}

func TestGraphOnly_ScoresByReverseRank(t *testing.T) {
	store := graphstore.New()
	store.AddEntity(&graphstore.Entity{ID: "E1", Name: "Paris", ChunkIDs: []string{"c1", "c2"}})
	kb := backend.NewKeywordBackend()
	kb.Index(&backend.Chunk{ID: "c1", Content: "first"})
	kb.Index(&backend.Chunk{ID: "c2", Content: "second"})
	gb := backend.NewGraphBackend(backend.GraphConfig{Store: store, Chunks: kb})

	s := strategy.NewGraphOnly(strategy.GraphOnlyConfig{Graph: gb})
	got, err := s.Retrieve(context.Background(), "paris", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Scores["c1"] <= got.Scores["c2"] {
		t.Fatalf("expected c1 scored above c2 by rank, got %+v", got.Scores)
	}
}

func TestSelect_NoVectorNoExtractorChoosesGraphOnly(t *testing.T) {
	cfg := strategy.SelectConfig{GraphOnly: &strategy.GraphOnly{}}
	_, name := strategy.Select(cfg)
	if name != strategy.NameGraphOnly {
		t.Fatalf("expected graph_only, got %v", name)
	}
}

func TestSelect_VectorWithoutExtractorDegradesToVectorFirst(t *testing.T) {
	cfg := strategy.SelectConfig{HasVector: true, HasExtractor: false, VectorFirst: &strategy.VectorFirst{}}
	_, name := strategy.Select(cfg)
	if name != strategy.NameVectorFirst {
		t.Fatalf("expected vector_first degradation, got %v", name)
	}
}

func TestSelect_DefaultsToGraphFirst(t *testing.T) {
	cfg := strategy.SelectConfig{HasVector: true, HasExtractor: true, GraphFirst: &strategy.GraphFirst{}}
	_, name := strategy.Select(cfg)
	if name != strategy.NameGraphFirst {
		t.Fatalf("expected default graph_first, got %v", name)
	}
}

func TestSelect_HonorsConfiguredHybrid(t *testing.T) {
	cfg := strategy.SelectConfig{
		HasVector: true, HasExtractor: true,
		Configured: strategy.NameHybrid,
		Hybrid:     &strategy.Hybrid{},
		GraphFirst: &strategy.GraphFirst{},
	}
	_, name := strategy.Select(cfg)
	if name != strategy.NameHybrid {
		t.Fatalf("expected configured hybrid to be honored, got %v", name)
	}
}
