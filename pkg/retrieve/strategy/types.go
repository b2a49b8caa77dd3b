// Package strategy implements the retrieval strategies that combine the
// graph, vector, and keyword backends into a single RetrievalResult:
// graph-first (with vector fallback), vector-first, hybrid (sequential
// graph and vector recall plus one-hop graph expansion from vector hits),
// and a graph-only
// internal fallback for when no embedding provider is configured.
package strategy

import (
	"github.com/arkveil/ctxkernel/pkg/graphstore"
	"github.com/arkveil/ctxkernel/pkg/retrieve/backend"
)

// RetrievalResult is the uniform shape every strategy returns.
type RetrievalResult struct {
	Chunks    []*backend.Chunk
	Entities  []*graphstore.Entity
	Relations []*graphstore.Relation
	Scores    map[string]float64 // chunk id -> composite score

	// FallbackToVector records whether graph-first degraded to vector
	// retrieval for this call (mirrors the spec's tracing-span attribute
	// `retrieval.fallback_to_vector`, exposed here as a plain return value
	// since this package does not depend on a tracing library).
	FallbackToVector bool
}

// Weights configures the hybrid strategy's score contributions.
type Weights struct {
	Graph     float64
	Vector    float64
	Expansion float64
}

// SetDefaults fills unset weights with the strategy's defaults.
func (w *Weights) SetDefaults() {
	if w.Graph <= 0 {
		w.Graph = 0.5
	}
	if w.Vector <= 0 {
		w.Vector = 0.5
	}
	if w.Expansion <= 0 {
		w.Expansion = 0.3
	}
}
