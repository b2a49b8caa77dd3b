package strategy

import (
	"context"
	"log/slog"
)

// Strategy is the uniform shape every retrieval strategy implements.
type Strategy interface {
	Retrieve(ctx context.Context, query string, topK int) (RetrievalResult, error)
}

// Name identifies a configured strategy choice.
type Name string

const (
	NameGraphFirst  Name = "graph_first"
	NameVectorFirst Name = "vector_first"
	NameHybrid      Name = "hybrid"
	NameGraphOnly   Name = "graph_only"
)

// SelectConfig describes the capabilities available to Select and the
// strategies built from them. A nil strategy field means that
// capability isn't configured.
type SelectConfig struct {
	// Configured is the operator's requested strategy. Empty selects the
	// default (graph-first).
	Configured Name

	HasVector    bool
	HasExtractor bool // whether entity extraction (and therefore the graph) is available

	GraphFirst  *GraphFirst
	VectorFirst *VectorFirst
	Hybrid      *Hybrid
	GraphOnly   *GraphOnly
}

// Select picks a retrieval strategy from the configured capabilities.
// With neither vector nor entity-extraction capability, it falls back to
// graph-only; with vector but no extractor it degrades to vector-first
// and logs the degradation; otherwise it honors the configured choice,
// defaulting to graph-first.
func Select(cfg SelectConfig) (Strategy, Name) {
	if !cfg.HasVector && !cfg.HasExtractor {
		return cfg.GraphOnly, NameGraphOnly
	}
	if cfg.HasVector && !cfg.HasExtractor {
		slog.Info("retrieval strategy degraded: no entity extractor configured, falling back to vector-first",
			"configured", cfg.Configured)
		return cfg.VectorFirst, NameVectorFirst
	}

	switch cfg.Configured {
	case NameVectorFirst:
		return cfg.VectorFirst, NameVectorFirst
	case NameHybrid:
		return cfg.Hybrid, NameHybrid
	case NameGraphOnly:
		return cfg.GraphOnly, NameGraphOnly
	case NameGraphFirst, "":
		return cfg.GraphFirst, NameGraphFirst
	default:
		return cfg.GraphFirst, NameGraphFirst
	}
}
