// Package embedder declares the narrow text-embedding capability the
// persistent store and vector-backed retrieval consume. No concrete
// provider ships in this module; embedding models are an external
// collaborator wired in by the caller.
package embedder

import "context"

// Embedder produces vector embeddings from text.
type Embedder interface {
	// Embed converts text to a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to vector embeddings. More
	// efficient than calling Embed in a loop for providers that batch.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// Model returns the model name in use.
	Model() string
}
