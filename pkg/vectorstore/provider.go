// Package vectorstore declares a narrow vector-database capability and
// ships two interchangeable providers: an embedded chromem-go provider for
// zero-config deployments, and a Qdrant provider for external/distributed
// deployments.
package vectorstore

import "context"

// Result is one match from a similarity search.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]any
}

// Provider is the capability the persistent store's vector-backed search
// depends on. Implementations own their own connection lifecycle.
type Provider interface {
	// Upsert adds or replaces a vector by id within a collection.
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error

	// Search returns the topK nearest vectors in a collection.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// Delete removes a vector by id.
	Delete(ctx context.Context, collection string, id string) error

	// Name identifies the provider implementation.
	Name() string

	// Close releases provider resources.
	Close() error
}
