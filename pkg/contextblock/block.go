// Package contextblock defines the shared unit the orchestrator (C11)
// assembles into a final message list: a priced, labeled fragment of
// context contributed by exactly one source.
package contextblock

// Block is a single fragment of assembled context.
type Block struct {
	Content string
	Role    string

	// TokenCount is the priced cost of Content as measured by whichever
	// tokencount.Counter produced it.
	TokenCount int

	// Priority is the importance the emitting source assigns to the block
	// (higher is more important). The orchestrator does not read it.
	Priority float64

	// Source names the collaborator that emitted this block (e.g.
	// "retrieval", "l1_recent", "shared_pool"), used for separator
	// insertion when a source emits more than one block.
	Source string

	// Compressible marks the block as safe to summarize away. Neither the
	// orchestrator nor the compactor (C12) reads it.
	Compressible bool

	Metadata map[string]any
}
