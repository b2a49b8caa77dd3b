// Package memorycore unifies the L1 sliding window, L2 working memory, and
// an optional L3 persistent store behind a single Core, wiring L1's
// eviction hook to promote evicted messages into L2 and L2's eviction hook
// to queue durable candidates for a later flush.
package memorycore

import (
	"time"

	"github.com/arkveil/ctxkernel/pkg/window"
	"github.com/arkveil/ctxkernel/pkg/working"
)

// defaultPromotedImportance is used for an evicted L1 record whose
// metadata carries no explicit importance value.
const defaultPromotedImportance = 0.5

// Result is one hit from Search, tagged with the tier it came from.
type Result struct {
	Source     string // "l1", "l2", or "l3"
	ID         string
	Content    string
	Importance float64
	Score      float64
	CreatedAt  time.Time
}

// Snapshot is the JSON-serializable form produced by ExportSnapshot and
// consumed by RestoreSnapshot.
type Snapshot struct {
	L1Records []*window.Record  `json:"l1_records"`
	L1Budget  int               `json:"l1_budget"`
	L2Entries []*working.Entry  `json:"l2_entries"`
	Context   map[string]string `json:"context"`
}
