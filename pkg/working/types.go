// Package working implements the L2 working memory tier: a set of typed
// entries (facts, decisions, plans, ...) retained under a token budget with
// importance-weighted eviction and optional per-entry expiry.
package working

import "time"

// EntryType tags the kind of content a working-memory Entry carries.
type EntryType string

const (
	EntryFact     EntryType = "fact"
	EntryDecision EntryType = "decision"
	EntryPlan     EntryType = "plan"
	EntrySummary  EntryType = "summary"
	EntryContext  EntryType = "context"
	EntryThought  EntryType = "thought"
	EntryToolCall EntryType = "tool_call"
	EntryToolResult EntryType = "tool_result"
	EntryMessage  EntryType = "message"
)

// Entry is one L2 working-memory record.
type Entry struct {
	ID         string
	Type       EntryType
	Content    string
	Importance float64 // in [0, 1]
	TokenCount int
	Tags       []string

	// SourceMessageIDs back-references the L1 record id(s) this entry was
	// promoted from, when applicable.
	SourceMessageIDs []string
	SessionID        string

	AccessCount int
	CreatedAt   time.Time

	// Expiry is an optional absolute expiry; zero means no expiry.
	Expiry time.Time
}

// expired reports whether the entry's absolute expiry has passed as of now.
func (e *Entry) expired(now time.Time) bool {
	return !e.Expiry.IsZero() && now.After(e.Expiry)
}
