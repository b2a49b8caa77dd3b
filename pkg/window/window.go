package window

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arkveil/ctxkernel/pkg/tokencount"
)

// EvictionHook is called with the records evicted by a single Append call,
// in the order they were removed. Memory core (C5) uses this to promote
// evicted records into L2.
type EvictionHook func(evicted []*Record)

// Window holds L1 records in insertion order under a token budget.
//
// A Window is safe for concurrent use; every public method takes the
// internal mutex for its whole duration, so mutations are atomic with
// respect to each other (§5: "Inside a suspension-free region, state
// updates are atomic").
type Window struct {
	mu      sync.Mutex
	records []*Record
	budget  int
	tokens  int
	counter tokencount.Counter
	hooks   []EvictionHook
}

// New creates an empty Window with the given token budget and counter.
func New(budget int, counter tokencount.Counter) *Window {
	return &Window{
		budget:  budget,
		counter: counter,
	}
}

// OnEviction installs a hook invoked with each Append's evicted records.
func (w *Window) OnEviction(hook EvictionHook) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks = append(w.hooks, hook)
}

// SetTokenBudget changes the budget. Lowering it does not retroactively
// evict existing records (spec §4.2 edge case).
func (w *Window) SetTokenBudget(budget int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.budget = budget
}

// Append adds a record, evicting the oldest eligible records (paired, where
// applicable) until the window fits the budget. The appended record is
// never itself picked as an eviction candidate, so a record larger than
// the whole budget is still kept. Returns the evicted records, which may
// be empty, one, or several (from paired evictions).
func (w *Window) Append(record *Record) []*Record {
	w.mu.Lock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	w.records = append(w.records, record)
	w.tokens += record.TokenCount

	evicted := w.evictUntilFits(record)

	hooks := append([]EvictionHook(nil), w.hooks...)
	w.mu.Unlock()

	if len(evicted) > 0 {
		for _, h := range hooks {
			h(evicted)
		}
	}
	return evicted
}

// AppendMessage is a convenience wrapper that computes the token count via
// the configured counter when not supplied.
func (w *Window) AppendMessage(role Role, content string, tokenCount ...int) []*Record {
	tc := 0
	if len(tokenCount) > 0 {
		tc = tokenCount[0]
	} else {
		tc = w.counter.Count(content)
	}
	return w.Append(&Record{Role: role, Content: content, TokenCount: tc})
}

// evictUntilFits removes records (skipping system records) from the oldest
// forward until total usage is within budget, honoring paired eviction.
// incoming is the record just appended and is not picked as a candidate.
// Caller must hold w.mu.
func (w *Window) evictUntilFits(incoming *Record) []*Record {
	var evicted []*Record

	for w.tokens > w.budget {
		idx := w.nextEvictionCandidate(incoming)
		if idx == -1 {
			// Nothing left eligible for eviction (only system records
			// and the incoming record remain); stop even over budget.
			break
		}
		evicted = append(evicted, w.evictPairedAt(idx)...)
	}

	return evicted
}

// nextEvictionCandidate returns the index of the oldest non-system record
// other than incoming, or -1 if none exists. Caller must hold w.mu.
func (w *Window) nextEvictionCandidate(incoming *Record) int {
	for i, r := range w.records {
		if r.Role != RoleSystem && r != incoming {
			return i
		}
	}
	return -1
}

// evictPairedAt removes the record at idx and, if it is an assistant
// record with tool-calls or a tool record answering one, removes its
// paired counterpart(s) in the same operation. Caller must hold w.mu.
func (w *Window) evictPairedAt(idx int) []*Record {
	target := w.records[idx]

	idsToDrop := map[string]bool{target.ID: true}

	switch {
	case target.Role == RoleAssistant && len(target.ToolCalls) > 0:
		toolCallIDs := make(map[string]bool, len(target.ToolCalls))
		for _, tc := range target.ToolCalls {
			toolCallIDs[tc.ID] = true
		}
		for _, r := range w.records {
			if r.Role == RoleTool && toolCallIDs[r.ToolCallID] {
				idsToDrop[r.ID] = true
			}
		}
	case target.Role == RoleTool && target.ToolCallID != "":
		for _, r := range w.records {
			if r.Role == RoleAssistant && r.hasToolCall(target.ToolCallID) {
				idsToDrop[r.ID] = true
			}
		}
	}

	var removed []*Record
	var kept []*Record
	for _, r := range w.records {
		if idsToDrop[r.ID] {
			removed = append(removed, r)
			w.tokens -= r.TokenCount
			continue
		}
		kept = append(kept, r)
	}
	w.records = kept

	return removed
}

// GetMessages returns LLM-ready messages in insertion order. A message with
// tool_calls and empty content omits the content field.
func (w *Window) GetMessages() []LLMMessage {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]LLMMessage, 0, len(w.records))
	for _, r := range w.records {
		msg := LLMMessage{Role: string(r.Role), ToolCallID: r.ToolCallID}
		if len(r.ToolCalls) > 0 {
			for _, tc := range r.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, LLMToolCall{
					ID: tc.ID,
					Function: LLMToolCallFunc{
						Name:      tc.Name,
						Arguments: tc.Args,
					},
				})
			}
			if r.Content != "" {
				content := r.Content
				msg.Content = &content
			}
		} else {
			content := r.Content
			msg.Content = &content
		}
		out = append(out, msg)
	}
	return out
}

// GetItems returns the raw records in insertion order.
func (w *Window) GetItems() []*Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Record, len(w.records))
	copy(out, w.records)
	return out
}

// GetRecent returns the last n records (or all, if fewer).
func (w *Window) GetRecent(n int) []*Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n <= 0 {
		return nil
	}
	if n >= len(w.records) {
		out := make([]*Record, len(w.records))
		copy(out, w.records)
		return out
	}
	start := len(w.records) - n
	out := make([]*Record, n)
	copy(out, w.records[start:])
	return out
}

// Clear removes all records.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = nil
	w.tokens = 0
}

// TokenUsage returns current total token usage.
func (w *Window) TokenUsage() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tokens
}

// Size returns the number of records held.
func (w *Window) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

// Budget returns the configured token budget.
func (w *Window) Budget() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.budget
}
