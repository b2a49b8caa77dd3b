package working

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config configures a Store's budget and promotion gate.
type Config struct {
	// TokenBudget is the maximum total token cost the store will hold.
	TokenBudget int

	// ImportanceGate is the minimum importance an entry promoted from L1
	// eviction must carry to be accepted. Candidates below the gate are
	// discarded silently. A gate of 0 accepts all promotions.
	ImportanceGate float64

	// DefaultTTL, when non-zero, is applied to entries added without an
	// explicit expiry.
	DefaultTTL time.Duration
}

// SetDefaults fills unset fields with the store's defaults.
func (c *Config) SetDefaults() {
	if c.TokenBudget <= 0 {
		c.TokenBudget = 4000
	}
	if c.ImportanceGate < 0 {
		c.ImportanceGate = 0
	}
}

// EvictionHook is invoked with entries evicted by a single add call.
type EvictionHook func(evicted []*Entry)

// Store holds L2 entries keyed by id, with a secondary index by type.
//
// Store is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	cfg    Config
	order  []string // insertion order of entry ids, oldest first
	byID   map[string]*Entry
	tokens int
	hooks  []EvictionHook

	now func() time.Time // overridable for tests
}

// New creates an empty Store with the given configuration.
func New(cfg Config) *Store {
	cfg.SetDefaults()
	return &Store{
		cfg:  cfg,
		byID: make(map[string]*Entry),
		now:  time.Now,
	}
}

// OnEviction installs a hook invoked with each Add call's evicted entries.
func (s *Store) OnEviction(hook EvictionHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// PromotionGate reports the configured importance gate for L1->L2 promotion.
func (s *Store) PromotionGate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.ImportanceGate
}

// Accepts reports whether an entry with the given importance clears the
// promotion gate.
func (s *Store) Accepts(importance float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return importance >= s.cfg.ImportanceGate
}

// Add inserts entry, evicting lower-importance entries as needed to stay
// within budget. If entry itself is the lowest-importance entry once the
// budget would be exceeded, it is rejected and not stored; Add returns
// (nil, false) in that case.
func (s *Store) Add(entry *Entry) (evicted []*Entry, stored bool) {
	s.mu.Lock()

	s.reapExpiredLocked()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if entry.Expiry.IsZero() && s.cfg.DefaultTTL > 0 {
		entry.Expiry = entry.CreatedAt.Add(s.cfg.DefaultTTL)
	}

	plan, ok := s.planEvictionLocked(entry)
	if !ok {
		// Accepting would require evicting an entry whose importance is
		// >= the incoming one, which would still leave nothing strictly
		// lower to evict; the whole add is a no-op (§8: L2.token_usage
		// must never exceed L2.budget, so a partial eviction that still
		// doesn't fit is never committed).
		s.mu.Unlock()
		return nil, false
	}

	var removed []*Entry
	for _, id := range plan {
		removed = append(removed, s.byID[id])
		s.removeLocked(id)
	}

	s.order = append(s.order, entry.ID)
	s.byID[entry.ID] = entry
	s.tokens += entry.TokenCount

	hooks := append([]EvictionHook(nil), s.hooks...)
	s.mu.Unlock()

	if len(removed) > 0 {
		for _, h := range hooks {
			h(removed)
		}
	}
	return removed, true
}

// planEvictionLocked computes the ordered list of entry ids that must be
// evicted, lowest-importance first, for entry to fit within budget. It
// returns ok=false if the budget cannot be satisfied without evicting an
// entry whose importance is >= entry's — in which case the caller must
// reject the add outright rather than apply a partial eviction. Caller
// holds s.mu; this method does not mutate store state.
func (s *Store) planEvictionLocked(entry *Entry) (ids []string, ok bool) {
	candidates := make([]string, len(s.order))
	copy(candidates, s.order)
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := s.byID[candidates[i]], s.byID[candidates[j]]
		if a.Importance != b.Importance {
			return a.Importance < b.Importance
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	freed := 0
	needed := s.tokens + entry.TokenCount - s.cfg.TokenBudget
	for _, id := range candidates {
		if needed <= 0 {
			break
		}
		e := s.byID[id]
		if e.Importance >= entry.Importance {
			return nil, false
		}
		ids = append(ids, id)
		freed += e.TokenCount
		needed -= e.TokenCount
	}
	if needed > 0 {
		// Even evicting every strictly-lower-importance entry can't make
		// room; reject rather than exceed budget.
		return nil, false
	}
	return ids, true
}

// removeLocked deletes the entry with the given id from both the id index
// and the insertion-order slice, and reclaims its tokens. Caller holds s.mu.
func (s *Store) removeLocked(id string) {
	e, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	s.tokens -= e.TokenCount
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// reapExpiredLocked drops entries past their absolute expiry and reclaims
// their tokens. Caller holds s.mu.
func (s *Store) reapExpiredLocked() {
	now := s.now()
	var expired []string
	for _, id := range s.order {
		if s.byID[id].expired(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		s.removeLocked(id)
	}
}

// GetEntries returns non-expired entries sorted by importance descending,
// then insertion order. If limit > 0, only the first limit are returned.
func (s *Store) GetEntries(limit int) []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reapExpiredLocked()

	out := make([]*Entry, 0, len(s.order))
	posByID := make(map[string]int, len(s.order))
	for i, id := range s.order {
		posByID[id] = i
		out = append(out, s.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return posByID[out[i].ID] < posByID[out[j].ID]
	})

	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// GetByType returns non-expired entries of the given type, in the same
// order as GetEntries.
func (s *Store) GetByType(t EntryType) []*Entry {
	all := s.GetEntries(0)
	out := make([]*Entry, 0, len(all))
	for _, e := range all {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the entry with the given id, or nil if absent or expired.
func (s *Store) Find(id string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reapExpiredLocked()
	e, ok := s.byID[id]
	if !ok {
		return nil
	}
	e.AccessCount++
	return e
}

// Remove deletes the entry with the given id, if present.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.byID = make(map[string]*Entry)
	s.tokens = 0
}

// TokenUsage returns current total token usage across non-expired entries.
func (s *Store) TokenUsage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reapExpiredLocked()
	return s.tokens
}

// Size returns the number of non-expired entries held.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reapExpiredLocked()
	return len(s.order)
}

// Budget returns the configured token budget.
func (s *Store) Budget() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.TokenBudget
}
