package memorycore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/arkveil/ctxkernel/pkg/persistent"
	"github.com/arkveil/ctxkernel/pkg/tokencount"
	"github.com/arkveil/ctxkernel/pkg/window"
	"github.com/arkveil/ctxkernel/pkg/working"
)

// Config configures a Core.
type Config struct {
	L1Budget int
	L2       working.Config
	Counter  tokencount.Counter

	// L3 is optional; when nil, SavePersistent/SearchPersistent return
	// empty results and EndSession only clears L1 and L2, rather than
	// erroring (spec §7: a missing optional collaborator degrades, it never
	// raises).
	L3 persistent.Store

	// SessionID tags entries promoted into L2 and records flushed to L3.
	SessionID string

	// DurableOnEvict, when true, queues entries evicted from L2 (for
	// capacity, not expiry) as pending L3 writes, drained by FlushPending.
	DurableOnEvict bool
}

// Core wires L1 (window.Window), L2 (working.Store), and an optional L3
// (persistent.Store) into a single memory surface, with importance-gated
// promotion on L1 eviction and optional durable queuing on L2 eviction.
type Core struct {
	cfg Config

	l1      *window.Window
	l2      *working.Store
	l3      persistent.Store
	counter tokencount.Counter

	mu      sync.Mutex
	ctxKV   map[string]string
	pending []*persistent.Record

	parentMu sync.RWMutex
	parent   *Core
	children map[string]*Core
}

// New creates a Core from cfg.
func New(cfg Config) *Core {
	cfg.L2.SetDefaults()
	if cfg.Counter == nil {
		cfg.Counter = tokencount.NewEstimatorCounter()
	}
	c := &Core{
		cfg:      cfg,
		l1:       window.New(cfg.L1Budget, cfg.Counter),
		l2:       working.New(cfg.L2),
		l3:       cfg.L3,
		counter:  cfg.Counter,
		ctxKV:    make(map[string]string),
		children: make(map[string]*Core),
	}
	c.l1.OnEviction(c.promoteToL2)
	c.l2.OnEviction(c.queueForFlush)
	return c
}

// AddMessage appends a chat message to L1. importance, if given, is carried
// on the record's metadata so a later L1 eviction can promote it into L2
// at the right weight; omitted, it defaults to 0.5 on promotion.
func (c *Core) AddMessage(role window.Role, content string, importance ...float64) []*window.Record {
	rec := &window.Record{
		Role:       role,
		Content:    content,
		TokenCount: c.counter.Count(content),
	}
	if len(importance) > 0 {
		rec.Metadata = map[string]any{"importance": importance[0]}
	}
	return c.l1.Append(rec)
}

// promoteToL2 is the L1 eviction hook: each evicted record becomes an L2
// message entry if it clears the importance gate (spec §4.5 / scenario 2).
func (c *Core) promoteToL2(evicted []*window.Record) {
	for _, r := range evicted {
		importance := defaultPromotedImportance
		if r.Metadata != nil {
			if v, ok := r.Metadata["importance"].(float64); ok {
				importance = v
			}
		}
		if !c.l2.Accepts(importance) {
			continue
		}
		c.l2.Add(&working.Entry{
			Type:             working.EntryMessage,
			Content:          r.Content,
			Importance:       importance,
			TokenCount:       r.TokenCount,
			SourceMessageIDs: []string{r.ID},
			SessionID:        c.cfg.SessionID,
		})
	}
}

// queueForFlush is the L2 eviction hook: entries evicted for capacity (not
// expiry reaping, which never invokes this hook) are queued as pending L3
// writes when DurableOnEvict is set.
func (c *Core) queueForFlush(evicted []*working.Entry) {
	if !c.cfg.DurableOnEvict {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range evicted {
		c.pending = append(c.pending, entryToRecord(e, c.cfg.SessionID))
	}
}

func entryToRecord(e *working.Entry, sessionID string) *persistent.Record {
	return &persistent.Record{
		Content:        e.Content,
		SessionID:      sessionID,
		Importance:     e.Importance,
		SourceEntryIDs: []string{e.ID},
	}
}

// AddWorkingMemory inserts entry directly into L2.
func (c *Core) AddWorkingMemory(entry *working.Entry) (evicted []*working.Entry, stored bool) {
	return c.l2.Add(entry)
}

// GetWorkingMemory returns L2 entries, most important first, capped at
// limit (0 = unbounded).
func (c *Core) GetWorkingMemory(limit int) []*working.Entry {
	return c.l2.GetEntries(limit)
}

// SavePersistent writes record to L3. With no L3 wired, it is a no-op that
// returns an empty id and no error.
func (c *Core) SavePersistent(ctx context.Context, record *persistent.Record) (string, error) {
	if c.l3 == nil {
		return "", nil
	}
	return c.l3.Save(ctx, record)
}

// SearchPersistent searches L3. With no L3 wired, it returns an empty
// result set and no error.
func (c *Core) SearchPersistent(ctx context.Context, query string, limit int) ([]*persistent.Record, error) {
	if c.l3 == nil {
		return nil, nil
	}
	return c.l3.Search(ctx, query, limit)
}

// Search fans out a substring query across L1, L2, and (when wired) L3,
// merging results with L1 in insertion order (oldest first), L2 by importance, and L3 as
// its store ranks them; L3 semantic search is used in addition to
// substring search when the store advertises it.
func (c *Core) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	var out []Result
	q := strings.ToLower(query)

	for _, r := range c.l1.GetItems() {
		if q == "" || strings.Contains(strings.ToLower(r.Content), q) {
			out = append(out, Result{Source: "l1", ID: r.ID, Content: r.Content, CreatedAt: r.Timestamp})
		}
	}

	for _, e := range c.l2.GetEntries(0) {
		if q == "" || strings.Contains(strings.ToLower(e.Content), q) {
			out = append(out, Result{Source: "l2", ID: e.ID, Content: e.Content, Importance: e.Importance, CreatedAt: e.CreatedAt})
		}
	}

	if c.l3 != nil {
		records, err := c.l3.Search(ctx, query, limit)
		if err != nil {
			return nil, fmt.Errorf("memorycore: search l3: %w", err)
		}
		seen := make(map[string]bool, len(records))
		for _, r := range records {
			seen[r.ID] = true
			out = append(out, Result{Source: "l3", ID: r.ID, Content: r.Content, Importance: r.Importance, CreatedAt: r.CreatedAt})
		}
		if sem, ok := persistent.SupportsSemantic(c.l3); ok {
			semantic, err := sem.SearchSemantic(ctx, query, limit, 0)
			if err != nil {
				return nil, fmt.Errorf("memorycore: semantic search l3: %w", err)
			}
			for _, r := range semantic {
				if seen[r.ID] {
					continue
				}
				out = append(out, Result{Source: "l3", ID: r.ID, Content: r.Content, Importance: r.Importance, CreatedAt: r.CreatedAt})
			}
		}
	}

	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// EndSession flushes every L2 entry to L3 (one record per entry, tagged
// with source_entry_ids = [entry.id]), then clears L1 and L2, returning the
// number of records persisted (spec scenario 6). With no L3 wired, L1 and
// L2 are still cleared but nothing is persisted.
func (c *Core) EndSession(ctx context.Context) (int, error) {
	entries := c.l2.GetEntries(0)

	persistedCount := 0
	if c.l3 != nil {
		for _, e := range entries {
			if _, err := c.l3.Save(ctx, entryToRecord(e, c.cfg.SessionID)); err != nil {
				return persistedCount, fmt.Errorf("memorycore: end session flush: %w", err)
			}
			persistedCount++
		}
	}

	c.l1.Clear()
	c.l2.Clear()
	return persistedCount, nil
}

// FlushPending drains entries queued by L2 capacity evictions (when
// DurableOnEvict is set) to L3, returning the number flushed. A nil L3
// drains the queue without writing anything.
func (c *Core) FlushPending(ctx context.Context) (int, error) {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}
	if c.l3 == nil {
		return 0, nil
	}

	flushed := 0
	for _, rec := range batch {
		if _, err := c.l3.Save(ctx, rec); err != nil {
			// Re-queue the remainder so a transient L3 failure doesn't
			// silently drop durable candidates.
			remainder := append([]*persistent.Record(nil), batch[flushed:]...)
			c.mu.Lock()
			c.pending = append(remainder, c.pending...)
			c.mu.Unlock()
			return flushed, fmt.Errorf("memorycore: flush pending: %w", err)
		}
		flushed++
	}
	return flushed, nil
}

// SetContext stores a checkpointing key/value pair local to this Core.
func (c *Core) SetContext(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctxKV[key] = value
}

// Read looks up key in this Core's context store, falling through to the
// parent (and its parent, and so on) when absent locally. Lookup-only: no
// state is copied between levels.
func (c *Core) Read(key string) (string, bool) {
	c.mu.Lock()
	v, ok := c.ctxKV[key]
	c.mu.Unlock()
	if ok {
		return v, true
	}

	c.parentMu.RLock()
	parent := c.parent
	c.parentMu.RUnlock()
	if parent == nil {
		return "", false
	}
	return parent.Read(key)
}

// RegisterChild attaches child under id, making this Core its parent for
// Read fallthrough.
func (c *Core) RegisterChild(id string, child *Core) {
	c.parentMu.Lock()
	c.children[id] = child
	c.parentMu.Unlock()

	child.parentMu.Lock()
	child.parent = c
	child.parentMu.Unlock()
}

// UnregisterChild detaches the child previously registered under id.
func (c *Core) UnregisterChild(id string) {
	c.parentMu.Lock()
	child, ok := c.children[id]
	delete(c.children, id)
	c.parentMu.Unlock()

	if ok {
		child.parentMu.Lock()
		child.parent = nil
		child.parentMu.Unlock()
	}
}

// ExportSnapshot serializes L1, L2, and the context store to a JSON-ready
// value.
func (c *Core) ExportSnapshot() *Snapshot {
	c.mu.Lock()
	ctxCopy := make(map[string]string, len(c.ctxKV))
	for k, v := range c.ctxKV {
		ctxCopy[k] = v
	}
	c.mu.Unlock()

	return &Snapshot{
		L1Records: c.l1.GetItems(),
		L1Budget:  c.l1.Budget(),
		L2Entries: c.l2.GetEntries(0),
		Context:   ctxCopy,
	}
}

// RestoreSnapshot replaces this Core's L1, L2, and context state with s's.
// Entries are re-added through Append/Add so budgets and ordering
// invariants are re-derived rather than copied blindly.
func (c *Core) RestoreSnapshot(s *Snapshot) {
	c.l1.Clear()
	c.l2.Clear()

	if s.L1Budget > 0 {
		c.l1.SetTokenBudget(s.L1Budget)
	}
	recs := append([]*window.Record(nil), s.L1Records...)
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
	for _, r := range recs {
		c.l1.Append(r)
	}

	entries := append([]*working.Entry(nil), s.L2Entries...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	for _, e := range entries {
		c.l2.Add(e)
	}

	c.mu.Lock()
	c.ctxKV = make(map[string]string, len(s.Context))
	for k, v := range s.Context {
		c.ctxKV[k] = v
	}
	c.mu.Unlock()
}

// L1TokenUsage, L2TokenUsage report each tier's current usage, for budget
// reporting and diagnostics.
func (c *Core) L1TokenUsage() int { return c.l1.TokenUsage() }
func (c *Core) L2TokenUsage() int { return c.l2.TokenUsage() }
