package compactor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arkveil/ctxkernel/pkg/persistent"
	"github.com/arkveil/ctxkernel/pkg/tokencount"
	"github.com/arkveil/ctxkernel/pkg/working"
)

// Compactor compresses the assembled context into working-memory
// summaries once utilization crosses a threshold, promoting
// high-importance messages into persistent facts along the way.
type Compactor struct {
	cfg        Config
	memory     MemoryWriter
	counter    tokencount.Counter
	segments   SegmentStore // optional
	summarizer Summarizer   // optional

	mu             sync.Mutex
	lastCompaction map[string]time.Time
}

// New creates a Compactor. segments and summarizer may be nil.
func New(cfg Config, memory MemoryWriter, counter tokencount.Counter, segments SegmentStore, summarizer Summarizer) *Compactor {
	cfg.SetDefaults()
	return &Compactor{
		cfg:            cfg,
		memory:         memory,
		counter:        counter,
		segments:       segments,
		summarizer:     summarizer,
		lastCompaction: make(map[string]time.Time),
	}
}

// CheckAndCompact compacts sessionID's current context if utilization
// is at or above the configured threshold and no cooldown is active.
// Returns whether compaction ran. Only the silent strategy triggers
// here; explicit and none never compact through this path.
func (c *Compactor) CheckAndCompact(ctx context.Context, sessionID string, currentContext []Message, maxTokens int) (bool, error) {
	if !c.cfg.Enabled || c.cfg.Strategy != StrategySilent {
		return false, nil
	}

	if c.usageRatio(currentContext, maxTokens) < c.cfg.Threshold {
		return false, nil
	}

	if c.inCooldown(sessionID) {
		return false, nil
	}

	if err := c.Compact(ctx, sessionID, currentContext); err != nil {
		return false, err
	}
	c.stamp(sessionID)
	return true, nil
}

// Compact runs compaction without the threshold and cooldown checks
// (under StrategyNone it does nothing): it excludes system
// messages, backs up the rest as segments when a SegmentStore is
// wired, writes one truncated L2 summary entry per message, and
// promotes messages at or above HighImportance to L3 facts.
func (c *Compactor) Compact(ctx context.Context, sessionID string, currentContext []Message) error {
	if c.cfg.Strategy == StrategyNone {
		return nil
	}

	var compressible []Message
	for _, m := range currentContext {
		if m.Role != "system" {
			compressible = append(compressible, m)
		}
	}
	if len(compressible) == 0 {
		return nil
	}

	segmentIDs := make([]string, len(compressible))
	if c.segments != nil {
		for i, m := range compressible {
			id, err := c.segments.Store(ctx, Segment{Content: m.Content, Role: m.Role, SessionID: sessionID})
			if err != nil {
				slog.Warn("compactor: failed to store segment, continuing without back-reference", "session", sessionID, "error", err)
				continue
			}
			segmentIDs[i] = id
		}
	}

	for i, m := range compressible {
		excerpt := c.excerpt(m.Content)

		tags := []string{"compacted"}
		if segmentIDs[i] != "" {
			tags = append(tags, "segment:"+segmentIDs[i])
		}

		entry := &working.Entry{
			ID:         fmt.Sprintf("compacted:%s:%d", sessionID, i),
			Type:       working.EntrySummary,
			Content:    excerpt,
			Importance: m.Importance,
			TokenCount: c.counter.Count(excerpt),
			Tags:       tags,
			SessionID:  sessionID,
		}
		c.memory.AddWorkingMemory(entry)

		if m.Importance >= c.cfg.HighImportance {
			c.promoteFact(ctx, sessionID, i, m, excerpt)
		}
	}

	return nil
}

// promoteFact summarizes a high-importance message (LLM if wired, a
// rule-based excerpt otherwise) and saves it as an L3 record.
func (c *Compactor) promoteFact(ctx context.Context, sessionID string, index int, m Message, excerpt string) {
	summary := excerpt
	if c.summarizer != nil {
		s, err := c.summarizer.Summarize(ctx, m.Content)
		if err != nil {
			slog.Warn("compactor: LLM summarization failed, falling back to rule-based excerpt", "session", sessionID, "error", err)
		} else {
			summary = s
		}
	}

	record := &persistent.Record{
		ID:         fmt.Sprintf("fact:%s:%d", sessionID, index),
		Content:    summary,
		SessionID:  sessionID,
		Importance: m.Importance,
		Tags:       []string{"compacted_fact"},
	}
	if _, err := c.memory.SavePersistent(ctx, record); err != nil {
		slog.Warn("compactor: failed to promote high-importance message to L3", "session", sessionID, "error", err)
	}
}

func (c *Compactor) usageRatio(currentContext []Message, maxTokens int) float64 {
	if maxTokens <= 0 {
		return 0
	}
	msgs := make([]tokencount.Message, len(currentContext))
	for i, m := range currentContext {
		msgs[i] = tokencount.Message{Role: m.Role, Content: m.Content}
	}
	return float64(c.counter.CountMessages(msgs)) / float64(maxTokens)
}

func (c *Compactor) inCooldown(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastCompaction[sessionID]
	if !ok {
		return false
	}
	return time.Since(last) < time.Duration(c.cfg.CooldownSeconds)*time.Second
}

func (c *Compactor) stamp(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCompaction[sessionID] = time.Now()
}

func (c *Compactor) excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= c.cfg.ExcerptRunes {
		return content
	}
	return string(runes[:c.cfg.ExcerptRunes])
}
