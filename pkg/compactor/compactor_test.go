package compactor_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkveil/ctxkernel/pkg/compactor"
	"github.com/arkveil/ctxkernel/pkg/persistent"
	"github.com/arkveil/ctxkernel/pkg/tokencount"
	"github.com/arkveil/ctxkernel/pkg/working"
)

type fakeMemory struct {
	entries []*working.Entry
	records []*persistent.Record
	saveErr error
}

func (f *fakeMemory) AddWorkingMemory(entry *working.Entry) ([]*working.Entry, bool) {
	f.entries = append(f.entries, entry)
	return nil, true
}

func (f *fakeMemory) SavePersistent(ctx context.Context, record *persistent.Record) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.records = append(f.records, record)
	return record.ID, nil
}

type fakeSegments struct {
	stored []compactor.Segment
	err    error
}

func (f *fakeSegments) Store(ctx context.Context, seg compactor.Segment) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.stored = append(f.stored, seg)
	return "seg-" + seg.Role, nil
}

type fakeSummarizer struct {
	out string
	err error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, content string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func longMessages() []compactor.Message {
	return []compactor.Message{
		{Role: "system", Content: "you are a helpful assistant"},
		{Role: "user", Content: "this is a fairly long user message meant to push utilization over the configured threshold for this test case"},
		{Role: "assistant", Content: "this is an equally long assistant reply meant to push utilization over the configured threshold too", Importance: 0.9},
	}
}

func TestCompactor_CheckAndCompactSkipsBelowThreshold(t *testing.T) {
	mem := &fakeMemory{}
	c := compactor.New(compactor.Config{Enabled: true, Threshold: 0.85}, mem, tokencount.NewEstimatorCounter(), nil, nil)

	ran, err := c.CheckAndCompact(context.Background(), "s1", longMessages(), 1_000_000)
	require.NoError(t, err)
	assert.False(t, ran, "expected no compaction under threshold")
	assert.Empty(t, mem.entries)
}

func TestCompactor_CheckAndCompactRunsAboveThreshold(t *testing.T) {
	mem := &fakeMemory{}
	counter := tokencount.NewEstimatorCounter()
	msgs := longMessages()
	current := counter.CountMessages(toTokencountMessages(msgs))

	c := compactor.New(compactor.Config{Enabled: true, Threshold: 0.5}, mem, counter, nil, nil)

	ran, err := c.CheckAndCompact(context.Background(), "s1", msgs, current)
	require.NoError(t, err)
	assert.True(t, ran, "expected compaction to run at/above threshold")

	// system message excluded, 2 non-system messages compacted.
	require.Len(t, mem.entries, 2)
	for _, e := range mem.entries {
		assert.Equal(t, working.EntrySummary, e.Type)
	}
}

func TestCompactor_CheckAndCompactHonorsCooldown(t *testing.T) {
	mem := &fakeMemory{}
	counter := tokencount.NewEstimatorCounter()
	msgs := longMessages()
	current := counter.CountMessages(toTokencountMessages(msgs))

	c := compactor.New(compactor.Config{Enabled: true, Threshold: 0.5, CooldownSeconds: 300}, mem, counter, nil, nil)

	ran1, err := c.CheckAndCompact(context.Background(), "s1", msgs, current)
	require.NoError(t, err)
	require.True(t, ran1, "expected first compaction to run")
	entriesAfterFirst := len(mem.entries)

	ran2, err := c.CheckAndCompact(context.Background(), "s1", msgs, current)
	require.NoError(t, err)
	assert.False(t, ran2, "expected second compaction to be suppressed by cooldown")
	assert.Len(t, mem.entries, entriesAfterFirst)
}

func TestCompactor_PromotesHighImportanceMessagesToL3(t *testing.T) {
	mem := &fakeMemory{}
	c := compactor.New(compactor.Config{Enabled: true, HighImportance: 0.75}, mem, tokencount.NewEstimatorCounter(), nil, nil)

	err := c.Compact(context.Background(), "s1", longMessages())
	require.NoError(t, err)
	assert.Len(t, mem.records, 1, "expected exactly one high-importance message promoted to L3")
}

func TestCompactor_UsesSummarizerWhenWired(t *testing.T) {
	mem := &fakeMemory{}
	sm := &fakeSummarizer{out: "condensed summary"}
	c := compactor.New(compactor.Config{Enabled: true, HighImportance: 0.75}, mem, tokencount.NewEstimatorCounter(), nil, sm)

	require.NoError(t, c.Compact(context.Background(), "s1", longMessages()))
	require.Len(t, mem.records, 1)
	assert.Equal(t, "condensed summary", mem.records[0].Content)
}

func TestCompactor_FallsBackToExcerptWhenSummarizerFails(t *testing.T) {
	mem := &fakeMemory{}
	sm := &fakeSummarizer{err: errors.New("llm down")}
	c := compactor.New(compactor.Config{Enabled: true, HighImportance: 0.75}, mem, tokencount.NewEstimatorCounter(), nil, sm)

	err := c.Compact(context.Background(), "s1", longMessages())
	require.NoError(t, err, "a failing summarizer must degrade, not raise")
	assert.Len(t, mem.records, 1, "expected the rule-based fallback to still promote the record")
}

func TestCompactor_StoresSegmentsAndBackReferencesThem(t *testing.T) {
	mem := &fakeMemory{}
	seg := &fakeSegments{}
	c := compactor.New(compactor.Config{Enabled: true}, mem, tokencount.NewEstimatorCounter(), seg, nil)

	require.NoError(t, c.Compact(context.Background(), "s1", longMessages()))
	require.Len(t, seg.stored, 2, "expected 2 stored segments (system message excluded)")

	for _, e := range mem.entries {
		var hasBackref bool
		for _, tag := range e.Tags {
			if strings.HasPrefix(tag, "segment:") {
				hasBackref = true
			}
		}
		assert.True(t, hasBackref, "expected entry %+v to carry a segment back-reference tag", e)
	}
}

func TestCompactor_StrategyNoneNeverCompacts(t *testing.T) {
	mem := &fakeMemory{}
	c := compactor.New(compactor.Config{Enabled: true, Strategy: compactor.StrategyNone, Threshold: 0.01}, mem, tokencount.NewEstimatorCounter(), nil, nil)

	ran, err := c.CheckAndCompact(context.Background(), "s1", longMessages(), 1)
	require.NoError(t, err)
	assert.False(t, ran, "expected strategy=none to never compact")

	require.NoError(t, c.Compact(context.Background(), "s1", longMessages()))
	assert.Empty(t, mem.entries, "expected strategy=none to block direct Compact calls too")
}

func TestCompactor_ExplicitStrategySkipsCheckAndCompact(t *testing.T) {
	mem := &fakeMemory{}
	c := compactor.New(compactor.Config{Enabled: true, Strategy: compactor.StrategyExplicit, Threshold: 0.01}, mem, tokencount.NewEstimatorCounter(), nil, nil)

	ran, err := c.CheckAndCompact(context.Background(), "s1", longMessages(), 1)
	require.NoError(t, err)
	assert.False(t, ran, "expected explicit strategy to never auto-compact")

	require.NoError(t, c.Compact(context.Background(), "s1", longMessages()))
	assert.Len(t, mem.entries, 2, "expected a direct Compact call to still run under explicit strategy")
}

func toTokencountMessages(msgs []compactor.Message) []tokencount.Message {
	out := make([]tokencount.Message, len(msgs))
	for i, m := range msgs {
		out[i] = tokencount.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
