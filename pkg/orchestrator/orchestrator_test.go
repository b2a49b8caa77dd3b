package orchestrator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/arkveil/ctxkernel/pkg/budget"
	"github.com/arkveil/ctxkernel/pkg/contextblock"
	"github.com/arkveil/ctxkernel/pkg/orchestrator"
	"github.com/arkveil/ctxkernel/pkg/tokencount"
)

type lenCounter struct{}

func (lenCounter) Count(text string) int                       { return len(text) }
func (lenCounter) CountMessages(msgs []tokencount.Message) int { return 0 }

type stubSource struct {
	blocks []*contextblock.Block
	err    error
}

func (s *stubSource) Collect(ctx context.Context, query string, budget int, counter tokencount.Counter) ([]*contextblock.Block, error) {
	return s.blocks, s.err
}

func TestOrchestrator_AssembleOrdersSourcesDeterministically(t *testing.T) {
	mgr := budget.New(budget.Config{Window: 8000, Counter: lenCounter{}})

	o := orchestrator.New(orchestrator.Config{
		Budget:  mgr,
		Counter: lenCounter{},
		Sources: map[string]orchestrator.Source{
			"retrieval": &stubSource{blocks: []*contextblock.Block{{Role: "system", Content: "retrieved fact", Source: "retrieval"}}},
			"L1_recent": &stubSource{blocks: []*contextblock.Block{{Role: "user", Content: "recent turn", Source: "L1_recent"}}},
		},
	})

	result := o.Assemble(context.Background(), "query", "you are a helpful assistant")

	if len(result.Messages) < 3 {
		t.Fatalf("expected system prompt + 2 source blocks, got %+v", result.Messages)
	}
	if result.Messages[0].Role != "system" || result.Messages[0].Content != "you are a helpful assistant" {
		t.Fatalf("expected system prompt first, got %+v", result.Messages[0])
	}
	// L1_recent precedes retrieval in sourceOrder.
	foundRecent, foundRetrieval := -1, -1
	for i, m := range result.Messages {
		if m.Content == "recent turn" {
			foundRecent = i
		}
		if m.Content == "retrieved fact" {
			foundRetrieval = i
		}
	}
	if foundRecent == -1 || foundRetrieval == -1 || foundRecent > foundRetrieval {
		t.Fatalf("expected L1_recent before retrieval, got %+v", result.Messages)
	}
}

func TestOrchestrator_InsertsSeparatorBetweenSameSourceFragments(t *testing.T) {
	mgr := budget.New(budget.Config{Window: 8000, Counter: lenCounter{}})
	o := orchestrator.New(orchestrator.Config{
		Budget:  mgr,
		Counter: lenCounter{},
		Sources: map[string]orchestrator.Source{
			"retrieval": &stubSource{blocks: []*contextblock.Block{
				{Role: "system", Content: "first fragment", Source: "retrieval"},
				{Role: "system", Content: "second fragment", Source: "retrieval"},
			}},
		},
	})

	result := o.Assemble(context.Background(), "q", "system prompt")
	var sawSeparator bool
	for _, m := range result.Messages {
		if m.Content == "---" {
			sawSeparator = true
		}
	}
	if !sawSeparator {
		t.Fatalf("expected a separator between same-source fragments, got %+v", result.Messages)
	}
}

func TestOrchestrator_DegradesWhenASourceFails(t *testing.T) {
	mgr := budget.New(budget.Config{Window: 8000, Counter: lenCounter{}})
	o := orchestrator.New(orchestrator.Config{
		Budget:  mgr,
		Counter: lenCounter{},
		Sources: map[string]orchestrator.Source{
			"retrieval": &stubSource{err: errors.New("backend down")},
			"user_input": &stubSource{blocks: []*contextblock.Block{
				{Role: "user", Content: "hello", Source: "user_input"},
			}},
		},
	})

	result := o.Assemble(context.Background(), "q", "sp")
	var sawHello bool
	for _, m := range result.Messages {
		if m.Content == "hello" {
			sawHello = true
		}
	}
	if !sawHello {
		t.Fatalf("expected the surviving source's block to still appear, got %+v", result.Messages)
	}
}

func TestOrchestrator_MarksLargeBlocksForCacheControl(t *testing.T) {
	mgr := budget.New(budget.Config{Window: 8000, Counter: lenCounter{}})
	bigContent := make([]byte, 300)
	for i := range bigContent {
		bigContent[i] = 'a'
	}

	o := orchestrator.New(orchestrator.Config{
		Budget:              mgr,
		Counter:             lenCounter{},
		CacheControlEnabled: true,
		LargeBlockTokens:    200,
		Sources: map[string]orchestrator.Source{
			"retrieval": &stubSource{blocks: []*contextblock.Block{
				{Role: "system", Content: string(bigContent), Source: "retrieval", TokenCount: 300},
			}},
		},
	})

	result := o.Assemble(context.Background(), "q", "sp")
	if !result.Messages[0].CacheControl {
		t.Fatalf("expected the system prompt to carry a cache-control marker when enabled")
	}

	var sawBigBlockMarker bool
	for _, m := range result.Messages {
		if len(m.Content) == 300 && m.CacheControl {
			sawBigBlockMarker = true
		}
	}
	if !sawBigBlockMarker {
		t.Fatalf("expected the large block to carry a cache-control marker, got %+v", result.Messages)
	}
}
