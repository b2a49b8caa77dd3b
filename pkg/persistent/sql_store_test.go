package persistent_test

import (
	"context"
	"testing"

	"github.com/arkveil/ctxkernel/pkg/persistent"
)

func TestSQLStore_SaveAndSearch(t *testing.T) {
	s, err := persistent.NewSQLStore(persistent.SQLConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	id, err := s.Save(ctx, &persistent.Record{
		Content:        "paris is the capital of france",
		SessionID:      "s1",
		Importance:     0.7,
		Tags:           []string{"geo", "fact"},
		SourceEntryIDs: []string{"e1"},
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a generated id")
	}

	results, err := s.Search(ctx, "capital", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.ID != id || r.SessionID != "s1" || r.Importance != 0.7 {
		t.Fatalf("unexpected record returned: %+v", r)
	}
	if len(r.Tags) != 2 || len(r.SourceEntryIDs) != 1 {
		t.Fatalf("expected tags and source entry ids to round-trip, got %+v", r)
	}
}

func TestSQLStore_SearchNoMatch(t *testing.T) {
	s, err := persistent.NewSQLStore(persistent.SQLConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, err := s.Save(ctx, &persistent.Record{Content: "hello world"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	results, err := s.Search(ctx, "nonexistent", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no matches, got %+v", results)
	}
}

func TestSQLStore_RejectsUnsupportedDialect(t *testing.T) {
	_, err := persistent.NewSQLStore(persistent.SQLConfig{Driver: "oracle"})
	if err == nil {
		t.Fatalf("expected an error for an unsupported dialect")
	}
}
