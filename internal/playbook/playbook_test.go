package playbook

import (
	"context"
	"errors"
	"testing"
)

func TestLocalTable_Retrieve_FiltersByPatternKind(t *testing.T) {
	table := DefaultTable()

	entries, err := table.Retrieve(context.Background(), Query{PatternKind: "LATENCY_SPIKE"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != "THROTTLE" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestLocalTable_Retrieve_NoMatch(t *testing.T) {
	table := DefaultTable()

	entries, err := table.Retrieve(context.Background(), Query{PatternKind: "NONEXISTENT"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no matches, got %d", len(entries))
	}
}

func TestLocalTable_Retrieve_RespectsTopK(t *testing.T) {
	table := NewLocalTable([]Entry{
		{PatternKind: "X", Kind: "A"},
		{PatternKind: "X", Kind: "B"},
		{PatternKind: "X", Kind: "C"},
	})

	entries, err := table.Retrieve(context.Background(), Query{PatternKind: "X", TopK: 2})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}

type erroringRetriever struct{}

func (erroringRetriever) Retrieve(ctx context.Context, q Query) ([]Entry, error) {
	return nil, errors.New("boom")
}

func TestHTTPClient_Retrieve_FallsBackOnRemoteFailure(t *testing.T) {
	fallback := DefaultTable()
	c := NewHTTPClient("http://127.0.0.1:1", fallback) // nothing listens here

	entries, err := c.Retrieve(context.Background(), Query{PatternKind: "RETRY_STORM"})
	if err != nil {
		t.Fatalf("expected fallback to succeed, got error: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != "SUPPRESS" {
		t.Fatalf("unexpected fallback entries: %+v", entries)
	}
}

func TestHTTPClient_Retrieve_NoFallbackReturnsError(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", nil)

	_, err := c.Retrieve(context.Background(), Query{PatternKind: "X"})
	if err == nil {
		t.Fatal("expected an error with no fallback configured")
	}
}
