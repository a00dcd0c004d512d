package incidents

import (
	"testing"
	"time"
)

func TestMemoryStore_SimilarIncidents_RanksByCosineSimilarity(t *testing.T) {
	s := NewMemoryStore()
	now := time.Unix(1700000000, 0)

	s.Record(Incident{ID: "a", Signature: []float64{1, 0, 0}, Resolution: "REROUTE", OccurredAt: now})
	s.Record(Incident{ID: "b", Signature: []float64{0, 1, 0}, Resolution: "THROTTLE", OccurredAt: now})
	s.Record(Incident{ID: "c", Signature: []float64{0.9, 0.1, 0}, Resolution: "REROUTE", OccurredAt: now})

	matches, err := s.SimilarIncidents([]float64{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("SimilarIncidents: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Incident.ID != "a" {
		t.Errorf("expected exact match 'a' to rank first, got %q", matches[0].Incident.ID)
	}
	if matches[0].Similarity < matches[1].Similarity {
		t.Error("expected matches sorted by descending similarity")
	}
}

func TestMemoryStore_SimilarIncidents_ExcludesOrthogonal(t *testing.T) {
	s := NewMemoryStore()
	s.Record(Incident{ID: "orthogonal", Signature: []float64{0, 1}, OccurredAt: time.Unix(0, 0)})

	matches, err := s.SimilarIncidents([]float64{1, 0}, 5)
	if err != nil {
		t.Fatalf("SimilarIncidents: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches for orthogonal vectors, got %d", len(matches))
	}
}

func TestMemoryStore_SimilarIncidents_EmptyStore(t *testing.T) {
	s := NewMemoryStore()
	matches, err := s.SimilarIncidents([]float64{1, 2, 3}, 5)
	if err != nil {
		t.Fatalf("SimilarIncidents: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestCosineSimilarity_MismatchedLengths(t *testing.T) {
	if sim := cosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}); sim != 0 {
		t.Errorf("expected 0 for mismatched lengths, got %f", sim)
	}
}

func TestCosineSimilarity_IdenticalVectors(t *testing.T) {
	sim := cosineSimilarity([]float64{3, 4}, []float64{3, 4})
	if sim < 0.999 || sim > 1.001 {
		t.Errorf("expected similarity ~1.0 for identical vectors, got %f", sim)
	}
}
