// Package playbook defines the retrieval contract for recommended
// interventions: given a detected pattern's dimension and kind, a
// Retriever returns zero or more playbook entries describing what has
// historically worked. The loop consults it after the Decision Policy
// has chosen an option and only logs the top entry.
package playbook

import "context"

// Entry is one recommended-action playbook record.
type Entry struct {
	ID          string   `json:"id"`
	Dimension   string   `json:"dimension"`   // e.g. "issuer:HDFC"
	PatternKind string   `json:"pattern_kind"` // e.g. "LOCALIZED_FAILURE"
	Kind        string   `json:"recommended_kind"`
	Rationale   string   `json:"rationale"`
	Confidence  float64  `json:"confidence"`
	Tags        []string `json:"tags,omitempty"`
}

// Query describes what the caller is looking for a recommendation on.
type Query struct {
	Dimension   string
	PatternKind string
	TopK        int
}

// Retriever looks up playbook entries relevant to a Query. Implementations
// must degrade gracefully: a retrieval failure or empty result set is not
// fatal to a reasoning cycle, it just means no RAG-sourced rationale is
// attached.
type Retriever interface {
	Retrieve(ctx context.Context, q Query) ([]Entry, error)
}
