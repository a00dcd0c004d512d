package playbook

import "context"

// LocalTable is a static, in-process Retriever backed by a fixed rule
// table. This is the fallback a zero-dependency deployment needs when no remote playbook
// service is configured.
type LocalTable struct {
	entries []Entry
}

// NewLocalTable creates a LocalTable seeded with entries.
func NewLocalTable(entries []Entry) *LocalTable {
	return &LocalTable{entries: entries}
}

// DefaultTable returns a small, hand-curated set of playbook entries
// covering the intervention kinds spec names.
func DefaultTable() *LocalTable {
	return NewLocalTable([]Entry{
		{
			ID:          "pb-localized-failure-reroute",
			PatternKind: "LOCALIZED_FAILURE",
			Kind:        "REROUTE",
			Rationale:   "Localized success-rate drops on one issuer historically resolve fastest by rerouting volume to a healthy alternate path.",
			Confidence:  0.8,
			Tags:        []string{"issuer", "routing"},
		},
		{
			ID:          "pb-latency-spike-throttle",
			PatternKind: "LATENCY_SPIKE",
			Kind:        "THROTTLE",
			Rationale:   "Latency spikes that precede timeout-driven retries are best contained by throttling new volume onto the affected path.",
			Confidence:  0.7,
			Tags:        []string{"latency", "throttle"},
		},
		{
			ID:          "pb-retry-storm-suppress",
			PatternKind: "RETRY_STORM",
			Kind:        "SUPPRESS",
			Rationale:   "Retry storms amplify load on an already-degraded path; suppressing further attempts for a bounded window lets it recover.",
			Confidence:  0.75,
			Tags:        []string{"retry", "suppress"},
		},
	})
}

// Retrieve returns entries matching q.PatternKind (and q.Dimension when
// an entry names one), capped to q.TopK.
func (t *LocalTable) Retrieve(ctx context.Context, q Query) ([]Entry, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = 3
	}

	var matches []Entry
	for _, e := range t.entries {
		if q.PatternKind != "" && e.PatternKind != q.PatternKind {
			continue
		}
		if e.Dimension != "" && q.Dimension != "" && e.Dimension != q.Dimension {
			continue
		}
		matches = append(matches, e)
		if len(matches) >= topK {
			break
		}
	}
	return matches, nil
}
