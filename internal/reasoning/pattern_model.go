package reasoning

// PatternKind enumerates the structural patterns this system can detect.
type PatternKind string

const (
	PatternIssuerDegradation PatternKind = "issuer_degradation"
	PatternRetryStorm        PatternKind = "retry_storm"
	PatternMethodFatigue     PatternKind = "method_fatigue"
	PatternLatencySpike      PatternKind = "latency_spike"
	PatternSystemicFailure   PatternKind = "systemic_failure"
	PatternLocalizedFailure  PatternKind = "localized_failure"
)

// Evidence is one piece of supporting data behind a DetectedPattern.
type Evidence struct {
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
	Source      string  `json:"source"`
	Timestamp   int64   `json:"timestamp"`
}

// DetectedPattern is a structural or statistical anomaly flagged against a
// single dimension. Severity is the detection strength in [0, 1]: for a
// success-rate anomaly, the confidence score when one was computed,
// otherwise a normalized Z-score; for a latency spike, min(1, (p95
// ratio - 1) / 2); for structural patterns, the failure rate (a retry
// storm uses the larger of avg retries / 4 and the high-retry share,
// capped at 1). The underlying Z-score, when available, is always also
// carried in Evidence so downstream consumers can recover it.
type DetectedPattern struct {
	Kind               PatternKind `json:"kind"`
	AffectedDimension  string      `json:"affected_dimension"`
	Severity           float64     `json:"severity"`
	Evidence           []Evidence  `json:"evidence"`
	DetectedAt         int64       `json:"detected_at"`
}
