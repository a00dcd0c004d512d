package reasoning

import (
	"strings"

	"github.com/payops/sentinel/internal/baseline"
	"github.com/payops/sentinel/internal/observation"
	"github.com/payops/sentinel/internal/txn"
)

// minTransactionsToFire is the minimum slice size the Anomaly Detector
// requires before it will emit anything.
const minTransactionsToFire = 10

// DefaultAnomalyThreshold is the default Z-score threshold above which a
// success-rate deviation is flagged.
const DefaultAnomalyThreshold = 2.0

// AnomalyDetector flags statistically deviant dimensions using a rolling
// baseline plus the confidence scorer.
type AnomalyDetector struct {
	Threshold float64
	Scorer    *ConfidenceScorer
}

// NewAnomalyDetector creates a detector with the default threshold.
func NewAnomalyDetector() *AnomalyDetector {
	return &AnomalyDetector{
		Threshold: DefaultAnomalyThreshold,
		Scorer:    NewConfidenceScorer(),
	}
}

// Detect runs the anomaly check for one dimension's windowed transactions
// against its rolling baseline. txns must already be filtered to the
// dimension being checked (e.g. only HDFC's transactions for
// "issuer:HDFC"). globalBaselineP95 is the global window's p95 latency,
// the baseline for the latency-spike comparison.
func (d *AnomalyDetector) Detect(dimension string, txns []txn.Transaction, b *baseline.RollingBaseline, globalBaselineP95 float64, now int64) []DetectedPattern {
	if len(txns) < minTransactionsToFire {
		return nil
	}
	if b == nil || !b.Ready() {
		return nil
	}

	var patterns []DetectedPattern

	stats := observation.ComputeAggregateStats(txns)

	z := b.Z(stats.SuccessRate, baseline.MetricSuccessRate)
	if z >= d.thresholdOrDefault() {
		confidence := d.Scorer.Score(txns, z)
		severity := confidence
		if confidence == 0 {
			severity = normalizedZSeverity(z, d.thresholdOrDefault())
		}

		kind := PatternLocalizedFailure
		if strings.HasPrefix(dimension, "issuer:") {
			kind = PatternIssuerDegradation
		}

		patterns = append(patterns, DetectedPattern{
			Kind:              kind,
			AffectedDimension: NormalizeDimension(dimension),
			Severity:          severity,
			DetectedAt:        now,
			Evidence: []Evidence{
				{
					Kind:        "z_score",
					Description: "success rate Z-score vs rolling baseline",
					Value:       z,
					Source:      "baseline.Manager",
					Timestamp:   now,
				},
				{
					Kind:        "confidence",
					Description: "confidence score",
					Value:       confidence,
					Source:      "reasoning.ConfidenceScorer",
					Timestamp:   now,
				},
			},
		})
	}

	if globalBaselineP95 > 0 && stats.P95LatencyMs > 1.5*globalBaselineP95 {
		ratio := stats.P95LatencyMs/globalBaselineP95 - 1
		severity := ratio / 2
		if severity > 1 {
			severity = 1
		}
		patterns = append(patterns, DetectedPattern{
			Kind:              PatternLatencySpike,
			AffectedDimension: NormalizeDimension(dimension),
			Severity:          severity,
			DetectedAt:        now,
			Evidence: []Evidence{
				{
					Kind:        "p95_latency_ratio",
					Description: "current p95 latency vs baseline p95",
					Value:       stats.P95LatencyMs / globalBaselineP95,
					Source:      "observation.Window",
					Timestamp:   now,
				},
			},
		})
	}

	return patterns
}

func (d *AnomalyDetector) thresholdOrDefault() float64 {
	if d.Threshold <= 0 {
		return DefaultAnomalyThreshold
	}
	return d.Threshold
}

// normalizedZSeverity maps a raw Z-score to [0,1] when no confidence score
// is available, 1)").
func normalizedZSeverity(z, threshold float64) float64 {
	v := z / (2 * threshold)
	if v > 1 {
		return 1
	}
	return v
}
