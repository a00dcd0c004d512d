// Package reasoning turns windowed transactions and rolling baselines into
// detected patterns and a running belief state: the Confidence Scorer,
// Anomaly Detector, Pattern Detector, Hypothesis Generator, and Belief
// Manager.
package reasoning

import (
	"github.com/payops/sentinel/internal/txn"
)

// ConfidenceWeights are the fixed blend weights for the three confidence
// inputs. Exported so callers can see the exact blend without
// reading the implementation.
const (
	WeightSampleSize = 0.3
	WeightConsistency = 0.4
	WeightBaseline    = 0.3

	DefaultMinSampleSize = 50
)

// ClusterDimension selects which field of a failed transaction is used for
// the consistency (C) component of the confidence score.
type ClusterDimension func(txn.Transaction) string

// ByErrorCode is the default clustering dimension.
func ByErrorCode(t txn.Transaction) string { return t.ErrorCode }

// ConfidenceScorer combines sample-size, signal-consistency, and
// baseline-deviation into a single confidence score in [0,1].
type ConfidenceScorer struct {
	MinSampleSize int
	ClusterBy     ClusterDimension
}

// NewConfidenceScorer creates a scorer with the defaults
// (min_sample_size=50, clustering by error_code).
func NewConfidenceScorer() *ConfidenceScorer {
	return &ConfidenceScorer{
		MinSampleSize: DefaultMinSampleSize,
		ClusterBy:     ByErrorCode,
	}
}

// Score computes confidence = 0.3*S + 0.4*C + 0.3*B for the given slice of
// transactions (from which failures and their cluster dimension are
// derived) and a pre-computed Z-score (from the baseline comparison the
// caller is already making).
func (s *ConfidenceScorer) Score(txns []txn.Transaction, z float64) float64 {
	failed := make([]txn.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.Outcome != txn.Success {
			failed = append(failed, t)
		}
	}

	sampleSize := s.sampleSizeScore(len(failed))
	consistency := s.consistencyScore(failed)
	baselineDev := BaselineDeviationScore(z)

	return WeightSampleSize*sampleSize + WeightConsistency*consistency + WeightBaseline*baselineDev
}

func (s *ConfidenceScorer) sampleSizeScore(failedCount int) float64 {
	minSize := s.MinSampleSize
	if minSize <= 0 {
		minSize = DefaultMinSampleSize
	}
	v := float64(failedCount) / float64(minSize)
	if v > 1 {
		v = 1
	}
	return v
}

func (s *ConfidenceScorer) consistencyScore(failed []txn.Transaction) float64 {
	if len(failed) == 0 {
		return 0
	}
	clusterBy := s.ClusterBy
	if clusterBy == nil {
		clusterBy = ByErrorCode
	}

	counts := make(map[string]int)
	for _, t := range failed {
		counts[clusterBy(t)]++
	}

	modal := 0
	for _, c := range counts {
		if c > modal {
			modal = c
		}
	}
	return float64(modal) / float64(len(failed))
}

// BaselineDeviationScore is the piecewise B component of the confidence
// blend: Z<=1 -> 0, Z>=3 -> 1, otherwise linear in between.
func BaselineDeviationScore(z float64) float64 {
	switch {
	case z <= 1:
		return 0
	case z >= 3:
		return 1
	default:
		return (z - 1) / 2
	}
}
