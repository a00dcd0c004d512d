package observation

import (
	"math"
	"sort"

	"github.com/payops/sentinel/internal/txn"
)

// AggregateStats summarizes a slice of transactions. It is derivable
// purely from the slice — no external state is consulted.
type AggregateStats struct {
	Total         int     `json:"total"`
	SuccessCount  int     `json:"success_count"`
	SoftFailCount int     `json:"soft_fail_count"`
	HardFailCount int     `json:"hard_fail_count"`
	SuccessRate   float64 `json:"success_rate"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
	AvgRetry      float64 `json:"avg_retry"`
	UniqueIssuers int     `json:"unique_issuers"`
	UniqueMethods int     `json:"unique_methods"`
}

// ComputeAggregateStats derives AggregateStats from a slice of
// transactions. An empty slice yields a zero-valued AggregateStats.
func ComputeAggregateStats(txns []txn.Transaction) AggregateStats {
	var stats AggregateStats
	stats.Total = len(txns)
	if stats.Total == 0 {
		return stats
	}

	latencies := make([]float64, 0, len(txns))
	issuers := make(map[string]struct{})
	methods := make(map[string]struct{})

	var retrySum float64
	var latencySum float64

	for _, t := range txns {
		switch t.Outcome {
		case txn.Success:
			stats.SuccessCount++
		case txn.SoftFail:
			stats.SoftFailCount++
		case txn.HardFail:
			stats.HardFailCount++
		}
		latencies = append(latencies, t.LatencyMs)
		latencySum += t.LatencyMs
		retrySum += float64(t.RetryCount)
		issuers[t.Issuer] = struct{}{}
		methods[string(t.Method)] = struct{}{}
	}

	stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.Total)
	stats.AvgLatencyMs = latencySum / float64(stats.Total)
	stats.AvgRetry = retrySum / float64(stats.Total)
	stats.UniqueIssuers = len(issuers)
	stats.UniqueMethods = len(methods)

	sort.Float64s(latencies)
	stats.P95LatencyMs = nearestRankPercentile(latencies, 0.95)
	stats.P99LatencyMs = nearestRankPercentile(latencies, 0.99)

	return stats
}

// nearestRankPercentile implements the nearest-rank method over an
// already-sorted ascending slice.
func nearestRankPercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1 // 1-indexed rank ceil(p*n), as a 0-based index
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
