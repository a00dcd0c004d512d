package reasoning

import (
	"github.com/payops/sentinel/internal/txn"
)

const (
	retryStormAvgThreshold  = 2.0
	retryStormHighRetryPct  = 0.20
	retryStormHighRetryMin  = 3
	issuerDegradationMinTx  = 5
	issuerDegradationFailRt = 0.20
	methodFatigueMinTx      = 10
	methodFatigueFailRt     = 0.40
)

// PatternDetector runs the three structural checks over a windowed slice
// of transactions. Unlike the Anomaly Detector, these checks
// need no baseline — they look only at the current window.
type PatternDetector struct{}

// NewPatternDetector creates a PatternDetector.
func NewPatternDetector() *PatternDetector { return &PatternDetector{} }

// Detect runs all three structural checks over txns, returning any
// patterns found. An empty or nil input yields an empty result.
func (p *PatternDetector) Detect(txns []txn.Transaction, now int64) []DetectedPattern {
	var out []DetectedPattern

	if pat := p.retryStorm(txns, now); pat != nil {
		out = append(out, *pat)
	}
	out = append(out, p.issuerDegradation(txns, now)...)
	out = append(out, p.methodFatigue(txns, now)...)

	return out
}

func (p *PatternDetector) retryStorm(txns []txn.Transaction, now int64) *DetectedPattern {
	if len(txns) == 0 {
		return nil
	}

	var retrySum float64
	var highRetryCount int
	for _, t := range txns {
		retrySum += float64(t.RetryCount)
		if t.RetryCount >= retryStormHighRetryMin {
			highRetryCount++
		}
	}
	avg := retrySum / float64(len(txns))
	highPct := float64(highRetryCount) / float64(len(txns))

	if avg <= retryStormAvgThreshold && highPct <= retryStormHighRetryPct {
		return nil
	}

	severity := avg / (2 * retryStormAvgThreshold)
	if highPct > severity {
		severity = highPct
	}
	if severity > 1 {
		severity = 1
	}

	return &DetectedPattern{
		Kind:              PatternRetryStorm,
		AffectedDimension: "global",
		Severity:          severity,
		DetectedAt:        now,
		Evidence: []Evidence{
			{Kind: "avg_retry", Description: "average retry count in window", Value: avg, Source: "reasoning.PatternDetector", Timestamp: now},
			{Kind: "high_retry_pct", Description: "share of transactions with retry>=3", Value: highPct, Source: "reasoning.PatternDetector", Timestamp: now},
		},
	}
}

func (p *PatternDetector) issuerDegradation(txns []txn.Transaction, now int64) []DetectedPattern {
	byIssuer := make(map[string][]txn.Transaction)
	for _, t := range txns {
		byIssuer[t.Issuer] = append(byIssuer[t.Issuer], t)
	}

	var out []DetectedPattern
	for issuer, group := range byIssuer {
		if len(group) < issuerDegradationMinTx {
			continue
		}
		failRate := failureRate(group)
		if failRate <= issuerDegradationFailRt {
			continue
		}
		out = append(out, DetectedPattern{
			Kind:              PatternIssuerDegradation,
			AffectedDimension: "issuer:" + issuer,
			Severity:          failRate,
			DetectedAt:        now,
			Evidence: []Evidence{
				{Kind: "failure_rate", Description: "failure rate for issuer", Value: failRate, Source: "reasoning.PatternDetector", Timestamp: now},
			},
		})
	}
	return out
}

func (p *PatternDetector) methodFatigue(txns []txn.Transaction, now int64) []DetectedPattern {
	byMethod := make(map[string][]txn.Transaction)
	for _, t := range txns {
		byMethod[string(t.Method)] = append(byMethod[string(t.Method)], t)
	}

	var out []DetectedPattern
	for method, group := range byMethod {
		if len(group) < methodFatigueMinTx {
			continue
		}
		failRate := failureRate(group)
		if failRate <= methodFatigueFailRt {
			continue
		}
		out = append(out, DetectedPattern{
			Kind:              PatternMethodFatigue,
			AffectedDimension: "method:" + method,
			Severity:          failRate,
			DetectedAt:        now,
			Evidence: []Evidence{
				{Kind: "failure_rate", Description: "failure rate for method", Value: failRate, Source: "reasoning.PatternDetector", Timestamp: now},
			},
		})
	}
	return out
}

func failureRate(txns []txn.Transaction) float64 {
	if len(txns) == 0 {
		return 0
	}
	var failures int
	for _, t := range txns {
		if t.Outcome != txn.Success {
			failures++
		}
	}
	return float64(failures) / float64(len(txns))
}
