// Package learning closes the loop post-hoc: it compares an
// intervention's expected outcome against what actually happened,
// detects unintended consequences, and nudges a small set of scalar
// model parameters (never structural behavior — see Non-goals).
package learning

import (
	"fmt"
	"log/slog"

	"github.com/payops/sentinel/internal/valueobj"
)

// ActualOutcome is the observed effect of an intervention, measured over
// the window following its execution.
type ActualOutcome struct {
	InterventionID    string   `json:"intervention_id"`
	SuccessRateChange float64  `json:"success_rate_change"`
	LatencyChangeMs   float64  `json:"latency_change_ms"`
	RiskChange        float64  `json:"risk_change"`
	UnexpectedEffects []string `json:"unexpected_effects"`
}

// ConsequenceDetector flags interventions whose actual outcome degraded
// the system beyond tolerance, independent of whether the outcome matched
// the original prediction.
type ConsequenceDetector struct {
	DegradationThreshold      float64
	UnexpectedEffectThreshold int
	logger                    *slog.Logger
}

// NewConsequenceDetector creates a detector with conservative defaults:
// a 5% success-rate degradation, or any single unexpected effect,
// triggers review.
func NewConsequenceDetector(logger *slog.Logger) *ConsequenceDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsequenceDetector{
		DegradationThreshold:      0.05,
		UnexpectedEffectThreshold: 1,
		logger:                    logger.With("component", "learning.ConsequenceDetector"),
	}
}

// DetectDegradation reports whether outcome warrants a rollback and why.
func (d *ConsequenceDetector) DetectDegradation(outcome ActualOutcome) (shouldRollback bool, reason string) {
	var reasons []string

	if outcome.SuccessRateChange < -d.DegradationThreshold {
		reasons = append(reasons, fmt.Sprintf("success rate degraded by %.1f%% (threshold %.1f%%)", -outcome.SuccessRateChange*100, d.DegradationThreshold*100))
	}
	if outcome.LatencyChangeMs > 100 {
		reasons = append(reasons, fmt.Sprintf("latency increased by %.0fms", outcome.LatencyChangeMs))
	}
	if outcome.RiskChange > 0.1 {
		reasons = append(reasons, fmt.Sprintf("risk increased by %.1f%%", outcome.RiskChange*100))
	}
	if len(outcome.UnexpectedEffects) >= d.UnexpectedEffectThreshold {
		reasons = append(reasons, fmt.Sprintf("unexpected effects: %v", outcome.UnexpectedEffects))
	}

	if len(reasons) == 0 {
		return false, ""
	}

	reason = joinReasons(reasons)
	d.logger.Warn("degradation detected", "intervention_id", outcome.InterventionID, "reason", reason)
	return true, reason
}

// ConsequenceSeverity classifies how bad an intervention's consequences
// were, for prioritizing operator attention.
type ConsequenceSeverity string

const (
	SeverityNone     ConsequenceSeverity = "none"
	SeverityMinor    ConsequenceSeverity = "minor"
	SeverityModerate ConsequenceSeverity = "moderate"
	SeverityCritical ConsequenceSeverity = "critical"
)

// ConsequenceAnalysis is the structured write-up of one intervention's
// consequences.
type ConsequenceAnalysis struct {
	InterventionID    string              `json:"intervention_id"`
	SuccessRateDelta  float64             `json:"success_rate_delta"`
	LatencyImpactMs   float64             `json:"latency_impact_ms"`
	RiskImpact        float64             `json:"risk_impact"`
	UnexpectedEffects []string            `json:"unexpected_effects"`
	Severity          ConsequenceSeverity `json:"severity"`
}

// AnalyzeConsequences compares outcome against the original estimate and
// classifies the severity of any divergence.
func (d *ConsequenceDetector) AnalyzeConsequences(outcome ActualOutcome, expected valueobj.OutcomeEstimate) ConsequenceAnalysis {
	analysis := ConsequenceAnalysis{
		InterventionID:    outcome.InterventionID,
		SuccessRateDelta:  outcome.SuccessRateChange - expected.DeltaSuccess,
		LatencyImpactMs:   outcome.LatencyChangeMs,
		RiskImpact:        outcome.RiskChange,
		UnexpectedEffects: outcome.UnexpectedEffects,
		Severity:          SeverityNone,
	}

	switch {
	case outcome.SuccessRateChange < -d.DegradationThreshold:
		analysis.Severity = SeverityCritical
	case len(outcome.UnexpectedEffects) > 0:
		analysis.Severity = SeverityModerate
	case absF(outcome.SuccessRateChange-expected.DeltaSuccess) > 0.05:
		analysis.Severity = SeverityMinor
	}

	return analysis
}

func joinReasons(reasons []string) string {
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += "; " + r
	}
	return out
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
