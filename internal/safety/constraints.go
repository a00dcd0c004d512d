// Package safety filters and risk-scores intervention candidates before
// they reach the NRV ranking and decision stages. Nothing here can be
// bypassed by a later stage — a blocked candidate never reaches Policy.
package safety

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/payops/sentinel/internal/decision"
)

// RiskContext carries the ambient fraud/compliance risk levels the
// constraint filter checks every candidate against. These are not
// per-candidate — they describe the current state of the world, fed in
// from whatever upstream fraud/compliance signal the deployment has.
type RiskContext struct {
	FraudRisk      float64
	ComplianceRisk float64
}

// Preferences toggles the optional re-ordering passes.
type Preferences struct {
	PreferMinimalIntervention bool
	PreferReversible          bool
}

// BlockedCandidate is a candidate the constraint filter rejected, with the
// reason it was rejected.
type BlockedCandidate struct {
	Option decision.InterventionOption `json:"option"`
	Reason string                      `json:"reason"`
}

// Constraints implements the hard safety filter of spec.
type Constraints struct {
	Preferences Preferences
	// Rules is an optional CEL rule set (config.SafetyConfig.RulesPath)
	// evaluated alongside the built-in fraud/compliance checks. A nil
	// Rules runs the built-in checks only.
	Rules  *RuleEvaluator
	logger *slog.Logger
}

// NewConstraints creates a Constraints filter.
func NewConstraints(prefs Preferences, logger *slog.Logger) *Constraints {
	if logger == nil {
		logger = slog.Default()
	}
	return &Constraints{
		Preferences: prefs,
		logger:      logger.With("component", "safety.Constraints"),
	}
}

// Filter splits candidates into those that survive the hard fraud/
// compliance checks (optionally re-ordered per Preferences) and those that
// were blocked, each with its reason.
func (c *Constraints) Filter(options []decision.InterventionOption, risk RiskContext) (survivors []decision.InterventionOption, blocked []BlockedCandidate) {
	for _, opt := range options {
		if reason, blockedOpt := blockReason(opt, risk); blockedOpt {
			blocked = append(blocked, BlockedCandidate{Option: opt, Reason: reason})
			c.logger.Warn("intervention candidate blocked",
				"kind", opt.Kind, "target", opt.Target, "reason", reason,
			)
			continue
		}
		if c.Rules != nil {
			if reason, blockedOpt := c.Rules.Evaluate(opt); blockedOpt {
				blocked = append(blocked, BlockedCandidate{Option: opt, Reason: reason})
				c.logger.Warn("intervention candidate blocked by rule",
					"kind", opt.Kind, "target", opt.Target, "reason", reason,
				)
				continue
			}
		}
		survivors = append(survivors, opt)
	}

	if c.Preferences.PreferMinimalIntervention {
		sort.SliceStable(survivors, func(i, j int) bool {
			return magnitude(survivors[i]) < magnitude(survivors[j])
		})
	}

	if c.Preferences.PreferReversible {
		survivors = stablePartitionReversible(survivors)
	}

	return survivors, blocked
}

func blockReason(opt decision.InterventionOption, risk RiskContext) (string, bool) {
	if opt.Tradeoffs.RiskImpact > 0 && (risk.FraudRisk > 0.3 || risk.ComplianceRisk > 0.3) {
		return fmt.Sprintf("risk_impact=%.2f positive while fraud_risk=%.2f compliance_risk=%.2f exceeds 0.3", opt.Tradeoffs.RiskImpact, risk.FraudRisk, risk.ComplianceRisk), true
	}
	if opt.Estimate.DeltaSuccess > 0 && risk.FraudRisk > 0.1 {
		return fmt.Sprintf("positive success-rate delta blocked while fraud_risk=%.2f exceeds 0.1", risk.FraudRisk), true
	}
	return "", false
}

// magnitude is the (c) ranking key for the minimal-intervention
// preference.
func magnitude(opt decision.InterventionOption) float64 {
	return 0.5*opt.BlastRadius +
		0.2*absF(opt.Estimate.DeltaSuccess) +
		0.1*absF(opt.Estimate.DeltaLatency)/1000 +
		0.2*opt.Tradeoffs.FrictionImpact
}

func stablePartitionReversible(options []decision.InterventionOption) []decision.InterventionOption {
	out := make([]decision.InterventionOption, 0, len(options))
	for _, o := range options {
		if o.Reversible {
			out = append(out, o)
		}
	}
	for _, o := range options {
		if !o.Reversible {
			out = append(out, o)
		}
	}
	return out
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
