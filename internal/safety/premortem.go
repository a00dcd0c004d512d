package safety

import (
	"github.com/payops/sentinel/internal/decision"
)

// acceptabilityThreshold is the risk-score ceiling below which a chosen
// option needs no acknowledgement.
const acceptabilityThreshold = 0.7

// worstCaseScenarios is a static table of the plausible worst outcome for
// each intervention kind, used to populate the analyzer's output so a
// human reviewing an acknowledgement has concrete language to react to.
var worstCaseScenarios = map[decision.Kind]string{
	decision.KindSuppressPath:        "traffic to the suppressed issuer path drops to near zero and does not recover automatically if the underlying outage resolves before the suppression window expires",
	decision.KindReduceRetryAttempts: "legitimate transient failures that would have succeeded on retry are now given up on early, depressing success rate",
	decision.KindRerouteTraffic:      "the target method's volume shifts onto paths with different cost or risk profiles than expected",
	decision.KindAlertOps:            "the alert goes unacknowledged and the underlying condition worsens before a human responds",
	decision.KindAdjustRetry:         "an increased retry ceiling amplifies load on an issuer that is already degraded",
	decision.KindNoAction:            "the underlying condition worsens during the interval before the next cycle re-evaluates it",
}

// RiskAssessment is the output of running a chosen option through the
// Pre-Mortem Analyzer.
type RiskAssessment struct {
	Option            decision.InterventionOption `json:"option"`
	WorstCaseScenario string                      `json:"worst_case_scenario"`
	RiskScore         float64                     `json:"risk_score"`
	Acceptable        bool                        `json:"acceptable"`
	RiskAcknowledged  bool                        `json:"risk_acknowledged"`
}

// Analyzer computes a risk score for a chosen option and decides whether
// it needs explicit human acknowledgement before execution.
type Analyzer struct{}

// NewAnalyzer creates a Pre-Mortem Analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Analyze scores opt per spec //
//	risk_score = 0.3·blast
//	           + 0.2·(0 if reversible else 0.3)
//	           + 0.3·(0.4·|Δrisk| + 0.3·friction)
//	           + 0.2·(1 − confidence)
//
// capped at 1. Scores >= acceptabilityThreshold are not acceptable and
// the caller must carry the resulting acknowledgement record through.
func (a *Analyzer) Analyze(opt decision.InterventionOption) RiskAssessment {
	irreversibilityTerm := 0.0
	if !opt.Reversible {
		irreversibilityTerm = 0.3
	}

	score := 0.3*opt.BlastRadius +
		0.2*irreversibilityTerm +
		0.3*(0.4*absF(opt.Tradeoffs.RiskImpact)+0.3*opt.Tradeoffs.FrictionImpact) +
		0.2*(1-opt.Estimate.Confidence)

	if score > 1 {
		score = 1
	}

	acceptable := score < acceptabilityThreshold

	return RiskAssessment{
		Option:            opt,
		WorstCaseScenario: worstCaseScenarios[opt.Kind],
		RiskScore:         score,
		Acceptable:        acceptable,
		RiskAcknowledged:  false,
	}
}
