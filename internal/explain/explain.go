// Package explain turns a completed cycle's decision into a dual
// human/machine explanation.
package explain

import (
	"fmt"

	"github.com/payops/sentinel/internal/decision"
	"github.com/payops/sentinel/internal/safety"
)

// ActionJSON is the machine-readable half of the explanation output.
type ActionJSON struct {
	ShouldAct        bool                   `json:"should_act"`
	ActionType       string                 `json:"action_type,omitempty"`
	Target           string                 `json:"target,omitempty"`
	Parameters       map[string]interface{} `json:"parameters,omitempty"`
	Confidence       float64                `json:"confidence"`
	NRV              float64                `json:"nrv"`
	ZScore           float64                `json:"z_score"`
	BlastRadius      float64                `json:"blast_radius"`
	RequiresApproval bool                   `json:"requires_approval"`
	RiskScore        float64                `json:"risk_score"`
	RiskAcknowledged bool                   `json:"risk_acknowledged"`
}

// Explanation is the dual output the generator produces for one cycle.
type Explanation struct {
	Summary    string     `json:"summary"`
	ActionJSON ActionJSON `json:"action_json"`
}

// Generator builds an Explanation from a cycle's decision, NRV, Z-score
// and risk assessment.
type Generator struct{}

// NewGenerator creates an Explanation Generator.
func NewGenerator() *Generator { return &Generator{} }

// Generate produces the two-sentence executive summary plus the action
// JSON. zScore and nrv describe the cycle's most significant finding; risk
// may be the zero value if the decision was NO_ACTION (no option was ever
// run through the Pre-Mortem Analyzer).
func (g *Generator) Generate(decided decision.InterventionDecision, nrv, zScore float64, risk safety.RiskAssessment) Explanation {
	if !decided.ShouldAct || decided.Selected == nil {
		return Explanation{
			Summary: "No anomalous condition was detected this cycle. The system is operating within normal parameters.",
			ActionJSON: ActionJSON{
				ShouldAct: false,
				NRV:       nrv,
				ZScore:    zScore,
			},
		}
	}

	opt := *decided.Selected
	summary := fmt.Sprintf(
		"A %s condition was detected on %s (Z-score %.2f). Proposing %s to mitigate the impact.",
		conditionDescription(opt.Kind), opt.Target, zScore, opt.Kind,
	)

	return Explanation{
		Summary: summary,
		ActionJSON: ActionJSON{
			ShouldAct:        true,
			ActionType:       string(opt.Kind),
			Target:           opt.Target,
			Parameters:       opt.Parameters,
			Confidence:       opt.Estimate.Confidence,
			NRV:              nrv,
			ZScore:           zScore,
			BlastRadius:      opt.BlastRadius,
			RequiresApproval: decided.RequiresHumanApproval,
			RiskScore:        risk.RiskScore,
			RiskAcknowledged: false,
		},
	}
}

func conditionDescription(kind decision.Kind) string {
	switch kind {
	case decision.KindSuppressPath:
		return "issuer degradation"
	case decision.KindReduceRetryAttempts:
		return "retry storm"
	case decision.KindRerouteTraffic:
		return "method fatigue"
	case decision.KindAlertOps:
		return "latency spike"
	default:
		return "anomalous"
	}
}
