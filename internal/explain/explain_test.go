package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/payops/sentinel/internal/decision"
	"github.com/payops/sentinel/internal/safety"
)

func TestGenerator_NoActionProducesNormalitySummary(t *testing.T) {
	g := NewGenerator()
	explanation := g.Generate(decision.InterventionDecision{ShouldAct: false}, 0, 0.5, safety.RiskAssessment{})

	assert.False(t, explanation.ActionJSON.ShouldAct)
	assert.Contains(t, explanation.Summary, "normal")
}

func TestGenerator_ActionProducesConditionAndActionJSON(t *testing.T) {
	g := NewGenerator()
	opt := decision.InterventionOption{Kind: decision.KindSuppressPath, Target: "HDFC", BlastRadius: 0.2, Parameters: map[string]interface{}{"duration_ms": int64(300000)}}
	decided := decision.InterventionDecision{ShouldAct: true, Selected: &opt, RequiresHumanApproval: true}
	risk := safety.RiskAssessment{RiskScore: 0.4}

	explanation := g.Generate(decided, 150.0, 3.2, risk)

	assert.Contains(t, explanation.Summary, "HDFC")
	assert.Contains(t, explanation.Summary, "issuer degradation")
	assert.True(t, explanation.ActionJSON.ShouldAct)
	assert.Equal(t, "suppress_path", explanation.ActionJSON.ActionType)
	assert.Equal(t, "HDFC", explanation.ActionJSON.Target)
	assert.Equal(t, 150.0, explanation.ActionJSON.NRV)
	assert.Equal(t, 3.2, explanation.ActionJSON.ZScore)
	assert.True(t, explanation.ActionJSON.RequiresApproval)
	assert.Equal(t, 0.4, explanation.ActionJSON.RiskScore)
	assert.False(t, explanation.ActionJSON.RiskAcknowledged)
}
