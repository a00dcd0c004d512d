package safety

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/sentinel/internal/decision"
	"github.com/payops/sentinel/internal/valueobj"
)

func TestConstraints_BlocksPositiveRiskImpactUnderHighFraudRisk(t *testing.T) {
	c := NewConstraints(Preferences{}, nil)
	opt := decision.InterventionOption{
		Kind:      decision.KindSuppressPath,
		Tradeoffs: valueobj.Tradeoffs{RiskImpact: 0.1},
	}
	survivors, blocked := c.Filter([]decision.InterventionOption{opt}, RiskContext{FraudRisk: 0.4})
	assert.Empty(t, survivors)
	require.Len(t, blocked, 1)
	assert.Contains(t, blocked[0].Reason, "fraud_risk")
}

func TestConstraints_BlocksPositiveSuccessDeltaUnderLowFraudThreshold(t *testing.T) {
	c := NewConstraints(Preferences{}, nil)
	opt := decision.InterventionOption{
		Kind:     decision.KindSuppressPath,
		Estimate: valueobj.OutcomeEstimate{DeltaSuccess: 0.2},
	}
	survivors, blocked := c.Filter([]decision.InterventionOption{opt}, RiskContext{FraudRisk: 0.15})
	assert.Empty(t, survivors)
	require.Len(t, blocked, 1)
}

func TestConstraints_AllowsSafeCandidates(t *testing.T) {
	c := NewConstraints(Preferences{}, nil)
	opt := decision.InterventionOption{
		Kind:     decision.KindSuppressPath,
		Estimate: valueobj.OutcomeEstimate{DeltaSuccess: 0.2},
	}
	survivors, blocked := c.Filter([]decision.InterventionOption{opt}, RiskContext{FraudRisk: 0.05})
	assert.Len(t, survivors, 1)
	assert.Empty(t, blocked)
}

func TestConstraints_MinimalInterventionSortsByMagnitudeAscending(t *testing.T) {
	c := NewConstraints(Preferences{PreferMinimalIntervention: true}, nil)
	big := decision.InterventionOption{Kind: decision.KindSuppressPath, BlastRadius: 0.8}
	small := decision.InterventionOption{Kind: decision.KindAlertOps, BlastRadius: 0.1}

	survivors, _ := c.Filter([]decision.InterventionOption{big, small}, RiskContext{})
	require.Len(t, survivors, 2)
	assert.Equal(t, decision.KindAlertOps, survivors[0].Kind)
}

func TestConstraints_ReversiblePreferencePartitions(t *testing.T) {
	c := NewConstraints(Preferences{PreferReversible: true}, nil)
	irreversible := decision.InterventionOption{Kind: decision.KindSuppressPath, Reversible: false}
	reversible := decision.InterventionOption{Kind: decision.KindAlertOps, Reversible: true}

	survivors, _ := c.Filter([]decision.InterventionOption{irreversible, reversible}, RiskContext{})
	require.Len(t, survivors, 2)
	assert.True(t, survivors[0].Reversible)
	assert.False(t, survivors[1].Reversible)
}

func TestAnalyzer_AcceptableBelowThreshold(t *testing.T) {
	a := NewAnalyzer()
	opt := decision.InterventionOption{
		Kind:        decision.KindAlertOps,
		BlastRadius: 0,
		Reversible:  true,
		Estimate:    valueobj.OutcomeEstimate{Confidence: 0.9},
	}
	assessment := a.Analyze(opt)
	assert.True(t, assessment.Acceptable)
	assert.False(t, assessment.RiskAcknowledged)
	assert.NotEmpty(t, assessment.WorstCaseScenario)
}

func TestAnalyzer_UnacceptableAboveThreshold(t *testing.T) {
	a := NewAnalyzer()
	opt := decision.InterventionOption{
		Kind:        decision.KindReduceRetryAttempts,
		BlastRadius: 1.0,
		Reversible:  false,
		Tradeoffs:   valueobj.Tradeoffs{RiskImpact: 1.0, FrictionImpact: 1.0},
		Estimate:    valueobj.OutcomeEstimate{Confidence: 0},
	}
	assessment := a.Analyze(opt)
	assert.False(t, assessment.Acceptable)
	assert.InDelta(t, 0.77, assessment.RiskScore, 1e-9)
}

func TestRuleEvaluator_BlocksOnMatchingRule(t *testing.T) {
	re, err := NewRuleEvaluator(nil)
	require.NoError(t, err)
	err = re.LoadRules([]Rule{
		{Name: "no-large-blast", Expression: "option.blast_radius > 0.4", Reason: "blast radius too large"},
	})
	require.NoError(t, err)

	opt := decision.InterventionOption{BlastRadius: 0.6}
	reason, blocked := re.Evaluate(opt)
	assert.True(t, blocked)
	assert.Equal(t, "blast radius too large", reason)

	opt2 := decision.InterventionOption{BlastRadius: 0.1}
	_, blocked2 := re.Evaluate(opt2)
	assert.False(t, blocked2)
}

func TestRuleEvaluator_NoRulesNeverBlocks(t *testing.T) {
	re, err := NewRuleEvaluator(nil)
	require.NoError(t, err)
	_, blocked := re.Evaluate(decision.InterventionOption{BlastRadius: 1.0})
	assert.False(t, blocked)
}

func TestRuleEvaluator_RejectsNonBoolExpression(t *testing.T) {
	re, err := NewRuleEvaluator(nil)
	require.NoError(t, err)
	err = re.LoadRules([]Rule{{Name: "bad", Expression: "option.blast_radius", Reason: "x"}})
	assert.Error(t, err)
}

func TestRuleEvaluator_LoadRulesFile_MissingFileIsNotAnError(t *testing.T) {
	re, err := NewRuleEvaluator(nil)
	require.NoError(t, err)
	err = re.LoadRulesFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.NoError(t, err)
	assert.Equal(t, 0, re.RuleCount())
}

func TestRuleEvaluator_LoadRulesFile_ParsesAndCompiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	contents := []byte("rules:\n  - name: no-large-blast\n    expression: \"option.blast_radius > 0.4\"\n    reason: blast radius too large\n")
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	re, err := NewRuleEvaluator(nil)
	require.NoError(t, err)
	require.NoError(t, re.LoadRulesFile(path))
	assert.Equal(t, 1, re.RuleCount())

	_, blocked := re.Evaluate(decision.InterventionOption{BlastRadius: 0.6})
	assert.True(t, blocked)
}

func TestConstraints_RulesFieldBlocksAlongsideBuiltinChecks(t *testing.T) {
	re, err := NewRuleEvaluator(nil)
	require.NoError(t, err)
	require.NoError(t, re.LoadRules([]Rule{
		{Name: "no-large-blast", Expression: "option.blast_radius > 0.4", Reason: "blast radius too large"},
	}))

	c := NewConstraints(Preferences{}, nil)
	c.Rules = re

	opt := decision.InterventionOption{Kind: decision.KindSuppressPath, BlastRadius: 0.6}
	survivors, blocked := c.Filter([]decision.InterventionOption{opt}, RiskContext{})
	assert.Empty(t, survivors)
	require.Len(t, blocked, 1)
	assert.Equal(t, "blast radius too large", blocked[0].Reason)
}
