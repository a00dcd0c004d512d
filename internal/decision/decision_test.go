package decision

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/sentinel/internal/reasoning"
	"github.com/payops/sentinel/internal/valueobj"
)

func TestPlanner_AlwaysIncludesNoAction(t *testing.T) {
	p := NewPlanner()
	options := p.Plan(nil)
	require.Len(t, options, 1)
	assert.Equal(t, KindNoAction, options[0].Kind)
}

func TestPlanner_IssuerDegradationProducesSuppressPath(t *testing.T) {
	p := NewPlanner()
	patterns := []reasoning.DetectedPattern{{Kind: reasoning.PatternIssuerDegradation, AffectedDimension: "issuer:HDFC", Severity: 0.5}}
	options := p.Plan(patterns)

	require.Len(t, options, 2)
	assert.Equal(t, KindSuppressPath, options[0].Kind)
	assert.Equal(t, "HDFC", options[0].Target)
	assert.Equal(t, suppressPathBlastRadius, options[0].BlastRadius)
	assert.Equal(t, int64(suppressPathDurationMs), options[0].DurationMs())
}

func TestPlanner_RetryStormProducesReduceRetryAttempts(t *testing.T) {
	p := NewPlanner()
	patterns := []reasoning.DetectedPattern{{Kind: reasoning.PatternRetryStorm, AffectedDimension: "global", Severity: 0.4}}
	options := p.Plan(patterns)
	assert.Equal(t, KindReduceRetryAttempts, options[0].Kind)
	assert.Equal(t, reduceRetryAttemptsBlastRadius, options[0].BlastRadius)
}

func TestPlanner_MethodFatigueProducesRerouteTraffic(t *testing.T) {
	p := NewPlanner()
	patterns := []reasoning.DetectedPattern{{Kind: reasoning.PatternMethodFatigue, AffectedDimension: "method:UPI", Severity: 0.4}}
	options := p.Plan(patterns)
	assert.Equal(t, KindRerouteTraffic, options[0].Kind)
	assert.Equal(t, "UPI", options[0].Target)
}

func TestPlanner_LatencySpikeProducesAlertOpsWithZeroBlastRadius(t *testing.T) {
	p := NewPlanner()
	patterns := []reasoning.DetectedPattern{{Kind: reasoning.PatternLatencySpike, AffectedDimension: "issuer:HDFC", Severity: 0.3}}
	options := p.Plan(patterns)
	assert.Equal(t, KindAlertOps, options[0].Kind)
	assert.Equal(t, 0.0, options[0].BlastRadius)
}

func TestNRV_PositiveWhenGainExceedsCost(t *testing.T) {
	opt := InterventionOption{
		BlastRadius: 0.5,
		Estimate:    estimate(0.3, -10, 1),
	}
	p := EconomicParams{Volume: 1000, AvgTicket: 500, CostPerIntervention: 10, LatencyPenaltyPerMs: 0.01}
	nrv := NRV(opt, p)
	assert.True(t, ShouldAct(nrv))
}

func TestNRV_NegativeWhenCostExceedsGain(t *testing.T) {
	opt := InterventionOption{
		BlastRadius: 0.001,
		Estimate:    estimate(0.01, -500, 100),
	}
	p := DefaultEconomicParams()
	nrv := NRV(opt, p)
	assert.False(t, ShouldAct(nrv))
}

func TestRankByNRV_SortsDescending(t *testing.T) {
	p := DefaultEconomicParams()
	options := []InterventionOption{
		{Kind: KindAlertOps, BlastRadius: 0, Estimate: estimate(0, 0, 0)},
		{Kind: KindSuppressPath, BlastRadius: 0.5, Estimate: estimate(0.3, -10, 1)},
	}
	ranked := RankByNRV(options, p)
	require.Len(t, ranked, 2)
	assert.GreaterOrEqual(t, ranked[0].NRV, ranked[1].NRV)
}

func TestPolicy_ForcesActionAtMinFrequency(t *testing.T) {
	pol := NewPolicy(6, 1.0, nil)
	noAction := InterventionOption{Kind: KindNoAction}
	zeroNRVScored := []ScoredOption{{Option: noAction, NRV: 0}}

	var last InterventionDecision
	for i := 0; i < 6; i++ {
		last = pol.Decide(zeroNRVScored, 0)
	}

	assert.True(t, last.ShouldAct)
	assert.True(t, strings.HasPrefix(last.Rationale, minFrequencyRationalePrefix))
	assert.Equal(t, 0, pol.CyclesSinceAction())
}

func TestPolicy_NoActionWhenNoPositiveNRVAndNotDue(t *testing.T) {
	pol := NewPolicy(6, 1.0, nil)
	noAction := InterventionOption{Kind: KindNoAction}
	negative := InterventionOption{Kind: KindSuppressPath, BlastRadius: 0.2}
	scored := []ScoredOption{{Option: noAction, NRV: 0}, {Option: negative, NRV: -5}}

	decision := pol.Decide(scored, 0)
	assert.False(t, decision.ShouldAct)
	assert.Equal(t, 1, pol.CyclesSinceAction())
}

func TestPolicy_SelectsBestPositiveNRVCandidate(t *testing.T) {
	pol := NewPolicy(6, 1.0, nil)
	noAction := InterventionOption{Kind: KindNoAction}
	good := InterventionOption{Kind: KindSuppressPath, Target: "HDFC", BlastRadius: 0.2}
	better := InterventionOption{Kind: KindRerouteTraffic, Target: "UPI", BlastRadius: 0.3}
	scored := []ScoredOption{{Option: noAction, NRV: 0}, {Option: good, NRV: 10}, {Option: better, NRV: 50}}

	decision := pol.Decide(scored, 0)
	require.True(t, decision.ShouldAct)
	require.NotNil(t, decision.Selected)
	assert.Equal(t, KindRerouteTraffic, decision.Selected.Kind)
	assert.Equal(t, 0, pol.CyclesSinceAction())
}

func TestPolicy_RequiresApprovalOnBlastRadiusOrUncertainty(t *testing.T) {
	pol := NewPolicy(6, 0.3, nil)
	noAction := InterventionOption{Kind: KindNoAction}
	risky := InterventionOption{Kind: KindSuppressPath, BlastRadius: 0.5}
	scored := []ScoredOption{{Option: noAction, NRV: 0}, {Option: risky, NRV: 10}}

	decision := pol.Decide(scored, 0)
	assert.True(t, decision.RequiresHumanApproval)

	pol2 := NewPolicy(6, 1.0, nil)
	safe := InterventionOption{Kind: KindSuppressPath, BlastRadius: 0.1}
	scored2 := []ScoredOption{{Option: noAction, NRV: 0}, {Option: safe, NRV: 10}}
	decision2 := pol2.Decide(scored2, 0.6)
	assert.True(t, decision2.RequiresHumanApproval)
}

func estimate(deltaSuccess, deltaLatency, deltaCost float64) valueobj.OutcomeEstimate {
	return valueobj.OutcomeEstimate{DeltaSuccess: deltaSuccess, DeltaLatency: deltaLatency, DeltaCost: deltaCost}
}
