package loop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/sentinel/internal/baseline"
	"github.com/payops/sentinel/internal/decision"
	"github.com/payops/sentinel/internal/drift"
	"github.com/payops/sentinel/internal/executor"
	"github.com/payops/sentinel/internal/explain"
	"github.com/payops/sentinel/internal/feedback"
	"github.com/payops/sentinel/internal/generator"
	"github.com/payops/sentinel/internal/learning"
	"github.com/payops/sentinel/internal/observation"
	"github.com/payops/sentinel/internal/reasoning"
	"github.com/payops/sentinel/internal/safety"
)

func healthyParams() drift.IssuerParams {
	return drift.IssuerParams{
		Success: drift.OUParams{Theta: 0.5, Mu: 0.95, Sigma: 0.01},
		Latency: drift.OUParams{Theta: 0.3, Mu: 150, Sigma: 5},
		Retry:   drift.OUParams{Theta: 0.2, Mu: 0.05, Sigma: 0.005},
		Spike:   drift.RetrySpikeParams{Prob: 0, Magnitude: 0, DecayRate: 0.1},
	}
}

func newTestLoop(t *testing.T, cycleIntervalMs int64) *Loop {
	t.Helper()

	eng := drift.New(7, 1.0, nil)
	params := map[string]drift.IssuerParams{
		"HDFC":  healthyParams(),
		"ICICI": healthyParams(),
	}
	for issuer, p := range params {
		eng.Seed(issuer, drift.IssuerState{SuccessRate: 0.95, LatencyMs: 150, RetryProbability: 0.05}, p)
	}

	gen := generator.New(eng, 5000, 50, 1, nil)
	window := observation.New(60_000)
	baselines := baseline.New(0.3, nil)
	policy := decision.NewPolicy(6, 1.0, nil)
	constraints := safety.NewConstraints(safety.Preferences{}, nil)
	exec := executor.New(executor.Guardrails{ApprovalThreshold: 0.5, MaxSuppressionDuration: 900_000}, nil, nil)
	fc := feedback.New(gen, nil)

	deps := Deps{
		Drift:        eng,
		IssuerParams: params,
		Generator:    gen,
		Window:       window,
		Baselines:    baselines,
		Anomaly:      reasoning.NewAnomalyDetector(),
		Pattern:      reasoning.NewPatternDetector(),
		Hypotheses:   reasoning.NewGenerator(),
		Beliefs:      reasoning.NewBeliefManager(),
		Planner:      decision.NewPlanner(),
		Policy:       policy,
		Economics:    decision.DefaultEconomicParams(),
		Constraints:  constraints,
		PreMortem:    safety.NewAnalyzer(),
		Executor:     exec,
		Feedback:     fc,
		Explainer:    explain.NewGenerator(),
		Evaluator:    learning.NewEvaluator(nil),
		Consequence:  learning.NewConsequenceDetector(nil),
		Tuner:        learning.NewUpdater(nil),
		Risk:         safety.RiskContext{FraudRisk: 0.1, ComplianceRisk: 0.1},
	}

	cfg := Config{
		LoopRateHz:         10,
		CycleIntervalMs:    cycleIntervalMs,
		WindowDurationMs:   60_000,
		TelemetryRateHz:    10,
		MinActionFrequency: 6,
		MaxBlastRadius:     1.0,
	}

	return New(cfg, deps)
}

func TestLoop_SafeIterate_RunsWithoutPanicOnEmptyStart(t *testing.T) {
	l := newTestLoop(t, 1000)

	lastCycle := int64(0)
	lastTelemetry := int64(0)
	assert.NotPanics(t, func() {
		l.safeIterate(context.Background(), 1000, &lastCycle, &lastTelemetry, 100)
	})
	assert.Equal(t, int64(1), l.cycleCount)
}

func TestLoop_SafeIterate_RecoversFromPanickingCycle(t *testing.T) {
	l := newTestLoop(t, 1000)
	l.deps.Policy = nil // Policy.Decide locks its mutex, so runCycle panics on a nil pointer dereference

	lastCycle := int64(0)
	lastTelemetry := int64(0)
	assert.NotPanics(t, func() {
		l.safeIterate(context.Background(), 2000, &lastCycle, &lastTelemetry, 100)
	})
	// The cycle counter still advances even though the cycle body panicked.
	assert.Equal(t, int64(1), l.cycleCount)
}

func TestLoop_RunCycle_EventuallyForcesAnAction(t *testing.T) {
	l := newTestLoop(t, 500)

	lastCycle := int64(0)
	lastTelemetry := int64(0)
	now := int64(0)

	// Drive enough ticks to cross several cycle boundaries; the
	// min-action-frequency rule guarantees an action within
	// MinActionFrequency cycles even with no anomaly present.
	for i := 0; i < 40; i++ {
		now += 100
		l.safeIterate(context.Background(), now, &lastCycle, &lastTelemetry, 50)
	}

	assert.Less(t, l.deps.Policy.CyclesSinceAction(), l.cfg.MinActionFrequency)
	assert.NotEmpty(t, l.lastSnap.InterventionHistory)
}

func TestLoop_DemoMode_InjectsForcedFailureOnNthCycle(t *testing.T) {
	l := newTestLoop(t, 10_000_000) // cycle interval far beyond the test horizon
	l.cfg.DemoMode = true
	l.cfg.DemoIssuer = "HDFC"
	l.cfg.DemoEveryNth = 3

	lastCycle := int64(0)
	lastTelemetry := int64(0)
	now := int64(0)

	for i := 0; i < 3; i++ {
		now += 100
		l.safeIterate(context.Background(), now, &lastCycle, &lastTelemetry, 50)
	}

	state, ok := l.deps.Drift.Get("HDFC")
	require.True(t, ok)
	assert.Equal(t, 0.2, state.SuccessRate)
	assert.Equal(t, 0.45, state.RetryProbability)
}

func TestLoop_DemoMode_OffByDefaultNeverInjects(t *testing.T) {
	l := newTestLoop(t, 10_000_000)
	l.cfg.DemoEveryNth = 1 // would fire every cycle if DemoMode were on

	lastCycle := int64(0)
	lastTelemetry := int64(0)
	now := int64(0)
	for i := 0; i < 5; i++ {
		now += 100
		l.safeIterate(context.Background(), now, &lastCycle, &lastTelemetry, 50)
	}

	state, ok := l.deps.Drift.Get("HDFC")
	require.True(t, ok)
	assert.NotEqual(t, 0.2, state.SuccessRate)
}

func TestLoop_EmitTelemetry_PublishesSnapshot(t *testing.T) {
	l := newTestLoop(t, 500)

	lastCycle := int64(0)
	lastTelemetry := int64(0)
	l.safeIterate(context.Background(), 1000, &lastCycle, &lastTelemetry, 1)

	select {
	case snap := <-l.Telemetry:
		assert.Equal(t, int64(1000), snap.Timestamp)
		assert.Equal(t, int64(1), snap.CycleCount)
	default:
		t.Fatal("expected a telemetry snapshot to be emitted")
	}
}

func TestDimensionFor(t *testing.T) {
	assert.Equal(t, "global", dimensionFor(decision.InterventionOption{Target: "global"}))
	assert.Equal(t, "global", dimensionFor(decision.InterventionOption{Target: ""}))
	assert.Equal(t, "issuer:HDFC", dimensionFor(decision.InterventionOption{Target: "HDFC"}))
}

func TestSelectedNRV_NoSelectionReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, selectedNRV(nil, decision.InterventionDecision{ShouldAct: false}))
}

func TestMaxZScore_EmptyPatternsReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, maxZScore(nil))
}

func TestMaxZScore_PicksLargestAbsoluteValue(t *testing.T) {
	patterns := []reasoning.DetectedPattern{
		{Evidence: []reasoning.Evidence{{Kind: "z_score", Value: -3.2}}},
		{Evidence: []reasoning.Evidence{{Kind: "z_score", Value: 2.1}}},
		{Evidence: []reasoning.Evidence{{Kind: "confidence", Value: 9.9}}},
	}
	assert.Equal(t, 3.2, maxZScore(patterns))
}

func TestFilterByDimension(t *testing.T) {
	// DimensionKeys on a transaction always includes "global" plus its
	// issuer/method keys; the filter should only keep matching entries.
	txns := newTestLoop(t, 500).deps.Window.Transactions()
	assert.Empty(t, filterByDimension(txns, "issuer:DOES_NOT_EXIST"))
}
