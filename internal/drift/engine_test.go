package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() IssuerParams {
	return IssuerParams{
		Success: OUParams{Theta: 0.5, Mu: 0.9, Sigma: 0.3},
		Latency: OUParams{Theta: 0.3, Mu: 150, Sigma: 80},
		Retry:   OUParams{Theta: 0.2, Mu: 0.05, Sigma: 0.05},
		Spike:   RetrySpikeParams{Prob: 0.01, Magnitude: 0.2, DecayRate: 0.1},
	}
}

func TestEngine_StaysWithinClampRanges(t *testing.T) {
	e := New(42, 1.0, nil)
	e.Seed("HDFC", IssuerState{SuccessRate: 0.9, LatencyMs: 150, RetryProbability: 0.05}, testParams())

	now := int64(0)
	for i := 0; i < 5000; i++ {
		now += 100
		e.Update(0.1, now)

		s, ok := e.Get("HDFC")
		require.True(t, ok)
		assert.GreaterOrEqual(t, s.SuccessRate, SuccessMin)
		assert.LessOrEqual(t, s.SuccessRate, SuccessMax)
		assert.GreaterOrEqual(t, s.LatencyMs, LatencyMin)
		assert.LessOrEqual(t, s.LatencyMs, LatencyMax)
		assert.GreaterOrEqual(t, s.RetryProbability, RetryProbMin)
		assert.LessOrEqual(t, s.RetryProbability, RetryProbMax)
	}
}

func TestEngine_UpdateIsNoOpForNonPositiveDt(t *testing.T) {
	e := New(1, 1.0, nil)
	e.Seed("ICICI", IssuerState{SuccessRate: 0.95, LatencyMs: 120, RetryProbability: 0.02}, testParams())
	before, _ := e.Get("ICICI")

	e.Update(0, 1000)
	after, _ := e.Get("ICICI")

	assert.Equal(t, before, after)
}

func TestEngine_TimeScaleAcceleratesDrift(t *testing.T) {
	slow := New(7, 1.0, nil)
	fast := New(7, 50.0, nil)

	slow.Seed("AXIS", IssuerState{SuccessRate: 0.5, LatencyMs: 150, RetryProbability: 0.05}, testParams())
	fast.Seed("AXIS", IssuerState{SuccessRate: 0.5, LatencyMs: 150, RetryProbability: 0.05}, testParams())

	slow.Update(0.1, 100)
	fast.Update(0.1, 100)

	slowState, _ := slow.Get("AXIS")
	fastState, _ := fast.Get("AXIS")

	// Same seed and same relative step count, but the fast engine applies
	// a much larger effective dt, so it should have moved further from
	// its start in at least one dimension.
	movedSlow := abs(slowState.SuccessRate-0.5) + abs(slowState.LatencyMs-150)
	movedFast := abs(fastState.SuccessRate-0.5) + abs(fastState.LatencyMs-150)
	assert.Greater(t, movedFast, movedSlow)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func TestEngine_SnapshotIsACopy(t *testing.T) {
	e := New(3, 1.0, nil)
	e.Seed("SBI", IssuerState{SuccessRate: 0.8, LatencyMs: 200, RetryProbability: 0.1}, testParams())

	snap := e.Snapshot()
	snap["SBI"] = IssuerState{SuccessRate: 0}

	s, _ := e.Get("SBI")
	assert.NotEqual(t, 0.0, s.SuccessRate)
}
