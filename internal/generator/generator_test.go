package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/sentinel/internal/drift"
)

func newTestSource() *drift.Engine {
	e := drift.New(99, 1.0, nil)
	params := drift.IssuerParams{
		Success: drift.OUParams{Theta: 0.5, Mu: 0.9, Sigma: 0.1},
		Latency: drift.OUParams{Theta: 0.3, Mu: 150, Sigma: 20},
		Retry:   drift.OUParams{Theta: 0.2, Mu: 0.05, Sigma: 0.01},
		Spike:   drift.RetrySpikeParams{Prob: 0.0, Magnitude: 0, DecayRate: 0.1},
	}
	e.Seed("HDFC", drift.IssuerState{SuccessRate: 0.9, LatencyMs: 150, RetryProbability: 0.05}, params)
	e.Seed("ICICI", drift.IssuerState{SuccessRate: 0.95, LatencyMs: 120, RetryProbability: 0.02}, params)
	return e
}

func TestGenerator_GenerateNextBatch_EmitsAtLeastOne(t *testing.T) {
	src := newTestSource()
	g := New(src, 1000, 10, 1, nil)

	batch := g.GenerateNextBatch(0.01, 1_000_000)
	require.NotEmpty(t, batch)
	for _, tx := range batch {
		require.NoError(t, tx.Validate())
	}
}

func TestGenerator_GenerateNextBatch_RespectsRate(t *testing.T) {
	src := newTestSource()
	g := New(src, 10_000, 100, 2, nil)

	batch := g.GenerateNextBatch(1.0, 1_000_000)
	assert.Len(t, batch, 100)
}

func TestGenerator_RingBufferDropsOldestOnOverflow(t *testing.T) {
	src := newTestSource()
	g := New(src, 50, 1000, 3, nil)

	g.GenerateNextBatch(1.0, 1_000_000)
	assert.Equal(t, 50, g.Buffer().Len())
	assert.LessOrEqual(t, g.Buffer().Len(), g.Buffer().Cap())
}

func TestGenerator_SuccessMultiplierSuppressesSuccess(t *testing.T) {
	src := newTestSource()
	g := New(src, 10_000, 500, 4, nil)
	g.SetSuccessMultiplier("HDFC", 0.0)

	batch := g.GenerateNextBatch(1.0, 1_000_000)
	var hdfcSuccesses int
	var hdfcTotal int
	for _, tx := range batch {
		if tx.Issuer == "HDFC" {
			hdfcTotal++
			if tx.Outcome == "SUCCESS" {
				hdfcSuccesses++
			}
		}
	}
	require.Greater(t, hdfcTotal, 0)
	assert.Equal(t, 0, hdfcSuccesses)
}

func TestGenerator_ClearMultipliersResetsToNeutral(t *testing.T) {
	src := newTestSource()
	g := New(src, 100, 10, 5, nil)
	g.SetVolumeMultiplier("HDFC", 0)
	g.SetSuccessMultiplier("HDFC", 0.1)
	g.SetRetryMultiplier(5)

	g.ClearMultipliers()

	m := g.Multipliers()
	assert.Empty(t, m.Volume)
	assert.Empty(t, m.Success)
	assert.Empty(t, m.Retry)
}

func TestGenerator_ZeroDtProducesNothing(t *testing.T) {
	src := newTestSource()
	g := New(src, 100, 10, 6, nil)
	batch := g.GenerateNextBatch(0, 1000)
	assert.Nil(t, batch)
}

func TestGenerator_PickIssuerUniformWhenAllWeightsZero(t *testing.T) {
	src := newTestSource()
	g := New(src, 100, 10, 7, nil)
	g.SetVolumeMultiplier("HDFC", 0)
	g.SetVolumeMultiplier("ICICI", 0)

	batch := g.GenerateNextBatch(1.0, 1_000_000)
	seen := map[string]bool{}
	for _, tx := range batch {
		seen[tx.Issuer] = true
	}
	assert.NotEmpty(t, seen)
}
