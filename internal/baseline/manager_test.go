package baseline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/sentinel/internal/txn"
)

func hdfcBatch(n int, successRate float64) []txn.Transaction {
	out := make([]txn.Transaction, 0, n)
	successes := int(float64(n) * successRate)
	for i := 0; i < n; i++ {
		outcome := txn.HardFail
		if i < successes {
			outcome = txn.Success
		}
		out = append(out, txn.Transaction{
			ID: "t", Outcome: outcome, LatencyMs: 150, Issuer: "HDFC", Method: txn.MethodUPI, Amount: 10,
		})
	}
	return out
}

func TestManager_FirstSampleInitializesMeanZeroVariance(t *testing.T) {
	m := New(0.3, nil)
	m.UpdateRollingBaselines(hdfcBatch(10, 1.0), 1000)

	b, ok := m.Get("issuer:HDFC")
	require.True(t, ok)
	assert.Equal(t, 1.0, b.MeanSuccessRate)
	assert.Equal(t, 0.0, b.VarSuccessRate)
	assert.Equal(t, 1, b.SampleCount)
}

func TestManager_NotReadyBelowThreeSamples(t *testing.T) {
	m := New(0.3, nil)
	m.UpdateRollingBaselines(hdfcBatch(10, 1.0), 1000)
	m.UpdateRollingBaselines(hdfcBatch(10, 1.0), 2000)

	b, _ := m.Get("issuer:HDFC")
	assert.False(t, b.Ready())

	m.UpdateRollingBaselines(hdfcBatch(10, 1.0), 3000)
	b, _ = m.Get("issuer:HDFC")
	assert.True(t, b.Ready())
}

func TestManager_VarianceNeverNegative(t *testing.T) {
	m := New(0.5, nil)
	for i, rate := range []float64{1.0, 0.0, 1.0, 0.0, 0.5} {
		m.UpdateRollingBaselines(hdfcBatch(20, rate), int64(1000*(i+1)))
	}
	b, _ := m.Get("issuer:HDFC")
	assert.GreaterOrEqual(t, b.VarSuccessRate, 0.0)
}

func TestManager_ZUsesFloorToAvoidDivideByZero(t *testing.T) {
	m := New(0.3, nil)
	m.UpdateRollingBaselines(hdfcBatch(10, 1.0), 1000)

	z, ok := m.Z("issuer:HDFC", 1.0, MetricSuccessRate)
	require.True(t, ok)
	assert.Equal(t, 0.0, z) // value == mean, zero deviation regardless of floor

	z2, ok := m.Z("issuer:HDFC", 0.99, MetricSuccessRate)
	require.True(t, ok)
	assert.InDelta(t, 0.01/0.01, z2, 1e-9) // floored std = 0.01
}

func TestManager_ZReturnsFalseWithoutBaseline(t *testing.T) {
	m := New(0.3, nil)
	_, ok := m.Z("issuer:UNKNOWN", 1.0, MetricSuccessRate)
	assert.False(t, ok)
}

func TestManager_GlobalAndMethodDimensionsAlsoUpdated(t *testing.T) {
	m := New(0.3, nil)
	m.UpdateRollingBaselines(hdfcBatch(10, 1.0), 1000)

	_, ok := m.Get("global")
	assert.True(t, ok)
	_, ok = m.Get("method:UPI")
	assert.True(t, ok)
}

func TestManager_RestoreRoundTrips(t *testing.T) {
	m := New(0.3, nil)
	m.UpdateRollingBaselines(hdfcBatch(10, 0.8), 1000)
	snap := m.Snapshot()

	m2 := New(0.3, nil)
	m2.Restore(snap)

	b1, _ := m.Get("issuer:HDFC")
	b2, _ := m2.Get("issuer:HDFC")
	assert.Equal(t, b1, b2)
}
