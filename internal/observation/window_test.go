package observation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/sentinel/internal/generator"
	"github.com/payops/sentinel/internal/txn"
)

func makeTxns(n int, baseTs int64, issuer string) []txn.Transaction {
	out := make([]txn.Transaction, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, txn.Transaction{
			ID:        "t" + string(rune('a'+i%26)) + string(rune(i)),
			Timestamp: baseTs + int64(i),
			Outcome:   txn.Success,
			LatencyMs: 150,
			Issuer:    issuer,
			Method:    txn.MethodUPI,
			Amount:    100,
		})
	}
	return out
}

func fillBuffer(buf *generator.RingBuffer, txns []txn.Transaction) {
	for _, t := range txns {
		buf.Append(t)
	}
}

func TestWindow_DegeneracyRuleFallsBackToLast50(t *testing.T) {
	buf := generator.NewRingBuffer(200)
	// 100 old transactions far outside the window, plus 10 recent ones.
	fillBuffer(buf, makeTxns(100, 0, "HDFC"))
	fillBuffer(buf, makeTxns(10, 1_000_000, "HDFC"))

	w := New(1000) // 1 second window
	w.Update(buf, 1_000_100)

	// Only 10 transactions fall within [now-1000, now], but the buffer has
	// >= 50 total, so the window must fall back to the last 50.
	assert.Len(t, w.Transactions(), 50)
}

func TestWindow_UsesTimeWindowWhenEnoughSamplesFallInside(t *testing.T) {
	buf := generator.NewRingBuffer(200)
	fillBuffer(buf, makeTxns(60, 1_000_000, "HDFC"))

	w := New(1000)
	w.Update(buf, 1_000_060)

	assert.Len(t, w.Transactions(), 60)
}

func TestWindow_UpdateIsIdempotent(t *testing.T) {
	buf := generator.NewRingBuffer(200)
	fillBuffer(buf, makeTxns(80, 1_000_000, "ICICI"))

	w := New(1000)
	w.Update(buf, 1_000_080)
	first := w.Stats()

	w.Update(buf, 1_000_080)
	second := w.Stats()

	assert.Equal(t, first, second)
}

func TestWindow_DimensionStatsGroupedCorrectly(t *testing.T) {
	buf := generator.NewRingBuffer(200)
	fillBuffer(buf, makeTxns(60, 1_000_000, "HDFC"))
	fillBuffer(buf, makeTxns(60, 1_000_000, "ICICI"))

	w := New(1000)
	w.Update(buf, 1_000_060)

	hdfc, ok := w.DimensionStats("issuer:HDFC")
	require.True(t, ok)
	assert.Equal(t, 60, hdfc.Total)

	global, ok := w.DimensionStats("global")
	require.True(t, ok)
	assert.Equal(t, 120, global.Total)
}

func TestWindow_ValidatorDropsInvalidAndCounts(t *testing.T) {
	buf := generator.NewRingBuffer(200)
	txns := makeTxns(60, 1_000_000, "HDFC")
	txns[0].Issuer = "" // invalid
	fillBuffer(buf, txns)

	w := New(1000)
	w.SetValidator(DefaultValidator)
	w.Update(buf, 1_000_060)

	assert.Len(t, w.Transactions(), 59)
	assert.Equal(t, 1, w.InvalidCount())
}

func TestComputeAggregateStats_Percentiles(t *testing.T) {
	txns := []txn.Transaction{}
	for i := 1; i <= 100; i++ {
		txns = append(txns, txn.Transaction{
			ID: "t", Outcome: txn.Success, LatencyMs: float64(i), Issuer: "X", Method: txn.MethodCard, Amount: 10,
		})
	}
	stats := ComputeAggregateStats(txns)
	assert.Equal(t, 100, stats.Total)
	assert.InDelta(t, 95, stats.P95LatencyMs, 1)
	assert.InDelta(t, 99, stats.P99LatencyMs, 1)
}
