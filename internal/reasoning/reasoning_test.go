package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/sentinel/internal/baseline"
	"github.com/payops/sentinel/internal/txn"
)

func hdfcOutage(n int) []txn.Transaction {
	out := make([]txn.Transaction, 0, n)
	for i := 0; i < n; i++ {
		outcome := txn.Success
		errorCode := ""
		if i%3 != 0 {
			outcome = txn.HardFail
			errorCode = "ISSUER_DOWN"
		}
		out = append(out, txn.Transaction{
			ID: "t", Outcome: outcome, ErrorCode: errorCode, LatencyMs: 500, RetryCount: 3,
			Issuer: "HDFC", Method: txn.MethodUPI, Amount: 100,
		})
	}
	return out
}

func TestConfidenceScorer_ZeroWithoutFailures(t *testing.T) {
	s := NewConfidenceScorer()
	txns := []txn.Transaction{{ID: "a", Outcome: txn.Success, Issuer: "X", Method: txn.MethodCard, Amount: 1}}
	score := s.Score(txns, 0.5)
	assert.Equal(t, 0.0, score)
}

func TestConfidenceScorer_HighConsistencyWhenAllSameErrorCode(t *testing.T) {
	s := NewConfidenceScorer()
	txns := hdfcOutage(90)
	score := s.Score(txns, 3.0)
	assert.Greater(t, score, 0.5)
}

func TestBaselineDeviationScore_PiecewiseBounds(t *testing.T) {
	assert.Equal(t, 0.0, BaselineDeviationScore(0.5))
	assert.Equal(t, 0.0, BaselineDeviationScore(1.0))
	assert.Equal(t, 1.0, BaselineDeviationScore(3.0))
	assert.Equal(t, 1.0, BaselineDeviationScore(10.0))
	assert.InDelta(t, 0.5, BaselineDeviationScore(2.0), 1e-9)
}

func seedReadyBaseline() *baseline.RollingBaseline {
	b := &baseline.RollingBaseline{Dimension: "issuer:HDFC", Alpha: 0.3}
	b.Update(0.95, 150, 0, 1000)
	b.Update(0.95, 150, 0, 2000)
	b.Update(0.95, 150, 0, 3000)
	return b
}

func TestAnomalyDetector_DetectsIssuerDegradation(t *testing.T) {
	d := NewAnomalyDetector()
	b := seedReadyBaseline()

	patterns := d.Detect("issuer:HDFC", hdfcOutage(100), b, 0, 4000)
	require.NotEmpty(t, patterns)
	assert.Equal(t, PatternIssuerDegradation, patterns[0].Kind)
	assert.GreaterOrEqual(t, patterns[0].Severity, 0.0)
}

func TestAnomalyDetector_RequiresMinimumTransactions(t *testing.T) {
	d := NewAnomalyDetector()
	b := seedReadyBaseline()

	patterns := d.Detect("issuer:HDFC", hdfcOutage(5), b, 0, 4000)
	assert.Empty(t, patterns)
}

func TestAnomalyDetector_RequiresReadyBaseline(t *testing.T) {
	d := NewAnomalyDetector()
	notReady := &baseline.RollingBaseline{Dimension: "issuer:HDFC", Alpha: 0.3}
	notReady.Update(0.95, 150, 0, 1000)

	patterns := d.Detect("issuer:HDFC", hdfcOutage(100), notReady, 0, 4000)
	assert.Empty(t, patterns)
}

func TestAnomalyDetector_LatencySpike(t *testing.T) {
	d := NewAnomalyDetector()
	b := seedReadyBaseline()
	txns := make([]txn.Transaction, 0, 20)
	for i := 0; i < 20; i++ {
		txns = append(txns, txn.Transaction{ID: "t", Outcome: txn.Success, LatencyMs: 1000, Issuer: "HDFC", Method: txn.MethodCard, Amount: 10})
	}

	patterns := d.Detect("issuer:HDFC", txns, b, 100, 5000)
	var found bool
	for _, p := range patterns {
		if p.Kind == PatternLatencySpike {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPatternDetector_RetryStorm(t *testing.T) {
	p := NewPatternDetector()
	txns := make([]txn.Transaction, 0, 80)
	for i := 0; i < 80; i++ {
		retries := 0
		outcome := txn.Success
		if i%3 == 0 {
			retries = 5
			outcome = txn.SoftFail
		}
		txns = append(txns, txn.Transaction{ID: "t", Outcome: outcome, RetryCount: retries, Issuer: "HDFC", Method: txn.MethodUPI, Amount: 10})
	}

	patterns := p.Detect(txns, 1000)
	var found bool
	for _, pat := range patterns {
		if pat.Kind == PatternRetryStorm {
			found = true
			assert.GreaterOrEqual(t, pat.Severity, 0.2)
		}
	}
	assert.True(t, found)
}

func TestPatternDetector_IssuerDegradation(t *testing.T) {
	p := NewPatternDetector()
	txns := hdfcOutage(100)
	// alternate HDFC/ICICI so ICICI (all success) doesn't trip anything
	for i := range txns {
		if i%2 == 1 {
			txns[i].Issuer = "ICICI"
			txns[i].Outcome = txn.Success
			txns[i].ErrorCode = ""
		}
	}

	patterns := p.Detect(txns, 1000)
	var foundIssuer bool
	for _, pat := range patterns {
		if pat.Kind == PatternIssuerDegradation && pat.AffectedDimension == "issuer:HDFC" {
			foundIssuer = true
		}
	}
	assert.True(t, foundIssuer)
}

func TestHypothesisGenerator_EmitsFromCatalog(t *testing.T) {
	g := NewGenerator()
	patterns := []DetectedPattern{{Kind: PatternIssuerDegradation, AffectedDimension: "issuer:HDFC", Severity: 0.5}}
	hyps := g.Generate(patterns)
	require.NotEmpty(t, hyps)
	for _, h := range hyps {
		assert.NotEmpty(t, h.RootCause)
		assert.Greater(t, h.Confidence, 0.0)
	}
}

func TestBeliefManager_HealthAndUncertainty(t *testing.T) {
	bm := NewBeliefManager()
	initial := bm.State()
	assert.Equal(t, 1.0, initial.SystemHealth)

	hyps := []Hypothesis{{Confidence: 0.8}, {Confidence: 0.2}}
	state := bm.Update(hyps, 1000)

	assert.InDelta(t, 1-0.5*0.5, state.SystemHealth, 1e-9)
	assert.GreaterOrEqual(t, state.Uncertainty, 0.0)
	assert.LessOrEqual(t, state.Uncertainty, 1.0)
}

func TestBeliefManager_NeverPrunesUntilReset(t *testing.T) {
	bm := NewBeliefManager()
	bm.Update([]Hypothesis{{Confidence: 0.5}}, 1000)
	bm.Update([]Hypothesis{{Confidence: 0.6}}, 2000)
	assert.Len(t, bm.State().Hypotheses, 2)

	bm.Reset()
	assert.Empty(t, bm.State().Hypotheses)
}

func TestNormalizeDimension_AcceptsBothSeparators(t *testing.T) {
	assert.Equal(t, "issuer:HDFC", NormalizeDimension("issuer:HDFC"))
	assert.Equal(t, "issuer:HDFC", NormalizeDimension("issuer=HDFC"))
	assert.Equal(t, "issuer", DimensionKind("issuer=HDFC"))
}
