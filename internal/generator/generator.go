// Package generator emits synthetic payment transactions from the current
// drift state, subject to feedback multipliers, into a bounded ring
// buffer. It is the sole mutator of the ring buffer and of its own
// multiplier set — the Feedback Controller only calls the exported
// Set*Multiplier/ClearMultipliers methods, never reaches into generator
// state directly.
package generator

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/payops/sentinel/internal/drift"
	"github.com/payops/sentinel/internal/txn"
)

// IssuerSource is the read-only view of drift state the Generator needs.
// internal/drift.Engine satisfies this; tests can supply a fake.
type IssuerSource interface {
	Issuers() []string
	Get(issuer string) (drift.IssuerState, bool)
}

// Multipliers holds the per-issuer feedback knobs the Feedback Controller
// mutates. Neutral values are 1.0 for volume and retry, 1.0 for success
// (i.e. "no effect").
type Multipliers struct {
	Volume  map[string]float64
	Success map[string]float64
	Retry   map[string]float64
}

func neutralMultipliers() Multipliers {
	return Multipliers{
		Volume:  make(map[string]float64),
		Success: make(map[string]float64),
		Retry:   make(map[string]float64),
	}
}

// Generator owns a ring buffer of transactions and the multiplier set the
// Feedback Controller uses to shape traffic.
type Generator struct {
	mu sync.Mutex

	source IssuerSource
	buffer *RingBuffer
	mult   Multipliers

	rate float64 // transactions per second at baseline

	rng     *rand.Rand
	idSeq   uint64
	idPfx   string
	logger  *slog.Logger
}

// New creates a Generator reading issuer state from source, buffering up
// to bufferCapacity transactions, emitting at rate transactions/sec at
// baseline (before multipliers). seed fixes the RNG for deterministic
// tests.
func New(source IssuerSource, bufferCapacity int, rate float64, seed uint64, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		source: source,
		buffer: NewRingBuffer(bufferCapacity),
		mult:   neutralMultipliers(),
		rate:   rate,
		rng:    rand.New(rand.NewPCG(seed, seed^0xd1b54a32d192ed03)),
		idPfx:  "txn",
		logger: logger.With("component", "generator.Generator"),
	}
}

// SetVolumeMultiplier, SetSuccessMultiplier, SetRetryMultiplier are called
// only by the Feedback Controller to reshape traffic for one issuer.
func (g *Generator) SetVolumeMultiplier(issuer string, m float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mult.Volume[issuer] = m
}

func (g *Generator) SetSuccessMultiplier(issuer string, m float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mult.Success[issuer] = m
}

// SetRetryMultiplier sets the global retry multiplier.
func (g *Generator) SetRetryMultiplier(m float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mult.Retry["global"] = m
}

// ClearMultipliers resets every multiplier to neutral.
func (g *Generator) ClearMultipliers() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mult = neutralMultipliers()
}

// Multipliers returns a copy of the current multiplier set, for telemetry
// and tests.
func (g *Generator) Multipliers() Multipliers {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Multipliers{
		Volume:  cloneMap(g.mult.Volume),
		Success: cloneMap(g.mult.Success),
		Retry:   cloneMap(g.mult.Retry),
	}
}

func cloneMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Buffer exposes the underlying ring buffer for the Observation Window.
func (g *Generator) Buffer() *RingBuffer {
	return g.buffer
}

func (g *Generator) retryMultiplier() float64 {
	if m, ok := g.mult.Retry["global"]; ok {
		return m
	}
	return 1.0
}

// GenerateNextBatch emits ceil(rate*dt) transactions (at least 1 when
// dt > 0) spread evenly across the [now-dt*1000, now] window, and appends
// them to the ring buffer. now is ms since epoch; dt is seconds.
func (g *Generator) GenerateNextBatch(dt float64, now int64) []txn.Transaction {
	if dt <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	n := int(math.Ceil(g.rate * dt))
	if n < 1 {
		n = 1
	}

	issuers := g.source.Issuers()
	if len(issuers) == 0 {
		return nil
	}

	windowStartMs := now - int64(dt*1000)
	spanMs := now - windowStartMs
	if spanMs <= 0 {
		spanMs = 1
	}

	out := make([]txn.Transaction, 0, n)
	for i := 0; i < n; i++ {
		issuer := g.pickIssuer(issuers)
		state, ok := g.source.Get(issuer)
		if !ok {
			continue
		}

		ts := windowStartMs + int64(float64(i)/float64(n)*float64(spanMs))
		t := g.emitOne(issuer, state, ts)
		out = append(out, t)
		g.buffer.Append(t)
	}

	return out
}

// pickIssuer does volume-weighted random selection using the current
// volume multipliers. If every multiplier is zero (or unset, which is
// neutral = 1.0), falls back to uniform selection.
func (g *Generator) pickIssuer(issuers []string) string {
	weights := make([]float64, len(issuers))
	var total float64
	for i, iss := range issuers {
		w, ok := g.mult.Volume[iss]
		if !ok {
			w = 1.0
		}
		weights[i] = w
		total += w
	}

	if total <= 0 {
		return issuers[g.rng.IntN(len(issuers))]
	}

	r := g.rng.Float64() * total
	var cum float64
	for i, w := range weights {
		cum += w
		if r <= cum {
			return issuers[i]
		}
	}
	return issuers[len(issuers)-1]
}

func (g *Generator) emitOne(issuer string, state drift.IssuerState, ts int64) txn.Transaction {
	successMult, ok := g.mult.Success[issuer]
	if !ok {
		successMult = 1.0
	}
	effectiveSuccess := clamp01(state.SuccessRate * successMult)

	var outcome txn.Outcome
	errorCode := ""
	draw := g.rng.Float64()
	switch {
	case draw < effectiveSuccess:
		outcome = txn.Success
	case g.rng.Float64() < 0.7:
		outcome = txn.SoftFail
		errorCode = "SOFT_DECLINE"
	default:
		outcome = txn.HardFail
		errorCode = "ISSUER_DOWN"
	}

	noise := 1.0 + (g.rng.Float64()*0.4 - 0.2) // +-20%
	latency := clamp(state.LatencyMs*noise, 50, 2000)

	retryMult := g.retryMultiplier()
	retries := 0
	if g.rng.Float64() < state.RetryProbability*retryMult {
		retries = sampleExponentialCapped(g.rng, 2.0, 10)
	}

	g.idSeq++
	return txn.Transaction{
		ID:         fmt.Sprintf("%s_%d", g.idPfx, g.idSeq),
		Timestamp:  ts,
		Outcome:    outcome,
		ErrorCode:  errorCode,
		LatencyMs:  latency,
		RetryCount: retries,
		Method:     pickMethod(g.rng),
		Issuer:     issuer,
		Merchant:   "merchant_default",
		Amount:     100 + g.rng.Float64()*900,
	}
}

func pickMethod(r *rand.Rand) txn.Method {
	methods := []txn.Method{txn.MethodUPI, txn.MethodCard, txn.MethodNetBanking, txn.MethodWallet}
	return methods[r.IntN(len(methods))]
}

// sampleExponentialCapped draws from an exponential distribution with the
// given mean, rounds to the nearest integer retry count, and caps it.
func sampleExponentialCapped(r *rand.Rand, mean float64, cap int) int {
	u := r.Float64()
	if u <= 0 {
		u = 1e-9
	}
	v := -mean * math.Log(u)
	n := int(math.Round(v))
	if n < 1 {
		n = 1
	}
	if n > cap {
		n = cap
	}
	return n
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
