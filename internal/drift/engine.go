// Package drift simulates per-issuer payment-rail health as a
// mean-reverting stochastic process. Engine is the sole mutator of
// IssuerState; every other component in this repository only reads
// snapshots of it.
package drift

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
)

// OUParams configures an Ornstein-Uhlenbeck process for one dimension:
// dx = theta*(mu-x)*dt + sigma*sqrt(dt)*N(0,1).
type OUParams struct {
	Theta float64 // mean-reversion speed
	Mu    float64 // long-run mean
	Sigma float64 // volatility
}

// RetrySpikeParams configures the additional Poisson-like spike mechanism
// layered onto the retry-probability dimension.
type RetrySpikeParams struct {
	Prob      float64 // spike probability per unit dt
	Magnitude float64 // amount added to retry probability on a spike
	DecayRate float64 // multiplicative decay toward 0 per unit dt
}

// IssuerParams bundles the three OU processes plus the retry-spike
// mechanism for a single issuer.
type IssuerParams struct {
	Success OUParams
	Latency OUParams
	Retry   OUParams
	Spike   RetrySpikeParams
}

// Engine owns a mapping issuer -> IssuerState and advances it each tick.
// It is safe for concurrent reads via Snapshot/Get; Update must only be
// called from the Continuous Loop's single goroutine.
type Engine struct {
	mu sync.RWMutex

	states map[string]*IssuerState
	params map[string]IssuerParams

	// timeScale multiplies dt before it reaches every OU step and the
	// spike probability, supporting accelerated simulation.
	timeScale float64

	rng    *rand.Rand
	logger *slog.Logger
}

// New creates a drift Engine. seed fixes the RNG for deterministic tests;
// pass a random seed (e.g. derived from time) in production.
func New(seed uint64, timeScale float64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if timeScale <= 0 {
		timeScale = 1.0
	}
	return &Engine{
		states:    make(map[string]*IssuerState),
		params:    make(map[string]IssuerParams),
		timeScale: timeScale,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger:    logger.With("component", "drift.Engine"),
	}
}

// Seed registers an issuer's initial state and its OU/spike parameters.
// Calling Seed again for the same issuer replaces both.
func (e *Engine) Seed(issuer string, initial IssuerState, params IssuerParams) {
	e.mu.Lock()
	defer e.mu.Unlock()

	initial.Issuer = issuer
	initial.clampAll()
	e.states[issuer] = &initial
	e.params[issuer] = params
}

// Issuers returns the set of issuer names currently tracked.
func (e *Engine) Issuers() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.states))
	for k := range e.states {
		out = append(out, k)
	}
	return out
}

// Get returns a copy of the current state for issuer, and whether it
// exists.
func (e *Engine) Get(issuer string) (IssuerState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.states[issuer]
	if !ok {
		return IssuerState{}, false
	}
	return *s, true
}

// Snapshot returns a copy of every tracked issuer's state.
func (e *Engine) Snapshot() map[string]IssuerState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]IssuerState, len(e.states))
	for k, v := range e.states {
		out[k] = *v
	}
	return out
}

// Update advances every tracked issuer's state by one tick of width dt
// (seconds), timestamped at now (ms since epoch). dt is scaled by the
// engine's timeScale before being applied to every process.
func (e *Engine) Update(dt float64, now int64) {
	if dt <= 0 {
		return
	}
	scaledDt := dt * e.timeScale

	e.mu.Lock()
	defer e.mu.Unlock()

	for issuer, state := range e.states {
		p := e.params[issuer]

		state.SuccessRate = e.stepOU(state.SuccessRate, p.Success, scaledDt)
		state.LatencyMs = e.stepOU(state.LatencyMs, p.Latency, scaledDt)
		state.RetryProbability = e.stepRetry(state.RetryProbability, p.Retry, p.Spike, scaledDt)

		state.LastUpdated = now
		state.clampAll()
	}
}

// stepOU advances a single dimension by one discretized OU step.
func (e *Engine) stepOU(x float64, p OUParams, dt float64) float64 {
	drift := p.Theta * (p.Mu - x) * dt
	noise := p.Sigma * math.Sqrt(dt) * e.rng.NormFloat64()
	return x + drift + noise
}

// stepRetry advances the retry-probability dimension: normal OU drift,
// plus a Poisson-like spike with probability spike.Prob*dt, plus a
// multiplicative decay toward zero when no spike occurs.
func (e *Engine) stepRetry(x float64, p OUParams, spike RetrySpikeParams, dt float64) float64 {
	x = e.stepOU(x, p, dt)

	if e.rng.Float64() < spike.Prob*dt {
		x += spike.Magnitude
	} else {
		x -= x * spike.DecayRate * dt
	}
	return x
}
