package baseline

import (
	"log/slog"
	"sync"

	"github.com/payops/sentinel/internal/txn"
)

// Manager owns the set of RollingBaselines, keyed by dimension string. It
// is the only mutator of baseline state; all other readers treat
// RollingBaseline snapshots as immutable.
type Manager struct {
	mu        sync.RWMutex
	baselines map[string]*RollingBaseline
	alpha     float64
	logger    *slog.Logger
}

// New creates a baseline Manager using smoothing factor alpha for every
// new RollingBaseline it creates.
func New(alpha float64, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	return &Manager{
		baselines: make(map[string]*RollingBaseline),
		alpha:     alpha,
		logger:    logger.With("component", "baseline.Manager"),
	}
}

// UpdateRollingBaselines groups transactions by "issuer:<X>", "method:<Y>",
// and "global", and folds each non-empty group's (success_rate,
// avg_latency, avg_retry) into its RollingBaseline.
func (m *Manager) UpdateRollingBaselines(txns []txn.Transaction, now int64) {
	if len(txns) == 0 {
		return
	}

	groups := make(map[string][]txn.Transaction)
	for _, t := range txns {
		for _, key := range t.DimensionKeys() {
			groups[key] = append(groups[key], t)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for dim, group := range groups {
		if len(group) == 0 {
			continue
		}
		b, ok := m.baselines[dim]
		if !ok {
			b = &RollingBaseline{Dimension: dim, Alpha: m.alpha}
			m.baselines[dim] = b
		}

		var successes int
		var latencySum, retrySum float64
		for _, t := range group {
			if t.Outcome == txn.Success {
				successes++
			}
			latencySum += t.LatencyMs
			retrySum += float64(t.RetryCount)
		}
		n := float64(len(group))
		b.Update(float64(successes)/n, latencySum/n, retrySum/n, now)
	}
}

// Get returns a copy of the baseline for a dimension, and whether it
// exists.
func (m *Manager) Get(dimension string) (RollingBaseline, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.baselines[dimension]
	if !ok {
		return RollingBaseline{}, false
	}
	return *b, true
}

// Z computes the Z-score of value for metric against the named
// dimension's baseline. Returns (0, false) if no baseline exists yet.
func (m *Manager) Z(dimension string, value float64, metric Metric) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.baselines[dimension]
	if !ok {
		return 0, false
	}
	return b.Z(value, metric), true
}

// Snapshot returns a copy of every tracked dimension's baseline, for
// telemetry and state persistence.
func (m *Manager) Snapshot() map[string]RollingBaseline {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]RollingBaseline, len(m.baselines))
	for k, v := range m.baselines {
		out[k] = *v
	}
	return out
}

// Restore replaces the manager's baselines wholesale, used when loading a
// persisted AgentState.
func (m *Manager) Restore(snapshot map[string]RollingBaseline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baselines = make(map[string]*RollingBaseline, len(snapshot))
	for k, v := range snapshot {
		cp := v
		m.baselines[k] = &cp
	}
}
