// Package observation keeps a time-bounded slice of recent transactions
// and the aggregate statistics derived from it.
package observation

import (
	"sync"

	"github.com/payops/sentinel/internal/txn"
)

// minSampleSize is the degeneracy-rule threshold: if fewer
// than this many transactions fall inside the time window but the
// upstream buffer holds at least this many, the window falls back to the
// most recent minSampleSize transactions regardless of timestamp.
const minSampleSize = 50

// Source is the read-only upstream transaction buffer the Window pulls
// from. internal/generator.RingBuffer satisfies this.
type Source interface {
	Snapshot() []txn.Transaction
	Last(n int) []txn.Transaction
	Len() int
}

// Window holds the transactions within [now-duration, now] (or a
// degeneracy-rule fallback) along with the cached AggregateStats for that
// slice, and per-dimension aggregates grouped by issuer/method/global.
type Window struct {
	mu sync.RWMutex

	duration  int64 // ms
	txns      []txn.Transaction
	stats     AggregateStats
	dimStats  map[string]AggregateStats
	validator func(txn.Transaction) error

	invalidCount int
}

// New creates a Window spanning durationMs milliseconds.
func New(durationMs int64) *Window {
	return &Window{
		duration: durationMs,
		dimStats: make(map[string]AggregateStats),
	}
}

// SetValidator installs a validation hook; invalid transactions are
// dropped from the window and counted in InvalidCount rather than
// rejecting the whole Update call.
func (w *Window) SetValidator(v func(txn.Transaction) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.validator = v
}

// Update recomputes the window's contents from source as of now (ms since
// epoch). This is idempotent for a fixed (source contents, now) pair
//.
func (w *Window) Update(source Source, now int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	all := source.Snapshot()

	cutoff := now - w.duration
	inWindow := make([]txn.Transaction, 0, len(all))
	for _, t := range all {
		if t.Timestamp >= cutoff && t.Timestamp <= now {
			inWindow = append(inWindow, t)
		}
	}

	// Degeneracy rule: not enough samples inside the time window, but the
	// upstream buffer has enough overall -- fall back to the most recent
	// minSampleSize transactions regardless of timestamp.
	if len(inWindow) < minSampleSize && source.Len() >= minSampleSize {
		inWindow = source.Last(minSampleSize)
	}

	valid := inWindow
	if w.validator != nil {
		valid = make([]txn.Transaction, 0, len(inWindow))
		invalid := 0
		for _, t := range inWindow {
			if err := w.validator(t); err != nil {
				invalid++
				continue
			}
			valid = append(valid, t)
		}
		w.invalidCount += invalid
	}

	w.txns = valid
	w.stats = ComputeAggregateStats(valid)
	w.dimStats = computeDimensionalStats(valid)
}

// Transactions returns the current windowed transaction slice. The
// returned slice must not be mutated by callers.
func (w *Window) Transactions() []txn.Transaction {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.txns
}

// Stats returns the cached aggregate stats for the current window.
func (w *Window) Stats() AggregateStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// DimensionStats returns the cached aggregate stats for a specific
// dimension key ("issuer:X", "method:Y", "global"), and whether any
// transactions contributed to it.
func (w *Window) DimensionStats(dimension string) (AggregateStats, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.dimStats[dimension]
	return s, ok
}

// Dimensions returns every dimension key with at least one transaction in
// the current window.
func (w *Window) Dimensions() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.dimStats))
	for k := range w.dimStats {
		out = append(out, k)
	}
	return out
}

// InvalidCount returns the cumulative count of transactions rejected by
// the validator across all Update calls.
func (w *Window) InvalidCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.invalidCount
}

func computeDimensionalStats(txns []txn.Transaction) map[string]AggregateStats {
	groups := make(map[string][]txn.Transaction)
	for _, t := range txns {
		for _, key := range t.DimensionKeys() {
			groups[key] = append(groups[key], t)
		}
	}
	out := make(map[string]AggregateStats, len(groups))
	for k, g := range groups {
		out[k] = ComputeAggregateStats(g)
	}
	return out
}
