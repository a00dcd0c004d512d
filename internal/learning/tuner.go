package learning

import (
	"fmt"
	"log/slog"
	"sync"
)

// ModelAdjustment records one nudge to a scalar model parameter, with the
// reasoning that produced it.
type ModelAdjustment struct {
	Parameter string  `json:"parameter"`
	OldValue  float64 `json:"old_value"`
	NewValue  float64 `json:"new_value"`
	Reason    string  `json:"reason"`
}

const (
	confidenceStep          = 0.05
	confidenceFloor         = 0.1
	confidenceCeiling       = 0.95
	denialConfidencePenalty = 0.1
	trendWindow             = 20
)

// Updater nudges confidence modifiers and thresholds based on observed
// accuracy, without ever changing structural behavior (see Non-goals).
// The values live only inside the Updater: it exposes them through the
// adjustments it returns and GetParameterTrend, and no other package
// reads them back.
type Updater struct {
	mu         sync.Mutex
	confidence map[string]float64
	thresholds map[string]float64
	history    map[string][]float64
	logger     *slog.Logger
}

// NewUpdater creates a Model Updater with neutral starting confidence
// (0.5) for every dimension it has not yet seen.
func NewUpdater(logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		confidence: make(map[string]float64),
		thresholds: make(map[string]float64),
		history:    make(map[string][]float64),
		logger:     logger.With("component", "learning.Updater"),
	}
}

func (u *Updater) confidenceFor(dimension string) float64 {
	if v, ok := u.confidence[dimension]; ok {
		return v
	}
	return 0.5
}

// AdjustConfidence nudges the confidence modifier for dimension up when
// the evaluated intervention succeeded, down when it didn't, clamped to
// [confidenceFloor, confidenceCeiling].
func (u *Updater) AdjustConfidence(dimension string, wasCorrect bool) ModelAdjustment {
	u.mu.Lock()
	defer u.mu.Unlock()

	old := u.confidenceFor(dimension)
	next := old
	reason := fmt.Sprintf("%s was correct, reinforcing confidence", dimension)
	if wasCorrect {
		next = old + confidenceStep
	} else {
		next = old - confidenceStep
		reason = fmt.Sprintf("%s was incorrect, reducing confidence", dimension)
	}
	next = clamp(next, confidenceFloor, confidenceCeiling)

	u.confidence[dimension] = next
	u.recordLocked("confidence."+dimension, next)

	adjustment := ModelAdjustment{Parameter: "confidence." + dimension, OldValue: old, NewValue: next, Reason: reason}
	u.logger.Info("confidence adjusted", "dimension", dimension, "old", old, "new", next)
	return adjustment
}

// LearnFromDenial records that a human operator denied a proposed
// intervention and permanently lowers the Updater's stored confidence for
// that action kind. The Decision Policy does not read this value.
func (u *Updater) LearnFromDenial(actionKind string, reason string) ModelAdjustment {
	u.mu.Lock()
	defer u.mu.Unlock()

	old := u.confidenceFor(actionKind)
	next := clamp(old-denialConfidencePenalty, confidenceFloor, confidenceCeiling)

	u.confidence[actionKind] = next
	u.recordLocked("confidence."+actionKind, next)

	adjustment := ModelAdjustment{
		Parameter: "confidence." + actionKind,
		OldValue:  old,
		NewValue:  next,
		Reason:    fmt.Sprintf("operator denied %s: %s", actionKind, reason),
	}
	u.logger.Warn("learned from denial", "action_kind", actionKind, "reason", reason, "new_confidence", next)
	return adjustment
}

// UpdateThresholds records a batch of evaluations' mean accuracy in the
// parameter's trend and, when that batch mean falls below 0.5 or above
// 0.9, scales the threshold (x1.2 or x0.9) and emits the adjustment.
func (u *Updater) UpdateThresholds(parameter string, evaluations []Evaluation) []ModelAdjustment {
	if len(evaluations) == 0 {
		return nil
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	var sum float64
	for _, ev := range evaluations {
		sum += ev.AccuracyScore
	}
	meanAccuracy := sum / float64(len(evaluations))
	u.recordLocked(parameter, meanAccuracy)

	old, ok := u.thresholds[parameter]
	if !ok {
		old = u.defaultThreshold(parameter)
	}

	var next float64
	var reason string
	switch {
	case meanAccuracy < 0.5:
		next = old * 1.2
		reason = fmt.Sprintf("%s predictions averaging %.2f accuracy, loosening threshold", parameter, meanAccuracy)
	case meanAccuracy > 0.9:
		next = old * 0.9
		reason = fmt.Sprintf("%s predictions averaging %.2f accuracy, tightening threshold", parameter, meanAccuracy)
	default:
		return nil
	}

	u.thresholds[parameter] = next
	return []ModelAdjustment{{Parameter: parameter, OldValue: old, NewValue: next, Reason: reason}}
}

func (u *Updater) defaultThreshold(parameter string) float64 {
	switch parameter {
	case "degradation_threshold":
		return 0.05
	default:
		return 0.0
	}
}

// GetParameterTrend returns the most recent history (up to trendWindow
// samples) recorded for parameter, oldest first.
func (u *Updater) GetParameterTrend(parameter string) []float64 {
	u.mu.Lock()
	defer u.mu.Unlock()

	trend := u.history[parameter]
	out := make([]float64, len(trend))
	copy(out, trend)
	return out
}

func (u *Updater) recordLocked(parameter string, value float64) {
	h := append(u.history[parameter], value)
	if len(h) > trendWindow {
		h = h[len(h)-trendWindow:]
	}
	u.history[parameter] = h
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
