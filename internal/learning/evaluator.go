package learning

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/payops/sentinel/internal/valueobj"
)

// Evaluation is the accuracy/success judgment for one intervention,
// comparing its expected outcome against what actually happened.
type Evaluation struct {
	InterventionID         string                   `json:"intervention_id"`
	ExpectedOutcome        valueobj.OutcomeEstimate `json:"expected_outcome"`
	ActualOutcome          ActualOutcome            `json:"actual_outcome"`
	AccuracyScore          float64                  `json:"accuracy_score"`
	Success                bool                     `json:"success"`
	Learnings              []string                 `json:"learnings"`
	RecommendedAdjustments []ModelAdjustment        `json:"recommended_adjustments"`
}

// Evaluator scores completed interventions against their original
// prediction and keeps the history for Updater.UpdateThresholds.
type Evaluator struct {
	mu          sync.Mutex
	evaluations map[string]Evaluation
	logger      *slog.Logger
}

// NewEvaluator creates an Outcome Evaluator.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		evaluations: make(map[string]Evaluation),
		logger:      logger.With("component", "learning.Evaluator"),
	}
}

// Evaluate scores how well actual matched expected and records the
// result. Accuracy is 1 minus the normalized error across success-rate
// and latency deltas; success additionally requires the actual
// success-rate improvement to be at least half of what was predicted,
// with no unexpected effects.
func (e *Evaluator) Evaluate(interventionID string, expected valueobj.OutcomeEstimate, actual ActualOutcome) Evaluation {
	successRateError := absF(expected.DeltaSuccess - actual.SuccessRateChange)
	latencyError := absF(expected.DeltaLatency - actual.LatencyChangeMs)

	accuracy := 1.0 - minF(1.0, (successRateError+latencyError/1000.0)/2.0)

	success := actual.SuccessRateChange >= expected.DeltaSuccess*0.5 && len(actual.UnexpectedEffects) == 0

	var learnings []string
	if success {
		learnings = append(learnings, fmt.Sprintf("intervention achieved %.1f%% success rate improvement", actual.SuccessRateChange*100))
	} else {
		learnings = append(learnings, fmt.Sprintf("intervention underperformed: %.1f%% vs expected %.1f%%", actual.SuccessRateChange*100, expected.DeltaSuccess*100))
	}
	if len(actual.UnexpectedEffects) > 0 {
		learnings = append(learnings, fmt.Sprintf("unexpected effects: %v", actual.UnexpectedEffects))
	}

	evaluation := Evaluation{
		InterventionID:  interventionID,
		ExpectedOutcome: expected,
		ActualOutcome:   actual,
		AccuracyScore:   accuracy,
		Success:         success,
		Learnings:       learnings,
	}

	e.mu.Lock()
	e.evaluations[interventionID] = evaluation
	e.mu.Unlock()

	e.logger.Info("intervention evaluated", "intervention_id", interventionID, "accuracy", accuracy, "success", success)
	return evaluation
}

// Get returns a previously recorded evaluation, if any.
func (e *Evaluator) Get(interventionID string) (Evaluation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ev, ok := e.evaluations[interventionID]
	return ev, ok
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
