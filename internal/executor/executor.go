package executor

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/payops/sentinel/internal/decision"
)

// RollbackKind identifies how a rollback condition is triggered.
type RollbackKind string

const (
	RollbackTimeBased   RollbackKind = "time_based"
	RollbackMetricBased RollbackKind = "metric_based"
	RollbackManual      RollbackKind = "manual"
)

// RollbackCondition is one way an executed intervention may later be
// undone.
type RollbackCondition struct {
	Kind        RollbackKind `json:"kind"`
	Threshold   float64      `json:"threshold,omitempty"`
	Metric      string       `json:"metric,omitempty"`
	Description string       `json:"description"`
}

// ExecutionResult is the outcome of attempting to execute an
// InterventionOption.
type ExecutionResult struct {
	Success            bool                    `json:"success"`
	InterventionID     string                  `json:"intervention_id"`
	ExecutedAt         int64                   `json:"executed_at"`
	ExpiresAt          *int64                  `json:"expires_at,omitempty"`
	RollbackConditions []RollbackCondition     `json:"rollback_conditions"`
	ActualParameters   map[string]interface{} `json:"actual_parameters"`
	Error              string                  `json:"error,omitempty"`
}

// Guardrails bounds what the executor will allow regardless of what the
// Decision Policy selected.
type Guardrails struct {
	ApprovalThreshold      float64
	MaxSuppressionDuration int64 // ms
}

// activeRecord is the internal bookkeeping entry for one executed
// intervention. State machine: proposed -> executed -> (expired |
// rolled_back). "proposed" never appears here — a record is only stored
// once execution has succeeded.
type activeRecord struct {
	option decision.InterventionOption
	result ExecutionResult
}

// Executor validates candidates against Guardrails, applies them through
// an Effector, and tracks the resulting interventions until they expire or
// are rolled back.
type Executor struct {
	mu         sync.Mutex
	guardrails Guardrails
	effector   Effector
	active     map[string]activeRecord
	logger     *slog.Logger
}

// New creates an Executor.
func New(guardrails Guardrails, effector Effector, logger *slog.Logger) *Executor {
	if effector == nil {
		effector = NullEffector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		guardrails: guardrails,
		effector:   effector,
		active:     make(map[string]activeRecord),
		logger:     logger.With("component", "executor.Executor"),
	}
}

// Execute validates opt against the guardrails and, on pass, applies it
// through the Effector, mints an intervention ID, and records it as
// active. A guardrail failure returns a non-success ExecutionResult with
// an error string — it never panics and never blocks the loop: a single
// bad cycle must not kill the loop.
func (x *Executor) Execute(opt decision.InterventionOption, now int64) ExecutionResult {
	if err := x.checkGuardrails(opt); err != nil {
		x.logger.Warn("intervention rejected by guardrails", "kind", opt.Kind, "target", opt.Target, "error", err)
		return ExecutionResult{Success: false, Error: err.Error()}
	}

	id := ulid.Make().String()

	if err := x.effector.Apply(opt, id); err != nil {
		x.logger.Error("effector failed to apply intervention", "intervention_id", id, "error", err)
		return ExecutionResult{Success: false, Error: err.Error()}
	}

	result := ExecutionResult{
		Success:        true,
		InterventionID: id,
		ExecutedAt:     now,
		ActualParameters: opt.Parameters,
		RollbackConditions: []RollbackCondition{
			{Kind: RollbackTimeBased, Description: "expires automatically when the intervention's duration elapses"},
		},
	}

	if durationMs := opt.DurationMs(); durationMs > 0 {
		expires := now + durationMs
		result.ExpiresAt = &expires
	}

	x.mu.Lock()
	x.active[id] = activeRecord{option: opt, result: result}
	x.mu.Unlock()

	x.logger.Info("intervention executed", "intervention_id", id, "kind", opt.Kind, "target", opt.Target)
	return result
}

// checkGuardrails enforces spec blast radius must not exceed the
// approval threshold and duration must not exceed the maximum suppression
// duration.
func (x *Executor) checkGuardrails(opt decision.InterventionOption) error {
	if opt.BlastRadius > x.guardrails.ApprovalThreshold {
		return fmt.Errorf("blast_radius %.2f exceeds approval_threshold %.2f", opt.BlastRadius, x.guardrails.ApprovalThreshold)
	}
	if d := opt.DurationMs(); x.guardrails.MaxSuppressionDuration > 0 && d > x.guardrails.MaxSuppressionDuration {
		return fmt.Errorf("duration_ms %d exceeds max_suppression_duration %d", d, x.guardrails.MaxSuppressionDuration)
	}
	return nil
}

// Rollback removes an active intervention and tells the Effector to
// revert its side effects. Returns true if the intervention was present.
func (x *Executor) Rollback(id string) bool {
	x.mu.Lock()
	rec, ok := x.active[id]
	if ok {
		delete(x.active, id)
	}
	x.mu.Unlock()

	if !ok {
		return false
	}

	if err := x.effector.Revert(rec.option, id); err != nil {
		x.logger.Error("effector failed to revert intervention", "intervention_id", id, "error", err)
	}
	x.logger.Info("intervention rolled back", "intervention_id", id)
	return true
}

// ExpireStale removes and reverts every active intervention whose
// expires-at is <= now. Returns the list of expired intervention IDs.
func (x *Executor) ExpireStale(now int64) []string {
	x.mu.Lock()
	var expired []activeRecord
	for id, rec := range x.active {
		if rec.result.ExpiresAt != nil && *rec.result.ExpiresAt <= now {
			expired = append(expired, rec)
			delete(x.active, id)
		}
	}
	x.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, rec := range expired {
		if err := x.effector.Revert(rec.option, rec.result.InterventionID); err != nil {
			x.logger.Error("effector failed to revert expired intervention", "intervention_id", rec.result.InterventionID, "error", err)
		}
		ids = append(ids, rec.result.InterventionID)
	}
	return ids
}

// Active returns a snapshot of currently active interventions keyed by ID.
func (x *Executor) Active() map[string]decision.InterventionOption {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make(map[string]decision.InterventionOption, len(x.active))
	for id, rec := range x.active {
		out[id] = rec.option
	}
	return out
}

// ActiveCount returns the number of currently active interventions.
func (x *Executor) ActiveCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.active)
}
