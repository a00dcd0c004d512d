// Package trace persists the Continuous Loop's audit trail: one
// hash-chained CycleRecord per reasoning cycle, the InterventionRecords
// it produced, and the post-hoc EvaluationRecords the learning loop
// attaches once an intervention expires.
package trace

import (
	"encoding/json"
	"time"
)

// CycleRecord is the hash-chained audit entry for one full reasoning
// cycle of the Continuous Loop.
type CycleRecord struct {
	ID               string          `json:"id" db:"id"`
	CycleNumber      int64           `json:"cycle_number" db:"cycle_number"`
	Timestamp        time.Time       `json:"timestamp" db:"timestamp"`
	PatternsFound    int             `json:"patterns_found" db:"patterns_found"`
	HypothesesFound  int             `json:"hypotheses_found" db:"hypotheses_found"`
	ShouldAct        bool            `json:"should_act" db:"should_act"`
	SelectedKind     string          `json:"selected_kind,omitempty" db:"selected_kind"`
	SelectedTarget   string          `json:"selected_target,omitempty" db:"selected_target"`
	Rationale        string          `json:"rationale" db:"rationale"`
	NRV              float64         `json:"nrv" db:"nrv"`
	ZScore           float64         `json:"z_score" db:"z_score"`
	RiskScore        float64         `json:"risk_score" db:"risk_score"`
	RequiresApproval bool            `json:"requires_human_approval" db:"requires_human_approval"`
	InterventionID   string          `json:"intervention_id,omitempty" db:"intervention_id"`
	Explanation      json.RawMessage `json:"explanation,omitempty" db:"explanation"`
	PrevHash         string          `json:"prev_hash" db:"prev_hash"`
	Hash             string          `json:"hash" db:"hash"`
}

// InterventionRecord is the persisted lifecycle of one executed
// intervention, from execution through expiry/rollback.
type InterventionRecord struct {
	ID           string          `json:"id" db:"id"`
	CycleID      string          `json:"cycle_id" db:"cycle_id"`
	Kind         string          `json:"kind" db:"kind"`
	Target       string          `json:"target" db:"target"`
	Parameters   json.RawMessage `json:"parameters,omitempty" db:"parameters"`
	ExecutedAt   time.Time       `json:"executed_at" db:"executed_at"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
	RolledBackAt *time.Time      `json:"rolled_back_at,omitempty" db:"rolled_back_at"`
	Success      bool            `json:"success" db:"success"`
	Error        string          `json:"error,omitempty" db:"error"`
}

// EvaluationRecord is the persisted post-hoc judgment the learning loop
// (internal/learning.Evaluator) produced for one expired intervention.
type EvaluationRecord struct {
	InterventionID string    `json:"intervention_id" db:"intervention_id"`
	AccuracyScore  float64   `json:"accuracy_score" db:"accuracy_score"`
	Success        bool      `json:"success" db:"success"`
	Learnings      string    `json:"learnings,omitempty" db:"learnings"`
	EvaluatedAt    time.Time `json:"evaluated_at" db:"evaluated_at"`
}

// CycleFilter defines query parameters for listing cycle records.
type CycleFilter struct {
	ShouldActOnly bool
	Since         *time.Time
	Until         *time.Time
	Limit         int
	Offset        int
}

// InterventionFilter defines query parameters for listing interventions.
type InterventionFilter struct {
	Kind   string
	Target string
	Since  *time.Time
	Limit  int
	Offset int
}

// SystemStats holds aggregate system metrics for the dashboard/CLI
// `status` subcommand.
type SystemStats struct {
	TotalCycles        int64   `json:"total_cycles"`
	TotalInterventions int64   `json:"total_interventions"`
	ActionRate         float64 `json:"action_rate"`
	AvgNRV             float64 `json:"avg_nrv"`
	TotalEvaluations   int64   `json:"total_evaluations"`
	SuccessRate        float64 `json:"evaluation_success_rate"`
}
