// Package decision turns detected patterns into a ranked, safety-aware
// intervention decision: the Intervention Planner generates candidates, the
// NRV Calculator scores them, and the Decision Policy picks one under a
// minimum-action-frequency guarantee.
package decision

import (
	"github.com/payops/sentinel/internal/valueobj"
)

// Kind identifies the shape of an intervention.
type Kind string

const (
	KindAdjustRetry         Kind = "adjust_retry"
	KindSuppressPath        Kind = "suppress_path"
	KindRerouteTraffic      Kind = "reroute_traffic"
	KindReduceRetryAttempts Kind = "reduce_retry_attempts"
	KindAlertOps            Kind = "alert_ops"
	KindNoAction            Kind = "no_action"
)

// InterventionOption is one candidate action the planner has proposed.
type InterventionOption struct {
	Kind        Kind                     `json:"kind"`
	Target      string                   `json:"target"`
	Parameters  map[string]interface{}   `json:"parameters"`
	Estimate    valueobj.OutcomeEstimate `json:"outcome_estimate"`
	Tradeoffs   valueobj.Tradeoffs       `json:"tradeoffs"`
	Reversible  bool                     `json:"reversible"`
	BlastRadius float64                  `json:"blast_radius"`
}

// DurationMs returns the option's duration_ms parameter, or 0 if absent or
// not a numeric type.
func (o InterventionOption) DurationMs() int64 {
	v, ok := o.Parameters["duration_ms"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// InterventionDecision is the outcome of running candidates through the
// Decision Policy.
type InterventionDecision struct {
	ShouldAct             bool                 `json:"should_act"`
	Selected              *InterventionOption  `json:"selected,omitempty"`
	Rationale             string               `json:"rationale"`
	Alternatives          []InterventionOption `json:"alternatives"`
	RequiresHumanApproval bool                 `json:"requires_human_approval"`
}
