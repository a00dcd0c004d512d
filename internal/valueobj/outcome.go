// Package valueobj holds small value types shared across the reasoning,
// decision, and safety packages. It exists to break the forward-reference
// cycle between an intervention's expected outcome and the packages that
// both produce and consume it (see DESIGN.md).
package valueobj

// OutcomeEstimate is the expected effect of applying an intervention,
// expressed across the four axes the NRV calculator and pre-mortem
// analyzer both read.
type OutcomeEstimate struct {
	DeltaSuccess float64 `json:"delta_success"` // expected change in success rate, signed
	DeltaLatency float64 `json:"delta_latency"` // expected change in latency ms, signed
	DeltaCost    float64 `json:"delta_cost"`    // expected change in cost USD, signed
	Confidence   float64 `json:"confidence"`    // [0,1]
}

// Tradeoffs carries the five signed axes a candidate intervention trades
// against each other. Positive values mean "more of that axis"; the sign
// convention is axis-specific (e.g. positive RiskImpact is worse).
type Tradeoffs struct {
	SuccessImpact    float64 `json:"success_impact"`
	LatencyImpact    float64 `json:"latency_impact"`
	CostImpact       float64 `json:"cost_impact"`
	RiskImpact       float64 `json:"risk_impact"`
	FrictionImpact   float64 `json:"friction_impact"` // operator/customer friction introduced
}

// ImpactVector is the four-axis expected impact a Hypothesis carries.
// It mirrors OutcomeEstimate's axes but is attached to a root-cause guess
// rather than to a specific intervention.
type ImpactVector struct {
	SuccessRate float64 `json:"success_rate"`
	Latency     float64 `json:"latency"`
	Cost        float64 `json:"cost"`
	Risk        float64 `json:"risk"`
}
