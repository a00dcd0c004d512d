package reasoning

import "math"

// BeliefState is the running summary of the agent's current hypotheses
// about system health.
type BeliefState struct {
	Hypotheses   []Hypothesis `json:"hypotheses"`
	SystemHealth float64      `json:"system_health"`
	Uncertainty  float64      `json:"uncertainty"`
	LastUpdated  int64        `json:"last_updated"`
}

// BeliefManager appends new hypotheses to a running list and recomputes
// the derived health/uncertainty scores. It never prunes on its own —
// callers reset explicitly via Reset.
type BeliefManager struct {
	state BeliefState
}

// NewBeliefManager creates a BeliefManager with a perfectly healthy,
// zero-uncertainty initial state.
func NewBeliefManager() *BeliefManager {
	return &BeliefManager{
		state: BeliefState{SystemHealth: 1.0, Uncertainty: 0},
	}
}

// Update appends newHypotheses to the running list and recomputes
// SystemHealth and Uncertainty:
//
//	health      = 1 - 0.5*mean(confidence)
//	uncertainty = min(1, 2*variance(confidence - 0.5))
func (m *BeliefManager) Update(newHypotheses []Hypothesis, now int64) BeliefState {
	m.state.Hypotheses = append(m.state.Hypotheses, newHypotheses...)
	m.state.LastUpdated = now

	if len(m.state.Hypotheses) == 0 {
		m.state.SystemHealth = 1.0
		m.state.Uncertainty = 0
		return m.state
	}

	var sum float64
	for _, h := range m.state.Hypotheses {
		sum += h.Confidence
	}
	mean := sum / float64(len(m.state.Hypotheses))

	var varSum float64
	for _, h := range m.state.Hypotheses {
		d := h.Confidence - 0.5
		varSum += d * d
	}
	// variance of (confidence - 0.5) around its own mean-of-zero-centered
	// series: spec defines this as variance(confidence-0.5), i.e. the
	// second moment of the centered series rather than variance around
	// the series' own mean, so the centering point is always 0.5.
	variance := varSum / float64(len(m.state.Hypotheses))

	m.state.SystemHealth = 1 - 0.5*mean
	m.state.Uncertainty = math.Min(1, 2*variance)

	return m.state
}

// State returns the current belief state.
func (m *BeliefManager) State() BeliefState {
	return m.state
}

// Reset clears the hypothesis list back to a perfectly healthy state.
func (m *BeliefManager) Reset() {
	m.state = BeliefState{SystemHealth: 1.0, Uncertainty: 0}
}

// Restore replaces the belief state wholesale (used when loading a
// persisted AgentState).
func (m *BeliefManager) Restore(s BeliefState) {
	m.state = s
}
