package drift

// Clamp ranges for the three IssuerState parameters.
const (
	SuccessMin = 0.0
	SuccessMax = 1.0

	LatencyMin = 50.0
	LatencyMax = 2000.0

	RetryProbMin = 0.0
	RetryProbMax = 0.5
)

// IssuerState is the drift-owned state for a single issuer. It is mutated
// only by Engine.Update; every other reader treats it as a snapshot.
type IssuerState struct {
	Issuer           string  `json:"issuer"`
	SuccessRate      float64 `json:"success_rate"`
	LatencyMs        float64 `json:"latency_ms"`
	RetryProbability float64 `json:"retry_probability"`
	LastUpdated      int64   `json:"last_updated"` // ms since Unix epoch
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

// clampAll clamps all three parameters into their documented ranges. It is
// called at the end of every Engine.Update step so the invariant in spec
// holds unconditionally, regardless of the magnitude of a single
// drift step.
func (s *IssuerState) clampAll() {
	s.SuccessRate = clamp(s.SuccessRate, SuccessMin, SuccessMax)
	s.LatencyMs = clamp(s.LatencyMs, LatencyMin, LatencyMax)
	s.RetryProbability = clamp(s.RetryProbability, RetryProbMin, RetryProbMax)
}
