package decision

import (
	"strings"

	"github.com/payops/sentinel/internal/reasoning"
	"github.com/payops/sentinel/internal/valueobj"
)

const (
	suppressPathDurationMs        = 5 * 60 * 1000
	reduceRetryAttemptsDurationMs = 10 * 60 * 1000
	rerouteTrafficDurationMs      = 5 * 60 * 1000

	suppressPathBlastRadius        = 0.2
	reduceRetryAttemptsBlastRadius = 0.5
	rerouteTrafficBlastRadius      = 0.3
	alertOpsBlastRadius            = 0.0
)

// Planner generates candidate interventions from detected patterns. It
// always includes a NO_ACTION candidate so downstream stages never have
// to special-case an empty candidate list.
type Planner struct{}

// NewPlanner creates an Intervention Planner.
func NewPlanner() *Planner { return &Planner{} }

// Plan returns one candidate for every detected pattern whose kind has a
// corresponding intervention, plus a trailing NO_ACTION candidate.
func (p *Planner) Plan(patterns []reasoning.DetectedPattern) []InterventionOption {
	options := make([]InterventionOption, 0, len(patterns)+1)

	for _, pat := range patterns {
		if opt, ok := p.candidateFor(pat); ok {
			options = append(options, opt)
		}
	}

	options = append(options, InterventionOption{
		Kind:       KindNoAction,
		Target:     "global",
		Parameters: map[string]interface{}{},
		Reversible: true,
	})

	return options
}

func (p *Planner) candidateFor(pat reasoning.DetectedPattern) (InterventionOption, bool) {
	target := targetFromDimension(pat.AffectedDimension)

	switch pat.Kind {
	case reasoning.PatternIssuerDegradation:
		return InterventionOption{
			Kind:        KindSuppressPath,
			Target:      target,
			Parameters:  map[string]interface{}{"duration_ms": int64(suppressPathDurationMs)},
			Estimate:    valueobj.OutcomeEstimate{DeltaSuccess: 0.3, DeltaLatency: -50, DeltaCost: 0.05, Confidence: pat.Severity},
			Tradeoffs:   valueobj.Tradeoffs{SuccessImpact: 0.3, LatencyImpact: -0.1, CostImpact: 0.05, RiskImpact: -0.2, FrictionImpact: 0.1},
			Reversible:  true,
			BlastRadius: suppressPathBlastRadius,
		}, true

	case reasoning.PatternRetryStorm:
		return InterventionOption{
			Kind:        KindReduceRetryAttempts,
			Target:      target,
			Parameters:  map[string]interface{}{"duration_ms": int64(reduceRetryAttemptsDurationMs)},
			Estimate:    valueobj.OutcomeEstimate{DeltaSuccess: 0.1, DeltaLatency: -100, DeltaCost: 0.02, Confidence: pat.Severity},
			Tradeoffs:   valueobj.Tradeoffs{SuccessImpact: 0.1, LatencyImpact: -0.2, CostImpact: 0.02, RiskImpact: -0.1, FrictionImpact: 0.05},
			Reversible:  true,
			BlastRadius: reduceRetryAttemptsBlastRadius,
		}, true

	case reasoning.PatternMethodFatigue:
		return InterventionOption{
			Kind:        KindRerouteTraffic,
			Target:      target,
			Parameters:  map[string]interface{}{"duration_ms": int64(rerouteTrafficDurationMs)},
			Estimate:    valueobj.OutcomeEstimate{DeltaSuccess: 0.2, DeltaLatency: -30, DeltaCost: 0.03, Confidence: pat.Severity},
			Tradeoffs:   valueobj.Tradeoffs{SuccessImpact: 0.2, LatencyImpact: -0.1, CostImpact: 0.03, RiskImpact: -0.1, FrictionImpact: 0.1},
			Reversible:  true,
			BlastRadius: rerouteTrafficBlastRadius,
		}, true

	case reasoning.PatternLatencySpike:
		return InterventionOption{
			Kind:        KindAlertOps,
			Target:      target,
			Parameters:  map[string]interface{}{},
			Estimate:    valueobj.OutcomeEstimate{DeltaSuccess: 0, DeltaLatency: 0, DeltaCost: 0, Confidence: pat.Severity},
			Tradeoffs:   valueobj.Tradeoffs{},
			Reversible:  true,
			BlastRadius: alertOpsBlastRadius,
		}, true

	default:
		return InterventionOption{}, false
	}
}

// targetFromDimension strips a "kind:value" dimension string down to the
// bare value (e.g. "issuer:HDFC" -> "HDFC"), falling back to the dimension
// string itself if it carries no separator.
func targetFromDimension(dimension string) string {
	if idx := strings.IndexAny(dimension, ":="); idx >= 0 {
		return dimension[idx+1:]
	}
	return dimension
}
