package decision

import (
	"fmt"
	"log/slog"
	"sync"
)

// DefaultMinActionFrequency is the default number of cycles after which the
// policy forces an action even absent a positive-NRV candidate.
const DefaultMinActionFrequency = 6

// minFrequencyRationalePrefix marks every decision forced by the
// minimum-action-frequency rule.
const minFrequencyRationalePrefix = "[MIN FREQUENCY RULE]"

// Policy applies NRV ranking, the minimum-action-frequency guarantee, and
// the human-approval gate to produce one InterventionDecision per cycle.
// It is the sole owner of cycles_since_last_action and must be driven by
// exactly one loop goroutine.
type Policy struct {
	mu                 sync.Mutex
	minActionFrequency int
	maxBlastRadius     float64
	cyclesSinceAction  int
	logger             *slog.Logger
}

// NewPolicy creates a Decision Policy. minActionFrequency <= 0 falls back
// to DefaultMinActionFrequency; maxBlastRadius <= 0 falls back to 1.0
// (no blast-radius gate).
func NewPolicy(minActionFrequency int, maxBlastRadius float64, logger *slog.Logger) *Policy {
	if minActionFrequency <= 0 {
		minActionFrequency = DefaultMinActionFrequency
	}
	if maxBlastRadius <= 0 {
		maxBlastRadius = 1.0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		minActionFrequency: minActionFrequency,
		maxBlastRadius:     maxBlastRadius,
		logger:             logger.With("component", "decision.Policy"),
	}
}

// CyclesSinceAction returns the current counter value, mainly for
// telemetry/tests.
func (p *Policy) CyclesSinceAction() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cyclesSinceAction
}

// Decide runs the scored candidates through the policy algorithm.
// scored must include the NO_ACTION candidate with NRV 0 (or
// whatever RankByNRV computed for it — its NRV is ignored). beliefUncertainty
// is the current BeliefState.Uncertainty.
func (p *Policy) Decide(scored []ScoredOption, beliefUncertainty float64) InterventionDecision {
	p.mu.Lock()
	defer p.mu.Unlock()

	actions, noAction := splitNoAction(scored)

	// Rule 2: force an action once the minimum frequency is due.
	if p.cyclesSinceAction >= p.minActionFrequency-1 {
		p.cyclesSinceAction = 0

		if len(actions) > 0 {
			best := bestOf(actions)
			decision := p.finalize(best.Option, beliefUncertainty, actions, scored)
			decision.Rationale = fmt.Sprintf("%s selecting best available candidate after %d idle cycles", minFrequencyRationalePrefix, p.minActionFrequency-1)
			return decision
		}

		synthesized := InterventionOption{
			Kind:        KindAlertOps,
			Target:      "global",
			Parameters:  map[string]interface{}{},
			BlastRadius: 0,
		}
		decision := p.finalize(synthesized, beliefUncertainty, actions, scored)
		decision.Rationale = fmt.Sprintf("%s no action candidates available, synthesizing low-severity alert after %d idle cycles", minFrequencyRationalePrefix, p.minActionFrequency-1)
		return decision
	}

	// Rule 3: nothing to act on, or best candidate isn't worth it.
	if len(actions) == 0 || bestOf(actions).NRV <= 0 {
		p.cyclesSinceAction++
		return InterventionDecision{
			ShouldAct:    false,
			Selected:     noAction,
			Rationale:    "no positive-NRV candidate this cycle",
			Alternatives: optionsOf(scored),
		}
	}

	// Rule 4: act on the NRV-maximizing candidate.
	p.cyclesSinceAction = 0
	best := bestOf(actions)
	decision := p.finalize(best.Option, beliefUncertainty, actions, scored)
	decision.Rationale = "selected highest positive-NRV candidate"
	return decision
}

func (p *Policy) finalize(selected InterventionOption, beliefUncertainty float64, actions []ScoredOption, all []ScoredOption) InterventionDecision {
	requiresApproval := selected.BlastRadius > p.maxBlastRadius || beliefUncertainty > 0.5
	return InterventionDecision{
		ShouldAct:             true,
		Selected:              &selected,
		Alternatives:          optionsOf(all),
		RequiresHumanApproval: requiresApproval,
	}
}

func splitNoAction(scored []ScoredOption) (actions []ScoredOption, noAction *InterventionOption) {
	for _, s := range scored {
		if s.Option.Kind == KindNoAction {
			opt := s.Option
			noAction = &opt
			continue
		}
		actions = append(actions, s)
	}
	return actions, noAction
}

func bestOf(scored []ScoredOption) ScoredOption {
	best := scored[0]
	for _, s := range scored[1:] {
		if s.NRV > best.NRV {
			best = s
		}
	}
	return best
}

func optionsOf(scored []ScoredOption) []InterventionOption {
	out := make([]InterventionOption, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.Option)
	}
	return out
}
