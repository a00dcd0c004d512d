// Package feedback closes the loop between executed interventions and the
// traffic simulator: every active intervention contributes to the
// generator's multiplier set, which is always re-derived from scratch so
// effects compose deterministically.
package feedback

import (
	"log/slog"
	"sync"

	"github.com/payops/sentinel/internal/decision"
	"github.com/payops/sentinel/internal/generator"
)

const (
	suppressPathVolumeMultiplier   = 0.1
	suppressPathSuccessMultiplier  = 0.1
	rerouteTrafficVolumeMultiplier = 0.3
	reduceRetryAttemptsMultiplier  = 0.5
	adjustRetryMultiplier          = 1.5
)

// ActiveIntervention is one currently-in-effect intervention the
// controller is tracking.
type ActiveIntervention struct {
	ID        string
	Option    decision.InterventionOption
	StartTime int64
	EndTime   int64
}

// MultiplierTarget is the subset of generator.Generator the controller
// needs in order to re-derive multipliers. Matching against an interface
// keeps this package testable without a live Generator.
type MultiplierTarget interface {
	SetVolumeMultiplier(issuer string, m float64)
	SetSuccessMultiplier(issuer string, m float64)
	SetRetryMultiplier(m float64)
	ClearMultipliers()
}

var _ MultiplierTarget = (*generator.Generator)(nil)

// Controller keeps the list of active interventions and the generator
// they drive in sync.
type Controller struct {
	mu     sync.Mutex
	active []ActiveIntervention
	target MultiplierTarget
	logger *slog.Logger
}

// New creates a Feedback Controller bound to target, whose multipliers it
// owns exclusively from this point on.
func New(target MultiplierTarget, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		target: target,
		logger: logger.With("component", "feedback.Controller"),
	}
}

// ApplyIntervention appends a newly executed intervention and re-derives
// every multiplier from the full active set.
func (c *Controller) ApplyIntervention(id string, opt decision.InterventionOption, startTime, endTime int64) {
	c.mu.Lock()
	c.active = append(c.active, ActiveIntervention{ID: id, Option: opt, StartTime: startTime, EndTime: endTime})
	c.rederive()
	c.mu.Unlock()

	c.logger.Info("intervention applied to feedback loop", "intervention_id", id, "kind", opt.Kind, "target", opt.Target)
}

// Update drops interventions whose end-time has passed and re-derives the
// multiplier set.
func (c *Controller) Update(now int64) (expired []ActiveIntervention) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.active[:0:0]
	for _, ai := range c.active {
		if now >= ai.EndTime {
			expired = append(expired, ai)
			continue
		}
		kept = append(kept, ai)
	}
	c.active = kept
	c.rederive()

	for _, ai := range expired {
		c.logger.Info("intervention expired", "intervention_id", ai.ID, "kind", ai.Option.Kind)
	}
	return expired
}

// ClearAll drops every active intervention and resets the target's
// multipliers to neutral.
func (c *Controller) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = nil
	c.target.ClearMultipliers()
}

// Active returns a copy of the currently tracked interventions.
func (c *Controller) Active() []ActiveIntervention {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ActiveIntervention, len(c.active))
	copy(out, c.active)
	return out
}

// rederive resets the target's multipliers and replays every active
// intervention's effect on top, per the mapping in spec Caller
// must hold c.mu.
func (c *Controller) rederive() {
	c.target.ClearMultipliers()

	retryMultiplier := 1.0
	retrySet := false

	for _, ai := range c.active {
		opt := ai.Option
		switch opt.Kind {
		case decision.KindSuppressPath:
			c.target.SetVolumeMultiplier(opt.Target, suppressPathVolumeMultiplier)
			c.target.SetSuccessMultiplier(opt.Target, suppressPathSuccessMultiplier)
		case decision.KindRerouteTraffic:
			c.target.SetVolumeMultiplier(opt.Target, rerouteTrafficVolumeMultiplier)
		case decision.KindReduceRetryAttempts:
			retryMultiplier = reduceRetryAttemptsMultiplier
			retrySet = true
		case decision.KindAdjustRetry:
			retryMultiplier = adjustRetryMultiplier
			retrySet = true
		}
	}

	if retrySet {
		c.target.SetRetryMultiplier(retryMultiplier)
	}
}
