// Package executor validates intervention options against runtime
// guardrails, executes them through a pluggable Effector, and tracks the
// resulting interventions through proposed -> executed -> (expired |
// rolled_back).
package executor

import (
	"log/slog"

	"github.com/payops/sentinel/internal/decision"
)

// Effector applies the side effects of an intervention outside this
// process (e.g. calling a routing control plane). Simulation mode uses
// LoggingEffector so the control loop can run end-to-end without any
// external system attached.
type Effector interface {
	Apply(opt decision.InterventionOption, interventionID string) error
	Revert(opt decision.InterventionOption, interventionID string) error
}

// LoggingEffector only logs what it would have done. This is the default
// effector for the simulated payment environment this loop runs against —
// there is no real routing plane to call.
type LoggingEffector struct {
	logger *slog.Logger
}

// NewLoggingEffector creates a LoggingEffector.
func NewLoggingEffector(logger *slog.Logger) *LoggingEffector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEffector{logger: logger.With("component", "executor.LoggingEffector")}
}

func (e *LoggingEffector) Apply(opt decision.InterventionOption, interventionID string) error {
	e.logger.Info("simulated intervention applied",
		"intervention_id", interventionID, "kind", opt.Kind, "target", opt.Target,
	)
	return nil
}

func (e *LoggingEffector) Revert(opt decision.InterventionOption, interventionID string) error {
	e.logger.Info("simulated intervention reverted",
		"intervention_id", interventionID, "kind", opt.Kind, "target", opt.Target,
	)
	return nil
}

// NullEffector does nothing and logs nothing — useful in tests where even
// log output is unwanted noise.
type NullEffector struct{}

func (NullEffector) Apply(decision.InterventionOption, string) error  { return nil }
func (NullEffector) Revert(decision.InterventionOption, string) error { return nil }
