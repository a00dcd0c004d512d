// Package loop drives the Continuous Loop: a single primary
// event loop that advances the Drift Engine, emits transactions, and on
// the configured cycle interval runs the full Observe→Baseline→Reason→
// Plan→Safety→NRV→Decide→PreMortem→Execute→Feedback.Apply→Explain
// pipeline, emitting telemetry snapshots throughout.
package loop

import "time"

// Config bundles the runtime parameters the loop needs, translated from
// internal/config.Config at construction time in internal/agent.
type Config struct {
	LoopRateHz       float64
	CycleIntervalMs  int64
	WindowDurationMs int64
	MaxDuration      time.Duration
	TelemetryRateHz  float64

	// DemoMode gates the demo-only forced-failure injection: every 5th
	// cycle, overwrite an issuer's state to force an intervention. Never
	// on by default.
	DemoMode     bool
	DemoIssuer   string
	DemoEveryNth int64

	MinActionFrequency int
	MaxBlastRadius     float64
}

// tickInterval is the fixed inter-iteration sleep computed from
// 1/loop_rate.
func (c Config) tickInterval() time.Duration {
	if c.LoopRateHz <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / c.LoopRateHz)
}

func (c Config) demoEveryNth() int64 {
	if c.DemoEveryNth <= 0 {
		return 5
	}
	return c.DemoEveryNth
}
