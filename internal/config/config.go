// Package config loads and validates the agent's YAML configuration,
// following a config-types-plus-defaults layout.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration for one running sentinel agent.
type Config struct {
	Drift     DriftConfig     `yaml:"drift"`
	Issuers   []IssuerConfig  `yaml:"issuers"`
	Generator GeneratorConfig `yaml:"generator"`
	Loop      LoopConfig      `yaml:"loop"`
	Decision  DecisionConfig  `yaml:"decision"`
	Economics EconomicsConfig `yaml:"economics"`
	Safety    SafetyConfig    `yaml:"safety"`
	Executor  ExecutorConfig  `yaml:"executor"`
	LogLevel  string          `yaml:"log_level"`
	Trace     TraceConfig     `yaml:"trace"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
}

// DriftConfig parameterizes the Ornstein-Uhlenbeck drift engine. One
// seedable RNG, owned by the Drift Engine, drives every issuer's walk.
type DriftConfig struct {
	Theta               float64 `yaml:"theta"`
	SigmaSuccess        float64 `yaml:"sigma_success"`
	SigmaLatency        float64 `yaml:"sigma_latency"`
	SigmaRetry          float64 `yaml:"sigma_retry"`
	RetrySpikeProb      float64 `yaml:"retry_spike_prob"`
	RetrySpikeMagnitude float64 `yaml:"retry_spike_magnitude"`
	RetryDecayRate      float64 `yaml:"retry_decay_rate"`
	TimeScale           float64 `yaml:"time_scale"`
	Seed                uint64  `yaml:"seed"`
}

// IssuerConfig seeds one issuer's initial drift state and mean-reversion
// targets.
type IssuerConfig struct {
	Name          string  `yaml:"name"`
	SuccessRate   float64 `yaml:"success_rate"`
	LatencyMs     float64 `yaml:"latency_ms"`
	RetryProb     float64 `yaml:"retry_prob"`
	MeanSuccess   float64 `yaml:"mean_success"`
	MeanLatencyMs float64 `yaml:"mean_latency_ms"`
	MeanRetry     float64 `yaml:"mean_retry"`
}

// GeneratorConfig parameterizes the Continuous Generator.
type GeneratorConfig struct {
	RatePerSecond  float64 `yaml:"rate_per_second"`
	BufferCapacity int     `yaml:"buffer_capacity"`
	Seed           uint64  `yaml:"seed"`
}

// LoopConfig parameterizes the Continuous Loop.
type LoopConfig struct {
	LoopRateHz       float64       `yaml:"loop_rate_hz"`
	CycleIntervalMs  int64         `yaml:"cycle_interval_ms"`
	WindowDurationMs int64         `yaml:"window_duration_ms"`
	MaxDuration      time.Duration `yaml:"max_duration"`
	TelemetryRateHz  float64       `yaml:"telemetry_rate_hz"`
	DemoMode         bool          `yaml:"demo_mode"`
}

// DecisionConfig parameterizes the Decision Policy and the detectors that
// feed it.
type DecisionConfig struct {
	MinActionFrequency int     `yaml:"min_action_frequency"`
	MaxBlastRadius     float64 `yaml:"max_blast_radius"`
	AnomalyThreshold   float64 `yaml:"anomaly_threshold"`
	BaselineAlpha      float64 `yaml:"baseline_alpha"`
}

// EconomicsConfig parameterizes the NRV Calculator.
type EconomicsConfig struct {
	Volume              float64 `yaml:"volume"`
	AvgTicket           float64 `yaml:"avg_ticket"`
	CostPerIntervention float64 `yaml:"cost_per_intervention"`
	LatencyPenaltyPerMs float64 `yaml:"latency_penalty_per_ms"`
}

// SafetyConfig parameterizes Safety Constraints.
type SafetyConfig struct {
	PreferMinimalIntervention bool    `yaml:"prefer_minimal_intervention"`
	PreferReversible          bool    `yaml:"prefer_reversible"`
	FraudRisk                 float64 `yaml:"fraud_risk"`
	ComplianceRisk            float64 `yaml:"compliance_risk"`
	RulesPath                 string  `yaml:"rules_path"`
}

// ExecutorConfig parameterizes the Action Executor's guardrails.
type ExecutorConfig struct {
	ApprovalThreshold      float64 `yaml:"approval_threshold"`
	MaxSuppressionDuration int64   `yaml:"max_suppression_duration_ms"`
	Simulate               bool    `yaml:"simulate"`
}

// TraceConfig parameterizes the state/audit store.
type TraceConfig struct {
	Driver     string `yaml:"driver"` // "file" or "sqlite"
	StatePath  string `yaml:"state_path"`
	AuditDir   string `yaml:"audit_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	MaxBackups int    `yaml:"max_backups"`
}

// AlertsConfig parameterizes ops alert fan-out.
type AlertsConfig struct {
	Slack   SlackAlertConfig   `yaml:"slack"`
	Webhook WebhookAlertConfig `yaml:"webhook"`
}

// ServerConfig parameterizes the management/dashboard API.
type ServerConfig struct {
	Port int              `yaml:"port"`
	CORS bool             `yaml:"cors"`
	Auth AuthServerConfig `yaml:"auth"`
}

// AuthServerConfig toggles bearer-token enforcement on the API.
type AuthServerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	AllowAllIP bool          `yaml:"-"` // set true in dev/demo mode, never from YAML
}

// SlackAlertConfig configures the Slack alert sink.
type SlackAlertConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// WebhookAlertConfig configures the generic webhook alert sink.
type WebhookAlertConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// DefaultConfig returns a config with sensible defaults
// (min_action_frequency=6, anomaly_threshold=2.0, etc.), so the agent
// can start with zero configuration.
func DefaultConfig() *Config {
	return &Config{
		Drift: DriftConfig{
			Theta:               0.1,
			SigmaSuccess:        0.02,
			SigmaLatency:        10,
			SigmaRetry:          0.01,
			RetrySpikeProb:      0.01,
			RetrySpikeMagnitude: 0.1,
			RetryDecayRate:      0.05,
			TimeScale:           1.0,
			Seed:                1,
		},
		Issuers: []IssuerConfig{
			{Name: "HDFC", SuccessRate: 0.95, LatencyMs: 150, RetryProb: 0.05, MeanSuccess: 0.95, MeanLatencyMs: 150, MeanRetry: 0.05},
			{Name: "ICICI", SuccessRate: 0.95, LatencyMs: 150, RetryProb: 0.05, MeanSuccess: 0.95, MeanLatencyMs: 150, MeanRetry: 0.05},
			{Name: "SBI", SuccessRate: 0.95, LatencyMs: 150, RetryProb: 0.05, MeanSuccess: 0.95, MeanLatencyMs: 150, MeanRetry: 0.05},
			{Name: "AXIS", SuccessRate: 0.95, LatencyMs: 150, RetryProb: 0.05, MeanSuccess: 0.95, MeanLatencyMs: 150, MeanRetry: 0.05},
		},
		Generator: GeneratorConfig{
			RatePerSecond:  10,
			BufferCapacity: 5000,
			Seed:           2,
		},
		Loop: LoopConfig{
			LoopRateHz:       2,
			CycleIntervalMs:  5000,
			WindowDurationMs: 60000,
			TelemetryRateHz:  1,
			DemoMode:         false,
		},
		Decision: DecisionConfig{
			MinActionFrequency: 6,
			MaxBlastRadius:     1.0,
			AnomalyThreshold:   2.0,
			BaselineAlpha:      0.3,
		},
		Economics: EconomicsConfig{
			Volume:              1000,
			AvgTicket:           500,
			CostPerIntervention: 10,
			LatencyPenaltyPerMs: 0.01,
		},
		Safety: SafetyConfig{
			PreferMinimalIntervention: true,
			PreferReversible:          true,
		},
		Executor: ExecutorConfig{
			ApprovalThreshold:      0.5,
			MaxSuppressionDuration: 900000,
			Simulate:               true,
		},
		LogLevel: "info",
		Trace: TraceConfig{
			Driver:     "file",
			StatePath:  "./current_state.json",
			AuditDir:   "./audit",
			SQLitePath: "./sentinel.db",
			MaxBackups: 10,
		},
		Server: ServerConfig{
			Port: 8088,
			CORS: true,
			Auth: AuthServerConfig{
				Enabled:  false,
				TokenTTL: time.Hour,
			},
		},
	}
}

// Validate enforces the configured ranges.
// Config validation failures are fatal at startup.
func (c *Config) Validate() error {
	if c.Decision.MinActionFrequency <= 0 {
		return fmt.Errorf("decision.min_action_frequency must be positive, got %d", c.Decision.MinActionFrequency)
	}
	if c.Decision.MaxBlastRadius < 0 || c.Decision.MaxBlastRadius > 1 {
		return fmt.Errorf("decision.max_blast_radius must be in [0,1], got %f", c.Decision.MaxBlastRadius)
	}
	if c.Decision.AnomalyThreshold <= 0 {
		return fmt.Errorf("decision.anomaly_threshold must be positive, got %f", c.Decision.AnomalyThreshold)
	}
	if c.Decision.BaselineAlpha <= 0 || c.Decision.BaselineAlpha > 1 {
		return fmt.Errorf("decision.baseline_alpha must be in (0,1], got %f", c.Decision.BaselineAlpha)
	}
	if c.Generator.BufferCapacity <= 0 {
		return fmt.Errorf("generator.buffer_capacity must be positive, got %d", c.Generator.BufferCapacity)
	}
	if c.Generator.RatePerSecond <= 0 {
		return fmt.Errorf("generator.rate_per_second must be positive, got %f", c.Generator.RatePerSecond)
	}
	if c.Loop.LoopRateHz <= 0 {
		return fmt.Errorf("loop.loop_rate_hz must be positive, got %f", c.Loop.LoopRateHz)
	}
	if c.Loop.CycleIntervalMs <= 0 {
		return fmt.Errorf("loop.cycle_interval_ms must be positive, got %d", c.Loop.CycleIntervalMs)
	}
	if c.Executor.ApprovalThreshold < 0 || c.Executor.ApprovalThreshold > 1 {
		return fmt.Errorf("executor.approval_threshold must be in [0,1], got %f", c.Executor.ApprovalThreshold)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0,65535], got %d", c.Server.Port)
	}
	for _, issuer := range c.Issuers {
		if issuer.Name == "" {
			return fmt.Errorf("issuer entries must have a non-empty name")
		}
		if issuer.SuccessRate < 0 || issuer.SuccessRate > 1 {
			return fmt.Errorf("issuer %s success_rate must be in [0,1], got %f", issuer.Name, issuer.SuccessRate)
		}
	}
	return nil
}
