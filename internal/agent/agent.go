// Package agent wires every component of the Continuous Loop into a
// single aggregate root: one *Agent per running process, constructed
// once from a loaded config.Config and handed to cmd/sentinel to run.
// Nothing below main.go and Agent holds global/process-wide state —
// every dependency is passed in explicitly rather than reached for
// through a package-level global.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/payops/sentinel/internal/alert"
	"github.com/payops/sentinel/internal/api"
	"github.com/payops/sentinel/internal/approval"
	"github.com/payops/sentinel/internal/auth"
	"github.com/payops/sentinel/internal/baseline"
	"github.com/payops/sentinel/internal/config"
	"github.com/payops/sentinel/internal/decision"
	"github.com/payops/sentinel/internal/drift"
	"github.com/payops/sentinel/internal/executor"
	"github.com/payops/sentinel/internal/explain"
	"github.com/payops/sentinel/internal/feedback"
	"github.com/payops/sentinel/internal/generator"
	"github.com/payops/sentinel/internal/incidents"
	"github.com/payops/sentinel/internal/learning"
	"github.com/payops/sentinel/internal/loop"
	"github.com/payops/sentinel/internal/observation"
	"github.com/payops/sentinel/internal/playbook"
	"github.com/payops/sentinel/internal/reasoning"
	"github.com/payops/sentinel/internal/safety"
	"github.com/payops/sentinel/internal/telemetry"
	"github.com/payops/sentinel/internal/trace"
)

// Agent is the aggregate root: every component the Continuous Loop
// drives, plus the optional ambient-stack collaborators (audit trail,
// alerts, approvals, API/dashboard server, RAG playbook, historical
// incidents) wired together from one config.Config.
type Agent struct {
	cfg    *config.Config
	logger *slog.Logger

	loop      *loop.Loop
	drift     *drift.Engine
	generator *generator.Generator

	traceStore trace.Store   // nil unless Trace.Driver == "sqlite"
	stateFile  *trace.FileStore
	alerts     *alert.Manager
	approvals  *approval.Queue
	tokens     *auth.TokenManager
	hub        *telemetry.Hub
	apiServer  *api.Server
	otel       *telemetry.Instrumentation

	cfgLoader *config.Loader
}

// New constructs an Agent from cfg. logger may be nil (defaults to
// slog.Default()). cfgLoader, if non-nil, is the Loader that produced cfg
// and is handed to the API server so `/api/config/reload` and the
// fsnotify-driven hot reload can mutate the live config in place.
func New(cfg *config.Config, cfgLoader *config.Loader, logger *slog.Logger) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agent: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("agent: invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Agent{cfg: cfg, cfgLoader: cfgLoader, logger: logger.With("component", "agent.Agent")}

	driftEngine := drift.New(cfg.Drift.Seed, cfg.Drift.TimeScale, logger)
	issuerParams := make(map[string]drift.IssuerParams, len(cfg.Issuers))
	for _, ic := range cfg.Issuers {
		params := drift.IssuerParams{
			Success: drift.OUParams{Theta: cfg.Drift.Theta, Mu: ic.MeanSuccess, Sigma: cfg.Drift.SigmaSuccess},
			Latency: drift.OUParams{Theta: cfg.Drift.Theta, Mu: ic.MeanLatencyMs, Sigma: cfg.Drift.SigmaLatency},
			Retry:   drift.OUParams{Theta: cfg.Drift.Theta, Mu: ic.MeanRetry, Sigma: cfg.Drift.SigmaRetry},
			Spike: drift.RetrySpikeParams{
				Prob:      cfg.Drift.RetrySpikeProb,
				Magnitude: cfg.Drift.RetrySpikeMagnitude,
				DecayRate: cfg.Drift.RetryDecayRate,
			},
		}
		driftEngine.Seed(ic.Name, drift.IssuerState{
			SuccessRate:      ic.SuccessRate,
			LatencyMs:        ic.LatencyMs,
			RetryProbability: ic.RetryProb,
		}, params)
		issuerParams[ic.Name] = params
	}
	a.drift = driftEngine

	gen := generator.New(driftEngine, cfg.Generator.BufferCapacity, cfg.Generator.RatePerSecond, cfg.Generator.Seed, logger)
	a.generator = gen

	window := observation.New(cfg.Loop.WindowDurationMs)
	window.SetValidator(observation.DefaultValidator)

	baselines := baseline.New(cfg.Decision.BaselineAlpha, logger)

	anomaly := reasoning.NewAnomalyDetector()
	if cfg.Decision.AnomalyThreshold > 0 {
		anomaly.Threshold = cfg.Decision.AnomalyThreshold
	}
	pattern := reasoning.NewPatternDetector()
	hypotheses := reasoning.NewGenerator()
	beliefs := reasoning.NewBeliefManager()

	planner := decision.NewPlanner()
	policy := decision.NewPolicy(cfg.Decision.MinActionFrequency, cfg.Decision.MaxBlastRadius, logger)
	economics := decision.EconomicParams{
		Volume:              cfg.Economics.Volume,
		AvgTicket:           cfg.Economics.AvgTicket,
		CostPerIntervention: cfg.Economics.CostPerIntervention,
		LatencyPenaltyPerMs: cfg.Economics.LatencyPenaltyPerMs,
	}
	if economics == (decision.EconomicParams{}) {
		economics = decision.DefaultEconomicParams()
	}

	constraints := safety.NewConstraints(safety.Preferences{
		PreferMinimalIntervention: cfg.Safety.PreferMinimalIntervention,
		PreferReversible:          cfg.Safety.PreferReversible,
	}, logger)
	if cfg.Safety.RulesPath != "" {
		re, err := safety.NewRuleEvaluator(logger)
		if err != nil {
			return nil, fmt.Errorf("agent: safety rule evaluator: %w", err)
		}
		if err := re.LoadRulesFile(cfg.Safety.RulesPath); err != nil {
			logger.Warn("failed to load safety rules file, continuing with built-in checks only", "path", cfg.Safety.RulesPath, "error", err)
		} else {
			constraints.Rules = re
		}
	}
	preMortem := safety.NewAnalyzer()

	var effector executor.Effector
	if cfg.Executor.Simulate {
		effector = executor.NewLoggingEffector(logger)
	} else {
		effector = executor.NewLoggingEffector(logger) // no production effector shipped; simulation is always the safe default
	}
	exec := executor.New(executor.Guardrails{
		ApprovalThreshold:      cfg.Executor.ApprovalThreshold,
		MaxSuppressionDuration: cfg.Executor.MaxSuppressionDuration,
	}, effector, logger)

	feedbackCtrl := feedback.New(gen, logger)
	explainer := explain.NewGenerator()

	evaluator := learning.NewEvaluator(logger)
	consequence := learning.NewConsequenceDetector(logger)
	tuner := learning.NewUpdater(logger)

	a.alerts = alert.NewManager(cfg.Alerts, logger)

	var approvals *approval.Queue
	if cfg.Server.Port > 0 {
		approvals = approval.NewQueue(a.alerts, logger)
	}
	a.approvals = approvals

	var traceStore trace.Store
	switch cfg.Trace.Driver {
	case "sqlite":
		store, err := trace.NewSQLiteStore(cfg.Trace.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("agent: open sqlite trace store: %w", err)
		}
		if err := store.Initialize(); err != nil {
			return nil, fmt.Errorf("agent: initialize sqlite trace store: %w", err)
		}
		traceStore = store
		a.traceStore = store
	case "file", "":
		a.stateFile = trace.NewFileStore(cfg.Trace.StatePath, cfg.Trace.MaxBackups)
	default:
		return nil, fmt.Errorf("agent: unknown trace.driver %q", cfg.Trace.Driver)
	}

	var pb playbook.Retriever = playbook.DefaultTable()
	var inc incidents.Store = incidents.NewMemoryStore()

	hub := telemetry.NewHub(logger, cfg.Server.Auth.AllowAllIP)
	a.hub = hub

	var tokens *auth.TokenManager
	if cfg.Server.Auth.Enabled {
		tokens = auth.NewTokenManager(cfg.Server.Auth.TokenTTL, logger)
	}
	a.tokens = tokens

	var srv *api.Server
	if traceStore != nil {
		srv = api.NewServer(cfg.Server, traceStore, cfgLoader, approvals, tokens, hub, logger)
	}
	a.apiServer = srv

	otelInstr, err := telemetry.NewInstrumentation(logger)
	if err != nil {
		return nil, fmt.Errorf("agent: otel instrumentation: %w", err)
	}
	a.otel = otelInstr

	loopCfg := loop.Config{
		LoopRateHz:         cfg.Loop.LoopRateHz,
		CycleIntervalMs:     cfg.Loop.CycleIntervalMs,
		WindowDurationMs:    cfg.Loop.WindowDurationMs,
		MaxDuration:         cfg.Loop.MaxDuration,
		TelemetryRateHz:     cfg.Loop.TelemetryRateHz,
		DemoMode:            cfg.Loop.DemoMode,
		DemoIssuer:          demoIssuer(cfg.Issuers),
		MinActionFrequency:  cfg.Decision.MinActionFrequency,
		MaxBlastRadius:      cfg.Decision.MaxBlastRadius,
	}

	deps := loop.Deps{
		Drift:        driftEngine,
		IssuerParams: issuerParams,
		Generator:    gen,
		Window:       window,
		Baselines:    baselines,
		Anomaly:      anomaly,
		Pattern:      pattern,
		Hypotheses:   hypotheses,
		Beliefs:      beliefs,
		Planner:      planner,
		Policy:       policy,
		Economics:    economics,
		Constraints:  constraints,
		PreMortem:    preMortem,
		Executor:     exec,
		Feedback:     feedbackCtrl,
		Explainer:    explainer,
		Evaluator:    evaluator,
		Consequence:  consequence,
		Tuner:        tuner,
		Risk:         safety.RiskContext{FraudRisk: cfg.Safety.FraudRisk, ComplianceRisk: cfg.Safety.ComplianceRisk},
		Logger:       logger,
		Trace:        traceStore,
		Alerts:       a.alerts,
		Approvals:    approvals,
		Playbook:     pb,
		Incidents:    inc,
		Otel:         otelInstr,
	}

	a.loop = loop.New(loopCfg, deps)
	return a, nil
}

// demoIssuer picks the first configured issuer as the target of the
// demo-mode forced-failure injection (loop.Config.DemoIssuer); demo mode
// itself stays off unless cfg.Loop.DemoMode explicitly enables it.
func demoIssuer(issuers []config.IssuerConfig) string {
	if len(issuers) == 0 {
		return ""
	}
	return issuers[0].Name
}

// Run starts the Continuous Loop and every ambient-stack worker (API
// server, telemetry hub, periodic state snapshot) and blocks until ctx is
// cancelled or the loop stops on its own (shutdown signal, max_duration).
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.apiServer != nil && a.cfg.Server.Port > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
			a.logger.Info("starting management API", "addr", addr)
			if err := a.apiServer.Start(addr); err != nil {
				a.logger.Error("management API server error", "error", err)
			}
		}()
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			_ = a.apiServer.Shutdown(shutCtx)
		}()
	} else if a.hub != nil {
		go a.hub.Run()
		defer a.hub.Close()
	}

	go a.pumpTelemetry(ctx)

	if a.stateFile != nil {
		go a.pumpStateSnapshots(ctx)
	}

	return a.loop.Run(ctx)
}

// pumpTelemetry drains the loop's telemetry channel into the broadcast
// hub for the lifetime of the run; the loop itself never blocks on
// subscribers — that send lives here, not in the loop goroutine.
func (a *Agent) pumpTelemetry(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-a.loop.Telemetry:
			if !ok {
				return
			}
			if a.hub != nil {
				a.hub.Broadcast(snap)
			}
			if a.otel != nil {
				a.otel.RecordSnapshot(snap)
			}
		}
	}
}

// pumpStateSnapshots periodically writes a lightweight StateSnapshot to
// the configured state file, independent of the sqlite audit trail —
// current_state.json is kept separate from the audit log.
func (a *Agent) pumpStateSnapshots(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := &trace.StateSnapshot{SavedAt: time.Now()}
			if err := a.stateFile.Save(snap); err != nil {
				a.logger.Warn("failed to save state snapshot", "error", err)
			}
		}
	}
}

// Close releases every resource the Agent opened (trace store, telemetry
// hub, OTel tracer provider). Call after Run returns.
func (a *Agent) Close() error {
	var firstErr error
	if a.traceStore != nil {
		if err := a.traceStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.otel != nil {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		if err := a.otel.Shutdown(shutCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Config returns the Agent's active configuration snapshot.
func (a *Agent) Config() *config.Config { return a.cfg }

// TraceStore returns the audit-trail store, or nil when the agent was
// configured with the zero-dependency "file" trace driver.
func (a *Agent) TraceStore() trace.Store { return a.traceStore }
