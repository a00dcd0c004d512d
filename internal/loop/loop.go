package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/payops/sentinel/internal/alert"
	"github.com/payops/sentinel/internal/approval"
	"github.com/payops/sentinel/internal/baseline"
	"github.com/payops/sentinel/internal/decision"
	"github.com/payops/sentinel/internal/drift"
	"github.com/payops/sentinel/internal/executor"
	"github.com/payops/sentinel/internal/explain"
	"github.com/payops/sentinel/internal/feedback"
	"github.com/payops/sentinel/internal/generator"
	"github.com/payops/sentinel/internal/incidents"
	"github.com/payops/sentinel/internal/learning"
	"github.com/payops/sentinel/internal/observation"
	"github.com/payops/sentinel/internal/playbook"
	"github.com/payops/sentinel/internal/reasoning"
	"github.com/payops/sentinel/internal/safety"
	"github.com/payops/sentinel/internal/telemetry"
	"github.com/payops/sentinel/internal/trace"
	"github.com/payops/sentinel/internal/txn"
	"github.com/payops/sentinel/internal/valueobj"
)

// Deps bundles every component the loop drives through one cycle. All of
// them are constructed in internal/agent and handed to New as a unit — the
// loop itself never constructs its collaborators.
type Deps struct {
	Drift        *drift.Engine
	IssuerParams map[string]drift.IssuerParams // needed only to re-seed under DemoMode
	Generator    *generator.Generator
	Window       *observation.Window
	Baselines    *baseline.Manager
	Anomaly      *reasoning.AnomalyDetector
	Pattern      *reasoning.PatternDetector
	Hypotheses   *reasoning.Generator
	Beliefs      *reasoning.BeliefManager
	Planner      *decision.Planner
	Policy       *decision.Policy
	Economics    decision.EconomicParams
	Constraints  *safety.Constraints
	PreMortem    *safety.Analyzer
	Executor     *executor.Executor
	Feedback     *feedback.Controller
	Explainer    *explain.Generator
	Evaluator    *learning.Evaluator
	Consequence  *learning.ConsequenceDetector
	Tuner        *learning.Updater
	Risk         safety.RiskContext
	Logger       *slog.Logger

	// The following are optional: a nil value disables the feature
	// entirely, so the loop runs identically to a bare core build when
	// none of the ambient stack is wired in.
	Trace     trace.Store                // audit trail persistence
	Alerts    *alert.Manager             // ops escalation fan-out
	Approvals *approval.Queue            // human-approval gate
	Playbook  playbook.Retriever         // RAG playbook guidance lookup
	Incidents incidents.Store            // historical-incident similarity search
	Otel      *telemetry.Instrumentation // per-cycle span + counters
}

// defaultInterventionDurationMs is the feedback window applied to an
// executed intervention that carries no duration_ms parameter of its own
// (e.g. ALERT_OPS), so it still expires and gets evaluated rather than
// lingering in the active set forever.
const defaultInterventionDurationMs = 10 * 60 * 1000

// executedRecord is what the loop remembers about one of its own active
// interventions, so that when it expires the post-hoc learning stage has
// something to compare the actual outcome against.
type executedRecord struct {
	dimension       string
	kind            decision.Kind
	estimate        valueobj.OutcomeEstimate
	baselineMean    float64
	baselineLatency float64
}

// Loop is the single primary event loop: it advances the Drift Engine
// and transaction generator every tick, and on the configured cycle
// interval runs the full Observe -> Baseline -> Reason -> Plan -> Safety
// -> NRV -> Decide -> PreMortem -> Execute -> Feedback.Apply -> Explain
// pipeline.
type Loop struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu          sync.Mutex
	executed    map[string]executedRecord
	cycleCount  int64
	lastExplain explain.Explanation
	lastSnap    telemetry.Snapshot
	lastHash    string

	Telemetry chan telemetry.Snapshot
}

// New creates a Loop. Telemetry is a small buffered channel the caller
// should drain (e.g. into internal/telemetry's Hub); a full
// channel drops the oldest pending snapshot rather than blocking the
// loop goroutine.
func New(cfg Config, deps Deps) *Loop {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		cfg:       cfg,
		deps:      deps,
		logger:    logger.With("component", "loop.Loop"),
		executed:  make(map[string]executedRecord),
		Telemetry: make(chan telemetry.Snapshot, 8),
		lastHash:  trace.ComputeGenesisHash(),
	}
}

// Run drives the loop until ctx is cancelled, a shutdown signal arrives,
// or cfg.MaxDuration elapses (0 meaning unbounded). It installs its own
// SIGINT/SIGTERM handler, following a conventional signal-driven shutdown pattern.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			l.logger.Info("shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var deadline <-chan time.Time
	if l.cfg.MaxDuration > 0 {
		timer := time.NewTimer(l.cfg.MaxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(l.cfg.tickInterval())
	defer ticker.Stop()

	lastCycleAt := time.Now().UnixMilli()
	lastTelemetryAt := int64(0)
	telemetryInterval := telemetryIntervalMs(l.cfg.TelemetryRateHz)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("loop stopped")
			return nil
		case <-deadline:
			l.logger.Info("loop reached max_duration, stopping")
			return nil
		case now := <-ticker.C:
			nowMs := now.UnixMilli()
			l.safeIterate(ctx, nowMs, &lastCycleAt, &lastTelemetryAt, telemetryInterval)
		}
	}
}

// telemetryIntervalMs converts a telemetry rate (Hz) into a millisecond
// period, defaulting to 1Hz.
func telemetryIntervalMs(hz float64) int64 {
	if hz <= 0 {
		hz = 1
	}
	return int64(1000 / hz)
}

// safeIterate runs one tick, recovering from panics so a single bad
// cycle never takes the loop down: the error is logged and the cycle
// counter still advances.
func (l *Loop) safeIterate(ctx context.Context, nowMs int64, lastCycleAt, lastTelemetryAt *int64, telemetryIntervalMs int64) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("cycle panicked, continuing", "recovered", r)
		}
	}()

	dt := l.cfg.tickInterval().Seconds()

	l.deps.Drift.Update(dt, nowMs)
	l.deps.Generator.GenerateNextBatch(dt, nowMs) // appends into the ring buffer itself
	l.deps.Window.Update(l.deps.Generator.Buffer(), nowMs)

	expired := l.deps.Feedback.Update(nowMs)
	l.evaluateExpired(expired, nowMs)

	l.cycleCount++
	if l.cfg.DemoMode && l.cfg.DemoIssuer != "" && l.cycleCount%l.cfg.demoEveryNth() == 0 {
		l.injectDemoFailure(nowMs)
	}

	ranCycle := false
	if nowMs-*lastCycleAt >= l.cfg.CycleIntervalMs {
		*lastCycleAt = nowMs
		l.runCycle(ctx, nowMs)
		ranCycle = true
	}

	if nowMs-*lastTelemetryAt >= telemetryIntervalMs || ranCycle {
		*lastTelemetryAt = nowMs
		l.emitTelemetry(nowMs)
	}
}

// injectDemoFailure forces the configured demo issuer into a visibly
// degraded state by re-seeding it with a depressed success rate and
// elevated retry probability, leaving its original OU/spike parameters
// untouched so it still mean-reverts afterward. Gated entirely behind
// Config.DemoMode: never runs unless a deployment explicitly turns demo
// mode on.
func (l *Loop) injectDemoFailure(nowMs int64) {
	issuer := l.cfg.DemoIssuer
	state, ok := l.deps.Drift.Get(issuer)
	if !ok {
		return
	}
	params, ok := l.deps.IssuerParams[issuer]
	if !ok {
		return
	}

	state.SuccessRate = 0.2
	state.RetryProbability = 0.45
	state.LastUpdated = nowMs

	l.deps.Drift.Seed(issuer, state, params)
	l.logger.Warn("demo mode forced failure injected", "issuer", issuer, "cycle", l.cycleCount)
}

// runCycle executes one full Observe -> ... -> Explain pass.
func (l *Loop) runCycle(ctx context.Context, nowMs int64) {
	if l.deps.Otel != nil {
		spanCtx, span := l.deps.Otel.StartCycle(ctx, l.cycleCount)
		ctx = spanCtx
		defer span.End()
	}

	txns := l.deps.Window.Transactions()
	l.deps.Baselines.UpdateRollingBaselines(txns, nowMs)

	globalStats := l.deps.Window.Stats()

	var patterns []reasoning.DetectedPattern
	for _, dim := range l.deps.Window.Dimensions() {
		b, ok := l.deps.Baselines.Get(dim)
		if !ok {
			continue
		}
		dimTxns := filterByDimension(txns, dim)
		patterns = append(patterns, l.deps.Anomaly.Detect(dim, dimTxns, &b, globalStats.P95LatencyMs, nowMs)...)
	}
	patterns = append(patterns, l.deps.Pattern.Detect(txns, nowMs)...)
	if l.deps.Otel != nil {
		l.deps.Otel.RecordAnomalies(ctx, len(patterns))
	}

	hypotheses := l.deps.Hypotheses.Generate(patterns)
	belief := l.deps.Beliefs.Update(hypotheses, nowMs)

	options := l.deps.Planner.Plan(patterns)
	survivors, blocked := l.deps.Constraints.Filter(options, l.deps.Risk)
	if len(blocked) > 0 {
		l.sendAlert(alert.Alert{
			Type:     "blocked_candidate",
			Severity: "warning",
			Title:    "safety constraints blocked candidate interventions",
			Message:  fmt.Sprintf("%d candidate(s) failed safety constraints this cycle", len(blocked)),
			Details:  map[string]interface{}{"cycle": l.cycleCount, "blocked_count": len(blocked)},
		})
	}

	scored := decision.RankByNRV(survivors, l.deps.Economics)
	decided := l.deps.Policy.Decide(scored, belief.Uncertainty)
	zScore := maxZScore(patterns)

	var risk safety.RiskAssessment
	if decided.ShouldAct && decided.Selected != nil {
		risk = l.deps.PreMortem.Analyze(*decided.Selected)
		l.consultPlaybook(ctx, *decided.Selected)
		l.consultIncidents(*decided.Selected, zScore, risk.RiskScore)
	}

	cycleID := ulid.Make().String()

	approved := true
	if decided.ShouldAct && decided.Selected != nil && decided.RequiresHumanApproval {
		approved = l.gateApproval(ctx, cycleID, *decided.Selected)
	}

	var result executor.ExecutionResult
	if decided.ShouldAct && decided.Selected != nil && approved {
		result = l.deps.Executor.Execute(*decided.Selected, nowMs)
		if result.Success {
			l.applyExecuted(result, *decided.Selected, nowMs)
			l.recordIncident(*decided.Selected, zScore, risk.RiskScore, "executed")
			if l.deps.Otel != nil {
				l.deps.Otel.RecordIntervention(ctx)
			}
		} else {
			l.logger.Warn("selected intervention failed execution", "kind", decided.Selected.Kind, "target", decided.Selected.Target, "error", result.Error)
		}
	} else if decided.ShouldAct && decided.Selected != nil && !approved {
		l.sendAlert(alert.Alert{
			Type:     "approval_required",
			Severity: "warning",
			Title:    "intervention denied or timed out awaiting human approval",
			Message:  fmt.Sprintf("%s on %s was not approved", decided.Selected.Kind, decided.Selected.Target),
			Issuer:   decided.Selected.Target,
			CycleID:  cycleID,
		})
	} else if decided.ShouldAct && decided.Selected != nil {
		l.sendAlert(alert.Alert{
			Type:     "forced_action",
			Severity: "info",
			Title:    "intervention executed automatically",
			Message:  fmt.Sprintf("%s on %s", decided.Selected.Kind, decided.Selected.Target),
			Issuer:   decided.Selected.Target,
			CycleID:  cycleID,
		})
	}

	nrv := selectedNRV(scored, decided)
	explanation := l.deps.Explainer.Generate(decided, nrv, zScore, risk)

	l.mu.Lock()
	l.lastExplain = explanation
	l.mu.Unlock()

	l.recordCycle(cycleID, nowMs, len(patterns), len(hypotheses), decided, explanation, nrv, zScore, risk, result)

	l.logger.Info("cycle complete",
		"cycle", l.cycleCount,
		"patterns", len(patterns),
		"candidates", len(options),
		"blocked", len(blocked),
		"should_act", decided.ShouldAct,
		"nrv", nrv,
	)
}

// gateApproval blocks cycle progress on a human-approval decision when
// the Approvals queue is wired in; with no queue configured, every
// RequiresHumanApproval candidate is denied by default rather than
// silently auto-approved — execution must not bypass the human gate
// just because no approval channel is configured.
func (l *Loop) gateApproval(ctx context.Context, cycleID string, opt decision.InterventionOption) bool {
	if l.deps.Approvals == nil {
		return false
	}

	req := &approval.Request{
		ID:            ulid.Make().String(),
		CycleID:       cycleID,
		Kind:          string(opt.Kind),
		Target:        opt.Target,
		ActionSummary: opt.Parameters,
		Timeout:       2 * time.Minute,
		TimeoutEffect: "deny",
	}
	approved, err := l.deps.Approvals.Submit(ctx, req)
	if err != nil {
		l.logger.Warn("approval submission failed, denying by default", "error", err)
		return false
	}
	return approved
}

// consultPlaybook retrieves RAG playbook guidance for opt, purely for
// logging/operator context — it does not currently feed back into the
// Decision Policy's ranking.
func (l *Loop) consultPlaybook(ctx context.Context, opt decision.InterventionOption) {
	if l.deps.Playbook == nil {
		return
	}
	entries, err := l.deps.Playbook.Retrieve(ctx, playbook.Query{
		Dimension:   dimensionFor(opt),
		PatternKind: string(opt.Kind),
		TopK:        1,
	})
	if err != nil {
		l.logger.Warn("playbook retrieval failed", "error", err)
		return
	}
	if len(entries) > 0 {
		l.logger.Info("playbook guidance", "kind", opt.Kind, "target", opt.Target, "entry_id", entries[0].ID, "rationale", entries[0].Rationale)
	}
}

// consultIncidents looks up historically similar incidents before
// executing opt, logging the closest matches as operator context.
func (l *Loop) consultIncidents(opt decision.InterventionOption, zScore, riskScore float64) {
	if l.deps.Incidents == nil {
		return
	}
	sig := incidentSignature(opt, zScore, riskScore)
	matches, err := l.deps.Incidents.SimilarIncidents(sig, 3)
	if err != nil {
		l.logger.Warn("historical-incident lookup failed", "error", err)
		return
	}
	if len(matches) > 0 {
		l.logger.Info("similar historical incidents found", "kind", opt.Kind, "target", opt.Target, "count", len(matches), "top_similarity", matches[0].Similarity, "top_outcome", matches[0].Incident.Outcome)
	}
}

// recordIncident persists opt as a new historical incident once it's
// been executed, so future cycles can match against it.
func (l *Loop) recordIncident(opt decision.InterventionOption, zScore, riskScore float64, outcome string) {
	if l.deps.Incidents == nil {
		return
	}
	inc := incidents.Incident{
		Dimension:   dimensionFor(opt),
		PatternKind: string(opt.Kind),
		Signature:   incidentSignature(opt, zScore, riskScore),
		Resolution:  string(opt.Kind),
		Outcome:     outcome,
		OccurredAt:  time.Now(),
	}
	if err := l.deps.Incidents.Record(inc); err != nil {
		l.logger.Warn("failed to record incident", "error", err)
	}
}

// incidentSignature builds the feature vector used for cosine-similarity
// incident matching: blast radius, estimate confidence, z-score and risk
// score together characterize the shape of the condition that triggered
// the candidate.
func incidentSignature(opt decision.InterventionOption, zScore, riskScore float64) []float64 {
	return []float64{opt.BlastRadius, opt.Estimate.Confidence, zScore, riskScore}
}

// sendAlert is a nil-safe wrapper around the optional alert.Manager.
func (l *Loop) sendAlert(a alert.Alert) {
	if l.deps.Alerts == nil {
		return
	}
	a.Timestamp = time.Now()
	l.deps.Alerts.Send(a)
}

// recordCycle writes the hash-chained audit record for this cycle, plus
// its intervention record when one was executed, through the optional
// trace.Store.
func (l *Loop) recordCycle(cycleID string, nowMs int64, patternsFound, hypothesesFound int, decided decision.InterventionDecision, explanation explain.Explanation, nrv, zScore float64, risk safety.RiskAssessment, result executor.ExecutionResult) {
	if l.deps.Trace == nil {
		return
	}

	explJSON, err := json.Marshal(explanation)
	if err != nil {
		l.logger.Warn("failed to marshal explanation for audit trail", "error", err)
	}

	rec := &trace.CycleRecord{
		ID:               cycleID,
		CycleNumber:      l.cycleCount,
		Timestamp:        time.UnixMilli(nowMs),
		PatternsFound:    patternsFound,
		HypothesesFound:  hypothesesFound,
		ShouldAct:        decided.ShouldAct,
		Rationale:        explanation.Summary,
		NRV:              nrv,
		ZScore:           zScore,
		RiskScore:        risk.RiskScore,
		RequiresApproval: decided.RequiresHumanApproval,
		Explanation:      explJSON,
	}
	if decided.Selected != nil {
		rec.SelectedKind = string(decided.Selected.Kind)
		rec.SelectedTarget = decided.Selected.Target
	}
	if result.Success {
		rec.InterventionID = result.InterventionID
	}

	l.mu.Lock()
	rec.PrevHash = l.lastHash
	rec.Hash = trace.ComputeHash(rec)
	l.lastHash = rec.Hash
	l.mu.Unlock()

	if err := l.deps.Trace.InsertCycle(rec); err != nil {
		l.logger.Warn("failed to persist cycle record", "error", err)
		return
	}

	if result.Success {
		params, err := json.Marshal(result.ActualParameters)
		if err != nil {
			l.logger.Warn("failed to marshal intervention parameters", "error", err)
		}
		irec := &trace.InterventionRecord{
			ID:         result.InterventionID,
			CycleID:    cycleID,
			Kind:       string(decided.Selected.Kind),
			Target:     decided.Selected.Target,
			Parameters: params,
			ExecutedAt: time.UnixMilli(nowMs),
			Success:    true,
		}
		if result.ExpiresAt != nil {
			t := time.UnixMilli(*result.ExpiresAt)
			irec.ExpiresAt = &t
		}
		if err := l.deps.Trace.InsertIntervention(irec); err != nil {
			l.logger.Warn("failed to persist intervention record", "error", err)
		}
	}
}

// applyExecuted feeds a successful execution into the Feedback
// Controller and remembers the dimension/estimate pair the learning loop
// needs once the intervention expires.
func (l *Loop) applyExecuted(result executor.ExecutionResult, opt decision.InterventionOption, nowMs int64) {
	endTime := nowMs + defaultInterventionDurationMs
	if result.ExpiresAt != nil {
		endTime = *result.ExpiresAt
	}
	l.deps.Feedback.ApplyIntervention(result.InterventionID, opt, nowMs, endTime)

	dim := dimensionFor(opt)
	l.mu.Lock()
	if dimStats, ok := l.deps.Window.DimensionStats(dim); ok {
		l.executed[result.InterventionID] = executedRecord{
			dimension:       dim,
			kind:            opt.Kind,
			estimate:        opt.Estimate,
			baselineMean:    dimStats.SuccessRate,
			baselineLatency: dimStats.AvgLatencyMs,
		}
	}
	l.mu.Unlock()
}

// evaluateExpired runs the post-hoc learning stage (internal/learning)
// for every intervention the Feedback Controller just expired.
func (l *Loop) evaluateExpired(expired []feedback.ActiveIntervention, nowMs int64) {
	if len(expired) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ai := range expired {
		rec, ok := l.executed[ai.ID]
		if !ok {
			continue
		}
		delete(l.executed, ai.ID)

		dimStats, ok := l.deps.Window.DimensionStats(rec.dimension)
		if !ok {
			continue
		}

		actual := learning.ActualOutcome{
			InterventionID:    ai.ID,
			SuccessRateChange: dimStats.SuccessRate - rec.baselineMean,
			LatencyChangeMs:   dimStats.AvgLatencyMs - rec.baselineLatency,
		}

		degraded := false
		if l.deps.Consequence != nil {
			if rollback, reason := l.deps.Consequence.DetectDegradation(actual); rollback {
				degraded = true
				actual.UnexpectedEffects = append(actual.UnexpectedEffects, reason)
				l.logger.Warn("intervention degraded outcome beyond tolerance", "intervention_id", ai.ID, "reason", reason)
				if l.deps.Otel != nil {
					l.deps.Otel.RecordRollback(context.Background())
				}
				l.sendAlert(alert.Alert{
					Type:     "rollback",
					Severity: "critical",
					Title:    "intervention degraded outcome beyond tolerance",
					Message:  reason,
					Details:  map[string]interface{}{"intervention_id": ai.ID, "dimension": rec.dimension},
				})
				if l.deps.Trace != nil {
					if err := l.deps.Trace.MarkInterventionRolledBack(ai.ID, time.Now().UnixMilli()); err != nil {
						l.logger.Warn("failed to mark intervention rolled back", "error", err)
					}
				}
			}
		}

		if l.deps.Incidents != nil {
			outcome := "success"
			if degraded {
				outcome = "degraded"
			}
			if err := l.deps.Incidents.Record(incidents.Incident{
				Dimension:   rec.dimension,
				PatternKind: string(rec.kind),
				Signature:   []float64{actual.SuccessRateChange, actual.LatencyChangeMs, rec.estimate.Confidence},
				Resolution:  string(rec.kind),
				Outcome:     outcome,
				OccurredAt:  time.Now(),
			}); err != nil {
				l.logger.Warn("failed to record post-hoc incident", "error", err)
			}
		}

		if l.deps.Evaluator == nil || l.deps.Tuner == nil {
			continue
		}

		eval := l.deps.Evaluator.Evaluate(ai.ID, rec.estimate, actual)
		l.deps.Tuner.AdjustConfidence(rec.dimension, eval.Success)

		if l.deps.Trace != nil {
			if err := l.deps.Trace.InsertEvaluation(&trace.EvaluationRecord{
				InterventionID: ai.ID,
				AccuracyScore:  eval.AccuracyScore,
				Success:        eval.Success,
				Learnings:      strings.Join(eval.Learnings, "; "),
				EvaluatedAt:    time.Now(),
			}); err != nil {
				l.logger.Warn("failed to persist evaluation record", "error", err)
			}
		}
	}
}

// dimensionFor maps an intervention's target to the dimension key its
// windowed stats are tracked under. Planner always sets Target to either
// "global" or a bare issuer/method name (see decision.targetFromDimension).
func dimensionFor(opt decision.InterventionOption) string {
	if opt.Target == "" || opt.Target == "global" {
		return "global"
	}
	switch txn.Method(opt.Target) {
	case txn.MethodUPI, txn.MethodCard, txn.MethodNetBanking, txn.MethodWallet:
		return "method:" + opt.Target
	}
	return "issuer:" + opt.Target
}

// filterByDimension returns the subset of txns whose DimensionKeys()
// include dim.
func filterByDimension(txns []txn.Transaction, dim string) []txn.Transaction {
	out := make([]txn.Transaction, 0, len(txns))
	for _, t := range txns {
		for _, k := range t.DimensionKeys() {
			if k == dim {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// selectedNRV finds the scored NRV for the decision's selected option, by
// Kind+Target (InterventionOption isn't comparable due to its map field).
func selectedNRV(scored []decision.ScoredOption, decided decision.InterventionDecision) float64 {
	if decided.Selected == nil {
		return 0
	}
	for _, s := range scored {
		if s.Option.Kind == decided.Selected.Kind && s.Option.Target == decided.Selected.Target {
			return s.NRV
		}
	}
	return 0
}

// maxZScore returns the largest absolute z_score value carried in any
// pattern's evidence, or 0 if none was computed this cycle.
func maxZScore(patterns []reasoning.DetectedPattern) float64 {
	var best float64
	for _, p := range patterns {
		for _, e := range p.Evidence {
			if e.Kind != "z_score" {
				continue
			}
			v := e.Value
			if v < 0 {
				v = -v
			}
			if v > best {
				best = v
			}
		}
	}
	return best
}

// emitTelemetry builds a Snapshot from current component state and
// pushes it onto Telemetry, dropping the oldest pending snapshot if the
// channel is full rather than blocking the loop.
func (l *Loop) emitTelemetry(nowMs int64) {
	stats := l.deps.Window.Stats()
	gateway := make(map[string]float64)
	for issuer, state := range l.deps.Drift.Snapshot() {
		gateway[issuer] = state.SuccessRate
	}

	l.mu.Lock()
	explanation := l.lastExplain
	snap := telemetry.Snapshot{
		Timestamp:     nowMs,
		CycleCount:    l.cycleCount,
		TotalVolume:   stats.Total,
		FailRate:      1 - stats.SuccessRate,
		ActiveGateway: gateway,
		SuccessSeries: telemetry.AppendSeries(l.lastSnap.SuccessSeries, telemetry.SeriesPoint{Timestamp: nowMs, Value: stats.SuccessRate}),
		LatencySeries: telemetry.AppendSeries(l.lastSnap.LatencySeries, telemetry.SeriesPoint{Timestamp: nowMs, Value: stats.AvgLatencyMs}),
		NRV:           explanation.ActionJSON.NRV,
		Confidence:    explanation.ActionJSON.Confidence,
		Safety: telemetry.SafetyMetrics{
			RiskScore:        explanation.ActionJSON.RiskScore,
			RequiresApproval: explanation.ActionJSON.RequiresApproval,
		},
		InterventionHistory: l.lastSnap.InterventionHistory,
	}
	if explanation.ActionJSON.ShouldAct {
		snap.InterventionHistory = telemetry.AppendHistory(snap.InterventionHistory, telemetry.InterventionSummary{
			Kind:       decision.Kind(explanation.ActionJSON.ActionType),
			Target:     explanation.ActionJSON.Target,
			ExecutedAt: nowMs,
			Success:    true,
		})
	}
	l.lastSnap = snap
	l.mu.Unlock()

	select {
	case l.Telemetry <- snap:
	default:
		select {
		case <-l.Telemetry:
		default:
		}
		select {
		case l.Telemetry <- snap:
		default:
		}
	}
}
