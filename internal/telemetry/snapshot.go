// Package telemetry defines the dashboard-facing Snapshot the Continuous
// Loop emits every cycle, and the fan-out primitives (internal/loop feeds
// a channel of these; a later websocket hub broadcasts them) that read it.
package telemetry

import "github.com/payops/sentinel/internal/decision"

// SeriesPoint is one timestamped sample in a telemetry time series.
type SeriesPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// ThinkingStep is one line of the cycle's human-readable reasoning trace,
// surfaced on the dashboard as the agent "thinks out loud".
type ThinkingStep struct {
	Timestamp int64  `json:"timestamp"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
}

// SafetyMetrics summarizes the current cycle's safety posture.
type SafetyMetrics struct {
	BlockedCandidates int     `json:"blocked_candidates"`
	RiskScore         float64 `json:"risk_score"`
	RequiresApproval  bool    `json:"requires_approval"`
}

// InterventionSummary is one entry in the telemetry intervention history.
type InterventionSummary struct {
	ID         string        `json:"id"`
	Kind       decision.Kind `json:"kind"`
	Target     string        `json:"target"`
	ExecutedAt int64         `json:"executed_at"`
	Success    bool          `json:"success"`
}

// Snapshot is the full state the dashboard needs to render one moment of
// the Continuous Loop, emitted at TelemetryRateHz regardless of whether a
// full reasoning cycle ran this iteration.
type Snapshot struct {
	Timestamp           int64                 `json:"timestamp"`
	CycleCount          int64                 `json:"cycle_count"`
	TotalVolume         int                   `json:"total_volume"`
	FailRate            float64               `json:"fail_rate"`
	ActiveGateway       map[string]float64    `json:"active_gateway"`
	SuccessSeries       []SeriesPoint         `json:"success_series"`
	LatencySeries       []SeriesPoint         `json:"latency_series"`
	ThinkingLog         []ThinkingStep        `json:"thinking_log"`
	NRV                 float64               `json:"nrv"`
	Confidence          float64               `json:"confidence"`
	Safety              SafetyMetrics         `json:"safety_metrics"`
	InterventionHistory []InterventionSummary `json:"intervention_history"`
}

// maxSeriesLen bounds the two rolling series the dashboard charts to the
// last 40 points.
const maxSeriesLen = 40

// maxHistoryLen bounds the intervention history the dashboard lists.
const maxHistoryLen = 10

// maxThinkingLogLen bounds the per-cycle thinking trace kept in one
// snapshot.
const maxThinkingLogLen = 20

// AppendSeries appends a point to series, dropping the oldest entry once
// maxSeriesLen is exceeded.
func AppendSeries(series []SeriesPoint, p SeriesPoint) []SeriesPoint {
	series = append(series, p)
	if len(series) > maxSeriesLen {
		series = series[len(series)-maxSeriesLen:]
	}
	return series
}

// AppendHistory appends an intervention summary, dropping the oldest
// entry once maxHistoryLen is exceeded.
func AppendHistory(history []InterventionSummary, s InterventionSummary) []InterventionSummary {
	history = append(history, s)
	if len(history) > maxHistoryLen {
		history = history[len(history)-maxHistoryLen:]
	}
	return history
}

// TrimThinkingLog bounds a per-cycle thinking trace to maxThinkingLogLen,
// keeping the most recent entries.
func TrimThinkingLog(log []ThinkingStep) []ThinkingStep {
	if len(log) > maxThinkingLogLen {
		return log[len(log)-maxThinkingLogLen:]
	}
	return log
}
