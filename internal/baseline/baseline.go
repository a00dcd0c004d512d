// Package baseline maintains per-dimension EWMA means and variances for
// success rate, latency, and retry count, and derives Z-scores from them.
package baseline

import "math"

// Metric identifies which of the three tracked metrics a Z-score or floor
// applies to.
type Metric string

const (
	MetricSuccessRate Metric = "success_rate"
	MetricLatency     Metric = "latency"
	MetricRetryCount  Metric = "retry_count"
)

// floors prevent divide-by-zero Z-scores when a dimension's variance has
// collapsed to near zero.
var floors = map[Metric]float64{
	MetricSuccessRate: 0.01,
	MetricLatency:      10,
	MetricRetryCount:   0.1,
}

func floorFor(m Metric) float64 {
	if f, ok := floors[m]; ok {
		return f
	}
	return 0
}

// readyThreshold is the minimum sample count before a baseline is
// considered statistically usable.
const readyThreshold = 3

// RollingBaseline is the EWMA state for one dimension key (e.g.
// "issuer:HDFC", "method:UPI", "global").
type RollingBaseline struct {
	Dimension string `json:"dimension"`

	MeanSuccessRate float64 `json:"mean_success_rate"`
	VarSuccessRate  float64 `json:"var_success_rate"`

	MeanLatencyMs float64 `json:"mean_latency_ms"`
	VarLatencyMs  float64 `json:"var_latency_ms"`

	MeanRetryCount float64 `json:"mean_retry_count"`
	VarRetryCount  float64 `json:"var_retry_count"`

	SampleCount int     `json:"sample_count"`
	LastUpdated int64   `json:"last_updated"`
	Alpha       float64 `json:"alpha"`
}

// Ready reports whether this baseline has accumulated enough samples to
// be trusted by the Anomaly Detector.
func (b *RollingBaseline) Ready() bool {
	return b.SampleCount >= readyThreshold
}

// fold applies one EWMA update step to a (mean, variance) pair given a
// new observation and smoothing factor alpha. On the very first sample,
// mean is initialized to the observation and variance to 0.
func fold(mean, variance, observation, alpha float64, firstSample bool) (float64, float64) {
	if firstSample {
		return observation, 0
	}
	delta := observation - mean
	newMean := mean + alpha*delta
	newVariance := (1-alpha)*(variance+alpha*delta*delta)
	return newMean, newVariance
}

// Update folds one observation (successRate, avgLatencyMs, avgRetry) into
// the baseline at timestamp now (ms since epoch).
func (b *RollingBaseline) Update(successRate, avgLatencyMs, avgRetry float64, now int64) {
	first := b.SampleCount == 0
	if b.Alpha <= 0 {
		b.Alpha = 0.3
	}

	b.MeanSuccessRate, b.VarSuccessRate = fold(b.MeanSuccessRate, b.VarSuccessRate, successRate, b.Alpha, first)
	b.MeanLatencyMs, b.VarLatencyMs = fold(b.MeanLatencyMs, b.VarLatencyMs, avgLatencyMs, b.Alpha, first)
	b.MeanRetryCount, b.VarRetryCount = fold(b.MeanRetryCount, b.VarRetryCount, avgRetry, b.Alpha, first)

	b.SampleCount++
	b.LastUpdated = now
}

// std returns the floored standard deviation for a metric.
func (b *RollingBaseline) std(metric Metric) float64 {
	var variance float64
	switch metric {
	case MetricSuccessRate:
		variance = b.VarSuccessRate
	case MetricLatency:
		variance = b.VarLatencyMs
	case MetricRetryCount:
		variance = b.VarRetryCount
	}
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)
	if floor := floorFor(metric); std < floor {
		return floor
	}
	return std
}

func (b *RollingBaseline) mean(metric Metric) float64 {
	switch metric {
	case MetricSuccessRate:
		return b.MeanSuccessRate
	case MetricLatency:
		return b.MeanLatencyMs
	case MetricRetryCount:
		return b.MeanRetryCount
	}
	return 0
}

// Z returns the Z-score of value against this baseline's mean for metric,
// using the floored standard deviation as the denominator.
func (b *RollingBaseline) Z(value float64, metric Metric) float64 {
	std := b.std(metric)
	if std == 0 {
		std = floorFor(metric)
	}
	return math.Abs(value-b.mean(metric)) / std
}
