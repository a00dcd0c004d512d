package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this package's tracer/meter to whatever
// backend is wired in behind the OTel API.
const instrumentationName = "github.com/payops/sentinel/internal/loop"

// Instrumentation wraps the OTel tracer and metric API surface the
// Continuous Loop uses to make its cycle ordering and a handful of
// cycle-level counters observable. It ships with a stdouttrace exporter
// by default — there is no collector in this deployment's scope, so
// traces print to stdout and metrics accumulate against a no-op meter
// provider unless the caller wires in a real one (e.g. via
// otel.SetMeterProvider before NewInstrumentation runs).
type Instrumentation struct {
	tracer oteltrace.Tracer
	meter  metric.Meter

	anomaliesDetected  metric.Int64Counter
	interventionsRun   metric.Int64Counter
	rollbacksTriggered metric.Int64Counter

	tp     *sdktrace.TracerProvider
	logger *slog.Logger
}

// NewInstrumentation builds an Instrumentation with a stdouttrace span
// exporter. Pass logger=nil to use slog.Default().
func NewInstrumentation(logger *slog.Logger) (*Instrumentation, error) {
	if logger == nil {
		logger = slog.Default()
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: create stdout trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	tracer := tp.Tracer(instrumentationName)
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	anomaliesDetected, err := meter.Int64Counter("sentinel.anomalies_detected",
		metric.WithDescription("Number of anomalous dimensions detected per cycle"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: anomalies_detected counter: %w", err)
	}
	interventionsRun, err := meter.Int64Counter("sentinel.interventions_executed",
		metric.WithDescription("Number of interventions successfully executed"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: interventions_executed counter: %w", err)
	}
	rollbacksTriggered, err := meter.Int64Counter("sentinel.rollbacks_triggered",
		metric.WithDescription("Number of interventions rolled back due to degraded outcomes"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: rollbacks_triggered counter: %w", err)
	}

	return &Instrumentation{
		tracer:             tracer,
		meter:              meter,
		anomaliesDetected:  anomaliesDetected,
		interventionsRun:   interventionsRun,
		rollbacksTriggered: rollbacksTriggered,
		tp:                 tp,
		logger:             logger.With("component", "telemetry.Instrumentation"),
	}, nil
}

// StartCycle opens the per-cycle span covering the full reasoning cycle,
// from observation through explanation. The caller must End the
// returned span once the cycle completes.
func (i *Instrumentation) StartCycle(ctx context.Context, cycleNumber int64) (context.Context, oteltrace.Span) {
	return i.tracer.Start(ctx, "sentinel.cycle",
		oteltrace.WithAttributes())
}

// RecordAnomalies adds n to the anomalies-detected counter for this cycle.
func (i *Instrumentation) RecordAnomalies(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	i.anomaliesDetected.Add(ctx, int64(n))
}

// RecordIntervention increments the executed-interventions counter.
func (i *Instrumentation) RecordIntervention(ctx context.Context) {
	i.interventionsRun.Add(ctx, 1)
}

// RecordRollback increments the rollbacks-triggered counter.
func (i *Instrumentation) RecordRollback(ctx context.Context) {
	i.rollbacksTriggered.Add(ctx, 1)
}

// RecordSnapshot reacts to a telemetry Snapshot when the caller only has
// access to the loop's periodic snapshots rather than the cycle internals
// directly (e.g. a consumer wired in after the loop boundary rather than
// inside runCycle itself).
func (i *Instrumentation) RecordSnapshot(snap Snapshot) {
	if snap.Safety.RequiresApproval {
		i.logger.Debug("cycle requires human approval", "cycle", snap.CycleCount)
	}
}

// Shutdown flushes pending spans and releases the tracer provider.
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	return i.tp.Shutdown(ctx)
}
