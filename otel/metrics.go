package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/metaops/onixcheck"
)

// MetricsHandler translates pipeline events into OpenTelemetry metrics:
// counters for stage executions, failures, and findings, histograms for
// stage and run durations.
type MetricsHandler struct {
	stageExecutions metric.Int64Counter
	stageFailures   metric.Int64Counter
	stageFindings   metric.Int64Counter
	stageDuration   metric.Float64Histogram
	runDuration     metric.Float64Histogram
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create its instruments.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	stageExec, err := meter.Int64Counter("onixcheck.stage.executions",
		metric.WithDescription("Number of stage executions"),
	)
	if err != nil {
		return nil, err
	}

	stageFail, err := meter.Int64Counter("onixcheck.stage.failures",
		metric.WithDescription("Number of stages that could not evaluate"),
	)
	if err != nil {
		return nil, err
	}

	stageFindings, err := meter.Int64Counter("onixcheck.stage.findings",
		metric.WithDescription("Number of findings reported by stages"),
	)
	if err != nil {
		return nil, err
	}

	stageDur, err := meter.Float64Histogram("onixcheck.stage.duration",
		metric.WithDescription("Duration of stage execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runDur, err := meter.Float64Histogram("onixcheck.run.duration",
		metric.WithDescription("Duration of a validation run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		stageExecutions: stageExec,
		stageFailures:   stageFail,
		stageFindings:   stageFindings,
		stageDuration:   stageDur,
		runDuration:     runDur,
	}, nil
}

// Handle processes one pipeline event and records the appropriate metrics.
// It satisfies onixcheck.EventHandler when passed as a method value.
func (h *MetricsHandler) Handle(e onixcheck.Event) {
	switch e.Kind {
	case onixcheck.EventStageFinished:
		h.handleStageFinished(e)
	case onixcheck.EventStageFailed:
		h.handleStageFailed(e)
	case onixcheck.EventRunFinished:
		h.handleRunFinished(e)
	}
}

func (h *MetricsHandler) handleStageFinished(e onixcheck.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("stage", e.Stage.String()),
	)
	h.stageExecutions.Add(ctx, 1, attrs)
	h.stageDuration.Record(ctx, e.Elapsed.Seconds(), attrs)
	if findings, found := e.Payload["findings"]; found {
		if n, ok := findings.(int); ok && n > 0 {
			h.stageFindings.Add(ctx, int64(n), attrs)
		}
	}
}

func (h *MetricsHandler) handleStageFailed(e onixcheck.Event) {
	ctx := context.Background()
	h.stageFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", e.Stage.String()),
	))
}

func (h *MetricsHandler) handleRunFinished(e onixcheck.Event) {
	h.runDuration.Record(context.Background(), e.Elapsed.Seconds())
}
