// Package otel translates pipeline events into OpenTelemetry spans and
// metrics. Wire a handler into onixcheck.RunOptions.EventHandler; provider
// and exporter setup belong to the embedding service.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/metaops/onixcheck"
)

// TracingHandler translates pipeline events into OpenTelemetry spans: one
// root span per run, one child span per stage. Stage spans of concurrent
// runs are kept apart by the runID:stage key.
type TracingHandler struct {
	tracer trace.Tracer

	mu         sync.RWMutex
	runSpans   map[string]trace.Span
	runCtxs    map[string]context.Context
	stageSpans map[string]trace.Span
}

// NewTracingHandler creates a TracingHandler that uses the given tracer to
// create spans from pipeline events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:     tracer,
		runSpans:   make(map[string]trace.Span),
		runCtxs:    make(map[string]context.Context),
		stageSpans: make(map[string]trace.Span),
	}
}

// Handle processes one pipeline event, creating or ending spans accordingly.
// It satisfies onixcheck.EventHandler when passed as a method value.
func (h *TracingHandler) Handle(e onixcheck.Event) {
	switch e.Kind {
	case onixcheck.EventRunStarted:
		h.handleRunStarted(e)
	case onixcheck.EventStageStarted:
		h.handleStageStarted(e)
	case onixcheck.EventStageFinished:
		h.handleStageFinished(e)
	case onixcheck.EventStageFailed:
		h.handleStageFailed(e)
	case onixcheck.EventRunFinished:
		h.handleRunFinished(e)
	}
}

func (h *TracingHandler) handleRunStarted(e onixcheck.Event) {
	document := payloadString(e, "document")

	spanName := "validate:" + e.RunID
	if document != "" {
		spanName = "validate:" + document
	}

	ctx, span := h.tracer.Start(context.Background(), spanName,
		trace.WithAttributes(
			attribute.String("onixcheck.run_id", e.RunID),
		),
		trace.WithTimestamp(e.Time),
	)
	if document != "" {
		span.SetAttributes(attribute.String("onixcheck.document", document))
	}

	h.mu.Lock()
	h.runSpans[e.RunID] = span
	h.runCtxs[e.RunID] = ctx
	h.mu.Unlock()
}

func (h *TracingHandler) handleStageStarted(e onixcheck.Event) {
	h.mu.RLock()
	parentCtx, ok := h.runCtxs[e.RunID]
	h.mu.RUnlock()
	if !ok {
		parentCtx = context.Background()
	}

	_, span := h.tracer.Start(parentCtx, "stage:"+e.Stage.String(),
		trace.WithAttributes(
			attribute.String("onixcheck.run_id", e.RunID),
			attribute.String("onixcheck.stage", e.Stage.String()),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.stageSpans[e.RunID+":"+e.Stage.String()] = span
	h.mu.Unlock()
}

func (h *TracingHandler) handleStageFinished(e onixcheck.Event) {
	span, ok := h.takeStageSpan(e)
	if !ok {
		return
	}
	if findings, found := e.Payload["findings"]; found {
		if n, ok := findings.(int); ok {
			span.SetAttributes(attribute.Int("onixcheck.findings", n))
		}
	}
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(e.Time))
}

func (h *TracingHandler) handleStageFailed(e onixcheck.Event) {
	span, ok := h.takeStageSpan(e)
	if !ok {
		return
	}
	errMsg := payloadString(e, "error")
	if errMsg == "" {
		errMsg = "stage failed"
	}
	span.SetStatus(codes.Error, errMsg)
	span.RecordError(spanError(errMsg), trace.WithTimestamp(e.Time))
	span.End(trace.WithTimestamp(e.Time))
}

func (h *TracingHandler) handleRunFinished(e onixcheck.Event) {
	h.mu.Lock()
	span, ok := h.runSpans[e.RunID]
	if ok {
		delete(h.runSpans, e.RunID)
		delete(h.runCtxs, e.RunID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(attribute.String("onixcheck.duration", e.Elapsed.String()))
	if errs, found := e.Payload["errors"]; found {
		if n, ok := errs.(int); ok {
			span.SetAttributes(attribute.Int("onixcheck.errors", n))
		}
	}
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(e.Time))
}

func (h *TracingHandler) takeStageSpan(e onixcheck.Event) (trace.Span, bool) {
	key := e.RunID + ":" + e.Stage.String()
	h.mu.Lock()
	span, ok := h.stageSpans[key]
	if ok {
		delete(h.stageSpans, key)
	}
	h.mu.Unlock()
	return span, ok
}

// ActiveRunSpanContext returns the SpanContext for the active run span
// identified by runID. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveRunSpanContext(runID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.runSpans[runID]
	h.mu.RUnlock()
	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

func payloadString(e onixcheck.Event, key string) string {
	if v, found := e.Payload[key]; found {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// spanError is a simple error type for recording span errors.
type spanError string

func (e spanError) Error() string { return string(e) }
