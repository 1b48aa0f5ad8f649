package emit

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	return exporter, func() { _ = tp.Shutdown(context.Background()) }
}

func attributeMap(attrs []attribute.KeyValue) map[string]interface{} {
	m := make(map[string]interface{})
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func TestOTelEmitter_EmitCreatesNamedSpanWithStandardAttributes(t *testing.T) {
	exporter, shutdown := newTestTracer(t)
	defer shutdown()

	emitter := NewOTelEmitter(otel.Tracer("test"))
	emitter.Emit(Event{
		ProgramID: "prog-001",
		Step:      1,
		NodeID:    "nodeA",
		Msg:       "propose_edit",
		Meta:      map[string]interface{}{"tokens": 150},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "propose_edit" {
		t.Errorf("span name = %q, want %q", span.Name, "propose_edit")
	}
	attrs := attributeMap(span.Attributes)
	if attrs["graphlang.program_id"] != "prog-001" {
		t.Errorf("program_id = %v", attrs["graphlang.program_id"])
	}
	if attrs["graphlang.step"] != int64(1) {
		t.Errorf("step = %v", attrs["graphlang.step"])
	}
	if attrs["tokens"] != int64(150) {
		t.Errorf("tokens = %v", attrs["tokens"])
	}
	if !span.EndTime.After(span.StartTime) {
		t.Error("expected span to be ended")
	}
}

func TestOTelEmitter_EmitWithErrorSetsErrorStatus(t *testing.T) {
	exporter, shutdown := newTestTracer(t)
	defer shutdown()

	emitter := NewOTelEmitter(otel.Tracer("test"))
	emitter.Emit(Event{
		ProgramID: "prog-001",
		Msg:       "simulate",
		Meta:      map[string]interface{}{"error": "division by zero"},
	})

	span := exporter.GetSpans()[0]
	if span.Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", span.Status.Code)
	}
	if span.Status.Description != "division by zero" {
		t.Errorf("description = %q", span.Status.Description)
	}
	if len(span.Events) == 0 {
		t.Error("expected a recorded error event")
	}
}

func TestOTelEmitter_EmitBatchCreatesOneSpanPerEvent(t *testing.T) {
	exporter, shutdown := newTestTracer(t)
	defer shutdown()

	emitter := NewOTelEmitter(otel.Tracer("test"))
	events := []Event{
		{ProgramID: "p", Msg: "flush_propagation"},
		{ProgramID: "p", Msg: "flush_propagation"},
	}
	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if len(exporter.GetSpans()) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(exporter.GetSpans()))
	}
}

func TestOTelEmitter_FlushForcesExport(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTelEmitter(otel.Tracer("test"))
	emitter.Emit(Event{ProgramID: "p", Msg: "simulate"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := emitter.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(exporter.GetSpans()) != 1 {
		t.Errorf("expected 1 span after flush, got %d", len(exporter.GetSpans()))
	}
}

func TestOTelEmitter_MetadataTypeConversion(t *testing.T) {
	exporter, shutdown := newTestTracer(t)
	defer shutdown()

	emitter := NewOTelEmitter(otel.Tracer("test"))
	emitter.Emit(Event{
		ProgramID: "p",
		Msg:       "node_eval",
		Meta: map[string]interface{}{
			"duration_val": 250 * time.Millisecond,
			"bool_val":     true,
		},
	})

	attrs := attributeMap(exporter.GetSpans()[0].Attributes)
	if attrs["duration_val"] != int64(250) {
		t.Errorf("duration_val = %v, want 250ms", attrs["duration_val"])
	}
	if attrs["bool_val"] != true {
		t.Errorf("bool_val = %v", attrs["bool_val"])
	}
}

func TestOTelEmitter_NilMetaDoesNotPanic(t *testing.T) {
	exporter, shutdown := newTestTracer(t)
	defer shutdown()

	emitter := NewOTelEmitter(otel.Tracer("test"))
	emitter.Emit(Event{ProgramID: "p", Msg: "node_eval", Meta: nil})
	if len(exporter.GetSpans()) != 1 {
		t.Fatalf("expected 1 span, got %d", len(exporter.GetSpans()))
	}
}

func TestOTelEmitter_ImplementsEmitter(t *testing.T) {
	var _ Emitter = NewOTelEmitter(otel.Tracer("test"))
}
