package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each observability event into a span, grounded on
// the teacher's graph/emit/otel.go. Usage:
//
//	tracer := otel.Tracer("aituberflow")
//	emitter := emit.NewOTelEmitter(tracer)
//	sup, err := workflow.NewSupervisor(nil, workflow.WithEmitter(emitter))
//
// A real deployment pairs this with an otel SDK TracerProvider (see
// go.opentelemetry.io/otel/sdk/trace) exported to a collector; tests
// can use the noop tracer from go.opentelemetry.io/otel/trace/noop.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter constructs an emitter that starts one span per event
// on tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (e *OTelEmitter) Emit(event Event) {
	_, span := e.tracer.Start(context.Background(), event.Msg, trace.WithAttributes(
		attribute.String("workflow.id", event.WorkflowID),
		attribute.String("node.id", event.NodeID),
	))
	defer span.End()

	for k, v := range event.Meta {
		span.SetAttributes(attribute.String("meta."+k, toString(v)))
	}
	if errVal, ok := event.Meta["error"]; ok {
		span.SetStatus(codes.Error, toString(errVal))
	}
}

func (e *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, ev := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e.Emit(ev)
	}
	return nil
}

// Flush is a no-op: span export is the TracerProvider's
// responsibility, not this emitter's.
func (e *OTelEmitter) Flush(ctx context.Context) error { return nil }

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
