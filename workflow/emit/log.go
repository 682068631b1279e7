package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes events as plain text or JSON lines to writer.
// Grounded on the teacher's graph/emit/log.go, which is itself the
// clearest example in the corpus of this project's plain-stdlib
// logging idiom (fmt.Fprintf / encoding/json, no slog/zerolog/logrus).
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter constructs a LogEmitter. A nil writer defaults to
// os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (e *LogEmitter) Emit(event Event) {
	if e.jsonMode {
		e.emitJSON(event)
		return
	}
	e.emitText(event)
}

func (e *LogEmitter) emitText(event Event) {
	fmt.Fprintf(e.writer, "[%s] workflow=%s node=%s meta=%v\n",
		event.Msg, event.WorkflowID, event.NodeID, event.Meta)
}

func (e *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		WorkflowID string                 `json:"workflow_id"`
		NodeID     string                 `json:"node_id"`
		Msg        string                 `json:"msg"`
		Meta       map[string]interface{} `json:"meta,omitempty"`
		Timestamp  string                 `json:"timestamp"`
	}{
		WorkflowID: event.WorkflowID,
		NodeID:     event.NodeID,
		Msg:        event.Msg,
		Meta:       event.Meta,
		Timestamp:  event.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		fmt.Fprintf(e.writer, `{"msg":"emit marshal error: %v"}`+"\n", err)
		return
	}
	fmt.Fprintf(e.writer, "%s\n", data)
}

// EmitBatch writes every event in order; LogEmitter has no batching
// optimization beyond the loop.
func (e *LogEmitter) EmitBatch(ctx context.Context, events []Event) error {
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

// Flush is a no-op: writes are synchronous and unbuffered.
func (e *LogEmitter) Flush(ctx context.Context) error { return nil }
