package emit

import "context"

// Emitter receives observability events from the engine. Grounded on
// the teacher's graph/emit/emitter.go interface; kept to the same
// three operations (Emit, EmitBatch, Flush) so Log/OTel
// implementations carry over directly.
//
// Implementations must not block the caller for long: the supervisor
// calls Emit synchronously for every log line it writes.
// A slow or buffering Emitter should do the expensive work on its own
// goroutine and make Emit cheap.
type Emitter interface {
	// Emit records a single observability event.
	Emit(event Event)

	// EmitBatch records multiple events, returning the first error
	// encountered (if any implementation chooses to report one).
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until any buffered events have been durably
	// recorded, or ctx is cancelled.
	Flush(ctx context.Context) error
}
