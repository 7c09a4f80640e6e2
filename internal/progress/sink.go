package progress

import "context"

// Sink consumes batches of job lifecycle events (submissions, terminal
// transitions, batch completion). Implementations must be safe for repeated
// calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// orchestrator can report job transitions without knowing how events are
// buffered or which sinks observe them.
type Emitter interface {
	Emit(evt Event)
}
