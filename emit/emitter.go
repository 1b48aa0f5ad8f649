package emit

import "context"

// Emitter receives Events as program and interpreter operations occur.
// Implementations must not block the caller for long: Emit is called
// from hot paths (one call per evaluated node).
type Emitter interface {
	// Emit reports a single event. Implementations that cannot fail
	// synchronously (log output, in-memory buffering) swallow their own
	// errors rather than propagating them into the caller's hot path.
	Emit(event Event)

	// EmitBatch reports several events at once, in order, for callers
	// that already have a slice in hand and want to avoid one call per
	// event.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush forces delivery of anything buffered internally. Most
	// implementations are no-ops; OTelEmitter forwards to the tracer
	// provider's ForceFlush.
	Flush(ctx context.Context) error
}
