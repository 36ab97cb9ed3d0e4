package audit

import "context"

// Emitter records audit events best-effort. Implementations must never
// block the caller beyond a channel handoff and must never return an
// error; a lost event is logged, not surfaced.
type Emitter interface {
	Emit(ctx context.Context, event Event)
	Close()
}

// NopEmitter discards all events. Used when redis is disabled and in tests.
type NopEmitter struct{}

func (NopEmitter) Emit(ctx context.Context, event Event) {}

func (NopEmitter) Close() {}
