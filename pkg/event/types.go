package event

import "context"

// Emitter records a side effect to run after the current request.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}
