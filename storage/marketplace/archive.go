package marketplace

import (
	"context"

	core "taskmarket-backend/core/marketplace"
)

var (
	ErrNoHistory = Err("no events recorded for task")
)

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

// Archive persists the marketplace audit trail. One event is appended per
// state transition; a task's event sequence reconstructs its full history
// without consulting live engine state.
type Archive interface {
	Append(ctx context.Context, evt core.Event) error
	TaskHistory(ctx context.Context, taskID uint64) ([]core.Event, error)
	ListEvents(ctx context.Context, limit int) ([]core.Event, error)
	Close()
}

// Attach registers an archive as an engine event sink. Append failures are
// logged by the sink and never fail the emitting operation; the engine has
// already committed by the time events are delivered.
func Attach(ctx context.Context, engine *core.Engine, archive Archive, onError func(error)) {
	engine.RegisterEventSink(func(evt core.Event) {
		if err := archive.Append(ctx, evt); err != nil && onError != nil {
			onError(err)
		}
	})
}
