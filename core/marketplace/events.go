package marketplace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventSink receives marketplace events after the emitting operation has
// committed. Sinks run on the caller's goroutine outside the engine lock;
// a sink may read engine state but a mutating call from a sink is treated
// as a fresh operation.
type EventSink func(Event)

type eventHub struct {
	mu    sync.Mutex
	sinks []EventSink
}

// register adds a callback to receive events.
func (h *eventHub) register(sink EventSink) {
	if sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// publish forwards events to registered sinks.
func (h *eventHub) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	h.mu.Lock()
	sinks := append([]EventSink{}, h.sinks...)
	h.mu.Unlock()
	for _, evt := range events {
		for _, sink := range sinks {
			sink(evt)
		}
	}
}

func newEvent(t EventType, taskID uint64, actor Principal, amount int64, msg string, at time.Time) Event {
	return Event{
		EventID:    uuid.NewString(),
		Type:       t,
		TaskID:     taskID,
		Actor:      actor,
		AmountSats: amount,
		Message:    msg,
		CreatedAt:  at,
	}
}
