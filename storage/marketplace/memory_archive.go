package marketplace

import (
	"context"
	"sync"

	core "taskmarket-backend/core/marketplace"
)

// MemoryArchive holds the audit trail in memory. The single RWMutex keeps
// appends and reads consistent without ordering surprises.
type MemoryArchive struct {
	mu     sync.RWMutex
	events []core.Event
}

// NewMemoryArchive returns an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{}
}

// Append records an event.
func (a *MemoryArchive) Append(_ context.Context, evt core.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, evt)
	return nil
}

// TaskHistory returns all events for a task in append order.
func (a *MemoryArchive) TaskHistory(_ context.Context, taskID uint64) ([]core.Event, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]core.Event, 0)
	for _, evt := range a.events {
		if evt.TaskID == taskID {
			out = append(out, evt)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoHistory
	}
	return out, nil
}

// ListEvents returns the most recent events, newest last.
func (a *MemoryArchive) ListEvents(_ context.Context, limit int) ([]core.Event, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	start := 0
	if limit > 0 && len(a.events) > limit {
		start = len(a.events) - limit
	}
	out := make([]core.Event, len(a.events)-start)
	copy(out, a.events[start:])
	return out, nil
}

// Close is a no-op for the memory driver.
func (a *MemoryArchive) Close() {}
