package memory

import (
	"context"
	"fmt"
	"sync"

	"ledger/internal/events"
	ports "ledger/internal/sheets"
)

// Log keeps activity rows in process memory.
type Log struct {
	mu    sync.Mutex
	items []events.Event
}

var _ ports.ActivityWriter = (*Log)(nil)

func New() *Log {
	return &Log{}
}

// AppendActivity stores the event and returns a synthetic row reference.
func (l *Log) AppendActivity(_ context.Context, e *events.Event) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, *e)
	return fmt.Sprintf("mem:%d", len(l.items)), nil
}

// Entries returns a copy of the recorded events in arrival order.
func (l *Log) Entries() []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.Event(nil), l.items...)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
