package job

import (
	"context"
	"errors"
	"sync"

	"github.com/sourceplane/hostcheck/internal/model"
)

// ErrLogClosed is returned when appending after the verdict
var ErrLogClosed = errors.New("event log closed")

// EventLog is a job's append-only event history. Appending the verdict
// closes the log.
type EventLog struct {
	mu     sync.Mutex
	events []model.Event
	closed bool
	// changed is closed and replaced on every append
	changed chan struct{}
}

// NewEventLog returns an empty log
func NewEventLog() *EventLog {
	return &EventLog{changed: make(chan struct{})}
}

// Append assigns the next sequence number to ev and stores it
func (l *EventLog) Append(ev model.Event) (model.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ev, ErrLogClosed
	}
	ev.Seq = uint64(len(l.events))
	l.events = append(l.events, ev)
	if ev.Type == model.EventVerdict {
		l.closed = true
	}
	close(l.changed)
	l.changed = make(chan struct{})
	return ev, nil
}

// Events returns a copy of the history so far
func (l *EventLog) Events() []model.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Closed reports whether the verdict has been appended
func (l *EventLog) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Subscribe streams the full history from the first event, then live
// events, and closes the channel after the verdict or when ctx is done.
func (l *EventLog) Subscribe(ctx context.Context) <-chan model.Event {
	out := make(chan model.Event)
	go func() {
		defer close(out)
		next := 0
		for {
			l.mu.Lock()
			pending := l.events[next:]
			batch := make([]model.Event, len(pending))
			copy(batch, pending)
			changed := l.changed
			l.mu.Unlock()

			for _, ev := range batch {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				next++
				if ev.Type == model.EventVerdict {
					return
				}
			}
			if len(batch) > 0 {
				continue
			}

			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
