package sim

import "github.com/milk9111/navkit/agent"

type EventKind string

const (
	EventStateChanged EventKind = "state_changed"
	EventArrived      EventKind = "arrived"
	EventReplanned    EventKind = "replanned"
)

type Event struct {
	Tick  uint64
	Actor string
	Kind  EventKind
	From  agent.State
	To    agent.State
}

// EventQueue is a simple FIFO queue.
type EventQueue struct {
	items []Event
}

func (q *EventQueue) Push(evt Event) {
	if q == nil {
		return
	}
	q.items = append(q.items, evt)
}

// Drain returns all events and clears the queue.
func (q *EventQueue) Drain() []Event {
	if q == nil || len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}
