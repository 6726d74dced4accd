package transport

import (
	"github.com/thewriterben/wildcam-mesh/internal/models"
	"github.com/thewriterben/wildcam-mesh/internal/telemetry"
)

// Inbox is the bounded queue between the transport's receive path and the
// coordinator tick loop. The transport pushes, the tick loop drains; when
// the queue is full new messages are dropped and counted, never blocked
// on. Idempotent status upserts make drops harmless: the next report
// converges to the same state.
type Inbox struct {
	ch chan models.Envelope
}

// NewInbox creates an inbox holding at most capacity undrained messages.
func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = models.DefaultInboxCapacity
	}
	return &Inbox{ch: make(chan models.Envelope, capacity)}
}

// TryPush queues a message without blocking. Returns false when the inbox
// is full and the message was dropped.
func (in *Inbox) TryPush(env models.Envelope) bool {
	select {
	case in.ch <- env:
		return true
	default:
		telemetry.MessagesDroppedTotal.Inc()
		return false
	}
}

// Drain returns every message queued since the last call, without
// blocking. Called at the start of each coordinator tick.
func (in *Inbox) Drain() []models.Envelope {
	var out []models.Envelope
	for {
		select {
		case env := <-in.ch:
			out = append(out, env)
		default:
			return out
		}
	}
}

// Len returns the number of undrained messages.
func (in *Inbox) Len() int {
	return len(in.ch)
}
