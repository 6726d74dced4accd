package mesh

import (
	"context"

	"github.com/thewriterben/wildcam-mesh/internal/models"
	"github.com/thewriterben/wildcam-mesh/pkg/utils"
)

// DurableSink receives every failure event for post-mortem analysis.
// Implemented by the SQLite storage layer. Writes happen between ticks;
// a failed write is logged and retried on the next flush.
type DurableSink interface {
	AppendFailureEvent(ctx context.Context, event *models.FailureEvent) error
}

// FailureLogger keeps a bounded in-memory ring of recent failure events
// and forwards each to the durable sink. Events are append-only and never
// mutated after Record. Record only buffers; the sink is written by
// Flush, which the run loop calls between ticks so storage latency never
// delays a sweep.
type FailureLogger struct {
	logger  *utils.Logger
	sink    DurableSink
	buf     []models.FailureEvent
	next    int
	total   int
	pending []models.FailureEvent
}

// NewFailureLogger creates a logger holding at most capacity recent
// events in memory. The sink may be nil (memory-only, used in tests).
func NewFailureLogger(capacity int, sink DurableSink, logger *utils.Logger) *FailureLogger {
	if capacity <= 0 {
		capacity = models.DefaultFaultLogCapacity
	}
	return &FailureLogger{
		logger: logger.WithComponent("faultlog"),
		sink:   sink,
		buf:    make([]models.FailureEvent, 0, capacity),
	}
}

// Record appends an event to the ring and queues it for the next Flush.
// It never touches storage, so it is safe to call mid-sweep.
func (f *FailureLogger) Record(event models.FailureEvent) {
	if len(f.buf) < cap(f.buf) {
		f.buf = append(f.buf, event)
	} else {
		f.buf[f.next] = event
		f.next = (f.next + 1) % cap(f.buf)
	}
	f.total++

	f.logger.Warn("Node %d failed: %s (active nodes left: %d, reassigned: %d, pending: %d)",
		event.FailedNodeID, event.Reason, event.ActiveNodes, event.TasksReassigned, event.TasksPending)

	if f.sink != nil {
		f.pending = append(f.pending, event)
	}
}

// Flush writes queued events to the durable sink. An event that fails to
// persist is kept and retried on the next flush; failures are rare
// enough that the backlog stays small.
func (f *FailureLogger) Flush(ctx context.Context) {
	if f.sink == nil || len(f.pending) == 0 {
		return
	}
	remaining := f.pending[:0]
	for i := range f.pending {
		if err := f.sink.AppendFailureEvent(ctx, &f.pending[i]); err != nil {
			f.logger.Error("Failed to persist failure event %s: %v", f.pending[i].EventID, err)
			remaining = append(remaining, f.pending[i])
		}
	}
	f.pending = remaining
}

// Events returns the retained events, oldest first.
func (f *FailureLogger) Events() []models.FailureEvent {
	out := make([]models.FailureEvent, 0, len(f.buf))
	out = append(out, f.buf[f.next:]...)
	out = append(out, f.buf[:f.next]...)
	return out
}

// Len returns the number of retained events.
func (f *FailureLogger) Len() int {
	return len(f.buf)
}

// Total returns the number of events ever recorded, including those that
// have rotated out of the ring.
func (f *FailureLogger) Total() int {
	return f.total
}
