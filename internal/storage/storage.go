package storage

import (
	"context"

	"github.com/thewriterben/wildcam-mesh/internal/models"
)

// Storage defines the durable side channel of the coordinator: the
// append-only failure audit trail, plus node/task snapshots refreshed by
// the tick loop and read back by the diagnostics API.
type Storage interface {
	// Snapshot persistence (whole-table replace, written once per tick)
	SaveNodes(ctx context.Context, nodes []models.Node) error
	SaveTasks(ctx context.Context, tasks []models.Task) error
	ListNodes(ctx context.Context) ([]models.Node, error)
	ListTasks(ctx context.Context) ([]models.Task, error)

	// Failure audit trail (append-only, never mutated)
	AppendFailureEvent(ctx context.Context, event *models.FailureEvent) error
	ListFailureEvents(ctx context.Context, limit int) ([]models.FailureEvent, error)

	// Database management
	Close() error
	Ping(ctx context.Context) error
}
