package models

import "time"

// FailureEvent is an immutable audit record of a detected node failure.
// Exactly one event is appended per failure episode; repeated sweeps over
// an already-inactive node do not re-log.
type FailureEvent struct {
	EventID         string        `json:"event_id" db:"event_id"`
	Timestamp       time.Time     `json:"timestamp" db:"timestamp"`
	FailedNodeID    NodeID        `json:"failed_node_id" db:"failed_node_id"`
	Reason          string        `json:"reason" db:"reason"`
	Uptime          time.Duration `json:"uptime" db:"uptime"` // coordinator uptime at detection
	ActiveNodes     int           `json:"active_nodes" db:"active_nodes"`
	TasksReassigned int           `json:"tasks_reassigned" db:"tasks_reassigned"`
	TasksPending    int           `json:"tasks_pending" db:"tasks_pending"`
}
