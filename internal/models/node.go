package models

import "time"

// NodeID is the stable identifier a camera node announces in every status
// message. IDs are small integers assigned at provisioning time and never
// reused.
type NodeID uint32

// Capability is a bit-set of optional hardware features a node reports.
// New capabilities extend the set without changing the scoring contract.
type Capability uint8

const (
	// CapAcceleratedProcessing marks nodes with an on-board inference
	// accelerator, preferred for process/detect/analyze tasks.
	CapAcceleratedProcessing Capability = 1 << iota
)

// Has reports whether all bits of want are present.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Node is the coordinator's last-known snapshot of a peer camera node.
// A record is created on the first status message and never deleted;
// inactive nodes keep their snapshot so they can rejoin without
// re-announcing capabilities.
type Node struct {
	ID             NodeID     `json:"node_id" db:"node_id"`
	Active         bool       `json:"active" db:"active"`
	LastSeen       time.Time  `json:"last_seen" db:"last_seen"`
	BatteryLevel   int        `json:"battery_level" db:"battery_level"`     // 0-100
	SignalStrength int        `json:"signal_strength" db:"signal_strength"` // dBm, closer to 0 is stronger
	Capabilities   Capability `json:"capabilities" db:"capabilities"`
	RegisteredAt   time.Time  `json:"registered_at" db:"registered_at"`
}

// NodeSnapshot is the view of a node handed to the reassignment policy:
// the stored record plus the derived active task count.
type NodeSnapshot struct {
	Node
	ActiveTaskCount int `json:"active_task_count"`
}
