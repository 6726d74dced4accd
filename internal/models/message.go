package models

import (
	"fmt"
	"time"
)

// Message kind tags on the wire.
const (
	MsgStatus     = "STATUS"
	MsgTaskAck    = "TASK_ACK"
	MsgTaskAssign = "TASK_ASSIGN"
)

// StatusMessage is the periodic liveness and capability report every peer
// sends. The embedded timestamp is informational only: liveness is judged
// by receipt time so a peer with a skewed clock cannot delay its own
// failure detection.
type StatusMessage struct {
	NodeID                   NodeID    `json:"node_id"`
	BatteryLevel             int       `json:"battery_level"`
	SignalStrength           int       `json:"signal_strength"`
	HasAcceleratedProcessing bool      `json:"has_accelerated_processing"`
	Timestamp                time.Time `json:"timestamp,omitempty"`
}

// Validate normalizes a status message before it enters the core.
// Battery is clamped into 0-100 rather than rejected: a mis-scaled
// reading should not cost a node its liveness.
func (m *StatusMessage) Validate() error {
	if m.NodeID == 0 {
		return fmt.Errorf("status message missing node id")
	}
	if m.BatteryLevel < 0 {
		m.BatteryLevel = 0
	}
	if m.BatteryLevel > 100 {
		m.BatteryLevel = 100
	}
	return nil
}

// Capabilities maps the message's flag fields onto the capability bit-set.
func (m *StatusMessage) Capabilities() Capability {
	var c Capability
	if m.HasAcceleratedProcessing {
		c |= CapAcceleratedProcessing
	}
	return c
}

// TaskAckMessage acknowledges completion of a task by the node that
// executed it.
type TaskAckMessage struct {
	NodeID NodeID `json:"node_id"`
	TaskID string `json:"task_id"`
}

// Validate rejects acks that cannot be attributed to a node and task.
func (m *TaskAckMessage) Validate() error {
	if m.NodeID == 0 {
		return fmt.Errorf("task ack missing node id")
	}
	if m.TaskID == "" {
		return fmt.Errorf("task ack missing task id")
	}
	return nil
}

// TaskAssignMessage hands a task to a node. The deadline is expressed in
// the receiver's clock domain and is approximate; the coordinator's own
// ledger deadline is authoritative for retry decisions.
type TaskAssignMessage struct {
	TaskID   string    `json:"task_id"`
	Type     TaskType  `json:"task_type"`
	Payload  []byte    `json:"payload,omitempty"`
	Deadline time.Time `json:"deadline"`
}

// Envelope is the tagged wrapper every datagram carries, so the transport
// can decode the kind before handing the body to the core.
type Envelope struct {
	Kind   string             `json:"kind"`
	Status *StatusMessage     `json:"status,omitempty"`
	Ack    *TaskAckMessage    `json:"ack,omitempty"`
	Assign *TaskAssignMessage `json:"assign,omitempty"`
}
