package models

import "time"

// TaskType tags the kind of work a task carries. The payload itself is
// opaque to the coordinator.
type TaskType string

const (
	TaskTypeCapture TaskType = "capture"
	TaskTypeDetect  TaskType = "detect"
	TaskTypeProcess TaskType = "process"
	TaskTypeAnalyze TaskType = "analyze"
	TaskTypeOther   TaskType = "other"
)

// WantsAcceleration reports whether this task type benefits from an
// on-board inference accelerator.
func (t TaskType) WantsAcceleration() bool {
	switch t {
	case TaskTypeProcess, TaskTypeDetect, TaskTypeAnalyze:
		return true
	}
	return false
}

// Valid reports whether t is one of the known task type tags.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeCapture, TaskTypeDetect, TaskTypeProcess, TaskTypeAnalyze, TaskTypeOther:
		return true
	}
	return false
}

// Task is a unit of dispatched work. A task is owned by exactly one node
// at any instant; reassignment replaces the owner atomically and never
// fans out duplicates.
type Task struct {
	ID             string        `json:"task_id" db:"task_id"`
	Type           TaskType      `json:"task_type" db:"task_type"`
	Payload        []byte        `json:"payload,omitempty" db:"payload"`
	AssignedNodeID NodeID        `json:"assigned_node_id" db:"assigned_node_id"` // zero when pending
	Deadline       time.Time     `json:"deadline" db:"deadline"`
	State          string        `json:"state" db:"state"`
	Timeout        time.Duration `json:"timeout" db:"timeout"` // per-task deadline budget, producer supplied
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// SubmitTaskRequest is the producer-facing payload for dispatching new
// work into the mesh.
type SubmitTaskRequest struct {
	TaskID  string   `json:"task_id,omitempty"`
	Type    TaskType `json:"task_type"`
	Payload []byte   `json:"payload,omitempty"`
	Timeout string   `json:"timeout,omitempty"` // Go duration string, optional
}
