package models

import "time"

// Task state constants
const (
	TaskStatePending   = "pending"
	TaskStateAssigned  = "assigned"
	TaskStateCompleted = "completed"
	TaskStateExpired   = "expired"
)

// Failure reason codes
const (
	FailureReasonHeartbeatTimeout = "heartbeat timeout"
)

// Default configuration values
const (
	DefaultFailureTimeout   = 60 * time.Second // mark a node inactive after this much silence
	DefaultTaskTimeout      = 30 * time.Second // deadline granted to a task on (re)assignment
	DefaultSweepInterval    = 1 * time.Second
	DefaultPendingRetry     = 5 * time.Second
	DefaultInboxCapacity    = 256
	DefaultFaultLogCapacity = 128
)
