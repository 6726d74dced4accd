package mesh

import (
	"time"

	"github.com/thewriterben/wildcam-mesh/internal/models"
	"github.com/thewriterben/wildcam-mesh/pkg/utils"
)

// HeartbeatMonitor runs the periodic liveness sweep over the registry.
//
// The failure state machine per node is deliberately minimal: ALIVE until
// no status message has been received for the failure timeout, then
// FAILED. There is no suspected state and no confirmation window; a
// single elapsed-time check is definitive. Recovery is driven entirely by
// inbound status messages through the registry, never by the monitor.
type HeartbeatMonitor struct {
	logger   *utils.Logger
	registry *NodeRegistry
	timeout  time.Duration

	// onFailure handles the one-way ALIVE→FAILED transition: the
	// coordinator reassigns the node's tasks and records the audit event.
	onFailure func(id models.NodeID, now time.Time)
}

// NewHeartbeatMonitor creates a monitor over the given registry.
func NewHeartbeatMonitor(registry *NodeRegistry, timeout time.Duration, onFailure func(models.NodeID, time.Time), logger *utils.Logger) *HeartbeatMonitor {
	if timeout <= 0 {
		timeout = models.DefaultFailureTimeout
	}
	return &HeartbeatMonitor{
		logger:    logger.WithComponent("monitor"),
		registry:  registry,
		timeout:   timeout,
		onFailure: onFailure,
	}
}

// Timeout returns the configured failure timeout.
func (m *HeartbeatMonitor) Timeout() time.Duration {
	return m.timeout
}

// Sweep checks every active node's silence against the failure timeout
// and fails those that exceed it. Returns the number of nodes failed this
// sweep. Marking the node inactive first guarantees exactly one failure
// event per episode: later sweeps no longer see the node as active.
func (m *HeartbeatMonitor) Sweep(now time.Time) int {
	failed := 0
	for _, n := range m.registry.ListActive() {
		silence := now.Sub(n.LastSeen)
		if silence <= m.timeout {
			continue
		}
		m.logger.Warn("Node %d silent for %v (timeout %v), marking failed", n.ID, silence, m.timeout)
		m.registry.MarkInactive(n.ID)
		if m.onFailure != nil {
			m.onFailure(n.ID, now)
		}
		failed++
	}
	return failed
}
