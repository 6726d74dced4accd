package mesh

import (
	"sort"
	"time"

	"github.com/thewriterben/wildcam-mesh/internal/models"
	"github.com/thewriterben/wildcam-mesh/pkg/utils"
)

// NodeRegistry is the authoritative table of known peers and their
// last-known liveness and capability snapshot. It is owned exclusively by
// the coordinator tick loop; nothing else mutates it, so no locking is
// needed.
//
// Records are never deleted. A node that goes silent is marked inactive
// but keeps its battery/signal/capability snapshot, so it can rejoin
// without re-announcing capabilities.
type NodeRegistry struct {
	logger *utils.Logger
	nodes  map[models.NodeID]*models.Node
}

// NewNodeRegistry creates an empty registry.
func NewNodeRegistry(logger *utils.Logger) *NodeRegistry {
	return &NodeRegistry{
		logger: logger.WithComponent("registry"),
		nodes:  make(map[models.NodeID]*models.Node),
	}
}

// RegisterOrUpdate applies a validated status message. Unknown ids are
// auto-registered as active; known ids have their battery, signal and
// capability fields overwritten. LastSeen only moves forward. An inactive
// node is reactivated, which makes it eligible for future assignments but
// does not reclaim tasks already migrated away from it.
//
// The operation is idempotent: replaying the same message converges to
// the same snapshot.
func (r *NodeRegistry) RegisterOrUpdate(id models.NodeID, msg *models.StatusMessage, now time.Time) {
	n, exists := r.nodes[id]
	if !exists {
		r.nodes[id] = &models.Node{
			ID:             id,
			Active:         true,
			LastSeen:       now,
			BatteryLevel:   msg.BatteryLevel,
			SignalStrength: msg.SignalStrength,
			Capabilities:   msg.Capabilities(),
			RegisteredAt:   now,
		}
		r.logger.Info("Registered node %d (battery=%d%%, signal=%ddBm)", id, msg.BatteryLevel, msg.SignalStrength)
		return
	}

	if !n.Active {
		n.Active = true
		r.logger.Info("Node %d reactivated", id)
	}
	n.BatteryLevel = msg.BatteryLevel
	n.SignalStrength = msg.SignalStrength
	n.Capabilities = msg.Capabilities()
	if now.After(n.LastSeen) {
		n.LastSeen = now
	}
}

// Get returns a copy of the node's snapshot.
func (r *NodeRegistry) Get(id models.NodeID) (models.Node, bool) {
	n, ok := r.nodes[id]
	if !ok {
		return models.Node{}, false
	}
	return *n, true
}

// ListActive returns snapshots of all active nodes, ordered by id.
func (r *NodeRegistry) ListActive() []models.Node {
	active := make([]models.Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		if n.Active {
			active = append(active, *n)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active
}

// All returns snapshots of every known node, active or not, ordered by id.
func (r *NodeRegistry) All() []models.Node {
	all := make([]models.Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		all = append(all, *n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// MarkInactive sets active=false, keeping LastSeen and the capability
// snapshot. Returns false if the node is unknown or already inactive.
func (r *NodeRegistry) MarkInactive(id models.NodeID) bool {
	n, ok := r.nodes[id]
	if !ok || !n.Active {
		return false
	}
	n.Active = false
	return true
}

// Len returns the number of known nodes.
func (r *NodeRegistry) Len() int {
	return len(r.nodes)
}

// ActiveCount returns the number of active nodes.
func (r *NodeRegistry) ActiveCount() int {
	count := 0
	for _, n := range r.nodes {
		if n.Active {
			count++
		}
	}
	return count
}
