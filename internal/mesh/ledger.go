package mesh

import (
	"fmt"
	"sort"
	"time"

	"github.com/thewriterben/wildcam-mesh/internal/models"
	"github.com/thewriterben/wildcam-mesh/pkg/utils"
)

// TaskLedger is the authoritative table of in-flight work items and which
// node currently owns each. Like the registry it is owned exclusively by
// the coordinator tick loop.
//
// Invariant: a task has exactly one assigned node at any instant.
// Reassignment is an atomic owner replace, never a duplicate fan-out.
type TaskLedger struct {
	logger         *utils.Logger
	tasks          map[string]*models.Task
	byNode         map[models.NodeID]map[string]struct{}
	defaultTimeout time.Duration
}

// NewTaskLedger creates an empty ledger. defaultTimeout is the deadline
// budget granted to tasks whose producer did not supply one.
func NewTaskLedger(defaultTimeout time.Duration, logger *utils.Logger) *TaskLedger {
	return &TaskLedger{
		logger:         logger.WithComponent("ledger"),
		tasks:          make(map[string]*models.Task),
		byNode:         make(map[models.NodeID]map[string]struct{}),
		defaultTimeout: defaultTimeout,
	}
}

// Add registers a new pending task created by an external producer.
// Duplicate ids are rejected so a retried submission cannot fan out.
func (l *TaskLedger) Add(task models.Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if _, exists := l.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	if task.Timeout <= 0 {
		task.Timeout = l.defaultTimeout
	}
	task.State = models.TaskStatePending
	task.AssignedNodeID = 0
	l.tasks[task.ID] = &task
	return nil
}

// Get returns a copy of the task.
func (l *TaskLedger) Get(taskID string) (models.Task, bool) {
	t, ok := l.tasks[taskID]
	if !ok {
		return models.Task{}, false
	}
	return *t, true
}

// ActiveTasksFor returns the ids of tasks currently assigned to the given
// node, in a stable order.
func (l *TaskLedger) ActiveTasksFor(id models.NodeID) []string {
	owned := l.byNode[id]
	ids := make([]string, 0, len(owned))
	for taskID := range owned {
		ids = append(ids, taskID)
	}
	sort.Strings(ids)
	return ids
}

// ActiveCount returns the number of tasks currently assigned to the node.
// This is the derived load figure the reassignment policy penalizes.
func (l *TaskLedger) ActiveCount(id models.NodeID) int {
	return len(l.byNode[id])
}

// Assign atomically sets the task's owner and stamps a fresh deadline of
// now plus the task's timeout. It is used for both initial assignment and
// reassignment away from a failed node.
func (l *TaskLedger) Assign(taskID string, id models.NodeID, now time.Time) (models.Task, error) {
	t, ok := l.tasks[taskID]
	if !ok {
		return models.Task{}, fmt.Errorf("task %s not found", taskID)
	}
	if prev := t.AssignedNodeID; prev != 0 {
		delete(l.byNode[prev], taskID)
	}
	t.AssignedNodeID = id
	t.State = models.TaskStateAssigned
	t.Deadline = now.Add(t.Timeout)
	if l.byNode[id] == nil {
		l.byNode[id] = make(map[string]struct{})
	}
	l.byNode[id][taskID] = struct{}{}
	return *t, nil
}

// LeavePending clears the task's owner and returns it to the pending
// state. Used when no eligible node exists; pending tasks are re-offered
// on later sweeps.
func (l *TaskLedger) LeavePending(taskID string) {
	t, ok := l.tasks[taskID]
	if !ok {
		return
	}
	if prev := t.AssignedNodeID; prev != 0 {
		delete(l.byNode[prev], taskID)
	}
	t.AssignedNodeID = 0
	t.State = models.TaskStatePending
	t.Deadline = time.Time{}
}

// Complete destroys the task on completion acknowledgment. Returns false
// for unknown ids, which covers duplicate acks after completion.
func (l *TaskLedger) Complete(taskID string) bool {
	t, ok := l.tasks[taskID]
	if !ok {
		return false
	}
	if prev := t.AssignedNodeID; prev != 0 {
		delete(l.byNode[prev], taskID)
	}
	delete(l.tasks, taskID)
	return true
}

// PendingTasks returns the ids of all pending tasks in a stable order.
func (l *TaskLedger) PendingTasks() []string {
	ids := make([]string, 0)
	for id, t := range l.tasks {
		if t.State == models.TaskStatePending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ExpireSweep walks assigned tasks whose deadline has passed. A task whose
// owner has since gone inactive is expired and dropped, bounding resource
// use. A task whose owner is still active has simply not been acked in
// time (the assign message may have been dropped by the radio), so it
// returns to pending for the retry pass.
func (l *TaskLedger) ExpireSweep(now time.Time, isActive func(models.NodeID) bool) (expired, retried []string) {
	var stale []string
	for id, t := range l.tasks {
		if t.State == models.TaskStateAssigned && now.After(t.Deadline) {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)

	for _, id := range stale {
		t := l.tasks[id]
		if isActive(t.AssignedNodeID) {
			l.LeavePending(id)
			retried = append(retried, id)
			continue
		}
		delete(l.byNode[t.AssignedNodeID], id)
		delete(l.tasks, id)
		expired = append(expired, id)
		l.logger.Warn("Task %s expired (owner node %d inactive, deadline passed)", id, t.AssignedNodeID)
	}
	return expired, retried
}

// All returns copies of every live task, ordered by id.
func (l *TaskLedger) All() []models.Task {
	out := make([]models.Task, 0, len(l.tasks))
	for _, t := range l.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live tasks.
func (l *TaskLedger) Len() int {
	return len(l.tasks)
}
