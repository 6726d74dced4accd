package mesh

import (
	"testing"
	"time"

	"github.com/thewriterben/wildcam-mesh/internal/models"
	"github.com/thewriterben/wildcam-mesh/pkg/utils"
)

func newTestLedger() *TaskLedger {
	return NewTaskLedger(30*time.Second, utils.NewLogger("test", utils.ERROR))
}

func TestAddAndAssign(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	if err := l.Add(models.Task{ID: "T1", Type: models.TaskTypeProcess}); err != nil {
		t.Fatalf("Failed to add task: %v", err)
	}

	task, ok := l.Get("T1")
	if !ok {
		t.Fatal("Expected task T1")
	}
	if task.State != models.TaskStatePending {
		t.Errorf("Expected new task pending, got %s", task.State)
	}

	assigned, err := l.Assign("T1", 5, now)
	if err != nil {
		t.Fatalf("Failed to assign: %v", err)
	}
	if assigned.AssignedNodeID != 5 || assigned.State != models.TaskStateAssigned {
		t.Errorf("Assignment not applied: %+v", assigned)
	}
	if !assigned.Deadline.Equal(now.Add(30 * time.Second)) {
		t.Errorf("Expected deadline now+30s, got %v", assigned.Deadline)
	}
	if got := l.ActiveCount(5); got != 1 {
		t.Errorf("Expected active count 1 for node 5, got %d", got)
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	l := newTestLedger()

	if err := l.Add(models.Task{ID: "T1", Type: models.TaskTypeCapture}); err != nil {
		t.Fatalf("Failed to add task: %v", err)
	}
	if err := l.Add(models.Task{ID: "T1", Type: models.TaskTypeCapture}); err == nil {
		t.Error("Expected duplicate id to be rejected")
	}
	if l.Len() != 1 {
		t.Errorf("Expected 1 task, got %d", l.Len())
	}
}

func TestReassignReplacesOwnerAtomically(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	l.Add(models.Task{ID: "T1", Type: models.TaskTypeProcess})
	l.Assign("T1", 5, now)

	later := now.Add(time.Minute)
	if _, err := l.Assign("T1", 3, later); err != nil {
		t.Fatalf("Failed to reassign: %v", err)
	}

	task, _ := l.Get("T1")
	if task.AssignedNodeID != 3 {
		t.Errorf("Expected owner 3, got %d", task.AssignedNodeID)
	}
	if task.State != models.TaskStateAssigned {
		t.Errorf("Expected state assigned, got %s", task.State)
	}
	if !task.Deadline.Equal(later.Add(30 * time.Second)) {
		t.Errorf("Expected fresh deadline, got %v", task.Deadline)
	}

	// The old owner must not retain the task: one owner at any instant.
	if got := l.ActiveCount(5); got != 0 {
		t.Errorf("Old owner still holds %d tasks", got)
	}
	if ids := l.ActiveTasksFor(3); len(ids) != 1 || ids[0] != "T1" {
		t.Errorf("Expected T1 owned by node 3, got %v", ids)
	}
}

func TestLeavePendingClearsOwner(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	l.Add(models.Task{ID: "T1", Type: models.TaskTypeDetect})
	l.Assign("T1", 5, now)
	l.LeavePending("T1")

	task, _ := l.Get("T1")
	if task.State != models.TaskStatePending {
		t.Errorf("Expected pending, got %s", task.State)
	}
	if task.AssignedNodeID != 0 {
		t.Errorf("Expected cleared owner, got %d", task.AssignedNodeID)
	}
	if got := l.ActiveCount(5); got != 0 {
		t.Errorf("Expected node 5 to hold no tasks, got %d", got)
	}
	if pending := l.PendingTasks(); len(pending) != 1 || pending[0] != "T1" {
		t.Errorf("Expected T1 pending, got %v", pending)
	}
}

func TestCompleteDestroysTask(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	l.Add(models.Task{ID: "T1", Type: models.TaskTypeAnalyze})
	l.Assign("T1", 5, now)

	if !l.Complete("T1") {
		t.Fatal("Expected completion to succeed")
	}
	if _, ok := l.Get("T1"); ok {
		t.Error("Completed task must be destroyed")
	}
	if got := l.ActiveCount(5); got != 0 {
		t.Errorf("Expected node 5 to hold no tasks, got %d", got)
	}

	// A duplicate ack is a no-op.
	if l.Complete("T1") {
		t.Error("Expected duplicate completion to return false")
	}
}

func TestExpireSweepDropsOrphanedOverdueTasks(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	l.Add(models.Task{ID: "T1", Type: models.TaskTypeProcess})
	l.Assign("T1", 5, now)

	// Past the deadline with an inactive owner: expired and dropped.
	after := now.Add(time.Minute)
	expired, retried := l.ExpireSweep(after, func(models.NodeID) bool { return false })
	if len(expired) != 1 || expired[0] != "T1" {
		t.Errorf("Expected T1 expired, got %v", expired)
	}
	if len(retried) != 0 {
		t.Errorf("Expected no retries, got %v", retried)
	}
	if _, ok := l.Get("T1"); ok {
		t.Error("Expired task must be dropped")
	}
}

func TestExpireSweepRetriesWhenOwnerAlive(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	l.Add(models.Task{ID: "T1", Type: models.TaskTypeProcess})
	l.Assign("T1", 5, now)

	// Past the deadline but the owner is alive: the assign message was
	// probably dropped, so the task goes back to pending.
	after := now.Add(time.Minute)
	expired, retried := l.ExpireSweep(after, func(models.NodeID) bool { return true })
	if len(expired) != 0 {
		t.Errorf("Expected no expiries, got %v", expired)
	}
	if len(retried) != 1 || retried[0] != "T1" {
		t.Errorf("Expected T1 retried, got %v", retried)
	}

	task, ok := l.Get("T1")
	if !ok {
		t.Fatal("Retried task must survive")
	}
	if task.State != models.TaskStatePending {
		t.Errorf("Expected pending, got %s", task.State)
	}
}

func TestExpireSweepIgnoresTasksWithinDeadline(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	l.Add(models.Task{ID: "T1", Type: models.TaskTypeProcess})
	l.Assign("T1", 5, now)

	expired, retried := l.ExpireSweep(now.Add(10*time.Second), func(models.NodeID) bool { return true })
	if len(expired) != 0 || len(retried) != 0 {
		t.Errorf("Task within deadline must be untouched, got expired=%v retried=%v", expired, retried)
	}
}

func TestDefaultTimeoutApplied(t *testing.T) {
	l := newTestLedger()

	l.Add(models.Task{ID: "T1", Type: models.TaskTypeOther})
	task, _ := l.Get("T1")
	if task.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout, got %v", task.Timeout)
	}

	l.Add(models.Task{ID: "T2", Type: models.TaskTypeOther, Timeout: 5 * time.Minute})
	task, _ = l.Get("T2")
	if task.Timeout != 5*time.Minute {
		t.Errorf("Expected producer timeout kept, got %v", task.Timeout)
	}
}
