package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/thewriterben/wildcam-mesh/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_wildcam.db")

	storage, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	return storage
}

func TestSaveAndListNodes(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	nodes := []models.Node{
		{ID: 2, Active: true, LastSeen: now, BatteryLevel: 60, SignalStrength: -70, RegisteredAt: now},
		{ID: 5, Active: false, LastSeen: now.Add(-2 * time.Minute), BatteryLevel: 80, SignalStrength: -60, Capabilities: models.CapAcceleratedProcessing, RegisteredAt: now},
	}

	if err := storage.SaveNodes(ctx, nodes); err != nil {
		t.Fatalf("Failed to save nodes: %v", err)
	}

	retrieved, err := storage.ListNodes(ctx)
	if err != nil {
		t.Fatalf("Failed to list nodes: %v", err)
	}
	if len(retrieved) != 2 {
		t.Fatalf("Expected 2 nodes, got %d", len(retrieved))
	}
	if retrieved[0].ID != 2 || retrieved[1].ID != 5 {
		t.Errorf("Expected id order 2, 5; got %d, %d", retrieved[0].ID, retrieved[1].ID)
	}
	if !retrieved[1].Capabilities.Has(models.CapAcceleratedProcessing) {
		t.Error("Capability bits lost in round trip")
	}
	if retrieved[1].Active {
		t.Error("Active flag lost in round trip")
	}
}

func TestSaveNodesReplacesSnapshot(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := []models.Node{
		{ID: 1, Active: true, LastSeen: now, RegisteredAt: now},
		{ID: 2, Active: true, LastSeen: now, RegisteredAt: now},
	}
	if err := storage.SaveNodes(ctx, first); err != nil {
		t.Fatalf("Failed to save first snapshot: %v", err)
	}

	second := []models.Node{
		{ID: 2, Active: true, LastSeen: now, BatteryLevel: 42, RegisteredAt: now},
	}
	if err := storage.SaveNodes(ctx, second); err != nil {
		t.Fatalf("Failed to save second snapshot: %v", err)
	}

	retrieved, err := storage.ListNodes(ctx)
	if err != nil {
		t.Fatalf("Failed to list nodes: %v", err)
	}
	if len(retrieved) != 1 {
		t.Fatalf("Expected snapshot replaced, got %d nodes", len(retrieved))
	}
	if retrieved[0].ID != 2 || retrieved[0].BatteryLevel != 42 {
		t.Errorf("Unexpected surviving node: %+v", retrieved[0])
	}
}

func TestSaveAndListTasks(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	tasks := []models.Task{
		{
			ID:             "T1",
			Type:           models.TaskTypeProcess,
			Payload:        []byte(`{"frame":17}`),
			AssignedNodeID: 3,
			Deadline:       now.Add(30 * time.Second),
			State:          models.TaskStateAssigned,
			Timeout:        30 * time.Second,
			CreatedAt:      now,
		},
		{
			ID:        "T2",
			Type:      models.TaskTypeCapture,
			State:     models.TaskStatePending,
			Timeout:   time.Minute,
			CreatedAt: now,
		},
	}

	if err := storage.SaveTasks(ctx, tasks); err != nil {
		t.Fatalf("Failed to save tasks: %v", err)
	}

	retrieved, err := storage.ListTasks(ctx)
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(retrieved) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(retrieved))
	}
	if retrieved[0].ID != "T1" || retrieved[0].AssignedNodeID != 3 {
		t.Errorf("Unexpected task: %+v", retrieved[0])
	}
	if string(retrieved[0].Payload) != `{"frame":17}` {
		t.Errorf("Payload lost in round trip: %q", retrieved[0].Payload)
	}
	if retrieved[0].Timeout != 30*time.Second {
		t.Errorf("Timeout lost in round trip: %v", retrieved[0].Timeout)
	}
	if retrieved[1].State != models.TaskStatePending {
		t.Errorf("Expected pending, got %s", retrieved[1].State)
	}
}

func TestAppendAndListFailureEvents(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		event := &models.FailureEvent{
			EventID:         string(rune('a'+i)) + "-event",
			Timestamp:       base.Add(time.Duration(i) * time.Minute),
			FailedNodeID:    models.NodeID(i + 1),
			Reason:          models.FailureReasonHeartbeatTimeout,
			Uptime:          time.Duration(i+1) * time.Hour,
			ActiveNodes:     4 - i,
			TasksReassigned: i,
			TasksPending:    0,
		}
		if err := storage.AppendFailureEvent(ctx, event); err != nil {
			t.Fatalf("Failed to append event: %v", err)
		}
	}

	events, err := storage.ListFailureEvents(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	// Newest first.
	if events[0].FailedNodeID != 3 || events[2].FailedNodeID != 1 {
		t.Errorf("Unexpected event order: %+v", events)
	}
	if events[0].Uptime != 3*time.Hour {
		t.Errorf("Uptime lost in round trip: %v", events[0].Uptime)
	}

	// Limit applies.
	events, err = storage.ListFailureEvents(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list events with limit: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("Expected 2 events with limit, got %d", len(events))
	}
}

func TestPing(t *testing.T) {
	storage := setupTestDB(t)

	if err := storage.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
