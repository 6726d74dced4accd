package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/thewriterben/wildcam-mesh/internal/models"
)

// SQLiteStorage implements the Storage interface using SQLite. The
// coordinator runs on a single host, so an embedded database is the
// durable sink of choice for field deployments.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (and if needed creates) the database at dbPath.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer (the tick loop) plus diagnostics readers.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &SQLiteStorage{db: db}

	if err := storage.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema initializes the database schema
func (s *SQLiteStorage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		node_id INTEGER PRIMARY KEY,
		active INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP,
		battery_level INTEGER NOT NULL DEFAULT 0,
		signal_strength INTEGER NOT NULL DEFAULT -100,
		capabilities INTEGER NOT NULL DEFAULT 0,
		registered_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tasks (
		task_id TEXT PRIMARY KEY,
		task_type TEXT NOT NULL,
		payload BLOB,
		assigned_node_id INTEGER NOT NULL DEFAULT 0,
		deadline TIMESTAMP,
		state TEXT NOT NULL DEFAULT 'pending',
		timeout_ns INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS failure_events (
		event_id TEXT PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		failed_node_id INTEGER NOT NULL,
		reason TEXT NOT NULL,
		uptime_ns INTEGER NOT NULL,
		active_nodes INTEGER NOT NULL,
		tasks_reassigned INTEGER NOT NULL,
		tasks_pending INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);
	CREATE INDEX IF NOT EXISTS idx_tasks_assigned_node ON tasks(assigned_node_id);
	CREATE INDEX IF NOT EXISTS idx_failure_events_timestamp ON failure_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_failure_events_node ON failure_events(failed_node_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveNodes replaces the node snapshot table with the given set.
func (s *SQLiteStorage) SaveNodes(ctx context.Context, nodes []models.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
		return fmt.Errorf("failed to clear node snapshot: %w", err)
	}

	query := `INSERT INTO nodes (node_id, active, last_seen, battery_level, signal_strength, capabilities, registered_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, n := range nodes {
		if _, err := tx.ExecContext(ctx, query,
			n.ID, n.Active, n.LastSeen, n.BatteryLevel, n.SignalStrength, n.Capabilities, n.RegisteredAt,
		); err != nil {
			return fmt.Errorf("failed to save node %d: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// SaveTasks replaces the task snapshot table with the given set.
func (s *SQLiteStorage) SaveTasks(ctx context.Context, tasks []models.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("failed to clear task snapshot: %w", err)
	}

	query := `INSERT INTO tasks (task_id, task_type, payload, assigned_node_id, deadline, state, timeout_ns, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for _, t := range tasks {
		if _, err := tx.ExecContext(ctx, query,
			t.ID, string(t.Type), t.Payload, t.AssignedNodeID, t.Deadline, t.State, int64(t.Timeout), t.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to save task %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// ListNodes returns the persisted node snapshot, ordered by id.
func (s *SQLiteStorage) ListNodes(ctx context.Context) ([]models.Node, error) {
	query := `SELECT node_id, active, last_seen, battery_level, signal_strength, capabilities, registered_at
	          FROM nodes ORDER BY node_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []models.Node
	for rows.Next() {
		var n models.Node
		if err := rows.Scan(&n.ID, &n.Active, &n.LastSeen, &n.BatteryLevel, &n.SignalStrength, &n.Capabilities, &n.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, n)
	}

	return nodes, rows.Err()
}

// ListTasks returns the persisted task snapshot, ordered by id.
func (s *SQLiteStorage) ListTasks(ctx context.Context) ([]models.Task, error) {
	query := `SELECT task_id, task_type, payload, assigned_node_id, deadline, state, timeout_ns, created_at
	          FROM tasks ORDER BY task_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		var taskType string
		var timeoutNS int64
		var deadline sql.NullTime
		if err := rows.Scan(&t.ID, &taskType, &t.Payload, &t.AssignedNodeID, &deadline, &t.State, &timeoutNS, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Type = models.TaskType(taskType)
		t.Timeout = time.Duration(timeoutNS)
		if deadline.Valid {
			t.Deadline = deadline.Time
		}
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

// AppendFailureEvent appends one immutable failure event.
func (s *SQLiteStorage) AppendFailureEvent(ctx context.Context, event *models.FailureEvent) error {
	query := `INSERT INTO failure_events (event_id, timestamp, failed_node_id, reason, uptime_ns, active_nodes, tasks_reassigned, tasks_pending)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		event.EventID, event.Timestamp, event.FailedNodeID, event.Reason,
		int64(event.Uptime), event.ActiveNodes, event.TasksReassigned, event.TasksPending,
	)
	if err != nil {
		return fmt.Errorf("failed to append failure event: %w", err)
	}
	return nil
}

// ListFailureEvents returns the most recent failure events, newest first.
func (s *SQLiteStorage) ListFailureEvents(ctx context.Context, limit int) ([]models.FailureEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT event_id, timestamp, failed_node_id, reason, uptime_ns, active_nodes, tasks_reassigned, tasks_pending
	          FROM failure_events ORDER BY timestamp DESC, event_id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failure events: %w", err)
	}
	defer rows.Close()

	var events []models.FailureEvent
	for rows.Next() {
		var e models.FailureEvent
		var uptimeNS int64
		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.FailedNodeID, &e.Reason, &uptimeNS, &e.ActiveNodes, &e.TasksReassigned, &e.TasksPending); err != nil {
			return nil, fmt.Errorf("failed to scan failure event: %w", err)
		}
		e.Uptime = time.Duration(uptimeNS)
		events = append(events, e)
	}

	return events, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
