package mesh

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/thewriterben/wildcam-mesh/internal/models"
	"github.com/thewriterben/wildcam-mesh/internal/telemetry"
	"github.com/thewriterben/wildcam-mesh/pkg/utils"
)

// Dispatcher is the boundary to the radio transport. Sends are
// fire-and-forget and must never block the tick loop; the transport is
// expected to buffer or drop under backpressure. The core tolerates
// silent drops: an unacked task stays assigned until its deadline expires
// and the retry path picks it up.
type Dispatcher interface {
	Send(id models.NodeID, msg models.TaskAssignMessage) error
}

// Inbound is the drained side of the transport's bounded message queue.
// Drain returns everything queued since the last call and must not block.
type Inbound interface {
	Drain() []models.Envelope
}

// SnapshotStore persists registry and ledger snapshots for the
// diagnostics API between ticks.
type SnapshotStore interface {
	SaveNodes(ctx context.Context, nodes []models.Node) error
	SaveTasks(ctx context.Context, tasks []models.Task) error
}

// Options configures a Coordinator.
type Options struct {
	FailureTimeout       time.Duration
	TaskTimeout          time.Duration
	PendingRetryInterval time.Duration
	FaultLogCapacity     int
	SubmitQueueCapacity  int
	Clock                Clock
	Logger               *utils.Logger
}

// Stats is an immutable snapshot of coordinator state published after
// each tick. Safe to read from any goroutine.
type Stats struct {
	KnownNodes     int           `json:"known_nodes"`
	ActiveNodes    int           `json:"active_nodes"`
	LiveTasks      int           `json:"live_tasks"`
	PendingTasks   int           `json:"pending_tasks"`
	FailuresTotal  int           `json:"failures_total"`
	RecentFailures int           `json:"recent_failures"` // events retained in the in-memory ring
	Uptime         time.Duration `json:"uptime"`
	LastTick       time.Time     `json:"last_tick"`
}

// Coordinator owns all mesh state and drives it from a single cooperative
// tick loop: drain inbound messages, sweep for silent nodes, migrate the
// work of newly failed nodes, expire overdue tasks and re-offer pending
// ones. Nothing else mutates the registry or ledger, so the core holds no
// locks. The only concessions to the outside world are the bounded submit
// queue (fed by the producer API) and the atomically published Stats.
type Coordinator struct {
	logger     *utils.Logger
	clock      Clock
	registry   *NodeRegistry
	ledger     *TaskLedger
	monitor    *HeartbeatMonitor
	faultLog   *FailureLogger
	dispatcher Dispatcher
	inbound    Inbound

	submits       chan models.Task
	retryInterval time.Duration
	startedAt     time.Time
	lastRetry     time.Time

	stats atomic.Pointer[Stats]
}

// NewCoordinator wires the core components together. dispatcher and
// inbound are the transport boundary; sink receives failure events for
// durable audit (may be nil).
func NewCoordinator(dispatcher Dispatcher, inbound Inbound, sink DurableSink, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewLogger("coordinator", utils.INFO)
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	taskTimeout := opts.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = models.DefaultTaskTimeout
	}
	retryInterval := opts.PendingRetryInterval
	if retryInterval <= 0 {
		retryInterval = models.DefaultPendingRetry
	}
	submitCap := opts.SubmitQueueCapacity
	if submitCap <= 0 {
		submitCap = models.DefaultInboxCapacity
	}

	c := &Coordinator{
		logger:        logger,
		clock:         clock,
		registry:      NewNodeRegistry(logger),
		ledger:        NewTaskLedger(taskTimeout, logger),
		faultLog:      NewFailureLogger(opts.FaultLogCapacity, sink, logger),
		dispatcher:    dispatcher,
		inbound:       inbound,
		submits:       make(chan models.Task, submitCap),
		retryInterval: retryInterval,
		startedAt:     clock.Now(),
	}
	c.monitor = NewHeartbeatMonitor(c.registry, opts.FailureTimeout, c.handleNodeFailure, logger)
	c.publishStats(c.startedAt)
	return c
}

// SubmitTask queues a producer-created task for the next tick. Safe to
// call from any goroutine; returns an error when the queue is full rather
// than blocking.
func (c *Coordinator) SubmitTask(task models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if !task.Type.Valid() {
		return fmt.Errorf("unknown task type %q", task.Type)
	}
	select {
	case c.submits <- task:
		return nil
	default:
		return fmt.Errorf("submit queue is full")
	}
}

// Tick runs one iteration of the coordinator loop. Inbound messages are
// drained before the sweep so a heartbeat that arrived just before the
// tick is visible to that same sweep, avoiding spurious failures for
// nodes that recovered moments earlier.
func (c *Coordinator) Tick() {
	now := c.clock.Now()
	start := time.Now()

	c.drainInbound(now)
	c.drainSubmits(now)

	failures := c.monitor.Sweep(now)

	expired, retried := c.ledger.ExpireSweep(now, func(id models.NodeID) bool {
		n, ok := c.registry.Get(id)
		return ok && n.Active
	})
	if len(expired) > 0 {
		telemetry.TasksExpiredTotal.Add(float64(len(expired)))
	}
	if len(retried) > 0 {
		c.logger.Warn("%d overdue tasks returned to pending for retry", len(retried))
	}

	// Pending tasks are re-offered whenever a failure was processed this
	// sweep, and on the periodic retry interval otherwise.
	if failures > 0 || len(retried) > 0 || now.Sub(c.lastRetry) >= c.retryInterval {
		c.retryPending(now)
		c.lastRetry = now
	}

	c.publishStats(now)
	telemetry.SweepDuration.Observe(time.Since(start).Seconds())
}

// drainInbound applies every queued transport message. Status messages
// are idempotent upserts; acks complete (destroy) tasks. Unknown node
// references auto-register, unknown task acks are ignored.
func (c *Coordinator) drainInbound(now time.Time) {
	if c.inbound == nil {
		return
	}
	for _, env := range c.inbound.Drain() {
		switch env.Kind {
		case models.MsgStatus:
			if env.Status == nil {
				continue
			}
			c.registry.RegisterOrUpdate(env.Status.NodeID, env.Status, now)
		case models.MsgTaskAck:
			if env.Ack == nil {
				continue
			}
			if c.ledger.Complete(env.Ack.TaskID) {
				c.logger.Info("Task %s completed by node %d", env.Ack.TaskID, env.Ack.NodeID)
			} else {
				c.logger.Debug("Ignoring ack for unknown task %s from node %d", env.Ack.TaskID, env.Ack.NodeID)
			}
		default:
			c.logger.Debug("Ignoring inbound message kind %q", env.Kind)
		}
	}
}

// drainSubmits registers newly produced tasks and attempts an immediate
// first assignment. Tasks with no eligible node stay pending.
func (c *Coordinator) drainSubmits(now time.Time) {
	for {
		select {
		case task := <-c.submits:
			if err := c.ledger.Add(task); err != nil {
				c.logger.Warn("Rejected task submission: %v", err)
				continue
			}
			if id, ok := SelectNode(c.candidates(), task.Type, 0); ok {
				c.assignAndSend(task.ID, id, now)
			} else {
				c.logger.Warn("No healthy node for new task %s (%s), leaving pending", task.ID, task.Type)
				telemetry.TasksLeftPendingTotal.Inc()
			}
		default:
			return
		}
	}
}

// handleNodeFailure migrates every task owned by the failed node, then
// appends the audit event. Invoked by the heartbeat monitor with the node
// already marked inactive, so the candidate set can never include it.
func (c *Coordinator) handleNodeFailure(failedID models.NodeID, now time.Time) {
	taskIDs := c.ledger.ActiveTasksFor(failedID)

	// One candidate snapshot for the whole batch: every task is scored
	// against the loads observed at detection time, so tasks migrating
	// together do not penalize each other's destination.
	cands := c.candidates()

	reassigned, pending := 0, 0
	for _, taskID := range taskIDs {
		task, ok := c.ledger.Get(taskID)
		if !ok {
			continue
		}
		newID, found := SelectNode(cands, task.Type, failedID)
		if !found {
			c.ledger.LeavePending(taskID)
			pending++
			c.logger.Warn("No healthy node for task %s (%s) from failed node %d, leaving pending",
				taskID, task.Type, failedID)
			continue
		}
		c.assignAndSend(taskID, newID, now)
		reassigned++
	}

	event := models.FailureEvent{
		EventID:         uuid.NewString(),
		Timestamp:       now,
		FailedNodeID:    failedID,
		Reason:          models.FailureReasonHeartbeatTimeout,
		Uptime:          now.Sub(c.startedAt),
		ActiveNodes:     c.registry.ActiveCount(),
		TasksReassigned: reassigned,
		TasksPending:    pending,
	}
	c.faultLog.Record(event)

	telemetry.NodeFailuresTotal.Inc()
	telemetry.TasksReassignedTotal.Add(float64(reassigned))
	telemetry.TasksLeftPendingTotal.Add(float64(pending))
}

// retryPending re-offers every pending task to the current active set.
func (c *Coordinator) retryPending(now time.Time) {
	for _, taskID := range c.ledger.PendingTasks() {
		task, ok := c.ledger.Get(taskID)
		if !ok {
			continue
		}
		newID, found := SelectNode(c.candidates(), task.Type, 0)
		if !found {
			return // nobody alive; later sweeps will retry
		}
		c.assignAndSend(taskID, newID, now)
		c.logger.Info("Pending task %s (%s) assigned to node %d", taskID, task.Type, newID)
	}
}

// assignAndSend records the ownership change and emits the assign
// message. A send failure is logged and otherwise ignored: the ledger
// deadline drives the retry path if the node never received the task.
func (c *Coordinator) assignAndSend(taskID string, id models.NodeID, now time.Time) {
	task, err := c.ledger.Assign(taskID, id, now)
	if err != nil {
		c.logger.Error("Failed to assign task %s to node %d: %v", taskID, id, err)
		return
	}
	if c.dispatcher == nil {
		return
	}
	msg := models.TaskAssignMessage{
		TaskID:   task.ID,
		Type:     task.Type,
		Payload:  task.Payload,
		Deadline: task.Deadline,
	}
	if err := c.dispatcher.Send(id, msg); err != nil {
		c.logger.Warn("Send of task %s to node %d failed (will retry on deadline expiry): %v", taskID, id, err)
	}
}

// candidates builds the policy's view of the active set: registry
// snapshots plus each node's derived load.
func (c *Coordinator) candidates() []models.NodeSnapshot {
	active := c.registry.ListActive()
	out := make([]models.NodeSnapshot, 0, len(active))
	for _, n := range active {
		out = append(out, models.NodeSnapshot{
			Node:            n,
			ActiveTaskCount: c.ledger.ActiveCount(n.ID),
		})
	}
	return out
}

func (c *Coordinator) publishStats(now time.Time) {
	pending := len(c.ledger.PendingTasks())
	s := &Stats{
		KnownNodes:     c.registry.Len(),
		ActiveNodes:    c.registry.ActiveCount(),
		LiveTasks:      c.ledger.Len(),
		PendingTasks:   pending,
		FailuresTotal:  c.faultLog.Total(),
		RecentFailures: c.faultLog.Len(),
		Uptime:         now.Sub(c.startedAt),
		LastTick:       now,
	}
	c.stats.Store(s)

	telemetry.ActiveNodes.Set(float64(s.ActiveNodes))
	telemetry.PendingTasks.Set(float64(pending))
	telemetry.AssignedTasks.Set(float64(s.LiveTasks - pending))
}

// Stats returns the snapshot published by the most recent tick.
func (c *Coordinator) Stats() Stats {
	return *c.stats.Load()
}

// Registry exposes the node registry to the tick owner. Must only be
// touched from the goroutine driving Tick.
func (c *Coordinator) Registry() *NodeRegistry {
	return c.registry
}

// Ledger exposes the task ledger to the tick owner. Must only be touched
// from the goroutine driving Tick.
func (c *Coordinator) Ledger() *TaskLedger {
	return c.ledger
}

// FaultLog exposes the failure logger for diagnostics iteration.
func (c *Coordinator) FaultLog() *FailureLogger {
	return c.faultLog
}

// Run drives the tick loop at the given interval until ctx is done,
// flushing failure events and persisting registry and ledger snapshots
// after each tick. Persistence happens outside Tick so storage latency
// can never delay failure detection within a tick.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration, store SnapshotStore) {
	if interval <= 0 {
		interval = models.DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("Coordinator loop started (sweep every %v, failure timeout %v)", interval, c.monitor.Timeout())

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Coordinator loop stopped")
			return
		case <-ticker.C:
			c.Tick()
			c.faultLog.Flush(ctx)
			if store != nil {
				c.persistSnapshots(ctx, store)
			}
		}
	}
}

func (c *Coordinator) persistSnapshots(ctx context.Context, store SnapshotStore) {
	if err := store.SaveNodes(ctx, c.registry.All()); err != nil {
		c.logger.Error("Failed to persist node snapshot: %v", err)
	}
	if err := store.SaveTasks(ctx, c.ledger.All()); err != nil {
		c.logger.Error("Failed to persist task snapshot: %v", err)
	}
}
