package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/thewriterben/wildcam-mesh/internal/models"
	"github.com/thewriterben/wildcam-mesh/pkg/utils"
)

// Peer is a simulated camera node: it reports status to the coordinator
// on a fixed interval, accepts task assignments, "executes" them for the
// duration declared in the payload, and acknowledges completion. It lets
// a whole mesh be exercised over loopback UDP without camera hardware.
type Peer struct {
	id              models.NodeID
	coordinatorAddr *net.UDPAddr
	conn            *net.UDPConn
	logger          *utils.Logger

	statusInterval time.Duration
	accelerated    bool
	signalBase     int

	mu      sync.Mutex
	battery float64

	wg  sync.WaitGroup
	rng *rand.Rand
}

// Config holds peer configuration.
type Config struct {
	NodeID          models.NodeID
	CoordinatorAddr string
	StatusInterval  time.Duration
	BatteryLevel    int  // starting charge, 0-100
	SignalStrength  int  // base dBm; jitter of a few dBm is applied
	Accelerated     bool // reports the accelerated-processing capability
}

// TaskPayload is the simulated work description carried in an assignment
// payload.
type TaskPayload struct {
	Duration string `json:"duration,omitempty"`
}

// NewPeer creates a peer bound to an ephemeral local UDP port.
func NewPeer(config Config) (*Peer, error) {
	coordAddr, err := net.ResolveUDPAddr("udp", config.CoordinatorAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve coordinator address: %w", err)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("failed to bind peer socket: %w", err)
	}

	interval := config.StatusInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	battery := config.BatteryLevel
	if battery <= 0 || battery > 100 {
		battery = 100
	}

	return &Peer{
		id:              config.NodeID,
		coordinatorAddr: coordAddr,
		conn:            conn,
		logger:          utils.NewLogger(fmt.Sprintf("node-%d", config.NodeID), utils.INFO),
		statusInterval:  interval,
		accelerated:     config.Accelerated,
		signalBase:      config.SignalStrength,
		battery:         float64(battery),
		rng:             rand.New(rand.NewSource(int64(config.NodeID))),
	}, nil
}

// Run reports status and serves assignments until ctx is done.
func (p *Peer) Run(ctx context.Context) {
	p.logger.Info("Peer started (coordinator %s, status every %v)", p.coordinatorAddr, p.statusInterval)

	p.wg.Add(2)
	go p.statusLoop(ctx)
	go p.receiveLoop(ctx)
	p.wg.Wait()

	p.logger.Info("Peer stopped")
}

// statusLoop sends the periodic status report. Battery drains slowly with
// every report so long simulations exhibit realistic score drift.
func (p *Peer) statusLoop(ctx context.Context) {
	defer p.wg.Done()

	// First report immediately so the coordinator learns our address.
	p.sendStatus()

	ticker := time.NewTicker(p.statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drainBattery(0.05)
			p.sendStatus()
		}
	}
}

func (p *Peer) sendStatus() {
	p.mu.Lock()
	battery := int(p.battery)
	p.mu.Unlock()

	msg := models.StatusMessage{
		NodeID:                   p.id,
		BatteryLevel:             battery,
		SignalStrength:           p.signalBase + p.rng.Intn(7) - 3,
		HasAcceleratedProcessing: p.accelerated,
		Timestamp:                time.Now(),
	}
	if err := p.send(models.Envelope{Kind: models.MsgStatus, Status: &msg}); err != nil {
		p.logger.Warn("Status send failed: %v", err)
	}
}

// receiveLoop handles task assignments from the coordinator.
func (p *Peer) receiveLoop(ctx context.Context) {
	defer p.wg.Done()

	go func() {
		<-ctx.Done()
		p.conn.Close()
	}()

	buf := make([]byte, 8192)
	for {
		n, _, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(buf[:n], &env); err != nil {
			p.logger.Warn("Dropping malformed datagram: %v", err)
			continue
		}
		if env.Kind != models.MsgTaskAssign || env.Assign == nil {
			continue
		}

		assign := *env.Assign
		p.logger.Info("Accepted task %s (%s), deadline %s", assign.TaskID, assign.Type, assign.Deadline.Format(time.RFC3339))
		go p.execute(ctx, assign)
	}
}

// execute simulates the work and acknowledges completion. Each executed
// task costs a slice of battery.
func (p *Peer) execute(ctx context.Context, assign models.TaskAssignMessage) {
	duration := 500 * time.Millisecond
	var payload TaskPayload
	if len(assign.Payload) > 0 {
		if err := json.Unmarshal(assign.Payload, &payload); err == nil && payload.Duration != "" {
			if d, err := time.ParseDuration(payload.Duration); err == nil {
				duration = d
			}
		}
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(duration):
	}

	p.drainBattery(0.5)

	ack := models.TaskAckMessage{NodeID: p.id, TaskID: assign.TaskID}
	if err := p.send(models.Envelope{Kind: models.MsgTaskAck, Ack: &ack}); err != nil {
		p.logger.Warn("Ack send failed for task %s: %v", assign.TaskID, err)
		return
	}
	p.logger.Info("Completed task %s in %v", assign.TaskID, duration)
}

func (p *Peer) drainBattery(amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.battery -= amount
	if p.battery < 0 {
		p.battery = 0
	}
}

func (p *Peer) send(env models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = p.conn.WriteToUDP(data, p.coordinatorAddr)
	return err
}
