package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/thewriterben/wildcam-mesh/internal/models"
	"github.com/thewriterben/wildcam-mesh/pkg/utils"
)

const maxDatagramSize = 8192

// UDPTransport carries the mesh protocol over UDP datagrams, standing in
// for the field radio link: connectionless, lossy, and low-bandwidth.
// Peer addresses are learned from the source address of their status
// messages, so nodes need no address provisioning on the coordinator.
//
// Messages are validated here at the boundary; malformed or partial
// datagrams never reach the core.
type UDPTransport struct {
	logger *utils.Logger
	conn   *net.UDPConn
	inbox  *Inbox

	mu    sync.RWMutex
	addrs map[models.NodeID]*net.UDPAddr
}

// NewUDPTransport binds the coordinator's radio socket.
func NewUDPTransport(bindAddr string, inboxCapacity int, logger *utils.Logger) (*UDPTransport, error) {
	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bind address %s: %w", bindAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", bindAddr, err)
	}
	return &UDPTransport{
		logger: logger.WithComponent("transport"),
		conn:   conn,
		inbox:  NewInbox(inboxCapacity),
		addrs:  make(map[models.NodeID]*net.UDPAddr),
	}, nil
}

// Inbox returns the bounded inbound queue drained by the tick loop.
func (t *UDPTransport) Inbox() *Inbox {
	return t.inbox
}

// LocalAddr returns the bound socket address.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Start launches the receive loop. It exits when ctx is done or the
// socket is closed.
func (t *UDPTransport) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		t.conn.Close()
	}()
	go t.readLoop()
}

func (t *UDPTransport) readLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, src, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			t.logger.Debug("Receive loop exiting: %v", err)
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(buf[:n], &env); err != nil {
			t.logger.Warn("Dropping malformed datagram from %s: %v", src, err)
			continue
		}

		switch env.Kind {
		case models.MsgStatus:
			if env.Status == nil {
				t.logger.Warn("Dropping STATUS datagram from %s with empty body", src)
				continue
			}
			if err := env.Status.Validate(); err != nil {
				t.logger.Warn("Dropping invalid STATUS from %s: %v", src, err)
				continue
			}
			t.learnAddr(env.Status.NodeID, src)
		case models.MsgTaskAck:
			if env.Ack == nil {
				t.logger.Warn("Dropping TASK_ACK datagram from %s with empty body", src)
				continue
			}
			if err := env.Ack.Validate(); err != nil {
				t.logger.Warn("Dropping invalid TASK_ACK from %s: %v", src, err)
				continue
			}
			t.learnAddr(env.Ack.NodeID, src)
		default:
			t.logger.Warn("Dropping datagram from %s with unknown kind %q", src, env.Kind)
			continue
		}

		if !t.inbox.TryPush(env) {
			t.logger.Warn("Inbox full, dropped %s from node at %s", env.Kind, src)
		}
	}
}

func (t *UDPTransport) learnAddr(id models.NodeID, src *net.UDPAddr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addrs[id] = src
}

// Send emits a task assignment to the node's last-known address. It never
// blocks: UDP writes either hit the socket buffer or fail immediately.
// An unknown address means the node has never reported in on this socket.
func (t *UDPTransport) Send(id models.NodeID, msg models.TaskAssignMessage) error {
	t.mu.RLock()
	addr, ok := t.addrs[id]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no known address for node %d", id)
	}

	data, err := json.Marshal(models.Envelope{Kind: models.MsgTaskAssign, Assign: &msg})
	if err != nil {
		return fmt.Errorf("failed to encode assign message: %w", err)
	}
	if _, err := t.conn.WriteToUDP(data, addr); err != nil {
		return fmt.Errorf("failed to send to node %d at %s: %w", id, addr, err)
	}
	return nil
}

// Close shuts the socket down.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
