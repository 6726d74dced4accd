package transport

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/thewriterben/wildcam-mesh/internal/models"
	"github.com/thewriterben/wildcam-mesh/pkg/utils"
)

func testLogger() *utils.Logger {
	return utils.NewLogger("test", utils.ERROR)
}

func statusEnvelope(id models.NodeID) models.Envelope {
	return models.Envelope{
		Kind:   models.MsgStatus,
		Status: &models.StatusMessage{NodeID: id, BatteryLevel: 80, SignalStrength: -60},
	}
}

func TestInboxPushAndDrain(t *testing.T) {
	in := NewInbox(8)

	for i := 1; i <= 3; i++ {
		if !in.TryPush(statusEnvelope(models.NodeID(i))) {
			t.Fatalf("Push %d failed unexpectedly", i)
		}
	}
	if in.Len() != 3 {
		t.Errorf("Expected 3 queued, got %d", in.Len())
	}

	drained := in.Drain()
	if len(drained) != 3 {
		t.Fatalf("Expected 3 drained, got %d", len(drained))
	}
	// FIFO order.
	for i, env := range drained {
		if env.Status.NodeID != models.NodeID(i+1) {
			t.Errorf("Message %d out of order: node %d", i, env.Status.NodeID)
		}
	}

	// Drain on an empty inbox returns immediately with nothing.
	if got := in.Drain(); len(got) != 0 {
		t.Errorf("Expected empty drain, got %d", len(got))
	}
}

func TestInboxDropsWhenFull(t *testing.T) {
	in := NewInbox(2)

	if !in.TryPush(statusEnvelope(1)) || !in.TryPush(statusEnvelope(2)) {
		t.Fatal("Pushes within capacity failed")
	}
	if in.TryPush(statusEnvelope(3)) {
		t.Error("Expected push beyond capacity to be dropped")
	}

	drained := in.Drain()
	if len(drained) != 2 {
		t.Fatalf("Expected the 2 retained messages, got %d", len(drained))
	}
	if drained[0].Status.NodeID != 1 || drained[1].Status.NodeID != 2 {
		t.Errorf("Unexpected retained messages: %v", drained)
	}
}

func TestUDPRoundTrip(t *testing.T) {
	logger := testLogger()
	coord, err := NewUDPTransport("127.0.0.1:0", 16, logger)
	if err != nil {
		t.Fatalf("Failed to bind coordinator transport: %v", err)
	}
	defer coord.Close()

	peer, err := NewUDPTransport("127.0.0.1:0", 16, logger)
	if err != nil {
		t.Fatalf("Failed to bind peer transport: %v", err)
	}
	defer peer.Close()

	go coord.readLoop()
	go peer.readLoop()

	// The peer reports in; the coordinator learns its address from the
	// datagram source.
	env := models.Envelope{
		Kind:   models.MsgStatus,
		Status: &models.StatusMessage{NodeID: 7, BatteryLevel: 80, SignalStrength: -60},
	}
	if err := sendRaw(peer, coord.LocalAddr().String(), env); err != nil {
		t.Fatalf("Failed to send status: %v", err)
	}

	waitForInbox(t, coord.Inbox())
	got := coord.Inbox().Drain()
	if len(got) != 1 || got[0].Kind != models.MsgStatus || got[0].Status.NodeID != 7 {
		t.Fatalf("Unexpected inbound: %+v", got)
	}

	// Now the coordinator can address node 7 directly.
	assign := models.TaskAssignMessage{TaskID: "T1", Type: models.TaskTypeCapture}
	if err := coord.Send(7, assign); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// Sending to a node that never reported fails fast.
	if err := coord.Send(99, assign); err == nil {
		t.Error("Expected send to unknown node to fail")
	}
}

func TestMalformedDatagramsAreDroppedAtBoundary(t *testing.T) {
	logger := testLogger()
	coord, err := NewUDPTransport("127.0.0.1:0", 16, logger)
	if err != nil {
		t.Fatalf("Failed to bind transport: %v", err)
	}
	defer coord.Close()

	go coord.readLoop()

	sender, err := NewUDPTransport("127.0.0.1:0", 16, logger)
	if err != nil {
		t.Fatalf("Failed to bind sender: %v", err)
	}
	defer sender.Close()

	// Garbage, a STATUS with no body, and a STATUS with a zero node id:
	// none may reach the inbox.
	if err := sendRawBytes(sender, coord.LocalAddr().String(), []byte("not json")); err != nil {
		t.Fatalf("Failed to send garbage: %v", err)
	}
	if err := sendRaw(sender, coord.LocalAddr().String(), models.Envelope{Kind: models.MsgStatus}); err != nil {
		t.Fatalf("Failed to send empty status: %v", err)
	}
	if err := sendRaw(sender, coord.LocalAddr().String(), models.Envelope{
		Kind:   models.MsgStatus,
		Status: &models.StatusMessage{NodeID: 0},
	}); err != nil {
		t.Fatalf("Failed to send invalid status: %v", err)
	}

	// A valid message afterwards proves the loop survived the garbage.
	if err := sendRaw(sender, coord.LocalAddr().String(), statusEnvelope(7)); err != nil {
		t.Fatalf("Failed to send valid status: %v", err)
	}

	waitForInbox(t, coord.Inbox())
	got := coord.Inbox().Drain()
	if len(got) != 1 {
		t.Fatalf("Expected only the valid message, got %d", len(got))
	}
	if got[0].Status.NodeID != 7 {
		t.Errorf("Unexpected surviving message: %+v", got[0])
	}
}

func TestStatusBatteryClampedAtBoundary(t *testing.T) {
	msg := models.StatusMessage{NodeID: 7, BatteryLevel: 250}
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if msg.BatteryLevel != 100 {
		t.Errorf("Expected battery clamped to 100, got %d", msg.BatteryLevel)
	}

	msg = models.StatusMessage{NodeID: 7, BatteryLevel: -3}
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if msg.BatteryLevel != 0 {
		t.Errorf("Expected battery clamped to 0, got %d", msg.BatteryLevel)
	}
}

func sendRaw(from *UDPTransport, to string, env models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return sendRawBytes(from, to, data)
}

func sendRawBytes(from *UDPTransport, to string, data []byte) error {
	addr, err := net.ResolveUDPAddr("udp", to)
	if err != nil {
		return err
	}
	_, err = from.conn.WriteToUDP(data, addr)
	return err
}

func waitForInbox(t *testing.T, in *Inbox) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if in.Len() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for inbound message")
}
