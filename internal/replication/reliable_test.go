package replication

import (
	"net"
	"testing"
	"time"
)

func mustListen(t *testing.T) *Socket {
	t.Helper()
	sock, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { sock.Close() })
	return sock
}

// udpAddr resolves sock's own bound address as a *net.UDPAddr, the form
// Socket.Send expects as a destination.
func udpAddr(t *testing.T, sock *Socket) *net.UDPAddr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", sock.LocalAddr().String())
	if err != nil {
		t.Fatalf("ResolveUDPAddr: %v", err)
	}
	return addr
}

// TestReliableResendAfterDrop mirrors the "dropped first copy" scenario:
// the receiver never sees the first transmission, the sender's next
// Tick resends, the receiver acks that copy, and the completion handler
// fires exactly once with (true, retriesUsed=1).
func TestReliableResendAfterDrop(t *testing.T) {
	senderSock := mustListen(t)
	receiverSock := mustListen(t)

	sender := NewReliableSender(senderSock)
	sender.resendInterval = 0 // force Tick to always consider entries due

	type result struct {
		ok          bool
		retriesUsed int
	}
	done := make(chan result, 1)

	payload := PlayerInput{EventCounter: 1, MoveLeft: true}.Marshal()
	res := sender.Send(udpAddr(t, receiverSock), ActionPlayerInput, 1, payload, true, func(ok bool, retriesUsed int) {
		done <- result{ok, retriesUsed}
	})
	if res != ResultOK {
		t.Fatalf("Send result = %v, want ok", res)
	}

	// Drop the first copy: read it off the wire but discard it instead
	// of acking.
	buf := make([]byte, MaxDatagramSize)
	n, _, res := receiverSock.Recv(buf)
	if res != ResultOK {
		t.Fatalf("first Recv result = %v, want ok", res)
	}
	_ = n // simulated loss: intentionally not decoded/acked

	sender.Tick() // resendInterval=0, so this resends immediately

	n, fromSender, res := receiverSock.Recv(buf)
	if res != ResultOK {
		t.Fatalf("second Recv result = %v, want ok", res)
	}
	hdr, innerPayload, err := Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode resent packet: %v", err)
	}
	if hdr.PacketID != 1 || hdr.ActionKind != ActionPlayerInput {
		t.Fatalf("resent header = %+v, unexpected", hdr)
	}
	if in, err := UnmarshalPlayerInput(innerPayload); err != nil || !in.MoveLeft {
		t.Fatalf("resent payload mismatch: %+v, %v", in, err)
	}

	receiver := NewReliableReceiver(receiverSock)
	dispatched := 0
	receiver.Handle(fromSender, hdr.PacketID, hdr.PayloadHash, func() { dispatched++ })
	if dispatched != 1 {
		t.Fatalf("dispatched = %d, want 1", dispatched)
	}

	// Receiver's ack travels back to the sender socket; feed it to the
	// sender's bookkeeping the way the read loop would.
	ackBuf := make([]byte, MaxDatagramSize)
	n, fromReceiver, res := senderSock.Recv(ackBuf)
	if res != ResultOK {
		t.Fatalf("ack Recv result = %v, want ok", res)
	}
	ackHdr, ackPayload, err := Decode(ackBuf[:n])
	if err != nil {
		t.Fatalf("Decode ack: %v", err)
	}
	if ackHdr.ActionKind != ActionAckOK {
		t.Fatalf("ack action kind = %v, want ActionAckOK", ackHdr.ActionKind)
	}
	ack, err := UnmarshalAck(ackPayload)
	if err != nil {
		t.Fatalf("UnmarshalAck: %v", err)
	}
	sender.Ack(fromReceiver, ack.AckedID)

	select {
	case r := <-done:
		if !r.ok || r.retriesUsed != 1 {
			t.Fatalf("completion = %+v, want {true 1}", r)
		}
	case <-time.After(time.Second):
		t.Fatal("completion handler never fired")
	}
}

// TestDuplicateSuppression: two deliveries of
// the same (peer, id, hash) dispatch exactly once, but every copy still
// gets acked.
func TestDuplicateSuppression(t *testing.T) {
	receiverSock := mustListen(t)
	senderSock := mustListen(t)
	receiver := NewReliableReceiver(receiverSock)

	peer := udpAddr(t, senderSock)
	dispatched := 0
	receiver.Handle(peer, 5, 0xABCD, func() { dispatched++ })
	receiver.Handle(peer, 5, 0xABCD, func() { dispatched++ })

	if dispatched != 1 {
		t.Fatalf("dispatched = %d, want 1", dispatched)
	}

	buf := make([]byte, MaxDatagramSize)
	acks := 0
	for acks < 2 {
		n, _, res := senderSock.Recv(buf)
		if res != ResultOK {
			t.Fatalf("ack Recv result = %v, want ok", res)
		}
		hdr, _, err := Decode(buf[:n])
		if err != nil {
			t.Fatalf("Decode ack: %v", err)
		}
		if hdr.ActionKind != ActionAckOK || hdr.PacketID != 5 {
			t.Fatalf("ack header = %+v, unexpected", hdr)
		}
		acks++
	}
}
