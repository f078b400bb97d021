package game

import (
	"testing"
	"time"

	"deadfall/internal/config"
	"deadfall/internal/entity"
)

// TestClientServerLoopback runs a real UDP round trip on the loopback
// interface: hello, level sync, input delta and physic-sync broadcast.
func TestClientServerLoopback(t *testing.T) {
	if testing.Short() {
		t.Skip("loopback networking")
	}

	cfg := config.AppConfig{
		Simulation: config.DefaultSimulation(),
		Network:    config.DefaultNetwork(),
		AI:         config.DefaultAI(),
		Server:     config.DefaultServer(),
	}
	cfg.Network.BindAddr = "127.0.0.1:0"

	server := NewEngine(cfg)
	ep, err := NewEndpoint(cfg.Network)
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}
	server.AttachEndpoint(ep)
	defer ep.Teardown()

	client, err := Connect(ep.Addr().String(), "remote", cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	joined := false
	for i := 0; i < 400; i++ {
		server.Tick(testDT)
		client.Tick(testDT, entity.InputState{MoveRight: true})
		time.Sleep(time.Millisecond)

		p, ok := server.Player("remote")
		if ok && client.Connected() && p.Input.MoveRight {
			joined = true
			break
		}
	}
	if !joined {
		t.Fatal("client never joined with its input applied on the server")
	}

	// The level sync must have replaced the client's default level with
	// the server's platform layout.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		server.Tick(testDT)
		client.Tick(testDT, entity.InputState{})
		if client.Engine().Level().Name == "synced" {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if client.Engine().Level().Name != "synced" {
		t.Fatal("level sync never applied on the client")
	}
	if got, want := len(client.Engine().Level().Platforms), len(server.Level().Platforms); got != want {
		t.Fatalf("client has %d platforms, server %d", got, want)
	}
}
