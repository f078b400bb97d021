package game

import (
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"deadfall/internal/config"
	"deadfall/internal/entity"
	"deadfall/internal/metrics"
	"deadfall/internal/physics"
	"deadfall/internal/replication"
	"deadfall/internal/vecmath"
)

// pingInterval paces the server's clock-sync pings per peer.
const pingInterval = 1 * time.Second

// Endpoint is the server side of the replication layer, driven from
// inside the engine tick: Poll drains the socket and applies remote
// state, Flush emits the periodic physic-sync broadcast, queued bullet
// spawns and the reliable resend loop.
type Endpoint struct {
	socket   *replication.Socket
	sender   *replication.ReliableSender
	receiver *replication.ReliableReceiver
	auth     *replication.Server
	limiter  *replication.PeerRateLimiter

	cfg      config.NetworkConfig
	packetID uint64 // atomic monotonic counter

	lastPhysSync time.Time
	lastPing     time.Time
	lastYLocked  map[string]bool // previous sim y_locked per player, for the snap rule
	recvBuf      []byte

	Logger *log.Logger
}

// NewEndpoint binds the UDP socket and assembles the reliability and
// authority machinery around it.
func NewEndpoint(cfg config.NetworkConfig) (*Endpoint, error) {
	socket, err := replication.Listen(cfg.BindAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "game: binding replication socket on %s", cfg.BindAddr)
	}
	auth := replication.NewServer()
	auth.Smoothing = cfg.ServerSmoothing
	return &Endpoint{
		socket:      socket,
		sender:      replication.NewReliableSender(socket),
		receiver:    replication.NewReliableReceiver(socket),
		auth:        auth,
		limiter:     replication.NewPeerRateLimiter(cfg.PeerRate, cfg.PeerBurst),
		cfg:         cfg,
		lastYLocked: make(map[string]bool),
		recvBuf:     make([]byte, replication.MaxDatagramSize+replication.HeaderSize),
		Logger:      log.Default(),
	}, nil
}

// Addr returns the bound UDP address.
func (ep *Endpoint) Addr() net.Addr { return ep.socket.LocalAddr() }

// Teardown fails outstanding reliable sends and closes the socket.
func (ep *Endpoint) Teardown() {
	ep.sender.Teardown()
	ep.socket.Close()
}

func (ep *Endpoint) nextPacketID() uint64 {
	return atomic.AddUint64(&ep.packetID, 1)
}

// Poll drains every queued datagram, applying remote state to the
// engine. Called under the engine lock at the start of each tick.
func (ep *Endpoint) Poll(e *Engine, now time.Time) {
	for {
		n, peer, res := ep.socket.Recv(ep.recvBuf)
		if res == replication.ResultWouldBlock {
			return
		}
		if res != replication.ResultOK {
			metrics.RecordPacket("recv_error")
			return
		}
		ep.handlePacket(e, peer, ep.recvBuf[:n], now)
	}
}

func (ep *Endpoint) handlePacket(e *Engine, peer *net.UDPAddr, raw []byte, now time.Time) {
	header, payload, err := replication.Decode(raw)
	if err == replication.ErrHashMismatch {
		metrics.RecordPacket("corrupted")
		if header.Reliable {
			ep.receiver.HandleCorrupted(peer, header.PacketID)
		}
		return
	}
	if err != nil {
		metrics.RecordPacket("malformed")
		return
	}

	// Acks bypass the rate limiter: dropping one only costs a resend.
	switch header.ActionKind {
	case replication.ActionAckOK:
		if ack, err := replication.UnmarshalAck(payload); err == nil {
			ep.sender.Ack(peer, ack.AckedID)
		}
		metrics.RecordPacket("ack")
		return
	case replication.ActionAckCorrupted:
		if ack, err := replication.UnmarshalAck(payload); err == nil {
			ep.sender.AckCorrupted(peer, ack.AckedID)
		}
		metrics.RecordPacket("ack_corrupted")
		return
	}

	if !ep.limiter.Allow(peer.String()) {
		metrics.RecordPacket("rate_limited")
		return
	}

	dispatch := func() { ep.dispatch(e, peer, header.ActionKind, payload, now) }
	if header.Reliable {
		ep.receiver.Handle(peer, header.PacketID, header.PayloadHash, dispatch)
	} else {
		dispatch()
	}
	metrics.RecordPacket("ok")
}

func (ep *Endpoint) dispatch(e *Engine, peer *net.UDPAddr, kind replication.ActionKind, payload []byte, now time.Time) {
	switch kind {
	case replication.ActionClientHello:
		ep.handleHello(e, peer, payload)
	case replication.ActionServerPing:
		ep.handlePong(peer, payload)
	case replication.ActionPlayerInput:
		ep.handleInput(e, peer, payload)
	case replication.ActionPlayerPhysicalSync:
		ep.handleClientPhysSync(e, peer, payload)
	case replication.ActionBulletSpawnBatch:
		ep.handleBulletSpawns(e, peer, payload, now)
	case replication.ActionPlayerConfigSync:
		ep.handleConfigSync(e, peer, payload)
	default:
		metrics.RecordPacket("unknown_kind")
	}
}

func (ep *Endpoint) handleHello(e *Engine, peer *net.UDPAddr, payload []byte) {
	hello, err := replication.UnmarshalClientHello(payload)
	if err != nil {
		return
	}
	if _, ok := ep.auth.Peer(peer); ok {
		return // duplicate hello from a known peer
	}
	if _, err := e.addPlayerLocked(hello.PlayerName, -1, false); err != nil {
		ep.Logger.Printf("[net] rejecting hello from %s: %v", peer, err)
		return
	}
	ep.auth.AddPeer(&replication.PeerSession{
		Addr: peer, PlayerName: hello.PlayerName, Ping: replication.NewPingTracker(),
	})
	ep.Logger.Printf("[net] %s joined from %s", hello.PlayerName, peer)

	// Level layout is the one reliable send a join strictly needs.
	sync := e.level.ToSync()
	ep.sender.Send(peer, replication.ActionLevelSync, ep.nextPacketID(), sync.Marshal(), true, func(ok bool, retries int) {
		if !ok {
			ep.Logger.Printf("[net] level sync to %s failed after %d retries", peer, retries)
		}
	})
}

func (ep *Endpoint) handlePong(peer *net.UDPAddr, payload []byte) {
	pong, err := replication.UnmarshalServerPing(payload)
	if err != nil {
		return
	}
	if sess, ok := ep.auth.Peer(peer); ok {
		sess.Ping.Pong(pong.PingID)
	}
}

func (ep *Endpoint) handleInput(e *Engine, peer *net.UDPAddr, payload []byte) {
	in, err := replication.UnmarshalPlayerInput(payload)
	if err != nil {
		return
	}
	sess, ok := ep.auth.Peer(peer)
	if !ok {
		return
	}
	player, ok := e.players[sess.PlayerName]
	if !ok {
		return
	}
	ep.auth.ApplyInput(sess, player, in)
}

// handleClientPhysSync reconciles a client's self-reported physical
// state against the server's simulation: smoothing (or outright
// correction) per the configured authority mode, with an exact snap
// when the simulated y_locked bit just transitioned on.
func (ep *Endpoint) handleClientPhysSync(e *Engine, peer *net.UDPAddr, payload []byte) {
	sync, err := replication.UnmarshalPlayerPhysicalSync(payload)
	if err != nil {
		return
	}
	sess, ok := ep.auth.Peer(peer)
	if !ok || sess.PlayerName != sync.PlayerName {
		return
	}
	player, ok := e.players[sync.PlayerName]
	if !ok {
		return
	}

	simPos := player.Position(e.sim)
	simLocked := player.YLocked(e.sim)
	wasLocked := ep.lastYLocked[sync.PlayerName]
	ep.lastYLocked[sync.PlayerName] = simLocked

	reported := vecmath.Vector{X: float64(sync.Position.X), Y: float64(sync.Position.Y)}
	newPos := ep.auth.Reconcile(simPos, simLocked, wasLocked, reported)
	if prim, ok := e.sim.Store().Get(player.GroupID); ok {
		g := prim.(*physics.Group)
		g.Position = newPos
		e.sim.Store().SyncGroupTransform(g)
	}
}

// handleBulletSpawns trusts spawn batches from the peer that controls
// the shooting player and materialises lag-compensation boxes for the
// shooter based on its own reported ping.
func (ep *Endpoint) handleBulletSpawns(e *Engine, peer *net.UDPAddr, payload []byte, now time.Time) {
	batch, err := replication.UnmarshalBulletSpawnBatch(payload)
	if err != nil {
		return
	}
	sess, ok := ep.auth.Peer(peer)
	if !ok {
		return
	}
	for _, b := range batch.Bullets {
		if b.OwnerName != sess.PlayerName {
			continue // a client may only spawn bullets for its own player
		}
		_, isBot := e.bots[b.OwnerName]
		if !replication.TrustBulletSpawn(false, isBot) {
			continue
		}
		origin := vecmath.Vector{X: float64(b.Origin.X), Y: float64(b.Origin.Y)}
		vel := vecmath.Vector{X: float64(b.Velocity.X), Y: float64(b.Velocity.Y)}
		owner, ok := e.players[b.OwnerName]
		if !ok {
			continue
		}
		var tracer [3]byte
		copy(tracer[:], b.TracerColor[:])
		if b.IsKick {
			e.bullets.FireInstantKick(origin, vel, int(b.Group), tracer, e.refByName[b.OwnerName])
		} else {
			maxTravel := 2000.0
			if owner.Weapon != nil {
				maxTravel = owner.Weapon.MaxTravel
			}
			e.bullets.Fire(origin, vel, float64(b.Mass), int(b.Group), tracer, maxTravel, e.refByName[b.OwnerName])
		}

		sampleAt := replication.AdjustmentBoxSpawnTime(now, sess.Ping)
		e.spawnAdjustmentBoxesLocked(b.OwnerName, sampleAt)
	}
	// Re-broadcast to every subscriber, the originating client
	// included, keeping the client/server code path symmetric (the
	// open question resolved in DESIGN.md).
	ep.broadcast(replication.ActionBulletSpawnBatch, payload, false)
}

func (ep *Endpoint) handleConfigSync(e *Engine, peer *net.UDPAddr, payload []byte) {
	cfgSync, err := replication.UnmarshalPlayerConfigSync(payload)
	if err != nil {
		return
	}
	sess, ok := ep.auth.Peer(peer)
	if !ok || sess.PlayerName != cfgSync.PlayerName {
		return
	}
	player, ok := e.players[cfgSync.PlayerName]
	if !ok {
		return
	}
	if w, ok := entity.GetWeapon(cfgSync.WeaponID); ok {
		player.Weapon = w
	}
	player.GroupTag = int(cfgSync.GroupTag)
	player.TracerColor = cfgSync.TracerColor
}

// Flush emits this tick's outbound traffic. Called under the engine
// lock at the end of each tick.
func (ep *Endpoint) Flush(e *Engine, now time.Time) {
	ep.sender.Tick()
	metrics.SetReliableOutstanding(ep.sender.Outstanding())

	if spawns := e.takePendingSpawnsLocked(); len(spawns) > 0 {
		batch := spawnBatchOf(spawns)
		ep.broadcast(replication.ActionBulletSpawnBatch, batch.Marshal(), false)
	}

	if now.Sub(ep.lastPing) >= pingInterval {
		ep.lastPing = now
		for _, sess := range ep.auth.Peers() {
			ping := replication.ServerPing{PingID: sess.Ping.NewPing(), ServerTime: e.simClock}
			ep.socket.Send(sess.Addr, replication.Encode(replication.ActionServerPing, false, ep.nextPacketID(), ping.Marshal()))
		}
	}

	interval := time.Duration(ep.cfg.PhysicSyncIntervalMS) * time.Millisecond
	if now.Sub(ep.lastPhysSync) >= interval {
		ep.lastPhysSync = now
		ep.broadcastPhysSync(e)
	}
}

func (ep *Endpoint) broadcastPhysSync(e *Engine) {
	for name, p := range e.players {
		pos := p.Position(e.sim)
		vel := p.Velocity(e.sim)
		weaponID := ""
		if p.Weapon != nil {
			weaponID = p.Weapon.ID
		}
		sync := replication.PlayerPhysicalSync{
			PlayerName:   name,
			Position:     replication.Vec2{X: float32(pos.X), Y: float32(pos.Y)},
			Velocity:     replication.Vec2{X: float32(vel.X), Y: float32(vel.Y)},
			EventCounter: p.EventCounter,
			YLocked:      p.YLocked(e.sim),
			FacingLeft:   p.FacingLeft,
			HP:           float32(p.HP),
			WeaponID:     weaponID,
		}
		ep.broadcast(replication.ActionPlayerPhysicalSync, sync.Marshal(), false)
	}
}

// spawnBatchOf converts queued local spawns into the wire batch.
func spawnBatchOf(spawns []pendingSpawn) replication.BulletSpawnBatch {
	batch := replication.BulletSpawnBatch{Bullets: make([]replication.BulletSpawn, 0, len(spawns))}
	for _, s := range spawns {
		batch.Bullets = append(batch.Bullets, replication.BulletSpawn{
			Origin:      replication.Vec2{X: float32(s.Origin.X), Y: float32(s.Origin.Y)},
			Velocity:    replication.Vec2{X: float32(s.Vel.X), Y: float32(s.Vel.Y)},
			Mass:        float32(s.Mass),
			Group:       int32(s.Bullet.Group),
			TracerColor: s.Bullet.TracerColor,
			OwnerName:   s.Owner,
			IsKick:      s.Bullet.IsInstantKick,
		})
	}
	return batch
}

func (ep *Endpoint) broadcast(kind replication.ActionKind, payload []byte, reliable bool) {
	for _, sess := range ep.auth.Peers() {
		ep.sender.Send(sess.Addr, kind, ep.nextPacketID(), payload, reliable, nil)
	}
}
