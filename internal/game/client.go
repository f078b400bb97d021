package game

import (
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"deadfall/internal/config"
	"deadfall/internal/entity"
	"deadfall/internal/physics"
	"deadfall/internal/replication"
	"deadfall/internal/vecmath"
)

// ClientSession is the client side of the replication layer: it runs
// its own prediction engine, applies local input immediately, sends
// the input delta and its predicted physical state to the server, and
// reconciles everything the server sends back.
type ClientSession struct {
	engine     *Engine
	playerName string

	socket   *replication.Socket
	sender   *replication.ReliableSender
	receiver *replication.ReliableReceiver
	server   *net.UDPAddr

	cfg       config.NetworkConfig
	packetID  uint64 // atomic
	smoothing float64

	eventCounter uint64
	lastInput    replication.PlayerInput
	recvBuf      []byte
	helloAcked   atomic.Bool

	Logger *log.Logger
}

// Connect binds an ephemeral UDP port, sends the reliable hello, and
// returns a session predicting on its own local engine.
func Connect(serverAddr, playerName string, cfg config.AppConfig) (*ClientSession, error) {
	addr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "game: resolving server address %s", serverAddr)
	}
	socket, err := replication.Listen(":0")
	if err != nil {
		return nil, errors.Wrap(err, "game: binding client socket")
	}

	engine := NewEngine(cfg)
	if _, err := engine.AddPlayer(playerName, -1); err != nil {
		socket.Close()
		return nil, err
	}

	cs := &ClientSession{
		engine:     engine,
		playerName: playerName,
		socket:     socket,
		sender:     replication.NewReliableSender(socket),
		receiver:   replication.NewReliableReceiver(socket),
		server:     addr,
		cfg:        cfg.Network,
		smoothing:  cfg.Network.ClientSmoothing,
		recvBuf:    make([]byte, replication.MaxDatagramSize+replication.HeaderSize),
		Logger:     log.Default(),
	}

	hello := replication.ClientHello{PlayerName: playerName}
	cs.sender.Send(addr, replication.ActionClientHello, cs.nextPacketID(), hello.Marshal(), true, func(ok bool, retries int) {
		if ok {
			cs.helloAcked.Store(true)
		} else {
			cs.Logger.Printf("[client] hello to %s failed after %d retries", serverAddr, retries)
		}
	})
	return cs, nil
}

// Engine exposes the client's prediction engine.
func (cs *ClientSession) Engine() *Engine { return cs.engine }

// Connected reports whether the hello has been acknowledged.
func (cs *ClientSession) Connected() bool { return cs.helloAcked.Load() }

// Close tears the session down; pending reliable sends fail fast.
func (cs *ClientSession) Close() {
	cs.sender.Teardown()
	cs.socket.Close()
}

func (cs *ClientSession) nextPacketID() uint64 {
	return atomic.AddUint64(&cs.packetID, 1)
}

// Tick runs one client frame: poll the server, predict locally with
// the current input, then send the input delta, predicted state and
// any locally-fired bullets.
func (cs *ClientSession) Tick(dt float64, input entity.InputState) {
	cs.poll()

	e := cs.engine
	e.mu.Lock()
	if p, ok := e.players[cs.playerName]; ok {
		p.Input = input
		cs.eventCounter++
		p.EventCounter = cs.eventCounter
	}
	e.stepLocked(dt, time.Now())
	spawns := e.takePendingSpawnsLocked()
	e.mu.Unlock()

	cs.sender.Tick()
	cs.sendInput(input)
	cs.sendPhysSync()
	if len(spawns) > 0 {
		batch := spawnBatchOf(spawns)
		cs.send(replication.ActionBulletSpawnBatch, batch.Marshal(), false)
	}
}

func (cs *ClientSession) send(kind replication.ActionKind, payload []byte, reliable bool) {
	cs.sender.Send(cs.server, kind, cs.nextPacketID(), payload, reliable, nil)
}

func (cs *ClientSession) sendInput(input entity.InputState) {
	in := replication.PlayerInput{
		MoveLeft:  input.MoveLeft,
		MoveRight: input.MoveRight,
		Fire:      input.Fire,
		Jump:      input.Jump,
		JumpDown:  input.JumpDown,
		YLocked:   input.YLocked,
	}
	// Only the delta goes on the wire — except while the hello is still
	// unacknowledged, when the state is repeated so the first real input
	// cannot be lost to a not-yet-registered session.
	if in == cs.lastInput && cs.helloAcked.Load() {
		return
	}
	cs.lastInput = in
	in.EventCounter = cs.eventCounter
	cs.send(replication.ActionPlayerInput, in.Marshal(), false)
}

func (cs *ClientSession) sendPhysSync() {
	e := cs.engine
	e.mu.RLock()
	p, ok := e.players[cs.playerName]
	if !ok {
		e.mu.RUnlock()
		return
	}
	pos := p.Position(e.sim)
	vel := p.Velocity(e.sim)
	locked := p.YLocked(e.sim)
	weaponID := ""
	if p.Weapon != nil {
		weaponID = p.Weapon.ID
	}
	sync := replication.PlayerPhysicalSync{
		PlayerName:   cs.playerName,
		Position:     replication.Vec2{X: float32(pos.X), Y: float32(pos.Y)},
		Velocity:     replication.Vec2{X: float32(vel.X), Y: float32(vel.Y)},
		EventCounter: p.EventCounter,
		YLocked:      locked,
		FacingLeft:   p.FacingLeft,
		HP:           float32(p.HP),
		WeaponID:     weaponID,
	}
	e.mu.RUnlock()
	cs.send(replication.ActionPlayerPhysicalSync, sync.Marshal(), false)
}

func (cs *ClientSession) poll() {
	for {
		n, peer, res := cs.socket.Recv(cs.recvBuf)
		if res != replication.ResultOK {
			return
		}
		cs.handlePacket(peer, cs.recvBuf[:n])
	}
}

func (cs *ClientSession) handlePacket(peer *net.UDPAddr, raw []byte) {
	header, payload, err := replication.Decode(raw)
	if err == replication.ErrHashMismatch {
		if header.Reliable {
			cs.receiver.HandleCorrupted(peer, header.PacketID)
		}
		return
	}
	if err != nil {
		return
	}

	dispatch := func() { cs.dispatch(header.ActionKind, payload) }
	switch header.ActionKind {
	case replication.ActionAckOK:
		if ack, err := replication.UnmarshalAck(payload); err == nil {
			cs.sender.Ack(peer, ack.AckedID)
		}
	case replication.ActionAckCorrupted:
		if ack, err := replication.UnmarshalAck(payload); err == nil {
			cs.sender.AckCorrupted(peer, ack.AckedID)
		}
	default:
		if header.Reliable {
			cs.receiver.Handle(peer, header.PacketID, header.PayloadHash, dispatch)
		} else {
			dispatch()
		}
	}
}

func (cs *ClientSession) dispatch(kind replication.ActionKind, payload []byte) {
	switch kind {
	case replication.ActionServerPing:
		// Echo unchanged; the server computes the RTT.
		cs.send(replication.ActionServerPing, payload, false)
	case replication.ActionLevelSync:
		if sync, err := replication.UnmarshalLevelSync(payload); err == nil {
			lvl := LevelFromSync("synced", cs.engine.Level().Spawn, sync)
			cs.engine.SetLevel(lvl)
		}
	case replication.ActionPlayerPhysicalSync:
		if sync, err := replication.UnmarshalPlayerPhysicalSync(payload); err == nil {
			cs.applyPhysSync(sync)
		}
	case replication.ActionBulletSpawnBatch:
		if batch, err := replication.UnmarshalBulletSpawnBatch(payload); err == nil {
			cs.applyBulletSpawns(batch)
		}
	case replication.ActionPlayerConfigSync:
		if sync, err := replication.UnmarshalPlayerConfigSync(payload); err == nil {
			cs.applyConfigSync(sync)
		}
	}
}

// applyPhysSync reconciles a server state report into the prediction
// engine: the locally-controlled player only accepts position and
// velocity when the server has caught up with our event counter, while
// remote players are always smoothed toward the server values and
// their position traces written from the smoothed result.
func (cs *ClientSession) applyPhysSync(sync replication.PlayerPhysicalSync) {
	e := cs.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[sync.PlayerName]
	if !ok {
		// First sight of a remote player: materialise it.
		var err error
		p, err = e.addPlayerLocked(sync.PlayerName, -1, false)
		if err != nil {
			return
		}
	}

	serverPos := vecmath.Vector{X: float64(sync.Position.X), Y: float64(sync.Position.Y)}
	serverVel := vecmath.Vector{X: float64(sync.Velocity.X), Y: float64(sync.Velocity.Y)}

	if sync.PlayerName == cs.playerName {
		localPos := p.Position(e.sim)
		localVel := p.Velocity(e.sim)
		pos, vel, applied := replication.ReconcileLocal(
			cs.eventCounter, sync.EventCounter, localPos, serverPos, localVel, serverVel, cs.smoothing)
		// Weapon and HP reconcile regardless of counter staleness.
		if w, ok := entity.GetWeapon(sync.WeaponID); ok {
			p.Weapon = w
		}
		p.HP = float64(sync.HP)
		if !applied {
			return
		}
		cs.setPlayerPhysical(p, pos, vel)
		return
	}

	smoothed := replication.ReconcileRemote(p.Position(e.sim), serverPos, cs.smoothing)
	cs.setPlayerPhysical(p, smoothed, serverVel)
	p.FacingLeft = sync.FacingLeft
	p.HP = float64(sync.HP)
	p.Trace.Record(time.Now(), smoothed)
}

func (cs *ClientSession) setPlayerPhysical(p *entity.Player, pos, vel vecmath.Vector) {
	prim, ok := cs.engine.sim.Store().Get(p.GroupID)
	if !ok {
		return
	}
	b := prim.BodyPtr()
	b.Position = pos
	speed := vel.Length()
	if speed > 1e-9 {
		b.Dir = vel.Normalized()
	}
	b.Velocity = speed
	if g, ok := prim.(*physics.Group); ok {
		cs.engine.sim.Store().SyncGroupTransform(g)
	}
}

// applyBulletSpawns materialises bullets fired elsewhere. Our own
// spawns come back too (the server keeps the paths symmetric); those
// are skipped since prediction already spawned them.
func (cs *ClientSession) applyBulletSpawns(batch replication.BulletSpawnBatch) {
	e := cs.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range batch.Bullets {
		if b.OwnerName == cs.playerName {
			continue
		}
		origin := vecmath.Vector{X: float64(b.Origin.X), Y: float64(b.Origin.Y)}
		vel := vecmath.Vector{X: float64(b.Velocity.X), Y: float64(b.Velocity.Y)}
		var tracer [3]byte
		copy(tracer[:], b.TracerColor[:])
		ref := -1
		if r, ok := e.refByName[b.OwnerName]; ok {
			ref = r
		}
		if b.IsKick {
			e.bullets.FireInstantKick(origin, vel, int(b.Group), tracer, ref)
		} else {
			e.bullets.Fire(origin, vel, float64(b.Mass), int(b.Group), tracer, 2000, ref)
		}
	}
}

func (cs *ClientSession) applyConfigSync(sync replication.PlayerConfigSync) {
	e := cs.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[sync.PlayerName]
	if !ok {
		return
	}
	if w, ok := entity.GetWeapon(sync.WeaponID); ok {
		p.Weapon = w
	}
	p.GroupTag = int(sync.GroupTag)
	p.TracerColor = sync.TracerColor
}
