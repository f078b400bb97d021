// Package game is the root of the simulation core: it owns the physic
// simulator, the entity tables, the AI worker and (on the server) the
// replication endpoint, and drives the per-tick control flow: poll
// inbound actions, apply remote state, drain AI action queues, step the
// simulator, run post-step work, publish the world snapshot, emit
// outbound replication actions.
package game

import (
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"

	"deadfall/internal/ai"
	"deadfall/internal/config"
	"deadfall/internal/entity"
	"deadfall/internal/metrics"
	"deadfall/internal/physics"
	"deadfall/internal/spatial"
	"deadfall/internal/vecmath"
)

// MaxPlayers bounds the entity table; joins past this are rejected.
const MaxPlayers = 32

// maxAIActionsPerTick bounds how many queued actions one operator may
// apply in a single tick, so a backlogged queue cannot starve the loop.
const maxAIActionsPerTick = 16

// platformHopDistance is the maximum centre-to-centre distance at which
// two platforms count as adjacent in the AI's precomputed distance map.
const platformHopDistance = 620.0

// botState is the engine-side control record for an AI-operated player.
type botState struct {
	difficulty string
	longShot   bool
}

// pendingSpawn is a bullet fired this tick, queued for the replication
// endpoint's outbound bullet-spawn batch.
type pendingSpawn struct {
	Bullet *entity.Bullet
	Origin vecmath.Vector
	Vel    vecmath.Vector
	Mass   float64
	Owner  string
	IsKick bool
}

// Engine is the game root. All simulation state is mutated on the tick
// goroutine only; the mutex exists for the read surfaces (admin API,
// tests) and for join/leave calls arriving from other goroutines.
type Engine struct {
	mu sync.RWMutex

	cfg config.AppConfig

	sim     *physics.Simulator
	level   *Level
	wallIDs []physics.ID // the active level's wall primitives, torn down on SetLevel

	players   map[string]*entity.Player
	refs      []string // userRef -> player name; the entity table
	refByName map[string]int
	bots      map[string]*botState

	bullets  *entity.BulletManager
	adjBoxes *entity.AdjustmentBoxManager
	teams    *entity.TeamManager
	board    *entity.Leaderboard

	aiWorker *ai.Worker
	eventLog *EventLog
	net      *Endpoint // nil when running headless or client-side

	platformInfos []ai.PlatformInfo
	adjacency     [][]float64
	latest        *ai.Snapshot
	snapSeq       uint64

	pendingSpawns []pendingSpawn

	tickCount uint64
	simClock  float64
	running   bool
	ticker    *time.Ticker
	stopChan  chan struct{}
	lastTick  time.Time

	// OnKill is invoked on the tick goroutine after a confirmed kill.
	OnKill func(killer, victim *entity.Player)

	Logger *log.Logger
}

// NewEngine wires the simulation core together: simulator, entity
// managers, AI worker, event log and combat callbacks, on the default
// level.
func NewEngine(cfg config.AppConfig) *Engine {
	sim := physics.NewSimulator()
	sim.Gravity = vecmath.Vector{X: 0, Y: cfg.Simulation.Gravity}

	e := &Engine{
		cfg:       cfg,
		sim:       sim,
		players:   make(map[string]*entity.Player),
		refByName: make(map[string]int),
		bots:      make(map[string]*botState),
		bullets:   entity.NewBulletManager(sim),
		adjBoxes:  entity.NewAdjustmentBoxManager(sim),
		teams:     entity.NewTeamManager(),
		board:     entity.NewLeaderboard(),
		aiWorker:  ai.NewWorker(cfg.Simulation.RPS),
		eventLog:  NewEventLog(),
		stopChan:  make(chan struct{}),
		Logger:    log.Default(),
	}
	e.registerCombat()
	e.SetLevel(DefaultLevel())
	return e
}

// Sim exposes the simulator for tests and for the replication endpoint.
func (e *Engine) Sim() *physics.Simulator { return e.sim }

// Level returns the active level.
func (e *Engine) Level() *Level { return e.level }

// Teams returns the group-tag registry.
func (e *Engine) Teams() *entity.TeamManager { return e.teams }

// EventLog returns the match audit trail.
func (e *Engine) EventLog() *EventLog { return e.eventLog }

// AIWorker returns the background decision worker.
func (e *Engine) AIWorker() *ai.Worker { return e.aiWorker }

// AttachEndpoint binds a replication endpoint; its Poll/Flush run
// inside every tick from then on.
func (e *Engine) AttachEndpoint(ep *Endpoint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.net = ep
}

// SetLevel replaces the active level and recomputes the AI platform
// distance map. The previous level's wall primitives are torn down
// first; existing players keep their primitives and callers are
// expected to respawn them afterwards.
func (e *Engine) SetLevel(lvl *Level) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range e.wallIDs {
		e.sim.RemovePrimitive(id)
	}
	e.level = lvl
	e.wallIDs = lvl.Apply(e.sim)

	e.platformInfos = make([]ai.PlatformInfo, 0, len(lvl.Platforms))
	for _, p := range lvl.Platforms {
		e.platformInfos = append(e.platformInfos, ai.PlatformInfo{Name: p.Name, X: p.X, Y: p.Y, Len: p.Len})
	}
	e.adjacency = ai.BuildAdjacency(e.platformInfos, platformHopDistance)
}

// AddPlayer joins a human-controlled player at the level spawn point.
func (e *Engine) AddPlayer(name string, groupTag int) (*entity.Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addPlayerLocked(name, groupTag, false)
}

// AddBot joins an AI-controlled player and binds a strategy of the
// given difficulty to it on the worker.
func (e *Engine) AddBot(name string, groupTag int, difficulty string) (*entity.Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.addPlayerLocked(name, groupTag, true)
	if err != nil {
		return nil, err
	}
	strat := ai.NewStrategy(difficulty, e.cfg.Simulation.WorldMinX, e.cfg.Simulation.WorldMaxX)
	e.aiWorker.AddOperator(ai.NewOperator(name, strat))
	e.bots[name] = &botState{difficulty: difficulty}
	return p, nil
}

func (e *Engine) addPlayerLocked(name string, groupTag int, bot bool) (*entity.Player, error) {
	if _, exists := e.players[name]; exists {
		return nil, errors.Errorf("game: player %q already joined", name)
	}
	if len(e.players) >= MaxPlayers {
		return nil, errors.Errorf("game: player limit %d reached", MaxPlayers)
	}
	ref := len(e.refs)
	p := entity.NewPlayer(e.sim, name, e.level.Spawn, ref)
	p.GroupTag = groupTag
	e.players[name] = p
	e.refs = append(e.refs, name)
	e.refByName[name] = ref
	e.board.Record(name, 0)

	e.eventLog.EmitSimple(EventTypePlayerJoin, e.tickCount, name, JoinPayload{
		PlayerName: name, GroupTag: groupTag,
		SpawnX: e.level.Spawn.X, SpawnY: e.level.Spawn.Y, Bot: bot,
	})
	metrics.SetPlayerCount(len(e.players))
	return p, nil
}

// RemovePlayer tears a player down: primitives, AI operator,
// leaderboard entry and entity-table slot (the ref stays allocated so
// live bullets keep a valid owner index).
func (e *Engine) RemovePlayer(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[name]
	if !ok {
		return
	}
	for _, id := range p.LineIDs {
		e.sim.RemovePrimitive(id)
	}
	e.sim.RemovePrimitive(p.GroupID)
	e.aiWorker.RemoveOperator(name)
	e.board.Remove(name)
	delete(e.players, name)
	delete(e.bots, name)

	e.eventLog.EmitSimple(EventTypePlayerLeave, e.tickCount, name, nil)
	metrics.SetPlayerCount(len(e.players))
}

// CreateTeam allocates a new group tag.
func (e *Engine) CreateTeam(name string) int {
	return e.teams.CreateTeam(name)
}

// JoinTeam moves a player onto a team: the team becomes the player's
// friendly-fire group and its colour becomes the player's tracer.
func (e *Engine) JoinTeam(playerName string, teamID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players[playerName]
	if !ok {
		return errors.Errorf("game: no such player %q", playerName)
	}
	team, ok := e.teams.Get(teamID)
	if !ok {
		return errors.Errorf("game: no such team %d", teamID)
	}
	if p.GroupTag >= 0 {
		e.teams.Leave(p.GroupTag, playerName)
	}
	if !e.teams.Join(teamID, playerName) {
		return errors.Errorf("game: team %d is full", teamID)
	}
	p.GroupTag = teamID
	p.TracerColor = team.Color
	return nil
}

// Player looks a player up by name.
func (e *Engine) Player(name string) (*entity.Player, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.players[name]
	return p, ok
}

// playerByRef resolves an entity-table index recorded on a primitive.
// Lock must be held.
func (e *Engine) playerByRef(ref int) (*entity.Player, bool) {
	if ref < 0 || ref >= len(e.refs) {
		return nil, false
	}
	p, ok := e.players[e.refs[ref]]
	return p, ok
}

// Start spawns the tick goroutine and the AI worker.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.lastTick = time.Now()
	e.mu.Unlock()

	e.aiWorker.Start()
	e.ticker = time.NewTicker(time.Duration(float64(time.Second) / e.cfg.Simulation.RPS))
	go func() {
		for {
			select {
			case <-e.ticker.C:
				e.tick()
			case <-e.stopChan:
				return
			}
		}
	}()
	e.Logger.Printf("[engine] started at %.0f rps on level %q", e.cfg.Simulation.RPS, e.level.Name)
}

// Stop halts the tick loop, joins the AI worker and flushes the event
// log. Pending reliable sends fail fast via the endpoint's teardown.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	e.ticker.Stop()
	close(e.stopChan)
	e.aiWorker.Stop()
	if e.net != nil {
		e.net.Teardown()
	}
	e.eventLog.Stop()
	e.Logger.Printf("[engine] stopped after %d ticks", e.tickCount)
}

func (e *Engine) tick() {
	start := time.Now()
	e.mu.Lock()
	dt := (1.0 / e.cfg.Simulation.RPS) * e.cfg.Simulation.TimeSpeed
	e.stepLocked(dt, start)
	e.mu.Unlock()
	metrics.RecordTick(time.Since(start))
}

// Tick runs exactly one fixed step synchronously. Tests and the client
// loop drive the engine with this instead of Start.
func (e *Engine) Tick(dt float64) {
	now := time.Now()
	e.mu.Lock()
	e.stepLocked(dt, now)
	e.mu.Unlock()
}

// stepLocked runs one tick's control flow, in order.
func (e *Engine) stepLocked(dt float64, now time.Time) {
	e.tickCount++
	e.simClock += dt

	// 1-2. Poll inbound actions, apply remote state.
	if e.net != nil {
		e.net.Poll(e, now)
	}

	// 3. Drain AI action queues into input records.
	e.drainAILocked()

	// Entity-layer input integration (acceleration model, trace,
	// fall-death detection) runs just before the physic step.
	for _, p := range e.players {
		p.Update(e.sim, dt, now)
	}

	// 4. Step the simulator. Collision callbacks, platform resolution,
	// manager sweeps and reaping all run inside.
	e.sim.StepNow(dt)

	// 5. Post-step: bullet spawns, respawns, bounds, one-shot inputs.
	e.fireLocked(now)
	e.respawnLocked()
	e.clampWorldLocked()
	for _, p := range e.players {
		p.Input.Jump = false
		p.Input.JumpDown = false
	}

	// 6. Publish the new world snapshot.
	snap := e.buildSnapshotLocked()
	e.latest = snap
	e.aiWorker.Publish(snap)

	// 7. Emit outbound replication actions.
	if e.net != nil {
		e.net.Flush(e, now)
	}
}

// drainAILocked translates queued abstract actions into each bot's
// input record. Actions produced against snapshot N are applied here,
// before simulation step N+1.
func (e *Engine) drainAILocked() {
	for name, bot := range e.bots {
		p, ok := e.players[name]
		if !ok {
			continue
		}
		for _, a := range e.aiWorker.DrainActions(name, maxAIActionsPerTick) {
			switch a {
			case ai.ActionMoveLeft:
				p.Input.MoveLeft, p.Input.MoveRight = true, false
			case ai.ActionMoveRight:
				p.Input.MoveLeft, p.Input.MoveRight = false, true
			case ai.ActionStop:
				p.Input.MoveLeft, p.Input.MoveRight = false, false
			case ai.ActionJump:
				p.Input.Jump = true
			case ai.ActionJumpDown:
				p.Input.JumpDown = true
			case ai.ActionShot:
				p.Input.Fire = true
			case ai.ActionRelax:
				p.Input.Fire = false
			case ai.ActionEnableLongShot:
				bot.longShot = true
			case ai.ActionDisableLongShot:
				bot.longShot = false
			}
		}
		p.EventCounter++
	}
}

// fireLocked spawns bullets for every player holding fire whose weapon
// cooldown has elapsed, and queues the spawns for replication.
func (e *Engine) fireLocked(now time.Time) {
	for name, p := range e.players {
		if !p.Input.Fire || !p.Alive || !p.CanFire() {
			continue
		}
		w := p.Weapon
		speed := w.BulletSpeed
		if bot, ok := e.bots[name]; ok && bot.longShot {
			speed *= 1.25
		}
		origin := p.BarrelPosition(e.sim)
		vel := p.FacingDir().Scale(speed)
		b := e.bullets.Fire(origin, vel, w.BulletMass, p.GroupTag, p.TracerColor, w.MaxTravel, e.refByName[name])
		p.LastFireAt = p.SimClock

		e.pendingSpawns = append(e.pendingSpawns, pendingSpawn{
			Bullet: b, Origin: origin, Vel: vel, Mass: w.BulletMass, Owner: name,
		})
		// Fire is level-triggered for humans (cleared by their next
		// input delta) and one-shot for bots.
		if _, isBot := e.bots[name]; isBot {
			p.Input.Fire = false
		}
	}
}

func (e *Engine) respawnLocked() {
	for name, p := range e.players {
		if p.Alive {
			continue
		}
		p.Respawn(e.sim)
		e.eventLog.EmitSimple(EventTypeRespawn, e.tickCount, name, RespawnPayload{
			PlayerName: name, SpawnX: p.SpawnPoint.X, SpawnY: p.SpawnPoint.Y,
		})
	}
}

// clampWorldLocked keeps players inside the configured world X range.
// Vertical escape is handled by the fall-death rule, not a clamp.
func (e *Engine) clampWorldLocked() {
	minX, maxX := e.cfg.Simulation.WorldMinX, e.cfg.Simulation.WorldMaxX
	if maxX <= minX {
		return
	}
	for _, p := range e.players {
		pos := p.Position(e.sim)
		clamped := pos
		if clamped.X < minX {
			clamped.X = minX
		} else if clamped.X > maxX {
			clamped.X = maxX
		}
		if clamped != pos {
			prim, ok := e.sim.Store().Get(p.GroupID)
			if !ok {
				continue
			}
			g := prim.(*physics.Group)
			g.Position = clamped
			e.sim.Store().SyncGroupTransform(g)
		}
	}
}

// Snapshot returns the most recently published world snapshot; nil
// before the first tick. Implements adminapi.StateProvider.
func (e *Engine) Snapshot() *ai.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}

// Leaderboard returns the current kill ranking, best first. Implements
// adminapi.StateProvider.
func (e *Engine) Leaderboard() []spatial.SkipListEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.board.Top(MaxPlayers)
}

// takePendingSpawnsLocked returns and clears the bullets fired since
// the last call. The server endpoint drains this into its broadcast; a
// client session drains it into its outbound spawn batch.
func (e *Engine) takePendingSpawnsLocked() []pendingSpawn {
	out := e.pendingSpawns
	e.pendingSpawns = nil
	return out
}

// TickCount returns how many fixed steps have been retired.
func (e *Engine) TickCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickCount
}
