package game

import (
	"testing"
	"time"

	"deadfall/internal/ai"
	"deadfall/internal/config"
	"deadfall/internal/physics"
	"deadfall/internal/vecmath"
)

func testEngine() *Engine {
	cfg := config.AppConfig{
		Simulation: config.DefaultSimulation(),
		Network:    config.DefaultNetwork(),
		AI:         config.DefaultAI(),
		Server:     config.DefaultServer(),
	}
	return NewEngine(cfg)
}

const testDT = 1.0 / 60.0

func TestPlayerFallsAndLandsOnPlatform(t *testing.T) {
	e := testEngine()
	p, err := e.AddPlayer("faller", -1)
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}

	// Spawn is above the ground platform; gravity must bring the player
	// down onto it within a few seconds of simulated time.
	for i := 0; i < 600; i++ {
		e.Tick(testDT)
		if p.YLocked(e.Sim()) {
			break
		}
	}
	if !p.YLocked(e.Sim()) {
		t.Fatal("player never landed")
	}

	// Feet (group Y + half height) must rest exactly on some platform
	// whose X span covers the player.
	pos := p.Position(e.Sim())
	feet := pos.Y + 32
	rested := false
	for _, plat := range e.Level().Platforms {
		if pos.X >= plat.X && pos.X <= plat.Right() && feet > plat.Y-1e-3 && feet < plat.Y+1e-3 {
			rested = true
		}
	}
	if !rested {
		t.Fatalf("feet at %.4f rest on no platform (pos %v)", feet, pos)
	}
	if vy := p.Velocity(e.Sim()).Y; vy != 0 {
		t.Fatalf("y_locked but vy = %v", vy)
	}
	if p.AvailableJumps != p.MaxJumps {
		t.Fatalf("jumps not reset on landing: %d", p.AvailableJumps)
	}
}

func TestJumpUnlocksAndConsumesJump(t *testing.T) {
	e := testEngine()
	p, _ := e.AddPlayer("jumper", -1)
	for i := 0; i < 600 && !p.YLocked(e.Sim()); i++ {
		e.Tick(testDT)
	}
	if !p.YLocked(e.Sim()) {
		t.Fatal("player never landed")
	}

	p.Input.Jump = true
	e.Tick(testDT)

	if p.YLocked(e.Sim()) {
		t.Fatal("still y_locked after jump")
	}
	if vy := p.Velocity(e.Sim()).Y; vy >= 0 {
		t.Fatalf("vy = %v, want upward (negative)", vy)
	}
	if p.AvailableJumps != p.MaxJumps-1 {
		t.Fatalf("AvailableJumps = %d, want %d", p.AvailableJumps, p.MaxJumps-1)
	}
}

func TestJumpDownDropsThroughPlatform(t *testing.T) {
	e := testEngine()
	e.SetLevel(&Level{
		Name:  "two-floor",
		Spawn: vecmath.Vector{X: 400, Y: 100},
		Platforms: []physics.Platform{
			{Name: "upper", X: 200, Y: 200, Len: 400},
			{Name: "lower", X: 200, Y: 500, Len: 400},
		},
	})
	p, _ := e.AddPlayer("dropper", -1)
	for i := 0; i < 600 && !p.YLocked(e.Sim()); i++ {
		e.Tick(testDT)
	}
	if !p.YLocked(e.Sim()) {
		t.Fatal("player never landed on upper platform")
	}
	upperY := p.Position(e.Sim()).Y

	p.Input.JumpDown = true
	for i := 0; i < 600; i++ {
		e.Tick(testDT)
		if p.YLocked(e.Sim()) && p.Position(e.Sim()).Y > upperY+100 {
			break
		}
	}
	pos := p.Position(e.Sim())
	if !p.YLocked(e.Sim()) || pos.Y < upperY+100 {
		t.Fatalf("player did not reach lower platform, at %v (upper y %v)", pos, upperY)
	}
}

func TestFallPastKillPlaneRespawns(t *testing.T) {
	e := testEngine()
	// No platforms under the spawn: the player free-falls past the kill
	// plane and must come back at the spawn point with a death counted.
	e.SetLevel(&Level{
		Name:      "void",
		Spawn:     vecmath.Vector{X: 400, Y: 200},
		Platforms: []physics.Platform{{Name: "far", X: 5000, Y: 300, Len: 100}},
	})
	p, _ := e.AddPlayer("victim", -1)

	for i := 0; i < 2000 && p.Deaths == 0; i++ {
		e.Tick(testDT)
	}
	if p.Deaths != 1 {
		t.Fatalf("Deaths = %d, want 1", p.Deaths)
	}
	if !p.Alive {
		t.Fatal("player not respawned")
	}
	pos := p.Position(e.Sim())
	if pos.Sub(e.Level().Spawn).Length() > 50 {
		t.Fatalf("respawned at %v, spawn is %v", pos, e.Level().Spawn)
	}
}

func TestYLockedImpliesZeroVerticalVelocityInvariant(t *testing.T) {
	e := testEngine()
	p, _ := e.AddPlayer("walker", -1)
	p.Input.MoveRight = true
	for i := 0; i < 900; i++ {
		e.Tick(testDT)
		if p.YLocked(e.Sim()) {
			if vy := p.Velocity(e.Sim()).Y; vy != 0 {
				t.Fatalf("tick %d: y_locked with vy = %v", i, vy)
			}
		}
	}
}

func TestAddPlayerRejectsDuplicatesAndLimit(t *testing.T) {
	e := testEngine()
	if _, err := e.AddPlayer("dup", -1); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, err := e.AddPlayer("dup", -1); err == nil {
		t.Fatal("duplicate join accepted")
	}
	for i := 1; i < MaxPlayers; i++ {
		name := "p" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		if _, err := e.AddPlayer(name, -1); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}
	if _, err := e.AddPlayer("overflow", -1); err == nil {
		t.Fatal("join past MaxPlayers accepted")
	}
}

func TestSetLevelRemovesPriorWalls(t *testing.T) {
	e := testEngine()
	if len(e.Level().Walls) == 0 {
		t.Fatal("default level has no walls to tear down")
	}

	e.SetLevel(&Level{
		Name:      "bare",
		Spawn:     vecmath.Vector{X: 100, Y: 100},
		Platforms: []physics.Platform{{Name: "floor", X: 0, Y: 400, Len: 600}},
	})
	e.Tick(testDT) // reap the marked wall primitives

	for _, prim := range e.Sim().Store().All() {
		if line, ok := prim.(*physics.Line); ok {
			t.Fatalf("stale wall line survived the level swap at %v", line.Position)
		}
	}
}

func TestSnapshotPublishedEveryTick(t *testing.T) {
	e := testEngine()
	e.AddPlayer("alpha", 2)

	e.Tick(testDT)
	snap1 := e.Snapshot()
	if snap1 == nil {
		t.Fatal("no snapshot after first tick")
	}
	pp, ok := snap1.Players["alpha"]
	if !ok {
		t.Fatal("snapshot missing player")
	}
	if pp.Group != 2 {
		t.Fatalf("snapshot group = %d, want 2", pp.Group)
	}
	if len(snap1.Platforms) != len(e.Level().Platforms) {
		t.Fatalf("snapshot has %d platforms, level has %d", len(snap1.Platforms), len(e.Level().Platforms))
	}
	if len(snap1.Adjacency) != len(snap1.Platforms) {
		t.Fatalf("adjacency is %dx?, want %d rows", len(snap1.Adjacency), len(snap1.Platforms))
	}

	e.Tick(testDT)
	snap2 := e.Snapshot()
	if snap2 == snap1 || snap2.Sequence <= snap1.Sequence {
		t.Fatal("snapshot not republished")
	}
}

func TestBotActionsDriveInput(t *testing.T) {
	e := testEngine()
	p, err := e.AddBot("bot", -1, "easy")
	if err != nil {
		t.Fatalf("AddBot: %v", err)
	}
	op, ok := e.AIWorker().Operator("bot")
	if !ok {
		t.Fatal("no operator registered for bot")
	}

	// Inject a known action stream the way a scripted operator would;
	// the next tick's drain phase must fold it into the input record,
	// last writer winning.
	op.Enqueue(ai.ActionMoveLeft)
	op.Enqueue(ai.ActionMoveRight)
	op.Enqueue(ai.ActionJump)
	e.Tick(testDT)

	if !p.Input.MoveRight || p.Input.MoveLeft {
		t.Fatalf("input = %+v, want move_right", p.Input)
	}
	if p.AvailableJumps == p.MaxJumps {
		t.Fatal("queued jump was not applied")
	}
}

func TestJoinTeamAssignsGroupAndTracer(t *testing.T) {
	e := testEngine()
	a, _ := e.AddPlayer("red-one", -1)
	b, _ := e.AddPlayer("red-two", -1)

	id := e.CreateTeam("red")
	if err := e.JoinTeam("red-one", id); err != nil {
		t.Fatalf("JoinTeam: %v", err)
	}
	if err := e.JoinTeam("red-two", id); err != nil {
		t.Fatalf("JoinTeam: %v", err)
	}
	if a.GroupTag != id || b.GroupTag != id {
		t.Fatalf("group tags = %d/%d, want %d", a.GroupTag, b.GroupTag, id)
	}
	team, _ := e.Teams().Get(id)
	if a.TracerColor != team.Color {
		t.Fatalf("tracer %v, want team colour %v", a.TracerColor, team.Color)
	}
	if err := e.JoinTeam("ghost", id); err == nil {
		t.Fatal("JoinTeam accepted an unknown player")
	}
	if err := e.JoinTeam("red-one", 999); err == nil {
		t.Fatal("JoinTeam accepted an unknown team")
	}
}

func TestEngineStartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("timing-dependent")
	}
	e := testEngine()
	e.AddPlayer("solo", -1)
	e.Start()
	time.Sleep(150 * time.Millisecond)
	e.Stop()
	if e.TickCount() == 0 {
		t.Fatal("no ticks retired while running")
	}
}
