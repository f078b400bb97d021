package game

import (
	"testing"
	"time"

	"deadfall/internal/entity"
	"deadfall/internal/physics"
	"deadfall/internal/vecmath"
)

// flatEngine returns an engine on a wide single-platform level with
// gravity off, so bullets fly straight and nothing falls during a test.
func flatEngine() *Engine {
	e := testEngine()
	e.Sim().Gravity = vecmath.Vector{}
	e.SetLevel(&Level{
		Name:      "flat",
		Spawn:     vecmath.Vector{X: 100, Y: 200},
		Platforms: []physics.Platform{{Name: "floor", X: -1000, Y: 5000, Len: 8000}},
	})
	return e
}

func movePlayer(e *Engine, p *entity.Player, at vecmath.Vector) {
	prim, _ := e.Sim().Store().Get(p.GroupID)
	g := prim.(*physics.Group)
	g.Position = at
	e.Sim().Store().SyncGroupTransform(g)
}

func TestBulletHitDamagesAndRemovesBullet(t *testing.T) {
	e := flatEngine()
	shooter, _ := e.AddPlayer("shooter", -1)
	victim, _ := e.AddPlayer("victim", -1)

	movePlayer(e, shooter, vecmath.Vector{X: 0, Y: 200})
	movePlayer(e, victim, vecmath.Vector{X: 300, Y: 200})

	hpBefore := victim.HP
	e.bullets.Fire(vecmath.Vector{X: 40, Y: 200}, vecmath.Vector{X: 900, Y: 0},
		0.2, shooter.GroupTag, shooter.TracerColor, 2000, e.refByName["shooter"])

	for i := 0; i < 60 && e.bullets.Len() > 0; i++ {
		e.Sim().StepNow(testDT)
	}
	if victim.HP >= hpBefore {
		t.Fatalf("victim HP %v, want < %v", victim.HP, hpBefore)
	}
	if !victim.OnHit {
		t.Fatal("on-hit flag not set")
	}
	if e.bullets.Len() != 0 {
		t.Fatalf("bullet survived the hit, %d live", e.bullets.Len())
	}
}

func TestFriendlyFireSuppressedForSameGroup(t *testing.T) {
	e := flatEngine()
	shooter, _ := e.AddPlayer("blue-one", 7)
	mate, _ := e.AddPlayer("blue-two", 7)

	movePlayer(e, shooter, vecmath.Vector{X: 0, Y: 200})
	movePlayer(e, mate, vecmath.Vector{X: 300, Y: 200})

	hpBefore := mate.HP
	e.bullets.Fire(vecmath.Vector{X: 40, Y: 200}, vecmath.Vector{X: 900, Y: 0},
		0.2, shooter.GroupTag, shooter.TracerColor, 2000, e.refByName["blue-one"])

	for i := 0; i < 60; i++ {
		e.Sim().StepNow(testDT)
	}
	if mate.HP != hpBefore {
		t.Fatalf("friendly fire dealt %v damage", hpBefore-mate.HP)
	}
}

func TestKillUpdatesCountersAndLeaderboard(t *testing.T) {
	e := flatEngine()
	shooter, _ := e.AddPlayer("ace", -1)
	victim, _ := e.AddPlayer("mark", -1)

	movePlayer(e, shooter, vecmath.Vector{X: 0, Y: 200})
	movePlayer(e, victim, vecmath.Vector{X: 300, Y: 200})
	victim.HP = 1

	e.bullets.Fire(vecmath.Vector{X: 40, Y: 200}, vecmath.Vector{X: 900, Y: 0},
		0.2, shooter.GroupTag, shooter.TracerColor, 2000, e.refByName["ace"])
	for i := 0; i < 60 && victim.Deaths == 0; i++ {
		e.Tick(testDT)
	}

	if shooter.Kills != 1 {
		t.Fatalf("shooter kills = %d, want 1", shooter.Kills)
	}
	if victim.Deaths != 1 {
		t.Fatalf("victim deaths = %d, want 1", victim.Deaths)
	}
	if !victim.Alive {
		t.Fatal("victim not respawned by the post-step pass")
	}
	top := e.Leaderboard()
	if len(top) == 0 || top[0].Key != "ace" || top[0].Score != 1 {
		t.Fatalf("leaderboard top = %+v, want ace with score 1", top)
	}
}

func TestInstantKickIsLethal(t *testing.T) {
	e := flatEngine()
	shooter, _ := e.AddPlayer("kicker", -1)
	victim, _ := e.AddPlayer("kicked", -1)

	movePlayer(e, shooter, vecmath.Vector{X: 0, Y: 200})
	movePlayer(e, victim, vecmath.Vector{X: 400, Y: 200})

	e.bullets.FireInstantKick(vecmath.Vector{X: 40, Y: 200}, vecmath.Vector{X: 1, Y: 0},
		shooter.GroupTag, shooter.TracerColor, e.refByName["kicker"])
	for i := 0; i < 5; i++ {
		e.Sim().StepNow(testDT)
	}

	if victim.Alive {
		t.Fatalf("victim survived an instant kick with HP %v", victim.HP)
	}
}

// TestLagCompensatedHit: the target has moved
// since the shooter's view was rendered, so the shot aimed at the stale
// position only connects through the adjustment box re-materialising
// the historical shape — and without the box the same shot misses.
func TestLagCompensatedHit(t *testing.T) {
	e := flatEngine()
	shooter, _ := e.AddPlayer("lagger", -1)
	target, _ := e.AddPlayer("mover", -1)

	movePlayer(e, shooter, vecmath.Vector{X: 0, Y: 200})
	// The target WAS at (500, 200) and has since dropped well below the
	// shooter's line of fire.
	now := time.Now()
	target.Trace.Record(now.Add(-90*time.Millisecond), vecmath.Vector{X: 500, Y: 200})
	target.Trace.Record(now.Add(-45*time.Millisecond), vecmath.Vector{X: 500, Y: 200})
	movePlayer(e, target, vecmath.Vector{X: 520, Y: 400})
	target.Trace.Record(now, vecmath.Vector{X: 520, Y: 400})

	// Control shot with no box: crosses the historical position but the
	// target is not there anymore.
	hpBefore := target.HP
	e.bullets.Fire(vecmath.Vector{X: 40, Y: 200}, vecmath.Vector{X: 1000, Y: 0},
		0.2, shooter.GroupTag, shooter.TracerColor, 2000, e.refByName["lagger"])
	for i := 0; i < 200 && e.bullets.Len() > 0; i++ {
		e.Sim().StepNow(testDT)
	}
	if e.bullets.Len() != 0 {
		t.Fatal("control bullet never expired")
	}
	if target.HP != hpBefore {
		t.Fatalf("control shot hit for %v without a box", hpBefore-target.HP)
	}

	// Compensated shot: the server samples the trace half-RTT ago and
	// spawns the box where the shooter's screen showed the target.
	e.spawnAdjustmentBoxesLocked("lagger", now.Add(-50*time.Millisecond))
	e.bullets.Fire(vecmath.Vector{X: 40, Y: 200}, vecmath.Vector{X: 1000, Y: 0},
		0.2, shooter.GroupTag, shooter.TracerColor, 2000, e.refByName["lagger"])

	hit := false
	for i := 0; i < 120; i++ {
		e.Sim().StepNow(testDT)
		if target.HP < hpBefore {
			hit = true
			break
		}
	}
	if !hit {
		t.Fatal("compensated shot missed the adjustment box")
	}
	e.Sim().StepNow(testDT)
	e.Sim().StepNow(testDT)
	if e.bullets.Len() != 0 {
		t.Fatal("bullet not consumed by the compensated hit")
	}
}

// TestAdjustmentBoxSurvivesExactlyOneStep pins the expiry rule: gravity
// gives the box a displacement on its first step, and the sweep reaps
// it on the next.
func TestAdjustmentBoxSurvivesExactlyOneStep(t *testing.T) {
	e := testEngine() // default gravity on
	e.AddPlayer("ghost", -1)

	box := e.adjBoxes.Spawn(e.refByName["ghost"], vecmath.Vector{X: 300, Y: 100})
	if _, ok := e.adjBoxes.Get(box.GroupID); !ok {
		t.Fatal("box not registered")
	}

	e.Sim().StepNow(testDT) // box falls a little: displacement now non-zero
	e.Sim().StepNow(testDT) // sweep marks it, reap evicts it
	e.Sim().StepNow(testDT)
	if _, ok := e.Sim().Store().Get(box.GroupID); ok {
		t.Fatal("box primitive still alive after its one-step life")
	}
}
