package ai

import (
	"testing"

	"deadfall/internal/vecmath"
)

func testSnapshot() *Snapshot {
	platforms := []PlatformInfo{
		{Name: "a", X: 0, Y: 100, Len: 100},
		{Name: "b", X: 300, Y: 100, Len: 100},
		{Name: "c", X: 600, Y: 100, Len: 100},
	}
	adj := BuildAdjacency(platforms, 400)
	return NewSnapshot(1, platforms, adj, PhysicsParams{Gravity: vecmath.Vector{Y: 980}}, map[string]PlayerParams{}, nil)
}

func TestAStarPathDirectHop(t *testing.T) {
	snap := testSnapshot()
	path := AStarPath(snap, "a", "b")
	if len(path) != 2 || path[0] != "a" || path[1] != "b" {
		t.Fatalf("path = %v, want [a b]", path)
	}
}

func TestAStarPathMultiHop(t *testing.T) {
	snap := testSnapshot()
	path := AStarPath(snap, "a", "c")
	if len(path) != 3 || path[0] != "a" || path[2] != "c" {
		t.Fatalf("path = %v, want [a b c]", path)
	}
}

func TestAStarPathUnreachable(t *testing.T) {
	platforms := []PlatformInfo{
		{Name: "a", X: 0, Y: 100, Len: 50},
		{Name: "far", X: 100000, Y: 100, Len: 50},
	}
	snap := NewSnapshot(1, platforms, BuildAdjacency(platforms, 10), PhysicsParams{}, map[string]PlayerParams{}, nil)
	if path := AStarPath(snap, "a", "far"); path != nil {
		t.Fatalf("path = %v, want nil (unreachable)", path)
	}
}

// TestMovePlannerEqualPriorityLastWriterWins pins down the tie-break
// question: among sub-goals assigned the same priority, the last one
// registered wins.
func TestMovePlannerEqualPriorityLastWriterWins(t *testing.T) {
	var g moveGoals
	g.vote(10, ActionMoveLeft)
	g.vote(10, ActionMoveRight)
	if got := g.resolve(); got != ActionMoveRight {
		t.Fatalf("resolve() = %v, want ActionMoveRight (last writer at equal priority)", got)
	}

	var g2 moveGoals
	g2.vote(10, ActionMoveRight)
	g2.vote(5, ActionMoveLeft) // lower priority must not override
	if got := g2.resolve(); got != ActionMoveRight {
		t.Fatalf("resolve() = %v, want ActionMoveRight (higher priority wins)", got)
	}
}

func TestShotPlannerWithinDispersionFires(t *testing.T) {
	s := &baseStrategy{difficulty: DifficultyMedium}
	self := PlayerParams{
		Position: vecmath.Vector{X: 0, Y: 0}, FacingLeft: false,
		GunBulletVel: 1000, GunDispersion: 0.2, GunMaxTravel: 2000,
	}
	target := PlayerParams{Position: vecmath.Vector{X: 500, Y: 0}}
	action, ok := s.planShot(self, target)
	if !ok || action != ActionShot {
		t.Fatalf("planShot = (%v, %v), want (ActionShot, true)", action, ok)
	}
}

func TestShotPlannerOutsideDispersionHolds(t *testing.T) {
	s := &baseStrategy{difficulty: DifficultyMedium}
	self := PlayerParams{
		Position: vecmath.Vector{X: 0, Y: 0}, FacingLeft: false,
		GunBulletVel: 1000, GunDispersion: 0.01, GunMaxTravel: 2000,
	}
	// Target far off-axis vertically relative to a near-horizontal shot.
	target := PlayerParams{Position: vecmath.Vector{X: 500, Y: 400}}
	if _, ok := s.planShot(self, target); ok {
		t.Fatalf("planShot returned a shot outside the dispersion cone")
	}
}

func TestFindTargetExcludesSameGroup(t *testing.T) {
	snap := testSnapshot()
	snap.Players["self"] = PlayerParams{Name: "self", Group: 1, Alive: true, Position: vecmath.Vector{}}
	snap.Players["ally"] = PlayerParams{Name: "ally", Group: 1, Alive: true, Position: vecmath.Vector{X: 10}}
	snap.Players["enemy"] = PlayerParams{Name: "enemy", Group: 2, Alive: true, Position: vecmath.Vector{X: 20}}

	s := &baseStrategy{difficulty: DifficultyEasy}
	_, name, found := s.findTarget(snap, "self", snap.Players["self"])
	if !found || name != "enemy" {
		t.Fatalf("findTarget = (%v, %v), want enemy", name, found)
	}
}
