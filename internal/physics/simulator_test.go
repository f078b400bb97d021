package physics

import (
	"math"
	"testing"
)

func TestContinuousCollisionAgainstThinLine(t *testing.T) {
	sim := NewSimulator()
	sim.Gravity = Vector{}

	point := &Point{Body: Body{Position: Vector{0, 0}, Dir: Vector{1, 0}, Velocity: 1000, UserTag: TagBullet}}
	line := &Line{
		Body:         Body{Position: Vector{0.5, -1}, Fixed: true, UserTag: TagNone},
		Displacement: Vector{0, 2},
	}

	sim.AddPrimitive(point)
	sim.AddPrimitive(line)

	var gotFrame float64
	var hit bool
	sim.OnCollision("bullet-vs-wall", TagBullet, TagNone, func(a, b Primitive, frameTime float64) {
		hit = true
		gotFrame = frameTime
	})

	sim.StepNow(0.1)

	if !hit {
		t.Fatalf("expected a collision callback to fire")
	}
	fStar := gotFrame / 0.1
	if math.Abs(fStar-0.005) > 1e-3 {
		t.Fatalf("f* = %v, want within 1e-3 of 0.005", fStar)
	}
}

func TestPlatformLanding(t *testing.T) {
	sim := NewSimulator()
	sim.Gravity = Vector{0, 980}
	sim.AddPlatform(Platform{Name: "floor", X: 0, Y: 120, Len: 50})

	point := &Point{Body: Body{
		Position: Vector{10, 100}, Dir: Vector{0, 1}, Velocity: 200,
		GravityOn: true, AllowPlatform: true,
	}}
	sim.AddPrimitive(point)

	sim.StepNow(0.1)

	if math.Abs(point.Position.Y-120) > 1e-3 {
		t.Fatalf("point.Position.Y = %v, want ~120", point.Position.Y)
	}
	if !point.YLocked {
		t.Fatalf("expected YLocked after platform contact")
	}
	if vy := point.VelocityVector().Y; math.Abs(vy) > 1e-9 {
		t.Fatalf("vy = %v, want 0", vy)
	}
}

func TestYLockedImpliesZeroVerticalVelocity(t *testing.T) {
	b := Body{Dir: Vector{0.6, 0.8}, Velocity: 10, YLocked: true}
	if vy := b.VelocityVector().Y; vy != 0 {
		t.Fatalf("y-locked body has vy = %v, want 0", vy)
	}
}

func TestUpdateBBContainsPositionAndSweptEndpoint(t *testing.T) {
	p := &Point{Body: Body{Position: Vector{0, 0}, Dir: Vector{1, 0}, Velocity: 10}}
	p.UpdateBB(0.5)
	next := p.Position.Add(p.VelocityVector().Scale(0.5))
	if !p.BB.Contains(p.Position) {
		t.Fatalf("swept bb does not contain start position")
	}
	if !p.BB.Contains(next) {
		t.Fatalf("swept bb does not contain end position")
	}
}

func TestDegenerateLineNeverCollides(t *testing.T) {
	sim := NewSimulator()
	sim.Gravity = Vector{}

	point := &Point{Body: Body{Position: Vector{0, 0}, Dir: Vector{1, 0}, Velocity: 1000, UserTag: TagBullet}}
	line := &Line{Body: Body{Position: Vector{0.5, 0}, Fixed: true}, Displacement: Vector{}}
	sim.AddPrimitive(point)
	sim.AddPrimitive(line)

	hit := false
	sim.OnCollision("never", TagBullet, TagNone, func(a, b Primitive, f float64) { hit = true })
	sim.StepNow(0.1)

	if hit {
		t.Fatalf("a degenerate (zero-displacement) line must never trigger a collision")
	}
}

func TestRicochetBlendsElasticAndInelastic(t *testing.T) {
	point := &Body{Dir: Vector{1, 0}, Velocity: 100, Mass: 1, Elasticity: 1}
	line := &Body{Fixed: true, Elasticity: 1}
	Ricochet(point, line, Vector{-1, 0})

	if point.Velocity < 50 {
		t.Fatalf("fully elastic bounce off a fixed wall should roughly preserve speed, got %v", point.Velocity)
	}
	if point.Dir.X > 0 {
		t.Fatalf("expected direction to reflect back across the wall normal, got dir=%+v", point.Dir)
	}
}
