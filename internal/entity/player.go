// Package entity attaches game semantics — players, bullets, instant
// kicks, adjustment boxes — to the tagged-variant physics primitives.
package entity

import (
	"time"

	"deadfall/internal/physics"
	"deadfall/internal/vecmath"
)

// InputState is the per-tick control record a client sends and a
// player's Update consumes.
type InputState struct {
	MoveLeft  bool
	MoveRight bool
	Fire      bool
	Jump      bool
	JumpDown  bool
	YLocked   bool // client-reported, used only during reconciliation
}

const (
	playerHalfWidth  = 16.0
	playerHalfHeight = 32.0
	fallDeathY       = 2100.0
)

// Player owns a physics group of four lines forming its collision box
// and carries the replication/gameplay fields named in the data model:
// weapon slot, facing direction, input-state record, event counter,
// deaths, group tag, tracer colour and position trace.
type Player struct {
	Name string

	GroupID physics.ID
	LineIDs [4]physics.ID // top, right, bottom, left

	Input InputState

	EventCounter uint64
	Deaths       int
	Kills        int
	GroupTag     int // -1 means "no group" (friendly-fire discriminator)
	TracerColor  [3]byte

	Trace PositionTrace

	Weapon     *Weapon
	LastFireAt float64 // simulation clock seconds
	SimClock   float64

	MaxSpeed   float64
	JumpSpeed  float64
	XAccel     float64
	XSlowdown  float64
	RampWindow float64

	MaxJumps       int
	AvailableJumps int

	HP         float64
	Alive      bool
	FacingLeft bool

	SpawnPoint vecmath.Vector

	inputHeldTime float64
	heldDirection float64 // -1, 0, 1: direction of the currently-ramping input

	OnHit bool // set by a bullet-hit callback, consumed by the renderer
}

// NewPlayer constructs a Player and registers its physics primitives
// with sim: one Group with four Line children forming a rectangular
// collision box.
func NewPlayer(sim *physics.Simulator, name string, spawn vecmath.Vector, userRef int) *Player {
	group := &physics.Group{Body: physics.Body{
		Position:   spawn,
		Dir:        vecmath.Vector{X: 1, Y: 0},
		GravityOn:  true,
		Mass:       80,
		Elasticity: 0.05,
		UserTag:    physics.TagPlayer,
		UserRef:    userRef,
	}}
	groupID := sim.AddPrimitive(group)

	type edge struct{ offset, disp vecmath.Vector }
	edges := [4]edge{
		{vecmath.Vector{X: -playerHalfWidth, Y: -playerHalfHeight}, vecmath.Vector{X: 2 * playerHalfWidth}},
		{vecmath.Vector{X: playerHalfWidth, Y: -playerHalfHeight}, vecmath.Vector{Y: 2 * playerHalfHeight}},
		{vecmath.Vector{X: playerHalfWidth, Y: playerHalfHeight}, vecmath.Vector{X: -2 * playerHalfWidth}},
		{vecmath.Vector{X: -playerHalfWidth, Y: playerHalfHeight}, vecmath.Vector{Y: -2 * playerHalfHeight}},
	}
	var lineIDs [4]physics.ID
	for i, e := range edges {
		line := &physics.Line{
			Body:         physics.Body{Position: spawn.Add(e.offset), UserTag: physics.TagPlayer, UserRef: userRef},
			Displacement: e.disp,
		}
		id := sim.AddPrimitive(line)
		_ = sim.Store().AddChild(groupID, id, e.offset)
		lineIDs[i] = id
	}
	// The bottom edge (index 2) is the only one that can rest on a
	// platform.
	if bottom, ok := sim.Store().Get(lineIDs[2]); ok {
		bottom.BodyPtr().AllowPlatform = true
	}
	sim.Store().SyncGroupTransform(group)

	w, _ := GetWeapon("pistol")
	return &Player{
		Name: name, GroupID: groupID, LineIDs: lineIDs,
		GroupTag:       -1,
		TracerColor:    [3]byte{255, 255, 255},
		Weapon:         w,
		MaxSpeed:       300,
		JumpSpeed:      520,
		XAccel:         1600,
		XSlowdown:      2400,
		RampWindow:     0.15,
		MaxJumps:       2,
		AvailableJumps: 2,
		HP:             100,
		Alive:          true,
		SpawnPoint:     spawn,
	}
}

func (p *Player) group(sim *physics.Simulator) *physics.Group {
	prim, ok := sim.Store().Get(p.GroupID)
	if !ok {
		return nil
	}
	g, _ := prim.(*physics.Group)
	return g
}

// Position returns the player's current world position.
func (p *Player) Position(sim *physics.Simulator) vecmath.Vector {
	if g := p.group(sim); g != nil {
		return g.Position
	}
	return vecmath.Vector{}
}

// Velocity returns the player's current velocity vector.
func (p *Player) Velocity(sim *physics.Simulator) vecmath.Vector {
	if g := p.group(sim); g != nil {
		return g.VelocityVector()
	}
	return vecmath.Vector{}
}

// YLocked reports whether the player is currently resting on a
// platform.
func (p *Player) YLocked(sim *physics.Simulator) bool {
	if g := p.group(sim); g != nil {
		return g.YLocked
	}
	return false
}

// Update applies one fixed step of the acceleration model:
// horizontal speed ramps toward +-MaxSpeed over RampWindow seconds,
// ground friction applies only while grounded and idle, and vertical
// jumps consume AvailableJumps (reset on platform contact).
func (p *Player) Update(sim *physics.Simulator, dt float64, now time.Time) {
	p.SimClock += dt
	g := p.group(sim)
	if g == nil || !p.Alive {
		return
	}

	v := g.VelocityVector()
	grounded := g.YLocked

	targetDir := 0.0
	if p.Input.MoveLeft && !p.Input.MoveRight {
		targetDir = -1
		p.FacingLeft = true
	} else if p.Input.MoveRight && !p.Input.MoveLeft {
		targetDir = 1
		p.FacingLeft = false
	}

	if targetDir != 0 {
		if targetDir != p.heldDirection {
			p.inputHeldTime = 0
		}
		p.heldDirection = targetDir
		p.inputHeldTime += dt
		ramp := p.inputHeldTime / p.RampWindow
		if ramp > 1 {
			ramp = 1
		}
		target := targetDir * p.MaxSpeed
		step := p.XAccel * ramp * dt
		if v.X < target {
			v.X += step
			if v.X > target {
				v.X = target
			}
		} else if v.X > target {
			v.X -= step
			if v.X < target {
				v.X = target
			}
		}
	} else {
		p.heldDirection = 0
		p.inputHeldTime = 0
		if grounded {
			friction := p.XSlowdown * dt
			if v.X > 0 {
				v.X -= friction
				if v.X < 0 {
					v.X = 0
				}
			} else if v.X < 0 {
				v.X += friction
				if v.X > 0 {
					v.X = 0
				}
			}
		}
	}

	if p.Input.Jump && p.AvailableJumps > 0 {
		v.Y = -p.JumpSpeed
		g.YLocked = false
		p.AvailableJumps--
	}
	if p.Input.JumpDown {
		if grounded {
			g.DropThrough = true
		}
		g.YLocked = false
		v.Y += 100
	}

	speed := v.Length()
	if speed > 1e-9 {
		g.Dir = v.Normalized()
	} else {
		g.Dir = vecmath.Vector{X: 1, Y: 0}
	}
	g.Velocity = speed

	p.Trace.Record(now, g.Position)

	if g.Position.Y > fallDeathY {
		p.die()
	}
}

// ResetJumps is invoked by the platform-contact hook when this player's
// bottom edge lands.
func (p *Player) ResetJumps() { p.AvailableJumps = p.MaxJumps }

func (p *Player) die() {
	if !p.Alive {
		return
	}
	p.Alive = false
	p.Deaths++
}

// Kill marks the player dead (bullet damage, fall past the kill
// plane); the game loop respawns dead players after the step.
func (p *Player) Kill() { p.die() }

// Respawn teleports the player to its spawn point with zero velocity
// and full jumps.
func (p *Player) Respawn(sim *physics.Simulator) {
	g := p.group(sim)
	if g == nil {
		return
	}
	g.Position = p.SpawnPoint
	g.Velocity = 0
	g.YLocked = false
	sim.Store().SyncGroupTransform(g)
	p.Alive = true
	p.HP = 100
	p.AvailableJumps = p.MaxJumps
}

// CanFire reports whether the weapon's cooldown has elapsed.
func (p *Player) CanFire() bool {
	return p.Weapon != nil && p.SimClock-p.LastFireAt >= p.Weapon.Cooldown
}

// BarrelPosition returns the world-space muzzle point used as a
// bullet's spawn origin.
func (p *Player) BarrelPosition(sim *physics.Simulator) vecmath.Vector {
	pos := p.Position(sim)
	dx := playerHalfWidth + 4
	if p.FacingLeft {
		dx = -dx
	}
	return pos.Add(vecmath.Vector{X: dx, Y: 0})
}

// FacingDir returns the unit vector the player's weapon currently
// points along.
func (p *Player) FacingDir() vecmath.Vector {
	if p.FacingLeft {
		return vecmath.Vector{X: -1}
	}
	return vecmath.Vector{X: 1}
}
