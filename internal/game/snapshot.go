package game

import (
	"time"

	"deadfall/internal/ai"
	"deadfall/internal/vecmath"
)

// playerHalf mirrors the entity layer's collision-box half extents for
// snapshot consumers.
var playerHalf = vecmath.Vector{X: 16, Y: 32}

// buildSnapshotLocked assembles the copy-on-publish world view the AI
// worker (and the admin API) consume: static platform geometry with its
// precomputed distance map, physics parameters, per-player parameters
// and per-bullet state. Lock must be held; the result shares nothing
// mutable with the live simulation.
func (e *Engine) buildSnapshotLocked() *ai.Snapshot {
	e.snapSeq++

	players := make(map[string]ai.PlayerParams, len(e.players))
	for name, p := range e.players {
		w := p.Weapon
		params := ai.PlayerParams{
			Name:       name,
			Position:   p.Position(e.sim),
			Velocity:   p.Velocity(e.sim),
			HalfSize:   playerHalf,
			Dir:        p.FacingDir(),
			BarrelPos:  p.BarrelPosition(e.sim),
			MaxSpeed:   p.MaxSpeed,
			JumpSpeed:  p.JumpSpeed,
			XAccel:     p.XAccel,
			Group:      p.GroupTag,
			FacingLeft: p.FacingLeft,
			YLocked:    p.YLocked(e.sim),
			Alive:      p.Alive,
		}
		if w != nil {
			params.GunBulletVel = w.BulletSpeed
			params.GunBulletMass = w.BulletMass
			params.GunDispersion = w.DispersionRad
			params.GunMaxTravel = w.MaxTravel
			params.GunCooldown = w.Cooldown
		}
		players[name] = params
	}

	bullets := make([]ai.BulletParams, 0, e.bullets.Len())
	for _, b := range e.bullets.All() {
		prim, ok := e.sim.Store().Get(b.ID)
		if !ok {
			continue
		}
		body := prim.BodyPtr()
		bullets = append(bullets, ai.BulletParams{
			Pos:     body.Position,
			Vel:     body.VelocityVector(),
			HitMass: body.Mass,
			Group:   b.Group,
		})
	}

	phys := ai.PhysicsParams{
		Gravity:   e.sim.Gravity,
		TimeSpeed: e.cfg.Simulation.TimeSpeed,
		LastRPS:   e.cfg.Simulation.RPS,
	}
	return ai.NewSnapshot(e.snapSeq, e.platformInfos, e.adjacency, phys, players, bullets)
}

// spawnAdjustmentBoxesLocked materialises one historical-shape box per
// other player for a shot fired by shooterName, sampling each position
// trace at sampleAt (now minus the shooter's half-RTT). Lock must be
// held by the caller (the endpoint's poll path).
func (e *Engine) spawnAdjustmentBoxesLocked(shooterName string, sampleAt time.Time) {
	if _, ok := e.players[shooterName]; !ok {
		return
	}
	for name, p := range e.players {
		if name == shooterName || !p.Alive {
			continue
		}
		histPos, ok := p.Trace.At(sampleAt)
		if !ok {
			continue
		}
		// Skip the box when history and present coincide; the live
		// group already covers the hit.
		if histPos.Sub(p.Position(e.sim)).Length() < 1e-6 {
			continue
		}
		e.adjBoxes.Spawn(e.refByName[name], histPos)
	}
}
