package entity

import (
	"deadfall/internal/physics"
	"deadfall/internal/vecmath"
)

// Bullet is a point primitive tagged TagBullet, carrying the
// shooter's group (for friendly-fire checks) and the bookkeeping needed
// to reap it once it has travelled its maximum distance.
type Bullet struct {
	ID            physics.ID
	Group         int // copied from the shooter at fire time
	TracerColor   [3]byte
	KineticEnergy float64
	MaxTravel     float64
	Traveled      float64
	Origin        vecmath.Vector
	OwnerRef      int // entity-table index of the shooter, for hit attribution
	IsInstantKick bool
}

// BulletManager owns the live bullet set and the per-tick sweep that
// reaps travelled-out or already-deleted bullets.
type BulletManager struct {
	sim     *physics.Simulator
	bullets map[physics.ID]*Bullet
}

// NewBulletManager constructs a manager and registers its step hook.
func NewBulletManager(sim *physics.Simulator) *BulletManager {
	bm := &BulletManager{sim: sim, bullets: make(map[physics.ID]*Bullet)}
	sim.OnStep("bullet-manager-sweep", bm.sweep)
	return bm
}

// Fire spawns a bullet primitive and retains a handle.
func (bm *BulletManager) Fire(origin, velocity vecmath.Vector, mass float64, group int, tracer [3]byte, maxTravel float64, ownerRef int) *Bullet {
	speed := velocity.Length()
	dir := velocity.Normalized()
	pt := &physics.Point{Body: physics.Body{
		Position: origin, Dir: dir, Velocity: speed,
		Mass: mass, Elasticity: 0.3, GravityOn: true,
		UserTag: physics.TagBullet, UserRef: ownerRef,
	}}
	id := bm.sim.AddPrimitive(pt)
	b := &Bullet{
		ID: id, Group: group, TracerColor: tracer,
		KineticEnergy: 0.5 * mass * speed * speed,
		MaxTravel:     maxTravel, Origin: origin, OwnerRef: ownerRef,
	}
	bm.bullets[id] = b
	return b
}

// FireInstantKick spawns a very-high-velocity bullet used for hit-scan
// behaviour; it shares the regular bullet-hit callback.
func (bm *BulletManager) FireInstantKick(origin, dir vecmath.Vector, group int, tracer [3]byte, ownerRef int) *Bullet {
	const instantKickSpeed = 20000.0
	b := bm.Fire(origin, dir.Normalized().Scale(instantKickSpeed), 0.05, group, tracer, 4000, ownerRef)
	b.IsInstantKick = true
	return b
}

// Get returns the bullet for a live primitive id.
func (bm *BulletManager) Get(id physics.ID) (*Bullet, bool) {
	b, ok := bm.bullets[id]
	return b, ok
}

// Remove marks a bullet's primitive for deletion; the next sweep evicts
// the bookkeeping entry.
func (bm *BulletManager) Remove(id physics.ID) {
	bm.sim.RemovePrimitive(id)
}

// Len returns the number of live bullets.
func (bm *BulletManager) Len() int { return len(bm.bullets) }

// All returns every live bullet. Order is unspecified.
func (bm *BulletManager) All() []*Bullet {
	out := make([]*Bullet, 0, len(bm.bullets))
	for _, b := range bm.bullets {
		out = append(out, b)
	}
	return out
}

func (bm *BulletManager) sweep(sim *physics.Simulator, dt float64) {
	for id, b := range bm.bullets {
		prim, ok := sim.Store().Get(id)
		if !ok {
			delete(bm.bullets, id)
			continue
		}
		if prim.BodyPtr().DeleteLater {
			delete(bm.bullets, id)
			continue
		}
		b.Traveled = prim.BodyPtr().Position.Sub(b.Origin).Length()
		if b.Traveled > b.MaxTravel {
			sim.RemovePrimitive(id)
		}
	}
}
