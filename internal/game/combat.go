package game

import (
	"math"

	"deadfall/internal/entity"
	"deadfall/internal/metrics"
	"deadfall/internal/physics"
)

// registerCombat installs the engine's collision and platform hooks:
// bullet-versus-wall ricochet, bullet-versus-player damage,
// bullet-versus-adjustment-box rerouting, and jump reset on landing.
func (e *Engine) registerCombat() {
	e.sim.OnCollision("bullet-wall", physics.TagBullet, physics.TagNone, e.onBulletWall)
	e.sim.OnCollision("bullet-player", physics.TagBullet, physics.TagPlayer, e.onBulletPlayer)
	e.sim.OnCollision("bullet-adjustment-box", physics.TagBullet, physics.TagAdjustmentBox, e.onBulletAdjustmentBox)
	e.sim.OnPlatformContact("player-landing", e.onPlatformContact)
}

// onBulletWall bounces a bullet off a static line with the blended
// elastic/inelastic resolver.
func (e *Engine) onBulletWall(root1, root2 physics.Primitive, frameTime float64) {
	point, line := splitPointLine(root1, root2)
	if point == nil || line == nil {
		return
	}
	physics.Ricochet(point.BodyPtr(), line.BodyPtr(), line.Normal())
	metrics.IncrementCollisions(1)
}

// onBulletPlayer applies a direct (non-compensated) bullet hit.
func (e *Engine) onBulletPlayer(root1, root2 physics.Primitive, frameTime float64) {
	bulletPrim := root1
	playerPrim := root2
	if bulletPrim.BodyPtr().UserTag != physics.TagBullet {
		bulletPrim, playerPrim = playerPrim, bulletPrim
	}
	bullet, ok := e.bullets.Get(bulletPrim.BodyPtr().ID())
	if !ok {
		return
	}
	victim, ok := e.playerByRef(playerPrim.BodyPtr().UserRef)
	if !ok {
		return
	}
	e.applyBulletHit(bullet, bulletPrim, victim, false)
}

// onBulletAdjustmentBox re-routes a hit on a lag-compensation box into
// a hit on the player it replays, honouring the group discriminator.
// The box is discriminated by the referenced player's CURRENT group
// tag (the open-question decision recorded in DESIGN.md).
func (e *Engine) onBulletAdjustmentBox(root1, root2 physics.Primitive, frameTime float64) {
	bulletPrim := root1
	boxPrim := root2
	if bulletPrim.BodyPtr().UserTag != physics.TagBullet {
		bulletPrim, boxPrim = boxPrim, bulletPrim
	}
	bullet, ok := e.bullets.Get(bulletPrim.BodyPtr().ID())
	if !ok {
		return
	}
	box, ok := e.adjBoxes.Get(boxPrim.BodyPtr().ID())
	if !ok {
		return
	}
	victim, ok := e.playerByRef(box.PlayerRef)
	if !ok {
		return
	}
	e.adjBoxes.MarkFired(box.GroupID)
	e.applyBulletHit(bullet, bulletPrim, victim, true)
}

// applyBulletHit is the shared hit path: friendly-fire check, impulse,
// damage, kill accounting, bullet removal.
func (e *Engine) applyBulletHit(bullet *entity.Bullet, bulletPrim physics.Primitive, victim *entity.Player, compensated bool) {
	if !victim.Alive {
		return
	}
	if entity.SameGroup(bullet.Group, victim.GroupTag) {
		return
	}
	shooter, haveShooter := e.playerByRef(bullet.OwnerRef)
	if haveShooter && shooter == victim {
		return
	}

	// Momentum transfer to the player group.
	bb := bulletPrim.BodyPtr()
	if prim, ok := e.sim.Store().Get(victim.GroupID); ok {
		g := prim.BodyPtr()
		impulse := bb.VelocityVector().Scale(bb.Mass)
		v := g.VelocityVector().Add(impulse.Scale(1.0 / g.EffectiveMass()))
		if v.Y != 0 {
			g.YLocked = false
		}
		speed := v.Length()
		if speed > 1e-9 {
			g.Dir = v.Normalized()
		}
		g.Velocity = speed
	}

	damage := e.damageFor(bullet, shooter, haveShooter)
	victim.HP -= damage
	victim.OnHit = true

	shooterName := ""
	if haveShooter {
		shooterName = shooter.Name
	}
	if victim.HP <= 0 {
		victim.Kill()
		if haveShooter {
			shooter.Kills++
			e.board.Record(shooter.Name, float64(shooter.Kills))
			if e.OnKill != nil {
				e.OnKill(shooter, victim)
			}
		}
		weaponID := ""
		if haveShooter && shooter.Weapon != nil {
			weaponID = shooter.Weapon.ID
		}
		e.eventLog.EmitSimple(EventTypeKill, e.tickCount, shooterName, KillPayload{
			KillerName: shooterName, VictimName: victim.Name,
			WeaponID: weaponID, VictimDeaths: victim.Deaths,
		})
	} else {
		e.eventLog.EmitSimple(EventTypeHit, e.tickCount, shooterName, HitPayload{
			ShooterName: shooterName, VictimName: victim.Name,
			Damage: damage, VictimHP: victim.HP, Compensated: compensated,
		})
	}

	e.bullets.Remove(bullet.ID)
	metrics.IncrementCollisions(1)
}

// damageFor scales the shooter's weapon damage range linearly by the
// fraction of its maximum travel distance the bullet has not yet
// covered.
func (e *Engine) damageFor(bullet *entity.Bullet, shooter *entity.Player, haveShooter bool) float64 {
	if bullet.IsInstantKick {
		return 1000 // instant kicks are always lethal
	}
	if !haveShooter || shooter.Weapon == nil {
		return 10
	}
	w := shooter.Weapon
	span := w.MaxDamage - w.MinDamage
	falloff := 1.0
	if bullet.MaxTravel > 0 {
		falloff = math.Max(0, 1-bullet.Traveled/bullet.MaxTravel)
	}
	return w.MinDamage + span*falloff
}

// onPlatformContact resets the landing player's jump budget.
func (e *Engine) onPlatformContact(p physics.Primitive, plat physics.Platform) {
	b := p.BodyPtr()
	if b.UserTag != physics.TagPlayer {
		return
	}
	if player, ok := e.playerByRef(b.UserRef); ok {
		player.ResetJumps()
	}
}

func splitPointLine(a, b physics.Primitive) (*physics.Point, *physics.Line) {
	pt, _ := a.(*physics.Point)
	ln, _ := b.(*physics.Line)
	if pt == nil {
		pt, _ = b.(*physics.Point)
		ln, _ = a.(*physics.Line)
	}
	return pt, ln
}
