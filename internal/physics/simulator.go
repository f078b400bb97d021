package physics

import (
	"log"
	"math"
)

const (
	bisectionSteps  = 20
	collideDistance = 1e-3
)

// CollideCallback is invoked with the root primitives of a detected
// collision (dispatch is always by the shape of the root collider, per
// invariant: a leaf inside a group reports the group as the argument)
// and the fraction of the step at which the collision was found.
type CollideCallback func(root1, root2 Primitive, frameTime float64)

// StepCallback is a post-integration hook, fired once per step in
// registration order.
type StepCallback func(sim *Simulator, dt float64)

// PlatformCallback is fired when a point lands on, or is resting on, a
// platform.
type PlatformCallback func(p Primitive, plat Platform)

type collideEntry struct {
	name       string
	tagA, tagB UserTag
	cb         CollideCallback
}

type namedStepEntry struct {
	name string
	cb   StepCallback
}

type namedPlatformEntry struct {
	name string
	cb   PlatformCallback
}

// Simulator is the fixed-step, continuous-collision physic core.
type Simulator struct {
	store *Store

	Gravity Vector

	collideCallbacks []collideEntry
	collideIndex     map[string]int

	stepCallbacks []namedStepEntry
	stepIndex     map[string]int

	platformCallbacks []namedPlatformEntry
	platformIndex     map[string]int

	updateAccum         float64
	interpolationFactor float64
	lastRPS             float64
	lastSpeed           float64

	// lockedPlatform remembers, per point id, which platform Y it is
	// currently resting on so the unlock condition ("X extent no longer
	// overlaps any platform whose Y matches") can be evaluated without a
	// full re-scan of every platform.
	lockedPlatform map[ID]int // index into store.platforms, -1 if none

	Logger *log.Logger
}

// NewSimulator constructs a Simulator over a fresh primitive Store with
// the standard downward gravity.
func NewSimulator() *Simulator {
	return &Simulator{
		store:          NewStore(),
		Gravity:        Vector{X: 0, Y: 980},
		collideIndex:   make(map[string]int),
		stepIndex:      make(map[string]int),
		platformIndex:  make(map[string]int),
		lockedPlatform: make(map[ID]int),
		Logger:         log.Default(),
	}
}

// Store exposes the underlying primitive arena for packages (entity,
// AI) that need to add children to groups or inspect live primitives.
func (s *Simulator) Store() *Store { return s.store }

// InterpolationFactor returns the fraction, in [0,1), of the current
// fixed tick that has elapsed since the last retired step — used by
// renderers (outside the core) to interpolate between PrevDir/
// PrevVelocity and the current values.
func (s *Simulator) InterpolationFactor() float64 { return s.interpolationFactor }

// AddPrimitive registers a new top-level primitive and returns its id.
func (s *Simulator) AddPrimitive(p Primitive) ID { return s.store.Add(p) }

// RemovePrimitive marks a primitive for deferred removal; it is reaped
// at the start of the next step, after callbacks (two-phase removal).
func (s *Simulator) RemovePrimitive(id ID) { s.store.Remove(id) }

// AddPlatform registers a static one-way platform.
func (s *Simulator) AddPlatform(p Platform) { s.store.AddPlatform(p) }

// ClearPlatforms removes every registered platform.
func (s *Simulator) ClearPlatforms() {
	s.store.ClearPlatforms()
	for k := range s.lockedPlatform {
		delete(s.lockedPlatform, k)
	}
}

// OnCollision registers (or replaces, if name already exists) a named
// collision callback selected by the unordered pair (tagA, tagB).
func (s *Simulator) OnCollision(name string, tagA, tagB UserTag, cb CollideCallback) {
	entry := collideEntry{name: name, tagA: tagA, tagB: tagB, cb: cb}
	if i, ok := s.collideIndex[name]; ok {
		s.collideCallbacks[i] = entry
		return
	}
	s.collideIndex[name] = len(s.collideCallbacks)
	s.collideCallbacks = append(s.collideCallbacks, entry)
}

// RemoveCollision unregisters a named collision callback.
func (s *Simulator) RemoveCollision(name string) {
	removeNamed(&s.collideCallbacks, s.collideIndex, name, func(e collideEntry) string { return e.name })
}

// OnStep registers a named post-integration step hook, fired each step
// in registration order with the simulator and dt.
func (s *Simulator) OnStep(name string, cb StepCallback) {
	entry := namedStepEntry{name: name, cb: cb}
	if i, ok := s.stepIndex[name]; ok {
		s.stepCallbacks[i] = entry
		return
	}
	s.stepIndex[name] = len(s.stepCallbacks)
	s.stepCallbacks = append(s.stepCallbacks, entry)
}

// RemoveStep unregisters a named step hook.
func (s *Simulator) RemoveStep(name string) {
	removeNamed(&s.stepCallbacks, s.stepIndex, name, func(e namedStepEntry) string { return e.name })
}

// OnPlatformContact registers a named platform-contact hook.
func (s *Simulator) OnPlatformContact(name string, cb PlatformCallback) {
	entry := namedPlatformEntry{name: name, cb: cb}
	if i, ok := s.platformIndex[name]; ok {
		s.platformCallbacks[i] = entry
		return
	}
	s.platformIndex[name] = len(s.platformCallbacks)
	s.platformCallbacks = append(s.platformCallbacks, entry)
}

// RemovePlatformContact unregisters a named platform-contact hook.
func (s *Simulator) RemovePlatformContact(name string) {
	removeNamed(&s.platformCallbacks, s.platformIndex, name, func(e namedPlatformEntry) string { return e.name })
}

// removeNamed is shared swap-remove-and-reindex logic for the three flat
// callback registries (design note: "flat vector with a parallel name
// index to make dispatch cache-friendly").
func removeNamed[T any](slice *[]T, index map[string]int, name string, key func(T) string) {
	i, ok := index[name]
	if !ok {
		return
	}
	s := *slice
	last := len(s) - 1
	s[i] = s[last]
	index[key(s[i])] = i
	*slice = s[:last]
	delete(index, name)
}

// Step is the clock-driven entry point: it accumulates elapsed real
// time and retires at most one fixed tick of dt = (1/rps)*speedMultiplier
// per call. The fractional remainder becomes InterpolationFactor.
func (s *Simulator) Step(elapsed float64, rps float64, speedMultiplier float64) {
	if rps <= 0 {
		rps = 60
	}
	s.lastRPS = rps
	s.lastSpeed = speedMultiplier
	minTimestep := 1.0 / rps

	s.updateAccum += elapsed
	if s.updateAccum > minTimestep {
		s.updateAccum -= minTimestep
		s.updateImmediate(minTimestep * speedMultiplier)
	}
	s.interpolationFactor = s.updateAccum / minTimestep
}

// StepNow forces an immediate fixed tick with an explicit dt, bypassing
// the accumulator. Used by tests and by step_now callers that need a
// deterministic single tick.
func (s *Simulator) StepNow(dt float64) {
	s.updateImmediate(dt)
}

func (s *Simulator) updateImmediate(dt float64) {
	// 1. Integration.
	pointIDs := s.store.TopLevelPoints()
	lineIDs := s.store.TopLevelLines()
	top := make([]ID, 0, len(pointIDs)+len(lineIDs))
	top = append(top, pointIDs...)
	top = append(top, lineIDs...)

	pre := make(map[ID]Vector, len(top))
	for _, id := range top {
		p, ok := s.store.Get(id)
		if !ok {
			continue
		}
		b := p.BodyPtr()
		if b.DeleteLater {
			continue
		}
		b.RecordPrevious()
		if b.GravityOn && !b.YLocked {
			v := b.VelocityVector().Add(s.Gravity.Scale(dt))
			speed := v.Length()
			if speed > 1e-9 {
				b.Dir = v.Normalized()
			}
			b.Velocity = speed
		}
		pre[id] = b.Position
		switch v := p.(type) {
		case *Point:
			v.UpdateBB(dt)
		case *Line:
			v.UpdateBB(dt)
		case *Group:
			s.store.SweepGroupBB(v, b.VelocityVector(), dt)
		}
	}

	// 2-4. Broadphase, narrowphase and resolve.
	resolved := make(map[[2]ID]bool)
	for _, lid := range lineIDs {
		lp, ok := s.store.Get(lid)
		if !ok || lp.BodyPtr().DeleteLater {
			continue
		}
		for _, pid := range pointIDs {
			pp, ok := s.store.Get(pid)
			if !ok || pp.BodyPtr().DeleteLater {
				continue
			}
			if !lp.BodyPtr().BB.Intersects(pp.BodyPtr().BB) {
				continue
			}
			s.store.WalkLeaves(lp, func(lineLeaf Primitive) bool {
				line, ok := lineLeaf.(*Line)
				if !ok {
					return true
				}
				s.store.WalkLeaves(pp, func(pointLeaf Primitive) bool {
					point, ok := pointLeaf.(*Point)
					if !ok {
						return true
					}
					key := [2]ID{point.ID(), line.ID()}
					if resolved[key] {
						return true
					}
					if !point.BodyPtr().AllowTestWith(point, line) {
						return true
					}
					if f, ok := s.analyze(dt, point, line); ok {
						resolved[key] = true
						s.resolve(point, line, f*dt)
					}
					return true
				})
				return true
			})
		}
	}

	// Actual positional move, now that collision response has updated
	// velocities/directions for bodies that bounced this step.
	for _, id := range top {
		p, ok := s.store.Get(id)
		if !ok {
			continue
		}
		b := p.BodyPtr()
		if b.DeleteLater {
			continue
		}
		b.Position = b.Position.Add(b.VelocityVector().Scale(dt))
		if g, ok := p.(*Group); ok {
			s.store.SyncGroupTransform(g)
		}
	}

	// 5. Platform resolution.
	s.resolvePlatforms(dt, top, pre)

	// 6. Step hooks.
	for _, e := range s.stepCallbacks {
		e.cb(s, dt)
	}

	// 7. Reaping.
	for _, p := range s.store.All() {
		if p.BodyPtr().DeleteLater {
			s.store.removeNow(p.BodyPtr().id)
			delete(s.lockedPlatform, p.BodyPtr().id)
		}
	}
}

// analyze runs the continuous point-vs-line narrowphase: a fixed
// 20-iteration bisection over f in [0,1]
// looking for the sub-step at which the signed point-to-line distance
// crosses zero, refined until |distance| < 1e-3.
func (s *Simulator) analyze(dt float64, point *Point, line *Line) (float64, bool) {
	dist := func(f float64) float64 {
		pp := point.Position.Add(point.VelocityVector().Scale(f * dt))
		lp := line.Position.Add(line.VelocityVector().Scale(f * dt))
		n := line.Normal()
		return pp.Sub(lp).Dot(n)
	}
	onSegment := func(f float64) bool {
		pp := point.Position.Add(point.VelocityVector().Scale(f * dt))
		lp := line.Position.Add(line.VelocityVector().Scale(f * dt))
		disp := line.Displacement
		length := disp.Length()
		if length < 1e-9 {
			return false // degenerate line never collides
		}
		t := pp.Sub(lp).Dot(disp) / (length * length)
		return t >= -1e-3 && t <= 1+1e-3
	}

	d0, d1 := dist(0), dist(1)
	if d0 == 0 {
		d0 = 1e-12
	}
	if (d0 > 0) == (d1 > 0) {
		return 0, false
	}

	lo, hi := 0.0, 1.0
	dlo := d0
	mid := 0.5
	for i := 0; i < bisectionSteps; i++ {
		mid = (lo + hi) / 2
		dmid := dist(mid)
		if (dmid > 0) == (dlo > 0) {
			lo, dlo = mid, dmid
		} else {
			hi = mid
		}
		if abs(dmid) < collideDistance {
			break
		}
	}
	if !onSegment(mid) {
		return 0, false
	}
	return mid, true
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// resolve dispatches a detected collision to the registered callback
// matching the leaves' tags, invoking it with the ROOT primitive of each
// side (design note: dispatch is by shape of the root collider).
func (s *Simulator) resolve(point *Point, line *Line, frameTime float64) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Printf("[physics] collision callback panicked, skipping pair: %v", r)
		}
	}()

	tagA, tagB := point.UserTag, line.UserTag
	for _, e := range s.collideCallbacks {
		if (e.tagA == tagA && e.tagB == tagB) || (e.tagA == tagB && e.tagB == tagA) {
			root1 := s.store.RootOf(point.ID())
			root2 := s.store.RootOf(line.ID())
			e.cb(root1, root2, frameTime)
			return
		}
	}
}

// dropClearance is how far below a platform a jumped-down body must
// travel before it becomes eligible to land again.
const dropClearance = 4.0

// resolvePlatforms runs platform resolution over every top-level primitive
// that carries a platform-allowed foot leaf: a bare Point with
// AllowPlatform, or a Group whose bottom edge (Point or Line leaf) has
// it. The snap, y-lock and callback all apply to the ROOT body, so a
// player group lands as a unit.
func (s *Simulator) resolvePlatforms(dt float64, topIDs []ID, pre map[ID]Vector) {
	platforms := s.store.Platforms()
	for _, id := range topIDs {
		p, ok := s.store.Get(id)
		if !ok || p.BodyPtr().DeleteLater {
			continue
		}
		fp, ok := s.footprintOf(p)
		if !ok {
			continue
		}
		root := p.BodyPtr()
		prevBottom := fp.bottomY
		if prevPos, have := pre[id]; have {
			prevBottom = fp.bottomY - (root.Position.Y - prevPos.Y)
		}
		s.resolveFootPlatform(p, root, fp, prevBottom, platforms)
	}
}

// footprint is the platform-contact extent of a primitive: the world-Y
// of its lowest platform-allowed leaf and that leaf's X span.
type footprint struct {
	bottomY  float64
	loX, hiX float64
}

func (s *Simulator) footprintOf(root Primitive) (footprint, bool) {
	var fp footprint
	found := false
	s.store.WalkLeaves(root, func(leaf Primitive) bool {
		b := leaf.BodyPtr()
		if !b.AllowPlatform {
			return true
		}
		switch v := leaf.(type) {
		case *Point:
			fp = footprint{bottomY: b.Position.Y, loX: b.Position.X, hiX: b.Position.X}
		case *Line:
			end := v.End()
			fp = footprint{
				bottomY: math.Max(b.Position.Y, end.Y),
				loX:     math.Min(b.Position.X, end.X),
				hiX:     math.Max(b.Position.X, end.X),
			}
		default:
			return true
		}
		found = true
		return false
	})
	return fp, found
}

func (s *Simulator) resolveFootPlatform(prim Primitive, root *Body, fp footprint, prevBottom float64, platforms []Platform) {
	if root.DropThrough {
		idx, ok := s.lockedPlatform[root.ID()]
		if !ok || idx >= len(platforms) {
			root.DropThrough = false
			return
		}
		plat := platforms[idx]
		if fp.bottomY > plat.Y+dropClearance || !plat.overlapsX(fp.loX, fp.hiX) {
			root.DropThrough = false
			delete(s.lockedPlatform, root.ID())
		}
		return
	}

	for i, plat := range platforms {
		if prevBottom <= plat.Y && fp.bottomY >= plat.Y && plat.overlapsX(fp.loX, fp.hiX) {
			root.Position.Y -= fp.bottomY - plat.Y
			v := root.VelocityVector()
			v.Y = 0
			speed := v.Length()
			if speed > 1e-9 {
				root.Dir = v.Normalized()
			}
			root.Velocity = speed
			root.YLocked = true
			if g, ok := prim.(*Group); ok {
				s.store.SyncGroupTransform(g)
			}
			s.lockedPlatform[root.ID()] = i
			for _, e := range s.platformCallbacks {
				e.cb(prim, plat)
			}
			return
		}
	}

	if root.YLocked {
		if idx, ok := s.lockedPlatform[root.ID()]; ok && idx < len(platforms) {
			if !platforms[idx].overlapsX(fp.loX, fp.hiX) {
				root.YLocked = false
				delete(s.lockedPlatform, root.ID())
			}
		}
	}
}
