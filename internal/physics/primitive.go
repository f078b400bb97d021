// Package physics implements the continuous-collision physic simulator:
// points, lines, groups, static one-way platforms, a fixed-timestep
// accumulator and a named collision-callback registry.
package physics

import "deadfall/internal/vecmath"

// ID is a stable arena index. Zero is never assigned to a live primitive
// and doubles as the "no parent group" sentinel.
type ID uint32

// UserTag is the opaque discriminator carried by every primitive so that
// collision callbacks can be selected by (tagA, tagB) at the registration
// site.
type UserTag uint32

const (
	TagNone          UserTag = 0
	TagPlayer        UserTag = 0xdeadf00d
	TagBullet        UserTag = 0xdeadbeef
	TagAdjustmentBox UserTag = 0xdeaddead
)

// Kind is the tagged-variant discriminator for a Primitive.
type Kind int

const (
	KindPoint Kind = iota
	KindLine
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// CollideAllower is a per-primitive predicate admitting or rejecting a
// candidate collision partner. Both sides' predicates must admit the pair
// (see Body.AllowTestWith).
type CollideAllower func(other Primitive) bool

// Body holds the attributes shared by every primitive variant (invariant
// 1-4 of the data model).
type Body struct {
	id ID

	Position Vector
	Dir      Vector  // unit length, zero only for a just-constructed body
	Velocity float64 // scalar speed along Dir

	Mass       float64
	Elasticity float64

	BB BBox

	PrevDir      Vector
	PrevVelocity float64

	Fixed         bool
	GravityOn     bool
	YLocked       bool
	AllowPlatform bool
	// DropThrough suppresses platform landing after a jump-down until
	// the body has cleared the platform it dropped from.
	DropThrough bool
	DeleteLater bool

	UserTag UserTag
	UserRef int // index into the entity-layer table this body backs

	Allower CollideAllower

	groupID ID // 0 == no parent group
}

// Vector and BBox are re-exported aliases so physics call sites don't
// need to import vecmath directly for the common case.
type Vector = vecmath.Vector
type BBox = vecmath.BBox

// ID returns the primitive's stable arena index.
func (b *Body) ID() ID { return b.id }

// GroupID returns the id of the immediate parent group, or 0 if none.
func (b *Body) GroupID() ID { return b.groupID }

// VelocityVector returns the full velocity vector, applying the y-lock
// constraint: y_locked implies v_y = 0 (invariant 4).
func (b *Body) VelocityVector() Vector {
	v := b.Dir.Scale(b.Velocity)
	if b.YLocked {
		v.Y = 0
	}
	return v
}

// EffectiveMass returns the mass used in collision resolution: a fixed
// body behaves as if infinitely massive.
func (b *Body) EffectiveMass() float64 {
	if b.Fixed {
		return 999999.0
	}
	return b.Mass
}

// RecordPrevious snapshots direction/velocity for render interpolation;
// called once per step during integration.
func (b *Body) RecordPrevious() {
	b.PrevDir = b.Dir
	b.PrevVelocity = b.Velocity
}

// AllowTestWith reports whether both sides' collide-allower predicates
// (when present) admit testing self against other.
func (b *Body) AllowTestWith(self, other Primitive) bool {
	if b.Allower != nil && !b.Allower(other) {
		return false
	}
	if ob := other.BodyPtr(); ob.Allower != nil && !ob.Allower(self) {
		return false
	}
	return true
}

// Primitive is the tagged-variant interface implemented by Point, Line
// and Group. Dispatch by shape is an exhaustive switch on Kind(), never
// a type assertion chain, matching the design note "callback dispatch is
// by shape via exhaustive match".
type Primitive interface {
	Kind() Kind
	BodyPtr() *Body
	// LineOnly reports whether this primitive (or, for a Group, its
	// leaves) should be classified into the simulator's line-like set
	// rather than its point-like set.
	LineOnly() bool
}

// Point is a zero-extent body. Its bounding box is the swept AABB over
// the next step, expanded to a 0.1 minimum per axis to avoid a
// degenerate rectangle.
type Point struct{ Body }

func (p *Point) Kind() Kind     { return KindPoint }
func (p *Point) LineOnly() bool { return false }
func (p *Point) BodyPtr() *Body { return &p.Body }

// UpdateBB recomputes the swept bounding box for the next step of
// duration dt.
func (p *Point) UpdateBB(dt float64) {
	vel := p.VelocityVector()
	next := p.Position.Add(vel.Scale(dt))
	p.BB = vecmath.FromPoints(p.Position, next).Expand(0.1)
}

// Line has an extent vector from Position to its second endpoint.
type Line struct {
	Body
	Displacement Vector
}

func (l *Line) Kind() Kind     { return KindLine }
func (l *Line) BodyPtr() *Body { return &l.Body }
func (l *Line) LineOnly() bool { return true }

// End returns the line's second endpoint in world space.
func (l *Line) End() Vector { return l.Position.Add(l.Displacement) }

// UpdateBB recomputes the swept bounding box covering both endpoints
// before and after the move.
func (l *Line) UpdateBB(dt float64) {
	vel := l.VelocityVector()
	p1, p2 := l.Position, l.End()
	n1, n2 := p1.Add(vel.Scale(dt)), p2.Add(vel.Scale(dt))
	l.BB = vecmath.FromPoints(p1, p2).Merge(vecmath.FromPoints(n1, n2))
}

// Normal returns the unit normal of the line's supporting segment.
func (l *Line) Normal() Vector {
	d := l.Displacement.Normalized()
	return d.Perp()
}

// Child is one (primitive, local offset) pair owned by a Group.
type Child struct {
	ID     ID
	Offset Vector
}

// Group is a composite primitive: a list of children at fixed local
// offsets, transformed as a rigid unit. Groups reference children by
// stable ID rather than pointer (the arena+stable-index design note),
// which is what lets a Group be trivially copied into a snapshot.
type Group struct {
	Body
	Children []Child

	// lineLeaves caches the classification of the group's leaves,
	// maintained by the Store whenever children are added/removed so
	// LineOnly never needs to walk the tree.
	lineLeaves bool
}

func (g *Group) Kind() Kind     { return KindGroup }
func (g *Group) BodyPtr() *Body { return &g.Body }

// LineOnly reports the classification of the group's leaves. An empty
// group is classified as point-like.
func (g *Group) LineOnly() bool { return g.lineLeaves }

// SetLineLeaves is called by Store when the group's leaf composition is
// (re)computed.
func (g *Group) SetLineLeaves(v bool) { g.lineLeaves = v }
