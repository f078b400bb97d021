package physics

import (
	"github.com/pkg/errors"

	"deadfall/internal/vecmath"
)

// Store is the primitive arena: it owns every Point, Line and Group by
// stable ID and partitions top-level registrations into point-like and
// line-like sets, because the narrowphase only ever tests point-versus-
// line pairs.
type Store struct {
	nextID ID
	byID   map[ID]Primitive

	pointSet map[ID]struct{}
	lineSet  map[ID]struct{}

	platforms []Platform
}

// NewStore returns an empty primitive arena.
func NewStore() *Store {
	return &Store{
		nextID:   1,
		byID:     make(map[ID]Primitive),
		pointSet: make(map[ID]struct{}),
		lineSet:  make(map[ID]struct{}),
	}
}

// Add registers a top-level primitive, assigning it a fresh ID and
// classifying it into the point-like or line-like set. Children of a
// Group are added via AddChild, not Add.
func (s *Store) Add(p Primitive) ID {
	id := s.nextID
	s.nextID++
	body := p.BodyPtr()
	body.id = id
	s.byID[id] = p
	s.classify(p)
	return id
}

// classify (re)computes which top-level set p belongs in.
func (s *Store) classify(p Primitive) {
	id := p.BodyPtr().id
	delete(s.pointSet, id)
	delete(s.lineSet, id)
	if p.LineOnly() {
		s.lineSet[id] = struct{}{}
	} else {
		s.pointSet[id] = struct{}{}
	}
}

// Get resolves an ID to its primitive, or (nil, false) if it has been
// removed or never existed.
func (s *Store) Get(id ID) (Primitive, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// MustGet resolves an id, panicking if it no longer exists. Used only in
// code paths that already proved the id is a live child of a group
// within the same step (a violated invariant here means a contract
// violation per the error-handling design, not a recoverable condition).
func (s *Store) MustGet(id ID) Primitive {
	p, ok := s.byID[id]
	if !ok {
		panic(errors.Errorf("physics: dangling primitive id %d", id))
	}
	return p
}

// AddChild appends a child to a group by ID, reclassifying the group's
// line/point-ness from its (possibly now non-empty) leaf set.
func (s *Store) AddChild(groupID ID, childID ID, offset Vector) error {
	gp, ok := s.byID[groupID]
	if !ok {
		return errors.Errorf("physics: unknown group id %d", groupID)
	}
	g, ok := gp.(*Group)
	if !ok {
		return errors.Errorf("physics: id %d is not a group", groupID)
	}
	cp, ok := s.byID[childID]
	if !ok {
		return errors.Errorf("physics: unknown child id %d", childID)
	}
	cp.BodyPtr().groupID = groupID
	g.Children = append(g.Children, Child{ID: childID, Offset: offset})
	// childID is no longer a top-level registration once owned by a group.
	delete(s.pointSet, childID)
	delete(s.lineSet, childID)
	s.recomputeGroupClassification(g)
	return nil
}

func (s *Store) recomputeGroupClassification(g *Group) {
	lineLeaves := false
	s.WalkLeaves(g, func(leaf Primitive) bool {
		lineLeaves = leaf.Kind() == KindLine
		return false // only need the first leaf
	})
	g.SetLineLeaves(lineLeaves)
	s.classify(g)
}

// Remove marks p for deferred deletion; actual removal happens at the
// start of the next step, after callbacks (two-phase removal per 4.1).
func (s *Store) Remove(id ID) {
	if p, ok := s.byID[id]; ok {
		p.BodyPtr().DeleteLater = true
	}
}

// removeNow performs the actual deletion, called only by the simulator's
// reaping phase.
func (s *Store) removeNow(id ID) {
	delete(s.byID, id)
	delete(s.pointSet, id)
	delete(s.lineSet, id)
}

// TopLevelPoints returns the ids of all top-level point-like
// registrations (Points, or Groups whose leaves are Points).
func (s *Store) TopLevelPoints() []ID {
	out := make([]ID, 0, len(s.pointSet))
	for id := range s.pointSet {
		out = append(out, id)
	}
	return out
}

// TopLevelLines returns the ids of all top-level line-like
// registrations.
func (s *Store) TopLevelLines() []ID {
	out := make([]ID, 0, len(s.lineSet))
	for id := range s.lineSet {
		out = append(out, id)
	}
	return out
}

// All returns every live primitive. Order is unspecified.
func (s *Store) All() []Primitive {
	out := make([]Primitive, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	return out
}

// WalkLeaves is the group-tree view: a depth-first iterator over leaf
// primitives (Point or Line) reachable from root, without materialising
// a flat list. Visiting stops early if visit returns false.
func (s *Store) WalkLeaves(root Primitive, visit func(leaf Primitive) bool) {
	s.walk(root, visit)
}

func (s *Store) walk(p Primitive, visit func(Primitive) bool) bool {
	g, ok := p.(*Group)
	if !ok {
		return visit(p)
	}
	for _, c := range g.Children {
		child, ok := s.byID[c.ID]
		if !ok {
			continue // reaped mid-walk; tolerated, not a contract violation
		}
		if !s.walk(child, visit) {
			return false
		}
	}
	return true
}

// RootOf walks up from id to the outermost containing group. The
// returned Primitive is the one collision callbacks receive — dispatch
// is always by the shape of the root collider.
func (s *Store) RootOf(id ID) Primitive {
	p, ok := s.byID[id]
	if !ok {
		return nil
	}
	for {
		gid := p.BodyPtr().groupID
		if gid == 0 {
			return p
		}
		parent, ok := s.byID[gid]
		if !ok {
			return p
		}
		p = parent
	}
}

// SyncGroupTransform propagates a group's position/velocity/mass/
// elasticity to its children and recomputes the group's bounding box as
// the merge of child bounding boxes, after the children's own bounding
// boxes have been updated for the step.
func (s *Store) SyncGroupTransform(g *Group) {
	bb := vecmath.Maximized()
	for _, c := range g.Children {
		child, ok := s.byID[c.ID]
		if !ok {
			continue
		}
		cb := child.BodyPtr()
		cb.Position = g.Position.Add(c.Offset)
		cb.Dir = g.Dir
		cb.Velocity = g.Velocity
		cb.Mass = g.Mass
		cb.Elasticity = g.Elasticity
		cb.GravityOn = g.GravityOn
		switch v := child.(type) {
		case *Point:
			v.UpdateBB(0)
		case *Line:
			v.UpdateBB(0)
		case *Group:
			s.SyncGroupTransform(v)
		}
		bb = bb.Merge(cb.BB)
	}
	g.BB = bb
}

// SweepGroupBB computes a top-level group's swept bounding box for the
// upcoming step as the merge of every child's current box and that same
// box translated by vel*dt, letting group-vs-line broadphase tests run
// before the group has actually moved this step.
func (s *Store) SweepGroupBB(g *Group, vel Vector, dt float64) BBox {
	bb := vecmath.Maximized()
	delta := vel.Scale(dt)
	for _, c := range g.Children {
		child, ok := s.byID[c.ID]
		if !ok {
			continue
		}
		cb := child.BodyPtr().BB
		bb = bb.Merge(cb).Merge(cb.Translated(delta))
	}
	g.BB = bb
	return bb
}
