package entity

import (
	"deadfall/internal/physics"
	"deadfall/internal/vecmath"
)

// playerShapeOffsets mirrors the four edge offsets NewPlayer uses, so an
// adjustment box re-materialises exactly the player's collision shape.
var playerShapeOffsets = [4]struct{ offset, disp vecmath.Vector }{
	{vecmath.Vector{X: -playerHalfWidth, Y: -playerHalfHeight}, vecmath.Vector{X: 2 * playerHalfWidth}},
	{vecmath.Vector{X: playerHalfWidth, Y: -playerHalfHeight}, vecmath.Vector{Y: 2 * playerHalfHeight}},
	{vecmath.Vector{X: playerHalfWidth, Y: playerHalfHeight}, vecmath.Vector{X: -2 * playerHalfWidth}},
	{vecmath.Vector{X: -playerHalfWidth, Y: playerHalfHeight}, vecmath.Vector{Y: -2 * playerHalfHeight}},
}

// AdjustmentBox re-materialises a remote player's historical collision
// shape for one step so a shooter's local hit registration agrees with
// what their screen showed at the moment they fired.
//
// The box discriminates friendly fire by the referenced player's
// *current* group tag, not the tag at shot time.
type AdjustmentBox struct {
	GroupID   physics.ID
	PlayerRef int // entity-table index of the player this box replays
	SpawnPos  vecmath.Vector
	Fired     bool
}

// AdjustmentBoxManager owns the live adjustment-box set. A box is a
// Group tagged TagAdjustmentBox with GravityOn set purely so its
// position becomes non-zero-displaced on the very next step; the
// manager's sweep then reaps it, which is the idiomatic restatement of
// "the adjustment box survives exactly one step."
type AdjustmentBoxManager struct {
	sim   *physics.Simulator
	boxes map[physics.ID]*AdjustmentBox
}

// NewAdjustmentBoxManager constructs a manager and registers its sweep.
func NewAdjustmentBoxManager(sim *physics.Simulator) *AdjustmentBoxManager {
	m := &AdjustmentBoxManager{sim: sim, boxes: make(map[physics.ID]*AdjustmentBox)}
	sim.OnStep("adjustment-box-sweep", m.sweep)
	return m
}

// Spawn materialises a one-shot replay of playerRef's shape at
// histPos.
func (m *AdjustmentBoxManager) Spawn(playerRef int, histPos vecmath.Vector) *AdjustmentBox {
	group := &physics.Group{Body: physics.Body{
		Position: histPos, GravityOn: true,
		UserTag: physics.TagAdjustmentBox, UserRef: playerRef,
	}}
	groupID := m.sim.AddPrimitive(group)
	for _, e := range playerShapeOffsets {
		line := &physics.Line{
			Body:         physics.Body{Position: histPos.Add(e.offset), UserTag: physics.TagAdjustmentBox, UserRef: playerRef},
			Displacement: e.disp,
		}
		id := m.sim.AddPrimitive(line)
		_ = m.sim.Store().AddChild(groupID, id, e.offset)
	}
	m.sim.Store().SyncGroupTransform(group)

	box := &AdjustmentBox{GroupID: groupID, PlayerRef: playerRef, SpawnPos: histPos}
	m.boxes[groupID] = box
	return box
}

// MarkFired records that the dedicated bullet-vs-adjustment-box
// callback has already consumed this box, so the next sweep reaps it
// immediately regardless of displacement.
func (m *AdjustmentBoxManager) MarkFired(id physics.ID) {
	if b, ok := m.boxes[id]; ok {
		b.Fired = true
	}
}

// Get returns the AdjustmentBox bookkeeping for a group id.
func (m *AdjustmentBoxManager) Get(id physics.ID) (*AdjustmentBox, bool) {
	b, ok := m.boxes[id]
	return b, ok
}

func (m *AdjustmentBoxManager) sweep(sim *physics.Simulator, dt float64) {
	for id, box := range m.boxes {
		prim, ok := sim.Store().Get(id)
		if !ok {
			delete(m.boxes, id)
			continue
		}
		if box.Fired || prim.BodyPtr().DeleteLater {
			sim.RemovePrimitive(id)
			delete(m.boxes, id)
			continue
		}
		if prim.BodyPtr().Position.Sub(box.SpawnPos).Length() > 1e-9 {
			sim.RemovePrimitive(id)
			delete(m.boxes, id)
		}
	}
}
