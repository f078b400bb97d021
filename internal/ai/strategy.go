package ai

import (
	"math"

	"deadfall/internal/vecmath"
)

// Difficulty tiers selectable per operator.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// goal is one sub-objective the move planner can assign a priority to.
type goal struct {
	priority int
	move     Action // ActionMoveLeft, ActionMoveRight or ActionStop
}

// moveGoals accumulates sub-objective votes; at equal priority the
// LAST one registered wins (pinned down by
// TestMovePlannerEqualPriorityLastWriterWins).
type moveGoals struct {
	best *goal
}

func (g *moveGoals) vote(priority int, move Action) {
	if g.best == nil || priority >= g.best.priority {
		g.best = &goal{priority: priority, move: move}
	}
}

func (g *moveGoals) resolve() Action {
	if g.best == nil {
		return ActionStop
	}
	return g.best.move
}

// baseStrategy is the skeleton shared by all three difficulties; the difficulty-specific knobs (visibility
// check, dodge behaviour) are fields rather than separate types so the
// skeleton logic lives exactly once.
type baseStrategy struct {
	difficulty       string
	visibilityCheck  bool // hard only: line-of-sight + dispersion-aware
	dodgeBullets     bool // hard only: micro-delay-jump dodge
	keepDistance     float64
	approachDistance float64
	borderMargin     float64
	worldMinX        float64
	worldMaxX        float64
}

// NewStrategy builds the shared-skeleton strategy for one of the three
// named difficulties.
func NewStrategy(difficulty string, worldMinX, worldMaxX float64) Strategy {
	s := &baseStrategy{
		difficulty:   difficulty,
		keepDistance: 120, approachDistance: 600,
		borderMargin: 80, worldMinX: worldMinX, worldMaxX: worldMaxX,
	}
	switch difficulty {
	case DifficultyHard:
		s.visibilityCheck = true
		s.dodgeBullets = true
	case DifficultyMedium:
		s.visibilityCheck = false
		s.dodgeBullets = false
	default: // easy
		s.keepDistance = 60
		s.approachDistance = 900
	}
	return s
}

func (s *baseStrategy) Difficulty() string { return s.difficulty }

// Decide runs one pass: target acquisition, platform context, move
// planning and shot planning.
func (s *baseStrategy) Decide(snap *Snapshot, playerName string, st *OperatorState) []Action {
	self, ok := snap.Players[playerName]
	if !ok || !self.Alive {
		return []Action{ActionRelax, ActionStop}
	}

	target, targetName, found := s.findTarget(snap, playerName, self)
	var actions []Action

	actions = append(actions, s.planMove(snap, self, target, found, st)...)

	if found {
		st.LastTargetRef = targetName
		if shot, ok := s.planShot(self, target); ok {
			actions = append(actions, shot)
		}
		if s.dodgeBullets && s.predictedHit(snap, self) {
			st.DodgeTimer = 0.2
			actions = append(actions, ActionJump)
		}
	} else {
		st.LastTargetRef = ""
	}

	return actions
}

// findTarget picks the nearest eligible player, excluding anyone in
// the same group; on hard, a dispersion-aware visibility check is
// applied on top of proximity.
func (s *baseStrategy) findTarget(snap *Snapshot, selfName string, self PlayerParams) (PlayerParams, string, bool) {
	bestDist := math.Inf(1)
	var best PlayerParams
	var bestName string
	found := false

	for name, p := range snap.Players {
		if name == selfName || !p.Alive {
			continue
		}
		if self.Group >= 0 && p.Group == self.Group {
			continue // same group: excluded from targeting
		}
		d := p.Position.Sub(self.Position).Length()
		if s.visibilityCheck && !s.visible(snap, self, p) {
			continue
		}
		if d < bestDist {
			bestDist = d
			best = p
			bestName = name
			found = true
		}
	}
	return best, bestName, found
}

// visible is the hard-difficulty line-of-sight check: a target is
// "visible" if the straight line to it does not pass within the gun's
// dispersion-adjusted width of an intervening platform edge. This is a
// deliberately simple occlusion test, not a full raycast against every
// primitive.
func (s *baseStrategy) visible(snap *Snapshot, self, target PlayerParams) bool {
	dir := target.Position.Sub(self.Position)
	dist := dir.Length()
	if dist < 1e-6 {
		return true
	}
	dir = dir.Normalized()
	coneHalfWidth := math.Tan(self.GunDispersion) * dist

	for _, plat := range snap.Platforms {
		// Only platforms whose Y lies between shooter and target
		// (inclusive) can occlude a roughly horizontal shot.
		loY, hiY := self.Position.Y, target.Position.Y
		if loY > hiY {
			loY, hiY = hiY, loY
		}
		if plat.Y < loY || plat.Y > hiY {
			continue
		}
		if dir.Y == 0 {
			continue
		}
		t := (plat.Y - self.Position.Y) / (dir.Y * dist)
		if t < 0 || t > 1 {
			continue
		}
		hitX := self.Position.X + dir.X*dist*t
		if hitX >= plat.X-coneHalfWidth && hitX <= plat.Right()+coneHalfWidth {
			return false
		}
	}
	return true
}

// platformContext resolves which platform (if any) self stands on and
// the overall nearest platform. The platform self could reach next is
// not part of it.
type platformContext struct {
	standingOn string // "" if airborne
	nearest    string
	nearestIdx int
}

func (s *baseStrategy) resolvePlatformContext(snap *Snapshot, self PlayerParams) platformContext {
	ctx := platformContext{nearestIdx: -1}
	bestDist := math.Inf(1)
	for i, p := range snap.Platforms {
		if self.YLocked && self.Position.Y >= p.Y-1 && self.Position.Y <= p.Y+1 &&
			self.Position.X >= p.X && self.Position.X <= p.Right() {
			ctx.standingOn = p.Name
		}
		d := p.Center().Sub(self.Position).Length()
		if d < bestDist {
			bestDist = d
			ctx.nearest = p.Name
			ctx.nearestIdx = i
		}
	}
	return ctx
}

// planMove merges the move sub-objectives with a last-writer-wins tie
// break at equal priority: avoid-borders (highest), keep-distance,
// approach, then pathfind-to-target as the lowest-priority fallback.
// No sub-objective guards against walking off a platform edge.
func (s *baseStrategy) planMove(snap *Snapshot, self PlayerParams, target PlayerParams, haveTarget bool, st *OperatorState) []Action {
	var goals moveGoals

	ctx := s.resolvePlatformContext(snap, self)

	if haveTarget {
		d := target.Position.X - self.Position.X
		dist := math.Abs(d)
		switch {
		case dist < s.keepDistance:
			goals.vote(40, awayFrom(d))
		case dist > s.approachDistance:
			goals.vote(30, toward(d))
		default:
			goals.vote(20, toward(d))
		}
	}

	if self.Position.X < s.worldMinX+s.borderMargin {
		goals.vote(50, ActionMoveRight)
	} else if self.Position.X > s.worldMaxX-s.borderMargin {
		goals.vote(50, ActionMoveLeft)
	}

	if ctx.standingOn == "" && self.YLocked {
		// Airborne-but-flagged-locked is a stale snapshot read; nothing
		// to plan defensively here beyond falling through to the
		// lower-priority goals.
	}

	if haveTarget && ctx.standingOn != "" {
		targetCtx := s.resolvePlatformContext(snap, target)
		if targetCtx.standingOn != "" && targetCtx.standingOn != ctx.standingOn {
			path := AStarPath(snap, ctx.standingOn, targetCtx.standingOn)
			if len(path) > 1 {
				st.CurrentPath = path
				nextIdx := platformIndex(snap, path[1])
				if nextIdx >= 0 {
					d := snap.Platforms[nextIdx].Center().X - self.Position.X
					goals.vote(10, toward(d))
				}
			}
		}
	}

	action := goals.resolve()
	if action == ActionStop {
		return []Action{ActionStop}
	}
	return []Action{action}
}

func toward(dx float64) Action {
	if dx < 0 {
		return ActionMoveLeft
	}
	return ActionMoveRight
}

func awayFrom(dx float64) Action {
	if dx < 0 {
		return ActionMoveRight
	}
	return ActionMoveLeft
}

// planShot predicts the target's position at the bullet's time of
// flight under gravity, solves for the vertical intercept, and only
// fires when the angular error stays inside the gun's dispersion cone.
func (s *baseStrategy) planShot(self, target PlayerParams) (Action, bool) {
	if self.GunBulletVel <= 0 {
		return ActionStop, false
	}
	dx := target.Position.X - self.Position.X
	dist := math.Abs(dx)
	if dist < 1e-6 || dist > self.GunMaxTravel {
		return ActionStop, false
	}

	t := dist / self.GunBulletVel
	predictedY := target.Position.Y + target.Velocity.Y*t
	predictedX := target.Position.X + target.Velocity.X*t

	aimDir := vecmath.Vector{X: predictedX - self.Position.X, Y: predictedY - self.Position.Y}
	if aimDir.Length() < 1e-6 {
		return ActionStop, false
	}
	facing := vecmath.Vector{X: 1}
	if self.FacingLeft {
		facing = vecmath.Vector{X: -1}
	}
	cosAngle := facing.Normalized().Dot(aimDir.Normalized())
	angle := math.Acos(clamp(cosAngle, -1, 1))

	if angle > self.GunDispersion {
		return ActionStop, false
	}
	return ActionShot, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// predictedHit is the hard-difficulty dodge check: does any live
// bullet's straight-line extrapolation pass within the self hitbox's
// half-width over the next short horizon?
func (s *baseStrategy) predictedHit(snap *Snapshot, self PlayerParams) bool {
	const horizon = 0.35
	for _, b := range snap.Bullets {
		if b.Group >= 0 && b.Group == self.Group {
			continue
		}
		// Approximate point-vs-AABB sweep by sampling the bullet's
		// position at several sub-horizons rather than solving the
		// swept-segment intersection exactly; cheap and adequate for a
		// "should I flinch" heuristic.
		for i := 1; i <= 4; i++ {
			f := float64(i) / 4 * horizon
			p := b.Pos.Add(b.Vel.Scale(f))
			if math.Abs(p.X-self.Position.X) < self.HalfSize.X && math.Abs(p.Y-self.Position.Y) < self.HalfSize.Y {
				return true
			}
		}
	}
	return false
}
