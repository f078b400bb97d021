package game

import (
	"fmt"
	"strconv"

	"deadfall/internal/config"
	"deadfall/internal/physics"
	"deadfall/internal/replication"
	"deadfall/internal/vecmath"
)

// Wall is one static line segment of the level geometry. Walls are
// fixed, untagged line primitives: bullets ricochet off them and
// nothing else in the narrowphase cares about them.
type Wall struct {
	From       vecmath.Vector
	To         vecmath.Vector
	Elasticity float64
}

// Level is the static geometry a match runs on: a spawn point, one-way
// platforms the players stand on, and solid walls.
type Level struct {
	Name      string
	Spawn     vecmath.Vector
	Platforms []physics.Platform
	Walls     []Wall
}

// DefaultLevel is a small three-platform arena used when no level file
// is configured.
func DefaultLevel() *Level {
	return &Level{
		Name:  "arena",
		Spawn: vecmath.Vector{X: 400, Y: 200},
		Platforms: []physics.Platform{
			{Name: "ground", X: 100, Y: 600, Len: 1400},
			{Name: "ledge-left", X: 250, Y: 430, Len: 280},
			{Name: "ledge-right", X: 1050, Y: 430, Len: 280},
		},
		Walls: []Wall{
			{From: vecmath.Vector{X: 80, Y: -400}, To: vecmath.Vector{X: 80, Y: 700}, Elasticity: 0.6},
			{From: vecmath.Vector{X: 1520, Y: -400}, To: vecmath.Vector{X: 1520, Y: 700}, Elasticity: 0.6},
		},
	}
}

// LevelFromStore reads a [level] section plus one [platform.<name>] /
// [wall.<n>] section per element:
//
//	[level]
//	name    = arena
//	spawn   = 400 200
//
//	[platform.ground]
//	rect = 100 600 1400
//
//	[wall.0]
//	line = 80 -400 80 700
func LevelFromStore(s *config.Store) (*Level, error) {
	lvl := &Level{Name: s.String("level", "name", "unnamed")}

	spawn, err := s.Tuple("level", "spawn", 2)
	if err != nil {
		return nil, fmt.Errorf("level: bad spawn: %w", err)
	}
	lvl.Spawn = vecmath.Vector{X: atofOr(spawn[0], 0), Y: atofOr(spawn[1], 0)}

	for _, name := range s.SectionsWithPrefix("platform.") {
		rect, err := s.Tuple(name, "rect", 3)
		if err != nil {
			return nil, fmt.Errorf("level: platform %q: %w", name, err)
		}
		lvl.Platforms = append(lvl.Platforms, physics.Platform{
			Name: name[len("platform."):],
			X:    atofOr(rect[0], 0), Y: atofOr(rect[1], 0), Len: atofOr(rect[2], 0),
		})
	}
	for _, name := range s.SectionsWithPrefix("wall.") {
		line, err := s.Tuple(name, "line", 4)
		if err != nil {
			return nil, fmt.Errorf("level: wall %q: %w", name, err)
		}
		lvl.Walls = append(lvl.Walls, Wall{
			From:       vecmath.Vector{X: atofOr(line[0], 0), Y: atofOr(line[1], 0)},
			To:         vecmath.Vector{X: atofOr(line[2], 0), Y: atofOr(line[3], 0)},
			Elasticity: 0.6,
		})
	}
	if len(lvl.Platforms) == 0 {
		return nil, fmt.Errorf("level %q: no platforms", lvl.Name)
	}
	return lvl, nil
}

func atofOr(s string, def float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// Apply installs the level's static geometry into the simulator,
// replacing whatever platforms were there. Wall primitives are added as
// fixed, untagged lines; the returned ids let a caller tear the level
// down again.
func (l *Level) Apply(sim *physics.Simulator) []physics.ID {
	sim.ClearPlatforms()
	for _, p := range l.Platforms {
		sim.AddPlatform(p)
	}
	ids := make([]physics.ID, 0, len(l.Walls))
	for _, w := range l.Walls {
		line := &physics.Line{
			Body: physics.Body{
				Position:   w.From,
				Fixed:      true,
				Elasticity: w.Elasticity,
				UserTag:    physics.TagNone,
			},
			Displacement: w.To.Sub(w.From),
		}
		ids = append(ids, sim.AddPrimitive(line))
	}
	return ids
}

// ToSync converts the platform layout into the wire action broadcast to
// joining clients.
func (l *Level) ToSync() replication.LevelSync {
	sync := replication.LevelSync{Platforms: make([]replication.PlatformWire, 0, len(l.Platforms))}
	for _, p := range l.Platforms {
		sync.Platforms = append(sync.Platforms, replication.PlatformWire{
			Name: p.Name, X: float32(p.X), Y: float32(p.Y), Len: float32(p.Len),
		})
	}
	return sync
}

// LevelFromSync rebuilds a client-side level from a LevelSync action.
// Walls are not carried on the wire; the client only needs platforms
// for prediction and AI.
func LevelFromSync(name string, spawn vecmath.Vector, sync replication.LevelSync) *Level {
	lvl := &Level{Name: name, Spawn: spawn}
	for _, p := range sync.Platforms {
		lvl.Platforms = append(lvl.Platforms, physics.Platform{
			Name: p.Name, X: float64(p.X), Y: float64(p.Y), Len: float64(p.Len),
		})
	}
	return lvl
}
