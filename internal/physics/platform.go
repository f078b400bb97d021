package physics

// Platform is a horizontal one-way floor: a position and a length.
// Bodies whose foot leaf carries AllowPlatform may land on it from
// above only.
type Platform struct {
	// Name is a stable identifier used by the AI worker's platform
	// distance map; it is not part of the collision math.
	Name string
	X    float64 // left edge
	Y    float64
	Len  float64
}

// Right returns the platform's right edge.
func (p Platform) Right() float64 { return p.X + p.Len }

// overlapsX reports whether [lo, hi] overlaps the platform's X span.
func (p Platform) overlapsX(lo, hi float64) bool {
	return hi >= p.X && lo <= p.Right()
}

// AddPlatform registers a platform.
func (s *Store) AddPlatform(p Platform) { s.platforms = append(s.platforms, p) }

// ClearPlatforms removes every registered platform.
func (s *Store) ClearPlatforms() { s.platforms = nil }

// Platforms returns the live platform list. Callers must not mutate the
// returned slice.
func (s *Store) Platforms() []Platform { return s.platforms }
