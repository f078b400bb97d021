// Package vecmath provides the 2-D vector and bounding-box primitives
// shared by the physics, entity and AI packages.
package vecmath

import "math"

// Vector is a 2-D float vector used throughout the simulation core.
type Vector struct {
	X, Y float64
}

// Zero is the additive identity.
var Zero = Vector{}

func (v Vector) Add(o Vector) Vector    { return Vector{v.X + o.X, v.Y + o.Y} }
func (v Vector) Sub(o Vector) Vector    { return Vector{v.X - o.X, v.Y - o.Y} }
func (v Vector) Scale(s float64) Vector { return Vector{v.X * s, v.Y * s} }
func (v Vector) Dot(o Vector) float64   { return v.X*o.X + v.Y*o.Y }
func (v Vector) Cross(o Vector) float64 { return v.X*o.Y - v.Y*o.X }

func (v Vector) Length() float64   { return math.Sqrt(v.X*v.X + v.Y*v.Y) }
func (v Vector) LengthSq() float64 { return v.X*v.X + v.Y*v.Y }

// Normalized returns a unit vector in the direction of v, or Zero if v has
// no length.
func (v Vector) Normalized() Vector {
	l := v.Length()
	if l < 1e-12 {
		return Vector{}
	}
	return Vector{v.X / l, v.Y / l}
}

// Reflect reflects v across the line whose unit normal is n.
func (v Vector) Reflect(n Vector) Vector {
	d := v.Dot(n)
	return Vector{v.X - 2*n.X*d, v.Y - 2*n.Y*d}
}

// Lerp returns the linear interpolation between v and o at fraction f.
func (v Vector) Lerp(o Vector, f float64) Vector {
	return Vector{v.X + (o.X-v.X)*f, v.Y + (o.Y-v.Y)*f}
}

// Perp returns the vector rotated 90 degrees counter-clockwise.
func (v Vector) Perp() Vector { return Vector{-v.Y, v.X} }

// BBox is an axis-aligned bounding box stored as (min, max).
type BBox struct {
	Min, Max Vector
}

// Maximized returns a degenerate bounding box used as the merge identity:
// Min is +inf, Max is -inf, so that Merge(Maximized(), x) == x.
func Maximized() BBox {
	return BBox{
		Min: Vector{math.Inf(1), math.Inf(1)},
		Max: Vector{math.Inf(-1), math.Inf(-1)},
	}
}

// FromPoint returns a zero-extent box at p.
func FromPoint(p Vector) BBox { return BBox{Min: p, Max: p} }

// FromPoints returns the smallest box containing both points.
func FromPoints(a, b Vector) BBox {
	bb := BBox{
		Min: Vector{math.Min(a.X, b.X), math.Min(a.Y, b.Y)},
		Max: Vector{math.Max(a.X, b.X), math.Max(a.Y, b.Y)},
	}
	return bb
}

// Merge returns the smallest box containing both b and o.
func (b BBox) Merge(o BBox) BBox {
	return BBox{
		Min: Vector{math.Min(b.Min.X, o.Min.X), math.Min(b.Min.Y, o.Min.Y)},
		Max: Vector{math.Max(b.Max.X, o.Max.X), math.Max(b.Max.Y, o.Max.Y)},
	}
}

// Expand grows the box by a minimum amount per axis; used so degenerate
// (zero-extent) boxes never fail an intersection test for the wrong reason.
func (b BBox) Expand(minExtent float64) BBox {
	out := b
	if out.Max.X-out.Min.X < minExtent {
		c := (out.Max.X + out.Min.X) / 2
		out.Min.X, out.Max.X = c-minExtent/2, c+minExtent/2
	}
	if out.Max.Y-out.Min.Y < minExtent {
		c := (out.Max.Y + out.Min.Y) / 2
		out.Min.Y, out.Max.Y = c-minExtent/2, c+minExtent/2
	}
	return out
}

// Intersects reports whether b and o overlap (touching counts as overlap).
func (b BBox) Intersects(o BBox) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y
}

// Contains reports whether p lies within b (inclusive).
func (b BBox) Contains(p Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Translated returns b shifted by d.
func (b BBox) Translated(d Vector) BBox {
	return BBox{b.Min.Add(d), b.Max.Add(d)}
}
