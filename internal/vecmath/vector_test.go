package vecmath

import "testing"

func TestMaximizedIsMergeIdentity(t *testing.T) {
	x := BBox{Min: Vector{1, 2}, Max: Vector{3, 4}}
	got := Maximized().Merge(x)
	if got != x {
		t.Fatalf("Maximized().Merge(x) = %+v, want %+v", got, x)
	}
}

func TestFromPointsOrdersMinMax(t *testing.T) {
	bb := FromPoints(Vector{5, -2}, Vector{-1, 3})
	if bb.Min != (Vector{-1, -2}) || bb.Max != (Vector{5, 3}) {
		t.Fatalf("unexpected box: %+v", bb)
	}
}

func TestIntersectsTouching(t *testing.T) {
	a := BBox{Vector{0, 0}, Vector{1, 1}}
	b := BBox{Vector{1, 1}, Vector{2, 2}}
	if !a.Intersects(b) {
		t.Fatalf("touching boxes should intersect")
	}
}

func TestNormalizedZero(t *testing.T) {
	if got := (Vector{}).Normalized(); got != (Vector{}) {
		t.Fatalf("Normalized() of zero vector = %+v, want zero", got)
	}
}

func TestReflect(t *testing.T) {
	v := Vector{1, -1}
	n := Vector{0, 1}
	got := v.Reflect(n)
	want := Vector{-1, 1}
	if diff := got.Sub(want).Length(); diff > 1e-9 {
		t.Fatalf("Reflect = %+v, want %+v", got, want)
	}
}
