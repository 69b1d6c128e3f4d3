package repair

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/twpayne/go-geos"
)

func sq(x0, y0, x1, y1 float64) *geos.Geom {
	return geos.NewPolygon([][][]float64{{
		{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
	}})
}

func poly(points ...[]float64) *geos.Geom {
	ring := append([][]float64{}, points...)
	ring = append(ring, points[0])
	return geos.NewPolygon([][][]float64{ring})
}

func pt(x, y float64) r2.Point {
	return r2.Point{X: x, Y: y}
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestSignedArea(t *testing.T) {
	ccw := []r2.Point{pt(0, 0), pt(1, 0), pt(1, 1), pt(0, 1)}
	if got := signedArea(ccw); got != 1 {
		t.Errorf("ccw area = %v, want 1", got)
	}
	cw := []r2.Point{pt(0, 0), pt(0, 1), pt(1, 1), pt(1, 0)}
	if got := signedArea(cw); got != -1 {
		t.Errorf("cw area = %v, want -1", got)
	}
}

func TestOrientPolygon(t *testing.T) {
	clockwise := poly([]float64{0, 0}, []float64{0, 1}, []float64{1, 1}, []float64{1, 0})
	oriented := orientPolygon(clockwise)
	if got := signedArea(exteriorPoints(oriented)); got <= 0 {
		t.Errorf("shell signed area = %v, want positive", got)
	}
	if oriented.Area() != 1 {
		t.Errorf("area = %v, want 1", oriented.Area())
	}
}

func TestBoundarySegmentSet(t *testing.T) {
	set := boundarySegmentSet(sq(0, 0, 1, 1))
	// Both orientations of every edge are present.
	if !set[segment{A: pt(0, 0), B: pt(1, 0)}] {
		t.Error("missing bottom edge")
	}
	if !set[segment{A: pt(1, 0), B: pt(0, 0)}] {
		t.Error("missing reversed bottom edge")
	}
	if set[segment{A: pt(0, 0), B: pt(1, 1)}] {
		t.Error("diagonal should not be present")
	}
}

func TestMergePolylines(t *testing.T) {
	segs := []segment{
		{A: pt(0, 0), B: pt(1, 0)},
		{A: pt(1, 0), B: pt(2, 0)},
		{A: pt(5, 0), B: pt(6, 0)},
	}
	chains := mergePolylines(segs)
	if len(chains) != 2 {
		t.Fatalf("got %d chains, want 2", len(chains))
	}
	if len(chains[0]) != 3 || chains[0][0] != pt(0, 0) || chains[0][2] != pt(2, 0) {
		t.Errorf("first chain = %v", chains[0])
	}
	if len(chains[1]) != 2 {
		t.Errorf("second chain = %v", chains[1])
	}
}

func TestMergePolylinesReversedSegments(t *testing.T) {
	// Direction must not matter when chaining.
	segs := []segment{
		{A: pt(0, 0), B: pt(1, 0)},
		{A: pt(2, 0), B: pt(1, 0)},
	}
	chains := mergePolylines(segs)
	if len(chains) != 1 {
		t.Fatalf("got %d chains, want 1", len(chains))
	}
	if len(chains[0]) != 3 {
		t.Errorf("chain = %v, want 3 points", chains[0])
	}
}

func TestPolygonizeLines(t *testing.T) {
	lines := []*geos.Geom{
		sq(0, 0, 2, 1).Boundary(),
		lineString([]r2.Point{pt(1, 0), pt(1, 1)}),
	}
	faces := polygonizeLines(lines)
	if len(faces) != 2 {
		t.Fatalf("got %d faces, want 2", len(faces))
	}
	total := 0.0
	for _, f := range faces {
		total += f.Area()
	}
	if !near(total, 2, 1e-9) {
		t.Errorf("total face area = %v, want 2", total)
	}
}

func TestSharedBoundaryLength(t *testing.T) {
	a := sq(0, 0, 1, 1)
	b := sq(1, 0, 2, 1)
	if got := sharedBoundaryLength(a, b); !near(got, 1, 1e-9) {
		t.Errorf("shared length = %v, want 1", got)
	}
	c := sq(5, 5, 6, 6)
	if got := sharedBoundaryLength(a, c); got != 0 {
		t.Errorf("disjoint shared length = %v, want 0", got)
	}
}

func TestNearestVertex(t *testing.T) {
	target := pointGeom(pt(0.1, 0))
	candidates := []r2.Point{pt(5, 5), pt(0, 0), pt(1, 1)}
	got, pos := nearestVertex(target, candidates)
	if got != pt(0, 0) || pos != 1 {
		t.Errorf("nearest = %v at %d, want (0,0) at 1", got, pos)
	}
}
