package repair

import (
	"testing"
)

func TestTriangulateSquare(t *testing.T) {
	triangles := triangulatePolygon(sq(0, 0, 1, 1))
	if len(triangles) != 2 {
		t.Fatalf("got %d triangles, want 2", len(triangles))
	}
	total := 0.0
	for _, tri := range triangles {
		if len(exteriorPoints(tri)) != 3 {
			t.Errorf("piece with %d vertices, want 3", len(exteriorPoints(tri)))
		}
		total += tri.Area()
	}
	if !near(total, 1, 1e-9) {
		t.Errorf("total area = %v, want 1", total)
	}
}

func TestTriangulateLShape(t *testing.T) {
	l := poly(
		[]float64{0, 0}, []float64{2, 0}, []float64{2, 1},
		[]float64{1, 1}, []float64{1, 2}, []float64{0, 2},
	)
	triangles := triangulatePolygon(l)
	total := 0.0
	for _, tri := range triangles {
		total += tri.Area()
	}
	if !near(total, 3, 1e-9) {
		t.Errorf("total area = %v, want 3", total)
	}
	if len(triangles) != 4 {
		t.Errorf("got %d triangles, want 4", len(triangles))
	}
}

func TestIncenterRightTriangle(t *testing.T) {
	tri := poly([]float64{0, 0}, []float64{1, 0}, []float64{0, 1})
	center := incenter(tri)
	// Inradius of the unit right triangle.
	r := (2 - 1.4142135623730951) / 2
	if !near(center.X, r, 1e-9) || !near(center.Y, r, 1e-9) {
		t.Errorf("incenter = %v, want (%v, %v)", center, r, r)
	}
}

func TestShortestPathDirect(t *testing.T) {
	path := shortestPathInPolygon(sq(0, 0, 1, 1), pt(0, 0), pt(1, 1), nil)
	if len(path) != 2 || path[0] != pt(0, 0) || path[1] != pt(1, 1) {
		t.Errorf("path = %v, want direct segment", path)
	}
}

func TestShortestPathAroundCorner(t *testing.T) {
	l := poly(
		[]float64{0, 0}, []float64{2, 0}, []float64{2, 1},
		[]float64{1, 1}, []float64{1, 2}, []float64{0, 2},
	)
	triangles := triangulatePolygon(l)
	path := shortestPathInPolygon(l, pt(2, 0), pt(0, 2), triangles)

	if len(path) != 3 {
		t.Fatalf("path = %v, want 3 points", path)
	}
	if path[0] != pt(2, 0) || path[1] != pt(1, 1) || path[2] != pt(0, 2) {
		t.Errorf("path = %v, want to bend at the reflex corner (1,1)", path)
	}
}
