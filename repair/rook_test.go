package repair

import (
	"testing"

	"github.com/twpayne/go-geos"
)

// nearQueenUnits builds four rectangles around an almost-queen corner: the
// middle pair shares a rook edge of length 0.1 along y=1.
func nearQueenUnits() []*geos.Geom {
	return []*geos.Geom{
		sq(0, 0, 1, 1),     // a
		sq(1, 0, 2, 1),     // b
		sq(0.1, 1, 1.1, 2), // c
		sq(1.1, 1, 2, 2),   // d
	}
}

func TestAdjacencies(t *testing.T) {
	adj := adjacencies(nearQueenUnits())
	if len(adj) != 5 {
		t.Fatalf("got %d adjacencies, want 5", len(adj))
	}
	lengths := make(map[[2]int]float64)
	for _, a := range adj {
		lengths[[2]int{a.a, a.b}] = a.geom.Length()
	}
	if !near(lengths[[2]int{1, 2}], 0.1, 1e-9) {
		t.Errorf("b-c adjacency length = %v, want 0.1", lengths[[2]int{1, 2}])
	}
	if !near(lengths[[2]int{0, 1}], 1, 1e-9) {
		t.Errorf("a-b adjacency length = %v, want 1", lengths[[2]int{0, 1}])
	}
}

func TestSmallRookToQueen(t *testing.T) {
	units := nearQueenUnits()
	before := 0.0
	for _, u := range units {
		before += u.Area()
	}

	smallRookToQueen(units, 0.5)

	after := 0.0
	for _, u := range units {
		after += u.Area()
	}
	if !near(after, before, 1e-6) {
		t.Errorf("total area = %v, want %v", after, before)
	}

	// The short b-c edge is now a single shared point.
	inter := units[1].Intersection(units[2])
	if inter.IsEmpty() {
		t.Fatal("b and c no longer touch")
	}
	if inter.Length() != 0 {
		t.Errorf("b-c intersection has length %v, want a point", inter.Length())
	}

	// Long adjacencies keep a substantial shared edge; only its end near
	// the carved disk is reshaped.
	ab := units[0].Intersection(units[1])
	if ab.Length() < 0.9 {
		t.Errorf("a-b adjacency length = %v, want most of the original edge", ab.Length())
	}
}

func TestMergeDisksDisjoint(t *testing.T) {
	disks := []*geos.Geom{
		pointGeom(pt(0, 0)).Buffer(1, 8),
		pointGeom(pt(10, 0)).Buffer(1, 8),
	}
	merged := mergeDisks(disks)
	if len(merged) != 2 {
		t.Errorf("got %d disks, want 2", len(merged))
	}
}

func TestMergeDisksOverlapping(t *testing.T) {
	disks := []*geos.Geom{
		pointGeom(pt(0, 0)).Buffer(1, 8),
		pointGeom(pt(1, 0)).Buffer(1, 8),
	}
	merged := mergeDisks(disks)
	if len(merged) != 1 {
		t.Fatalf("got %d disks, want 1", len(merged))
	}
	if merged[0].TypeID() != geos.TypeIDPolygon {
		t.Errorf("merged disk is not a polygon")
	}
}
