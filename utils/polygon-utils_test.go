package utils

import (
	"testing"

	"github.com/twpayne/go-geos"
)

func square(x0, y0, x1, y1 float64) *geos.Geom {
	return geos.NewPolygon([][][]float64{{
		{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
	}})
}

func TestCoerceValidRepairsBowtie(t *testing.T) {
	bowtie := geos.NewPolygon([][][]float64{{
		{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0},
	}})
	fixed := CoerceValid(bowtie)

	if !fixed.IsValid() {
		t.Fatal("result is not valid")
	}
	if area := fixed.Area(); area < 0.499 || area > 0.501 {
		t.Errorf("area = %v, want 0.5", area)
	}
}

func TestCoerceValidDegenerateInput(t *testing.T) {
	tests := []struct {
		name string
		geom *geos.Geom
	}{
		{"nil", nil},
		{"empty", geos.NewEmptyPolygon()},
		{"line", geos.NewLineString([][]float64{{0, 0}, {1, 1}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceValid(tt.geom)
			if !got.IsEmpty() {
				t.Errorf("got %v, want empty polygon", got)
			}
			if got.TypeID() != geos.TypeIDPolygon {
				t.Errorf("type = %v, want polygon", got.TypeID())
			}
		})
	}
}

func TestPolygonParts(t *testing.T) {
	multi := geos.NewCollection(geos.TypeIDMultiPolygon, []*geos.Geom{
		square(0, 0, 1, 1),
		square(2, 0, 3, 1),
	})
	parts := PolygonParts(multi)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	for i, part := range parts {
		if part.TypeID() != geos.TypeIDPolygon {
			t.Errorf("part %d is not a polygon", i)
		}
	}
}

func TestSnapToGrid(t *testing.T) {
	input := geos.NewPolygon([][][]float64{{
		{0.123, 0.456}, {1.049, 0.051}, {1.051, 1.049}, {0.06, 0.96}, {0.123, 0.456},
	}})
	snapped := SnapToGrid(input, -1)
	want := geos.NewPolygon([][][]float64{{
		{0.1, 0.5}, {1.0, 0.1}, {1.1, 1.0}, {0.1, 1.0}, {0.1, 0.5},
	}})
	if !snapped.Equals(want) {
		t.Errorf("snapped = %v, want %v", snapped, want)
	}
}

func TestSnapToGridCollapsesSlivers(t *testing.T) {
	sliver := geos.NewPolygon([][][]float64{{
		{0, 0}, {1, 0}, {1, 1e-12}, {0, 1e-12}, {0, 0},
	}})
	snapped := SnapToGrid(sliver, -2)
	if !snapped.IsEmpty() {
		t.Errorf("snapped sliver = %v, want empty", snapped)
	}
}

func TestNumComponents(t *testing.T) {
	tests := []struct {
		name string
		geom *geos.Geom
		want int
	}{
		{"nil", nil, 0},
		{"empty", geos.NewEmptyPolygon(), 0},
		{"polygon", square(0, 0, 1, 1), 1},
		{"multipolygon", geos.NewCollection(geos.TypeIDMultiPolygon, []*geos.Geom{
			square(0, 0, 1, 1), square(2, 0, 3, 1),
		}), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NumComponents(tt.geom); got != tt.want {
				t.Errorf("NumComponents = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLineComponents(t *testing.T) {
	boundary := square(0, 0, 1, 1).Boundary()
	lines := LineComponents(boundary)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0].Length() != 4 {
		t.Errorf("length = %v, want 4", lines[0].Length())
	}
}

func TestTotalBounds(t *testing.T) {
	minX, minY, maxX, maxY := TotalBounds([]*geos.Geom{
		square(0, 0, 1, 1),
		square(2, -1, 3, 4),
		nil,
	})
	if minX != 0 || minY != -1 || maxX != 3 || maxY != 4 {
		t.Errorf("bounds = (%v, %v, %v, %v), want (0, -1, 3, 4)", minX, minY, maxX, maxY)
	}
}
