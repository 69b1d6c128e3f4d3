package repair

import (
	"testing"

	"github.com/twpayne/go-geos"
)

func TestDoctorCleanCollection(t *testing.T) {
	clean, report := Doctor(unitsOf(sq(0, 0, 1, 1), sq(1, 0, 2, 1)), nil, false)
	if !clean {
		t.Errorf("expected clean, got %+v", report)
	}
	if report.OverlapCount != 0 || report.HoleCount != 0 {
		t.Errorf("report = %+v, want no overlaps and no holes", report)
	}
}

func TestDoctorFindsOverlap(t *testing.T) {
	clean, report := Doctor(unitsOf(sq(0, 0, 2, 2), sq(1, 0, 3, 2)), nil, false)
	if clean {
		t.Error("expected problems")
	}
	if report.OverlapCount != 1 {
		t.Errorf("overlap count = %d, want 1", report.OverlapCount)
	}
	if len(report.OverlapPairs) != 1 || report.OverlapPairs[0] != [2]int{0, 1} {
		t.Errorf("overlap pairs = %v, want [[0 1]]", report.OverlapPairs)
	}
	if report.HoleCount != 0 {
		t.Errorf("hole count = %d, want 0", report.HoleCount)
	}
}

func TestDoctorTouchingIsNotOverlap(t *testing.T) {
	// Shared edges and shared corners have zero area.
	clean, report := Doctor(unitsOf(sq(0, 0, 1, 1), sq(1, 1, 2, 2)), nil, false)
	if !clean {
		t.Errorf("expected clean, got %+v", report)
	}
}

func TestDoctorCountsHoles(t *testing.T) {
	units := unitsOf(frameUnits()...)

	clean, report := Doctor(units, nil, false)
	if clean {
		t.Error("expected the hole to fail the collection")
	}
	if report.HoleCount != 1 {
		t.Errorf("hole count = %d, want 1", report.HoleCount)
	}

	clean, _ = Doctor(units, nil, true)
	if !clean {
		t.Error("expected holes to be tolerated with acceptHoles")
	}
}

func TestDoctorFlagsInvalidAndNonPolygonal(t *testing.T) {
	bowtie := geos.NewPolygon([][][]float64{{
		{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0},
	}})
	line, err := geos.NewGeomFromWKT("LINESTRING (0 0, 1 1)")
	if err != nil {
		t.Fatal(err)
	}

	clean, report := Doctor([]Unit{{Geom: bowtie}, {Geom: line}, {Geom: nil}}, nil, false)
	if clean {
		t.Error("expected problems")
	}
	if len(report.Invalid) != 1 || report.Invalid[0] != 0 {
		t.Errorf("invalid = %v, want [0]", report.Invalid)
	}
	if len(report.NonPolygonal) != 2 {
		t.Errorf("non-polygonal = %v, want two entries", report.NonPolygonal)
	}
}

func TestDoctorComparesUnions(t *testing.T) {
	units := unitsOf(sq(0, 0, 1, 1), sq(1, 0, 2, 1))

	clean, report := Doctor(units, unitsOf(sq(0, 0, 2, 1)), false)
	if !clean || !report.UnionsMatch {
		t.Errorf("expected matching unions, got %+v", report)
	}

	clean, report = Doctor(units, unitsOf(sq(0, 0, 3, 1)), false)
	if clean || report.UnionsMatch {
		t.Errorf("expected mismatched unions, got %+v", report)
	}
}
