package repair

import (
	"testing"

	"github.com/twpayne/go-geos"
)

func TestConsolidateHolesMergesOnlyWithinRegions(t *testing.T) {
	unregioned := consolidateHoles(map[int][]*geos.Geom{
		-1: {sq(0, 0, 1, 1), sq(1, 0, 2, 1)},
	})
	if len(unregioned) != 2 {
		t.Fatalf("got %d gaps, want 2", len(unregioned))
	}

	regioned := consolidateHoles(map[int][]*geos.Geom{
		0: {sq(0, 0, 1, 1), sq(1, 0, 2, 1)},
	})
	if len(regioned) != 1 {
		t.Fatalf("got %d gaps, want 1", len(regioned))
	}
	if !near(regioned[0].geom.Area(), 2, 1e-9) {
		t.Errorf("merged gap area = %v, want 2", regioned[0].geom.Area())
	}
}
