package repair

import (
	"testing"

	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

func TestReconstructStopsClaimingWhenReconnected(t *testing.T) {
	// The first unit comes back from the order-1 faces in two pieces.
	// Reclaiming the first overlap reconnects it, so the second overlap must
	// go by shared boundary to the second unit instead.
	units := []*geos.Geom{
		sq(0, 0, 3, 2),
		sq(0, 2, 3, 4),
	}
	tower := [][]piece{
		{
			{geom: sq(0, 0, 1, 2), labels: []int{0}, region: -1},
			{geom: sq(2, 0, 3, 2), labels: []int{0}, region: -1},
			{geom: poly(
				[]float64{0, 2}, []float64{1, 2}, []float64{1, 3}, []float64{2, 3},
				[]float64{2, 2}, []float64{3, 2}, []float64{3, 4}, []float64{0, 4},
			), labels: []int{1}, region: -1},
		},
		{
			{geom: sq(1, 0, 2, 2), labels: []int{0, 1}, region: -1},
			{geom: sq(1, 2, 2, 3), labels: []int{0, 1}, region: -1},
		},
	}

	reconstructFromOverlapTower(units, tower, []int{0, 1}, false)

	if !near(units[0].Area(), 6, 1e-9) {
		t.Errorf("unit 0 area = %v, want 6", units[0].Area())
	}
	if !near(units[1].Area(), 6, 1e-9) {
		t.Errorf("unit 1 area = %v, want 6", units[1].Area())
	}
	if n := utils.NumComponents(units[0]); n != 1 {
		t.Errorf("unit 0 has %d components, want 1", n)
	}
}
