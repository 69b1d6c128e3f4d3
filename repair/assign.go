package repair

import (
	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

// assignUnitsToRegions maps each unit to its region: the region covering it
// outright when one exists, otherwise the region holding the plurality of its
// area. Units touching no region get -1. Ties resolve to the lowest region
// index.
func assignUnitsToRegions(units, regions []*geos.Geom) []int {
	index := utils.NewSpatialIndex(regions)
	assignment := make([]int, len(units))

	for i, unit := range units {
		assignment[i] = -1
		if unit == nil || unit.IsEmpty() {
			continue
		}

		candidates := index.Query(unit)
		for _, r := range candidates {
			if regions[r].Covers(unit) {
				assignment[i] = r
				break
			}
		}
		if assignment[i] >= 0 {
			continue
		}

		bestArea := 0.0
		for _, r := range candidates {
			inter := regions[r].Intersection(unit)
			if inter == nil {
				continue
			}
			area := inter.Area()
			inter.Destroy()
			if area > bestArea {
				bestArea = area
				assignment[i] = r
			}
		}
	}
	return assignment
}
