package repair

import (
	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

// piece is one atomic face of the boundary arrangement together with the
// units whose interiors cover it. Faces covered by two or more units are the
// overlaps the reconstruction step redistributes.
type piece struct {
	geom   *geos.Geom
	labels []int // ascending unit indices
	region int   // -1 when not nesting within regions
}

// hole is a connected gap: a bounded face covered by no unit.
type hole struct {
	geom   *geos.Geom
	region int
}

// buildingBlocks nodes every unit boundary (and region boundary, when
// nesting) into an arrangement, polygonizes it into atomic faces, and
// classifies each face by the number of unit interiors containing its
// representative point. It returns the overlap tower, tower[k] holding the
// faces covered by exactly k+1 units, plus the consolidated gaps.
//
// Faces that fall outside every region are discarded, and face labels are
// restricted to units assigned to the face's own region.
func buildingBlocks(units []*geos.Geom, regions []*geos.Geom, unitRegion []int) ([][]piece, []hole) {
	var lines []*geos.Geom
	for _, unit := range units {
		for _, part := range polygonParts(unit) {
			lines = append(lines, utils.LineComponents(part.Boundary())...)
		}
	}
	for _, region := range regions {
		for _, part := range polygonParts(region) {
			lines = append(lines, utils.LineComponents(part.Boundary())...)
		}
	}

	faces := polygonizeLines(lines)

	unitIndex := utils.NewSpatialIndex(units)
	var regionIndex *utils.SpatialIndex
	if len(regions) > 0 {
		regionIndex = utils.NewSpatialIndex(regions)
	}

	var tower [][]piece
	holeFaces := make(map[int][]*geos.Geom)

	tracker := utils.NewProgressTracker(int64(len(faces)), "Classifying overlaps and gaps")
	for _, face := range faces {
		tracker.Increment()
		if face.Area() == 0 {
			face.Destroy()
			continue
		}
		point := face.PointOnSurface()

		faceRegion := -1
		if regionIndex != nil {
			for _, r := range regionIndex.Query(face) {
				if regions[r].Contains(point) {
					faceRegion = r
					break
				}
			}
			if faceRegion == -1 {
				point.Destroy()
				face.Destroy()
				continue
			}
		}

		var labels []int
		for _, u := range unitIndex.Query(face) {
			if regionIndex != nil && unitRegion[u] != faceRegion {
				continue
			}
			if units[u].Contains(point) {
				labels = append(labels, u)
			}
		}
		point.Destroy()

		if len(labels) == 0 {
			holeFaces[faceRegion] = append(holeFaces[faceRegion], face)
			continue
		}
		for len(tower) < len(labels) {
			tower = append(tower, nil)
		}
		tower[len(labels)-1] = append(tower[len(labels)-1], piece{
			geom:   face,
			labels: labels,
			region: faceRegion,
		})
	}
	tracker.Done()

	return tower, consolidateHoles(holeFaces)
}

// consolidateHoles merges adjacent gap faces into connected gaps within each
// region. Merging only matters when nesting: faces of units from other
// regions become gaps there and can sit next to ordinary gaps. Without
// regions the arrangement faces are used as-is.
func consolidateHoles(holeFaces map[int][]*geos.Geom) []hole {
	var holes []hole
	regions := make([]int, 0, len(holeFaces))
	for region := range holeFaces {
		regions = append(regions, region)
	}
	// map order is not stable
	for i := 0; i < len(regions); i++ {
		for j := i + 1; j < len(regions); j++ {
			if regions[j] < regions[i] {
				regions[i], regions[j] = regions[j], regions[i]
			}
		}
	}

	for _, region := range regions {
		faces := holeFaces[region]
		if region < 0 {
			for _, face := range faces {
				holes = append(holes, hole{geom: orientPolygon(face), region: region})
				face.Destroy()
			}
			continue
		}
		merged := geos.NewCollection(geos.TypeIDMultiPolygon, faces).UnaryUnion()
		for _, part := range utils.PolygonParts(merged) {
			holes = append(holes, hole{geom: orientPolygon(part), region: region})
		}
	}
	return holes
}
