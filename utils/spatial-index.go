package utils

import (
	"fmt"
	"math"
	"sort"

	"github.com/twpayne/go-geos"
)

// SpatialIndex answers bounding-extent candidate queries over a fixed snapshot
// of geometries. Queries may return false positives but never false negatives.
//
// The index never observes later mutations of the underlying geometries:
// callers that modify the collection must build a fresh index before the next
// query batch.
type SpatialIndex struct {
	cellSize float64
	grid     map[string][]int
	count    int
}

// NewSpatialIndex builds an index over the given snapshot. The cell size is
// derived from the collection's extent and cardinality.
func NewSpatialIndex(geoms []*geos.Geom) *SpatialIndex {
	minX, minY, maxX, maxY := TotalBounds(geoms)
	span := math.Max(maxX-minX, maxY-minY)
	cellSize := span / math.Max(1, math.Sqrt(float64(len(geoms))))
	if cellSize <= 0 {
		cellSize = 1
	}

	si := &SpatialIndex{
		cellSize: cellSize,
		grid:     make(map[string][]int),
	}
	for i, geom := range geoms {
		si.add(geom, i)
	}
	return si
}

func (si *SpatialIndex) add(geom *geos.Geom, index int) {
	if geom == nil || geom.IsEmpty() {
		return
	}
	bounds := geom.Bounds()
	if bounds == nil {
		return
	}
	si.count++

	minCellX := int(math.Floor(bounds.MinX / si.cellSize))
	minCellY := int(math.Floor(bounds.MinY / si.cellSize))
	maxCellX := int(math.Floor(bounds.MaxX / si.cellSize))
	maxCellY := int(math.Floor(bounds.MaxY / si.cellSize))

	for x := minCellX; x <= maxCellX; x++ {
		for y := minCellY; y <= maxCellY; y++ {
			key := getCellKey(x, y)
			si.grid[key] = append(si.grid[key], index)
		}
	}
}

// Query returns the indices of all geometries whose bounding extent may
// intersect the argument's, in ascending order.
func (si *SpatialIndex) Query(geom *geos.Geom) []int {
	if geom == nil || geom.IsEmpty() {
		return nil
	}
	bounds := geom.Bounds()
	if bounds == nil {
		return nil
	}

	minCellX := int(math.Floor(bounds.MinX / si.cellSize))
	minCellY := int(math.Floor(bounds.MinY / si.cellSize))
	maxCellX := int(math.Floor(bounds.MaxX / si.cellSize))
	maxCellY := int(math.Floor(bounds.MaxY / si.cellSize))

	seen := make(map[int]bool)
	for x := minCellX; x <= maxCellX; x++ {
		for y := minCellY; y <= maxCellY; y++ {
			for _, index := range si.grid[getCellKey(x, y)] {
				seen[index] = true
			}
		}
	}

	candidates := make([]int, 0, len(seen))
	for index := range seen {
		candidates = append(candidates, index)
	}
	sort.Ints(candidates)
	return candidates
}

func getCellKey(x, y int) string {
	return fmt.Sprintf("%d,%d", x, y)
}
