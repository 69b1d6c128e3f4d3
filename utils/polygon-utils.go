package utils

import (
	"math"

	"github.com/twpayne/go-geos"
)

// CoerceValid repairs an invalid geometry and guarantees a polygonal result.
// Mixed collections produced by the repair keep only their polygonal members;
// nil or degenerate input collapses to an empty polygon.
func CoerceValid(geom *geos.Geom) *geos.Geom {
	if geom == nil || geom.IsEmpty() {
		return geos.NewEmptyPolygon()
	}

	repaired := geom
	if !geom.IsValid() {
		fixed := geom.MakeValidWithParams(geos.MakeValidLinework, geos.MakeValidDiscardCollapsed)
		if fixed != nil {
			repaired = fixed
		}
	}

	switch repaired.TypeID() {
	case geos.TypeIDPolygon, geos.TypeIDMultiPolygon:
		return repaired
	case geos.TypeIDGeometryCollection:
		polygons := PolygonParts(repaired)
		if len(polygons) == 0 {
			return geos.NewEmptyPolygon()
		}
		if len(polygons) == 1 {
			return polygons[0]
		}
		return geos.NewCollection(geos.TypeIDMultiPolygon, polygons)
	default:
		// Points and lines carry no area and cannot participate in a tiling.
		return geos.NewEmptyPolygon()
	}
}

// PolygonParts returns the simple-polygon members of any geometry: the
// geometry itself for a Polygon, the parts of a MultiPolygon, and the
// polygonal members (recursively flattened) of a GeometryCollection.
func PolygonParts(geom *geos.Geom) []*geos.Geom {
	if geom == nil || geom.IsEmpty() {
		return nil
	}

	switch geom.TypeID() {
	case geos.TypeIDPolygon:
		return []*geos.Geom{geom.Clone()}
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		var parts []*geos.Geom
		for i := 0; i < geom.NumGeometries(); i++ {
			parts = append(parts, PolygonParts(geom.Geometry(i))...)
		}
		return parts
	default:
		return nil
	}
}

// SnapToGrid rounds every vertex of a polygonal geometry to the nearest
// multiple of 10^n, ring by ring, preserving hole structure. Snapping can
// itself create invalidity, so callers re-run CoerceValid afterward.
func SnapToGrid(geom *geos.Geom, n int) *geos.Geom {
	if geom == nil || geom.IsEmpty() {
		return geos.NewEmptyPolygon()
	}

	gridSize := math.Pow(10, float64(n))

	switch geom.TypeID() {
	case geos.TypeIDPolygon:
		snapped := snapSinglePolygon(geom, gridSize)
		if snapped == nil {
			return geos.NewEmptyPolygon()
		}
		return snapped
	case geos.TypeIDMultiPolygon:
		var polygons []*geos.Geom
		for i := 0; i < geom.NumGeometries(); i++ {
			if snapped := snapSinglePolygon(geom.Geometry(i), gridSize); snapped != nil {
				polygons = append(polygons, snapped)
			}
		}
		if len(polygons) == 0 {
			return geos.NewEmptyPolygon()
		}
		if len(polygons) == 1 {
			return polygons[0]
		}
		return geos.NewCollection(geos.TypeIDMultiPolygon, polygons)
	default:
		return geom.Clone()
	}
}

func snapSinglePolygon(polygon *geos.Geom, gridSize float64) *geos.Geom {
	exterior := polygon.ExteriorRing()
	if exterior == nil || exterior.CoordSeq().Size() < 4 {
		return nil
	}

	snapped := snapRing(exterior, gridSize)
	if len(snapped) < 4 {
		return nil
	}
	rings := [][][]float64{snapped}

	for r := 0; r < polygon.NumInteriorRings(); r++ {
		ring := polygon.InteriorRing(r)
		if ring.CoordSeq().Size() < 4 {
			continue
		}
		if hole := snapRing(ring, gridSize); len(hole) >= 4 {
			rings = append(rings, hole)
		}
	}

	return geos.NewPolygon(rings)
}

func snapRing(ring *geos.Geom, gridSize float64) [][]float64 {
	seq := ring.CoordSeq()
	coords := make([][]float64, 0, seq.Size())
	for i := 0; i < seq.Size(); i++ {
		x := math.Round(seq.X(i)/gridSize) * gridSize
		y := math.Round(seq.Y(i)/gridSize) * gridSize
		// Snapping can collapse neighboring vertices onto the same grid point.
		if n := len(coords); n > 0 && coords[n-1][0] == x && coords[n-1][1] == y {
			continue
		}
		coords = append(coords, []float64{x, y})
	}
	// Re-close the ring if the closing vertex was deduplicated away.
	if n := len(coords); n > 1 && (coords[0][0] != coords[n-1][0] || coords[0][1] != coords[n-1][1]) {
		coords = append(coords, []float64{coords[0][0], coords[0][1]})
	}
	return coords
}

// DedupeVertices removes consecutive duplicate vertices from every ring of a
// polygonal geometry, keeping the closing repetition.
func DedupeVertices(geom *geos.Geom) *geos.Geom {
	if geom == nil || geom.IsEmpty() {
		return geos.NewEmptyPolygon()
	}

	dedupePolygon := func(polygon *geos.Geom) *geos.Geom {
		rings := [][][]float64{dedupeRing(polygon.ExteriorRing())}
		for r := 0; r < polygon.NumInteriorRings(); r++ {
			rings = append(rings, dedupeRing(polygon.InteriorRing(r)))
		}
		return geos.NewPolygon(rings)
	}

	switch geom.TypeID() {
	case geos.TypeIDPolygon:
		return dedupePolygon(geom)
	case geos.TypeIDMultiPolygon:
		polygons := make([]*geos.Geom, 0, geom.NumGeometries())
		for i := 0; i < geom.NumGeometries(); i++ {
			polygons = append(polygons, dedupePolygon(geom.Geometry(i)))
		}
		return geos.NewCollection(geos.TypeIDMultiPolygon, polygons)
	default:
		return geom.Clone()
	}
}

func dedupeRing(ring *geos.Geom) [][]float64 {
	seq := ring.CoordSeq()
	coords := make([][]float64, 0, seq.Size())
	for i := 0; i < seq.Size(); i++ {
		x, y := seq.X(i), seq.Y(i)
		if n := len(coords); n > 0 && coords[n-1][0] == x && coords[n-1][1] == y {
			continue
		}
		coords = append(coords, []float64{x, y})
	}
	if n := len(coords); n > 1 && (coords[0][0] != coords[n-1][0] || coords[0][1] != coords[n-1][1]) {
		coords = append(coords, []float64{coords[0][0], coords[0][1]})
	}
	return coords
}

// NumComponents counts the connected components of a geometry: 0 for empty,
// 1 for any simple geometry, the part count for multi-part geometries.
func NumComponents(geom *geos.Geom) int {
	if geom == nil || geom.IsEmpty() {
		return 0
	}
	switch geom.TypeID() {
	case geos.TypeIDPoint, geos.TypeIDLineString, geos.TypeIDLinearRing, geos.TypeIDPolygon:
		return 1
	default:
		return geom.NumGeometries()
	}
}

// LineComponents returns the simple LineString members of a geometry,
// dropping points and other degenerate members.
func LineComponents(geom *geos.Geom) []*geos.Geom {
	if geom == nil || geom.IsEmpty() {
		return nil
	}
	switch geom.TypeID() {
	case geos.TypeIDLineString, geos.TypeIDLinearRing:
		return []*geos.Geom{geom.Clone()}
	case geos.TypeIDMultiLineString, geos.TypeIDGeometryCollection:
		var lines []*geos.Geom
		for i := 0; i < geom.NumGeometries(); i++ {
			lines = append(lines, LineComponents(geom.Geometry(i))...)
		}
		return lines
	default:
		return nil
	}
}

// TotalBounds computes the combined bounding box of a set of geometries.
func TotalBounds(geoms []*geos.Geom) (minX, minY, maxX, maxY float64) {
	first := true
	for _, geom := range geoms {
		if geom == nil || geom.IsEmpty() {
			continue
		}
		bounds := geom.Bounds()
		if bounds == nil {
			continue
		}
		if first {
			minX, minY, maxX, maxY = bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY
			first = false
			continue
		}
		minX = math.Min(minX, bounds.MinX)
		minY = math.Min(minY, bounds.MinY)
		maxX = math.Max(maxX, bounds.MaxX)
		maxY = math.Max(maxY, bounds.MaxY)
	}
	return minX, minY, maxX, maxY
}
