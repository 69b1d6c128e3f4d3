// Package repair rebuilds messy polygon collections into clean, gap-free,
// overlap-free tilings while preserving the intended adjacency structure as
// closely as possible.
package repair

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/twpayne/go-geos"
)

// segment is one directed boundary edge. It is a comparable value so segment
// sets can be matched exactly by coordinates, never by numeric intersection:
// noding plus grid snapping guarantee shared edges are bit-identical.
type segment struct {
	A, B r2.Point
}

func (s segment) reversed() segment {
	return segment{A: s.B, B: s.A}
}

func (s segment) length() float64 {
	return s.B.Sub(s.A).Norm()
}

func pointGeom(p r2.Point) *geos.Geom {
	return geos.NewPoint([]float64{p.X, p.Y})
}

func lineString(points []r2.Point) *geos.Geom {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.X, p.Y}
	}
	return geos.NewLineString(coords)
}

func polygonFromPoints(points []r2.Point) *geos.Geom {
	ring := make([][]float64, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, []float64{p.X, p.Y})
	}
	if len(points) > 0 && points[0] != points[len(points)-1] {
		ring = append(ring, []float64{points[0].X, points[0].Y})
	}
	return geos.NewPolygon([][][]float64{ring})
}

// linePoints returns the ordered vertices of a LineString, dropping
// consecutive duplicates.
func linePoints(line *geos.Geom) []r2.Point {
	seq := line.CoordSeq()
	points := make([]r2.Point, 0, seq.Size())
	for i := 0; i < seq.Size(); i++ {
		p := r2.Point{X: seq.X(i), Y: seq.Y(i)}
		if n := len(points); n > 0 && points[n-1] == p {
			continue
		}
		points = append(points, p)
	}
	return points
}

// ringPoints returns the vertices of a ring without the closing repetition.
func ringPoints(ring *geos.Geom) []r2.Point {
	points := linePoints(ring)
	if n := len(points); n > 1 && points[0] == points[n-1] {
		points = points[:n-1]
	}
	return points
}

// exteriorPoints returns the open vertex list of a polygon's shell.
func exteriorPoints(polygon *geos.Geom) []r2.Point {
	return ringPoints(polygon.ExteriorRing())
}

func signedArea(points []r2.Point) float64 {
	if len(points) < 3 {
		return 0
	}
	sum := 0.0
	prev := points[len(points)-1]
	for _, p := range points {
		sum += prev.X*p.Y - p.X*prev.Y
		prev = p
	}
	return sum / 2
}

// orientPolygon rebuilds a polygon with a counter-clockwise shell and
// clockwise holes.
func orientPolygon(polygon *geos.Geom) *geos.Geom {
	orientRing := func(ring *geos.Geom, ccw bool) [][]float64 {
		points := ringPoints(ring)
		if (signedArea(points) > 0) != ccw {
			for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
				points[i], points[j] = points[j], points[i]
			}
		}
		coords := make([][]float64, 0, len(points)+1)
		for _, p := range points {
			coords = append(coords, []float64{p.X, p.Y})
		}
		coords = append(coords, []float64{points[0].X, points[0].Y})
		return coords
	}

	rings := [][][]float64{orientRing(polygon.ExteriorRing(), true)}
	for r := 0; r < polygon.NumInteriorRings(); r++ {
		rings = append(rings, orientRing(polygon.InteriorRing(r), false))
	}
	return geos.NewPolygon(rings)
}

// ringSegments returns the directed edges of a closed vertex loop.
func ringSegments(points []r2.Point) []segment {
	segments := make([]segment, 0, len(points))
	for i := range points {
		next := points[(i+1)%len(points)]
		if points[i] != next {
			segments = append(segments, segment{A: points[i], B: next})
		}
	}
	return segments
}

func lineSegments(points []r2.Point) []segment {
	segments := make([]segment, 0, len(points))
	for i := 0; i+1 < len(points); i++ {
		if points[i] != points[i+1] {
			segments = append(segments, segment{A: points[i], B: points[i+1]})
		}
	}
	return segments
}

// boundarySegmentSet collects every boundary edge of a polygonal geometry,
// in both orientations, keyed for exact lookup.
func boundarySegmentSet(geom *geos.Geom) map[segment]bool {
	set := make(map[segment]bool)
	addRing := func(ring *geos.Geom) {
		for _, s := range ringSegments(ringPoints(ring)) {
			set[s] = true
			set[s.reversed()] = true
		}
	}
	for _, part := range polygonParts(geom) {
		addRing(part.ExteriorRing())
		for r := 0; r < part.NumInteriorRings(); r++ {
			addRing(part.InteriorRing(r))
		}
	}
	return set
}

// polygonParts iterates the simple-polygon members of a geometry without
// cloning; the parts stay owned by the parent.
func polygonParts(geom *geos.Geom) []*geos.Geom {
	if geom == nil || geom.IsEmpty() {
		return nil
	}
	switch geom.TypeID() {
	case geos.TypeIDPolygon:
		return []*geos.Geom{geom}
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		var parts []*geos.Geom
		for i := 0; i < geom.NumGeometries(); i++ {
			parts = append(parts, polygonParts(geom.Geometry(i))...)
		}
		return parts
	default:
		return nil
	}
}

// mergePolylines chains a bag of segments into maximal polylines, joining at
// shared endpoints regardless of segment direction. Chains are emitted in
// first-seen segment order.
func mergePolylines(segments []segment) [][]r2.Point {
	type end struct {
		index   int
		forward bool // true when the shared endpoint is segment.A
	}
	byPoint := make(map[r2.Point][]end)
	for i, s := range segments {
		byPoint[s.A] = append(byPoint[s.A], end{index: i, forward: true})
		byPoint[s.B] = append(byPoint[s.B], end{index: i, forward: false})
	}

	used := make([]bool, len(segments))
	takeNext := func(at r2.Point) (int, r2.Point, bool) {
		for _, e := range byPoint[at] {
			if used[e.index] {
				continue
			}
			used[e.index] = true
			if e.forward {
				return e.index, segments[e.index].B, true
			}
			return e.index, segments[e.index].A, true
		}
		return 0, r2.Point{}, false
	}

	var polylines [][]r2.Point
	for i, s := range segments {
		if used[i] {
			continue
		}
		used[i] = true

		chain := []r2.Point{s.A, s.B}
		for {
			if _, next, ok := takeNext(chain[len(chain)-1]); ok {
				chain = append(chain, next)
				continue
			}
			break
		}
		for {
			if _, prev, ok := takeNext(chain[0]); ok {
				chain = append([]r2.Point{prev}, chain...)
				continue
			}
			break
		}
		polylines = append(polylines, chain)
	}
	return polylines
}

// nodeLines fully intersects-and-splits a set of lines into a noded network.
func nodeLines(lines []*geos.Geom) *geos.Geom {
	collection := geos.NewCollection(geos.TypeIDMultiLineString, lines)
	return collection.Node()
}

// polygonizeLines nodes the given linework and polygonizes it into faces.
// The returned faces are independently owned clones.
func polygonizeLines(lines []*geos.Geom) []*geos.Geom {
	noded := nodeLines(lines)
	faces := geos.Polygonize([]*geos.Geom{noded})
	parts := polygonParts(faces)
	cloned := make([]*geos.Geom, len(parts))
	for i, part := range parts {
		cloned[i] = part.Clone()
	}
	faces.Destroy()
	return cloned
}

// sharedBoundaryLength measures the length of the common boundary of two
// polygonal geometries; 0 when they share at most isolated points.
func sharedBoundaryLength(a, b *geos.Geom) float64 {
	inter := a.Boundary().Intersection(b.Boundary())
	if inter == nil || inter.IsEmpty() {
		return 0
	}
	return inter.Length()
}

// nearestVertex returns the vertex of candidates closest to geom, with its
// position; ties resolve to the earliest candidate.
func nearestVertex(geom *geos.Geom, candidates []r2.Point) (r2.Point, int) {
	best := 0
	bestDistance := math.Inf(1)
	for i, p := range candidates {
		point := pointGeom(p)
		d := geom.Distance(point)
		point.Destroy()
		if d < bestDistance {
			bestDistance = d
			best = i
		}
	}
	return candidates[best], best
}
