package repair

import (
	"log"

	"github.com/golang/geo/r2"
	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

// incenter returns the incenter of a triangle, falling back to an interior
// representative point when the triangle is degenerate.
func incenter(triangle *geos.Geom) r2.Point {
	v := exteriorPoints(triangle)
	if len(v) != 3 {
		point := triangle.PointOnSurface()
		defer point.Destroy()
		return r2.Point{X: point.X(), Y: point.Y()}
	}

	a := v[1].Sub(v[2]).Norm()
	b := v[0].Sub(v[2]).Norm()
	c := v[0].Sub(v[1]).Norm()
	sum := a + b + c
	if sum == 0 {
		return v[0]
	}
	center := v[0].Mul(a).Add(v[1].Mul(b)).Add(v[2].Mul(c)).Mul(1 / sum)

	probe := pointGeom(center)
	inside := triangle.Contains(probe)
	probe.Destroy()
	if !inside {
		point := triangle.PointOnSurface()
		defer point.Destroy()
		return r2.Point{X: point.X(), Y: point.Y()}
	}
	return center
}

// triangulatePolygon splits a simple polygon into triangles by ear clipping.
// An ear is accepted only when the whole triangle lies inside the polygon and
// its diagonal meets the boundary in nothing but its own endpoints. When no
// ear can be found the remaining polygon is returned as-is; callers treat
// non-triangle members as unusable and fall back gracefully.
func triangulatePolygon(polygon *geos.Geom) []*geos.Geom {
	verts := exteriorPoints(polygon)
	if len(verts) < 3 {
		return nil
	}
	if len(verts) == 3 && polygon.NumInteriorRings() == 0 {
		return []*geos.Geom{polygon.Clone()}
	}

	n := len(verts)
	boundary := polygon.Boundary()
	defer boundary.Destroy()

	for i := 0; i < n; i++ {
		a, b, c := verts[(i-1+n)%n], verts[i], verts[(i+1)%n]
		triangle := polygonFromPoints([]r2.Point{a, b, c})
		if triangle.Area() == 0 || !polygon.Contains(triangle) {
			triangle.Destroy()
			continue
		}
		diagonal := lineString([]r2.Point{a, c})
		clean := diagonalTouchesOnlyEndpoints(diagonal, boundary, a, c)
		diagonal.Destroy()
		if !clean {
			triangle.Destroy()
			continue
		}

		rest := polygon.Difference(triangle)
		result := []*geos.Geom{triangle}
		for _, part := range utils.PolygonParts(rest) {
			result = append(result, triangulatePolygon(part)...)
			part.Destroy()
		}
		rest.Destroy()
		return result
	}

	return []*geos.Geom{polygon.Clone()}
}

// diagonalTouchesOnlyEndpoints reports whether the diagonal meets the
// polygon boundary in nothing but the points a and c.
func diagonalTouchesOnlyEndpoints(diagonal, boundary *geos.Geom, a, c r2.Point) bool {
	inter := diagonal.Intersection(boundary)
	if inter == nil {
		return false
	}
	defer inter.Destroy()

	var pointsOnly func(g *geos.Geom) bool
	pointsOnly = func(g *geos.Geom) bool {
		if g.IsEmpty() {
			return true
		}
		switch g.TypeID() {
		case geos.TypeIDPoint:
			p := r2.Point{X: g.X(), Y: g.Y()}
			return p == a || p == c
		case geos.TypeIDMultiPoint, geos.TypeIDGeometryCollection:
			for i := 0; i < g.NumGeometries(); i++ {
				if !pointsOnly(g.Geometry(i)) {
					return false
				}
			}
			return true
		default:
			return false
		}
	}
	return pointsOnly(inter)
}

// recast-style signed test: positive when c lies to the right of a->b.
func triArea2(a, b, c r2.Point) float64 {
	ax, ay := b.X-a.X, b.Y-a.Y
	bx, by := c.X-a.X, c.Y-a.Y
	return bx*ay - ax*by
}

// shortestPathInPolygon computes the geodesic shortest path between two
// boundary vertices of a simple polygon, using the supplied triangulation.
// When the straight segment already lies inside the polygon it is returned
// directly. Otherwise the triangle sleeve between the endpoints is walked
// with the funnel algorithm.
func shortestPathInPolygon(polygon *geos.Geom, start, end r2.Point, triangles []*geos.Geom) []r2.Point {
	direct := lineString([]r2.Point{start, end})
	covered := polygon.Covers(direct)
	direct.Destroy()
	if covered {
		return []r2.Point{start, end}
	}

	sleeve := sleeveBetween(triangles, start, end)
	if len(sleeve) < 2 {
		log.Printf("no triangle sleeve between path endpoints; using direct segment")
		return []r2.Point{start, end}
	}

	portals := sleevePortals(sleeve, start, end)
	return funnelPath(portals, start, end)
}

// sleeveBetween finds the unique chain of triangles connecting the triangle
// incident to start with the triangle incident to end. The dual graph of a
// polygon triangulation is a tree, so a breadth-first parent walk suffices.
func sleeveBetween(triangles []*geos.Geom, start, end r2.Point) [][3]r2.Point {
	var tris [][3]r2.Point
	for _, t := range triangles {
		v := exteriorPoints(t)
		if len(v) == 3 {
			tris = append(tris, [3]r2.Point{v[0], v[1], v[2]})
		}
	}

	startTri, endTri := -1, -1
	for i, t := range tris {
		for _, v := range t {
			if v == start && startTri == -1 {
				startTri = i
			}
			if v == end && endTri == -1 {
				endTri = i
			}
		}
	}
	if startTri == -1 || endTri == -1 {
		return nil
	}
	if startTri == endTri {
		return [][3]r2.Point{tris[startTri]}
	}

	sharedVertices := func(a, b [3]r2.Point) int {
		count := 0
		for _, va := range a {
			for _, vb := range b {
				if va == vb {
					count++
				}
			}
		}
		return count
	}

	parent := make([]int, len(tris))
	for i := range parent {
		parent[i] = -1
	}
	visited := make([]bool, len(tris))
	visited[startTri] = true
	queue := []int{startTri}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == endTri {
			break
		}
		for next := range tris {
			if visited[next] || sharedVertices(tris[cur], tris[next]) < 2 {
				continue
			}
			visited[next] = true
			parent[next] = cur
			queue = append(queue, next)
		}
	}
	if !visited[endTri] {
		return nil
	}

	var chain [][3]r2.Point
	for at := endTri; at != -1; at = parent[at] {
		chain = append(chain, tris[at])
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// sleevePortals turns the sleeve into the ordered list of (left, right)
// portals the funnel algorithm walks through. The first portal collapses to
// the start point and the last to the end point; interior portals are the
// shared diagonals, with sides inherited along the chain.
func sleevePortals(sleeve [][3]r2.Point, start, end r2.Point) [][2]r2.Point {
	portals := [][2]r2.Point{{start, start}}

	for i := 0; i+1 < len(sleeve); i++ {
		var shared []r2.Point
		for _, va := range sleeve[i] {
			for _, vb := range sleeve[i+1] {
				if va == vb {
					shared = append(shared, va)
				}
			}
		}
		if len(shared) < 2 {
			continue
		}
		a, b := shared[0], shared[1]

		prev := portals[len(portals)-1]
		var left, right r2.Point
		switch {
		case len(portals) == 1:
			// Orient the first diagonal geometrically from the start point.
			if triArea2(start, a, b) > 0 {
				left, right = a, b
			} else {
				left, right = b, a
			}
		case a == prev[0] || b == prev[1]:
			left, right = a, b
		case b == prev[0] || a == prev[1]:
			left, right = b, a
		default:
			if triArea2(start, a, b) > 0 {
				left, right = a, b
			} else {
				left, right = b, a
			}
		}
		portals = append(portals, [2]r2.Point{left, right})
	}

	portals = append(portals, [2]r2.Point{end, end})
	return portals
}

// funnelPath runs the funnel algorithm over the portal sequence.
func funnelPath(portals [][2]r2.Point, start, end r2.Point) []r2.Point {
	path := []r2.Point{start}
	apex, left, right := start, start, start
	apexIndex, leftIndex, rightIndex := 0, 0, 0

	for i := 1; i < len(portals); i++ {
		pl, pr := portals[i][0], portals[i][1]

		if triArea2(apex, right, pr) <= 0 {
			if apex == right || triArea2(apex, left, pr) > 0 {
				right = pr
				rightIndex = i
			} else {
				path = append(path, left)
				apex = left
				apexIndex = leftIndex
				left, right = apex, apex
				leftIndex, rightIndex = apexIndex, apexIndex
				i = apexIndex
				continue
			}
		}

		if triArea2(apex, left, pl) >= 0 {
			if apex == left || triArea2(apex, right, pl) < 0 {
				left = pl
				leftIndex = i
			} else {
				path = append(path, right)
				apex = right
				apexIndex = rightIndex
				left, right = apex, apex
				leftIndex, rightIndex = apexIndex, apexIndex
				i = apexIndex
				continue
			}
		}
	}

	if path[len(path)-1] != end {
		path = append(path, end)
	}
	return path
}
