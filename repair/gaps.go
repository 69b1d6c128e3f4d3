package repair

import (
	"log"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

// holeNeighbor identifies what lies on the far side of a stretch of gap
// boundary: either a specific unit or the exterior of the whole collection.
type holeNeighbor struct {
	Exterior bool
	Unit     int
}

// holeBoundary is a maximal run of gap-boundary edges shared with a single
// neighbor, ordered along the gap's counter-clockwise shell.
type holeBoundary struct {
	neighbor holeNeighbor
	points   []r2.Point
	startIdx int // position of the run's first edge along the shell
}

func (hb holeBoundary) start() r2.Point {
	return hb.points[0]
}

func (hb holeBoundary) end() r2.Point {
	return hb.points[len(hb.points)-1]
}

func (hb holeBoundary) closed() bool {
	return hb.start() == hb.end()
}

func (hb holeBoundary) length() float64 {
	sum := 0.0
	for i := 0; i+1 < len(hb.points); i++ {
		sum += hb.points[i+1].Sub(hb.points[i]).Norm()
	}
	return sum
}

// cyclicRuns groups the true positions of a cyclic mask into maximal runs,
// each reported as (start, count). A fully true mask is a single closed run.
func cyclicRuns(mask []bool) [][2]int {
	n := len(mask)
	anchor := -1
	for i, m := range mask {
		if !m {
			anchor = i
			break
		}
	}
	if anchor == -1 {
		if n == 0 {
			return nil
		}
		return [][2]int{{0, n}}
	}

	var runs [][2]int
	start, count := -1, 0
	for k := 1; k <= n; k++ {
		i := (anchor + k) % n
		if mask[i] {
			if count == 0 {
				start = i
			}
			count++
			continue
		}
		if count > 0 {
			runs = append(runs, [2]int{start, count})
			count = 0
		}
	}
	if count > 0 {
		runs = append(runs, [2]int{start, count})
	}
	sort.Slice(runs, func(a, b int) bool { return runs[a][0] < runs[b][0] })
	return runs
}

// constructHoleBoundaries decomposes a gap's shell into runs of edges shared
// with each neighboring unit, plus runs shared with nobody (the exterior).
// Edges are matched exactly by coordinates, which the up-front snapping and
// noding make reliable. When memberSet is non-nil only member units are
// considered neighbors. Runs come back in shell order.
func constructHoleBoundaries(units []*geos.Geom, index *utils.SpatialIndex, holeGeom *geos.Geom, memberSet map[int]bool) []holeBoundary {
	points := exteriorPoints(holeGeom)
	if signedArea(points) < 0 {
		for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
			points[i], points[j] = points[j], points[i]
		}
	}
	segs := ringSegments(points)
	n := len(segs)
	if n == 0 {
		return nil
	}

	runPoints := func(run [2]int) []r2.Point {
		pts := make([]r2.Point, 0, run[1]+1)
		pts = append(pts, segs[run[0]].A)
		for k := 0; k < run[1]; k++ {
			pts = append(pts, segs[(run[0]+k)%n].B)
		}
		return pts
	}

	usedAny := make([]bool, n)
	var boundaries []holeBoundary

	for _, u := range index.Query(holeGeom) {
		if memberSet != nil && !memberSet[u] {
			continue
		}
		set := boundarySegmentSet(units[u])
		matched := make([]bool, n)
		any := false
		for i, s := range segs {
			if set[s] {
				matched[i] = true
				usedAny[i] = true
				any = true
			}
		}
		if !any {
			continue
		}
		for _, run := range cyclicRuns(matched) {
			boundaries = append(boundaries, holeBoundary{
				neighbor: holeNeighbor{Unit: u},
				points:   runPoints(run),
				startIdx: run[0],
			})
		}
	}

	exterior := make([]bool, n)
	anyExterior := false
	for i := range segs {
		if !usedAny[i] {
			exterior[i] = true
			anyExterior = true
		}
	}
	if anyExterior {
		for _, run := range cyclicRuns(exterior) {
			boundaries = append(boundaries, holeBoundary{
				neighbor: holeNeighbor{Exterior: true},
				points:   runPoints(run),
				startIdx: run[0],
			})
		}
	}

	return boundaries
}

func distinctUnits(boundaries []holeBoundary) []int {
	seen := make(map[int]bool)
	var units []int
	for _, bd := range boundaries {
		if bd.neighbor.Exterior || seen[bd.neighbor.Unit] {
			continue
		}
		seen[bd.neighbor.Unit] = true
		units = append(units, bd.neighbor.Unit)
	}
	sort.Ints(units)
	return units
}

// longestNeighbor returns the unit with the greatest total run length along
// the gap; ties resolve to the lowest unit index.
func longestNeighbor(boundaries []holeBoundary) (int, bool) {
	lengths := make(map[int]float64)
	for _, bd := range boundaries {
		if !bd.neighbor.Exterior {
			lengths[bd.neighbor.Unit] += bd.length()
		}
	}
	best, bestLength, found := -1, 0.0, false
	for _, u := range distinctUnits(boundaries) {
		if !found || lengths[u] > bestLength {
			best, bestLength, found = u, lengths[u], true
		}
	}
	return best, found
}

// dropBadHoles filters out gaps that should stay open: gaps that themselves
// contain holes, and gaps larger than relativeThreshold times the area of
// their largest touching unit. A nil threshold keeps every simple gap.
func dropBadHoles(units []*geos.Geom, holes []hole, relativeThreshold *float64) ([]hole, int) {
	index := utils.NewSpatialIndex(units)
	kept := holes[:0]
	dropped := 0
	for _, h := range holes {
		if h.geom.NumInteriorRings() > 0 {
			dropped++
			h.geom.Destroy()
			continue
		}
		if relativeThreshold != nil {
			maxArea := 0.0
			for _, u := range index.Query(h.geom) {
				inter := h.geom.Intersection(units[u])
				touches := inter != nil && !inter.IsEmpty()
				if inter != nil {
					inter.Destroy()
				}
				if touches {
					if a := units[u].Area(); a > maxArea {
						maxArea = a
					}
				}
			}
			if h.geom.Area() > *relativeThreshold*maxArea {
				dropped++
				h.geom.Destroy()
				continue
			}
		}
		kept = append(kept, h)
	}
	return kept, dropped
}

// convexifyHoleBoundaries straightens every gap toward its neighbors: for
// each neighbor's run it carves off the region between the run and the
// geodesic shortest path joining the run's endpoints, and hands that wedge to
// the neighbor. Gaps bordered by a single unit are absorbed outright. Split
// remainders whose repeated-neighbor runs made progress are requeued; the
// queue is pass-bounded so a pathological gap cannot cycle forever.
//
// Returns the settled gaps for the closing step; the gap geometries passed in
// are consumed.
func convexifyHoleBoundaries(units []*geos.Geom, holes []hole, memberSet map[int]bool) []hole {
	queue := append([]hole(nil), holes...)
	var completed []hole

	tracker := utils.NewProgressTracker(int64(len(queue)), "Convexifying gaps")
	defer tracker.Done()

	maxPasses := 1000 + 64*len(holes)
	for passes := 0; len(queue) > 0; passes++ {
		if passes > maxPasses {
			log.Printf("gap convexification did not settle after %d passes; %d gaps left as-is", maxPasses, len(queue))
			completed = append(completed, queue...)
			break
		}

		h := queue[0]
		queue = queue[1:]
		tracker.Increment()

		index := utils.NewSpatialIndex(units)
		boundaries := constructHoleBoundaries(units, index, h.geom, memberSet)
		targets := distinctUnits(boundaries)

		switch len(targets) {
		case 0:
			completed = append(completed, h)
			continue
		case 1:
			unionInto(units, targets[0], h.geom)
			h.geom.Destroy()
			continue
		}

		counts := make(map[int]int)
		for _, bd := range boundaries {
			if !bd.neighbor.Exterior {
				counts[bd.neighbor.Unit]++
			}
		}
		hasRepeats := false
		for _, c := range counts {
			if c > 1 {
				hasRepeats = true
			}
		}

		triangulation := triangulatePolygon(h.geom)
		remainder := h.geom.Clone()

		for _, bd := range boundaries {
			if bd.neighbor.Exterior || bd.closed() || len(bd.points) < 3 {
				continue
			}
			path := shortestPathInPolygon(h.geom, bd.start(), bd.end(), triangulation)
			run := lineString(bd.points)
			chord := lineString(path)
			for _, wedge := range polygonizeLines([]*geos.Geom{run, chord}) {
				unionInto(units, bd.neighbor.Unit, wedge)
				next := remainder.Difference(wedge)
				remainder.Destroy()
				remainder = next
				wedge.Destroy()
			}
		}

		for _, t := range triangulation {
			t.Destroy()
		}

		for _, part := range utils.PolygonParts(remainder) {
			if part.Area() == 0 {
				part.Destroy()
				continue
			}
			oriented := orientPolygon(part)
			part.Destroy()
			next := hole{geom: oriented, region: h.region}
			if hasRepeats && repeatedRunsSplit(units, oriented, counts, memberSet) {
				queue = append(queue, next)
				tracker.Add(1)
			} else {
				completed = append(completed, next)
			}
		}
		remainder.Destroy()
		h.geom.Destroy()
	}

	return completed
}

// repeatedRunsSplit reports whether any neighbor that bordered the parent gap
// along several separate runs now borders this remainder along fewer, which
// means another convexification pass can still make progress.
func repeatedRunsSplit(units []*geos.Geom, holeGeom *geos.Geom, parentCounts map[int]int, memberSet map[int]bool) bool {
	index := utils.NewSpatialIndex(units)
	counts := make(map[int]int)
	for _, bd := range constructHoleBoundaries(units, index, holeGeom, memberSet) {
		if !bd.neighbor.Exterior {
			counts[bd.neighbor.Unit]++
		}
	}
	for unit, parent := range parentCounts {
		if parent < 2 {
			continue
		}
		if c := counts[unit]; c > 0 && c < parent {
			return true
		}
	}
	return false
}

// smartCloseGaps fills every gap by distributing it among its neighboring
// units. Gaps are first convexified, then closed case by case: a gap with one
// neighbor is absorbed whole; a triangular gap with three neighbors splits at
// its incenter; a gap with three boundary runs splits along angle bisectors
// or along a shortest path to the exterior; anything bigger is cut between
// its two closest mutually visible runs and the pieces requeued.
func smartCloseGaps(units []*geos.Geom, holes []hole, memberSet map[int]bool) {
	queue := convexifyHoleBoundaries(units, holes, memberSet)

	tracker := utils.NewProgressTracker(int64(len(queue)), "Filling gaps")
	defer tracker.Done()

	maxPasses := 1000 + 64*len(queue)
	for passes := 0; len(queue) > 0; passes++ {
		if passes > maxPasses {
			log.Printf("gap filling did not settle after %d passes; %d gaps left open", maxPasses, len(queue))
			break
		}

		h := queue[0]
		queue = queue[1:]
		tracker.Increment()

		index := utils.NewSpatialIndex(units)
		boundaries := constructHoleBoundaries(units, index, h.geom, memberSet)
		targets := distinctUnits(boundaries)

		switch {
		case len(targets) == 0:
			log.Printf("gap with no neighboring units; leaving it open")
			h.geom.Destroy()

		case len(targets) == 1:
			unionInto(units, targets[0], h.geom)
			h.geom.Destroy()

		case len(exteriorPoints(h.geom)) == 3:
			closeTriangleGap(units, h.geom, boundaries, targets)
			h.geom.Destroy()

		case len(boundaries) == 3:
			closeThreeSidedGap(units, h.geom, boundaries)
			h.geom.Destroy()

		default:
			rest := splitWideGap(units, h.geom, boundaries)
			for _, part := range rest {
				queue = append(queue, hole{geom: part, region: h.region})
				tracker.Add(1)
			}
			h.geom.Destroy()
		}
	}
}

// closeTriangleGap splits a triangular gap with three distinct neighbors at
// its incenter, one wedge per side. With two neighbors the whole triangle
// goes to whichever one borders more of it.
func closeTriangleGap(units []*geos.Geom, holeGeom *geos.Geom, boundaries []holeBoundary, targets []int) {
	if len(targets) == 3 {
		center := incenter(holeGeom)
		for _, bd := range boundaries {
			if bd.neighbor.Exterior {
				continue
			}
			wedge := utils.CoerceValid(polygonFromPoints(append(append([]r2.Point(nil), bd.points...), center)))
			unionInto(units, bd.neighbor.Unit, wedge)
			wedge.Destroy()
		}
		return
	}
	if best, ok := longestNeighbor(boundaries); ok {
		unionInto(units, best, holeGeom)
	}
}

// closeThreeSidedGap handles a gap with exactly three boundary runs. When one
// run is exterior the gap splits along a shortest path from the interior
// runs' meeting vertex to the nearest exterior vertex; otherwise the three
// corner bisectors locate a middle point and each neighbor takes its wedge.
func closeThreeSidedGap(units []*geos.Geom, holeGeom *geos.Geom, boundaries []holeBoundary) {
	sort.Slice(boundaries, func(a, b int) bool { return boundaries[a].startIdx < boundaries[b].startIdx })

	exteriorAt := -1
	for i, bd := range boundaries {
		if bd.neighbor.Exterior {
			exteriorAt = i
			break
		}
	}

	if exteriorAt >= 0 {
		// Rotate so the exterior run comes first, then the two unit runs in
		// shell order.
		rotated := append(append([]holeBoundary(nil), boundaries[exteriorAt:]...), boundaries[:exteriorAt]...)
		closeGapAgainstExterior(units, holeGeom, rotated[0], rotated[1], rotated[2])
		return
	}

	closeGapByBisectors(units, holeGeom, boundaries)
}

// closeGapAgainstExterior splits a gap bounded by an exterior run and two
// unit runs. The cut goes from the vertex where the unit runs meet to the
// exterior vertex nearest it; a cut landing on either end of the exterior
// run means one unit takes the whole gap.
func closeGapAgainstExterior(units []*geos.Geom, holeGeom *geos.Geom, exterior, first, second holeBoundary) {
	meeting := first.end() // == second.start()
	extPoints := exterior.points

	probe := pointGeom(meeting)
	_, pos := nearestVertex(probe, extPoints)
	probe.Destroy()

	if pos == 0 {
		// The cut collapses onto the vertex the second run shares with the
		// exterior, leaving nothing on the second unit's side.
		unionInto(units, first.neighbor.Unit, holeGeom)
		return
	}
	if pos == len(extPoints)-1 {
		unionInto(units, second.neighbor.Unit, holeGeom)
		return
	}

	triangulation := triangulatePolygon(holeGeom)
	path := shortestPathInPolygon(holeGeom, meeting, extPoints[pos], triangulation)
	for _, t := range triangulation {
		t.Destroy()
	}

	firstPiece := polygonizeLines([]*geos.Geom{
		lineString(first.points),
		lineString(path),
		lineString(extPoints[pos:]),
	})
	for _, piece := range firstPiece {
		unionInto(units, first.neighbor.Unit, piece)
		piece.Destroy()
	}

	secondPiece := polygonizeLines([]*geos.Geom{
		lineString(second.points),
		lineString(path),
		lineString(extPoints[:pos+1]),
	})
	for _, piece := range secondPiece {
		unionInto(units, second.neighbor.Unit, piece)
		piece.Destroy()
	}
}

// closeGapByBisectors splits a three-neighbor gap around a middle point found
// by intersecting the corner angle bisectors. Degenerate configurations fall
// back to absorbing the whole gap into the longest-bordering neighbor.
func closeGapByBisectors(units []*geos.Geom, holeGeom *geos.Geom, boundaries []holeBoundary) {
	fallback := func() {
		if best, ok := longestNeighbor(boundaries); ok {
			unionInto(units, best, holeGeom)
		}
	}

	reach := holeGeom.Length()
	bisectors := make([]*geos.Geom, 3)
	for i := 0; i < 3; i++ {
		prev := boundaries[(i+2)%3]
		vertex := boundaries[i].start()
		v1 := boundaries[i].points[1].Sub(vertex)
		v2 := prev.points[len(prev.points)-2].Sub(vertex)
		if v1.Norm() == 0 || v2.Norm() == 0 {
			fallback()
			return
		}
		direction := v1.Normalize().Add(v2.Normalize())
		if direction.Norm() == 0 {
			fallback()
			return
		}
		direction = direction.Normalize()
		bisectors[i] = lineString([]r2.Point{vertex, vertex.Add(direction.Mul(reach))})
	}
	defer func() {
		for _, b := range bisectors {
			b.Destroy()
		}
	}()

	crossing := func(a, b *geos.Geom) (r2.Point, bool) {
		inter := a.Intersection(b)
		if inter == nil || inter.IsEmpty() {
			if inter != nil {
				inter.Destroy()
			}
			return r2.Point{}, false
		}
		defer inter.Destroy()
		if inter.TypeID() != geos.TypeIDPoint {
			point := inter.PointOnSurface()
			defer point.Destroy()
			return r2.Point{X: point.X(), Y: point.Y()}, true
		}
		return r2.Point{X: inter.X(), Y: inter.Y()}, true
	}

	p01, ok01 := crossing(bisectors[0], bisectors[1])
	p12, ok12 := crossing(bisectors[1], bisectors[2])
	p02, ok02 := crossing(bisectors[0], bisectors[2])
	if !ok01 || !ok12 || !ok02 {
		fallback()
		return
	}

	var middle r2.Point
	if p01 == p12 && p12 == p02 {
		middle = p01
	} else {
		triangle := polygonFromPoints([]r2.Point{p01, p12, p02})
		if triangle.Area() == 0 {
			middle = p01.Add(p12).Add(p02).Mul(1.0 / 3.0)
		} else {
			middle = incenter(triangle)
		}
		triangle.Destroy()
	}

	probe := pointGeom(middle)
	inside := holeGeom.Contains(probe)
	probe.Destroy()
	if !inside {
		fallback()
		return
	}

	for _, bd := range boundaries {
		pieces := polygonizeLines([]*geos.Geom{
			lineString(bd.points),
			lineString([]r2.Point{bd.start(), middle}),
			lineString([]r2.Point{bd.end(), middle}),
		})
		for _, piece := range pieces {
			unionInto(units, bd.neighbor.Unit, piece)
			piece.Destroy()
		}
	}
}

// splitWideGap cuts a gap with four or more boundary runs between its two
// closest runs that can see each other, assigns the severed end pieces to
// their bordering units, and returns the unassigned middle parts for
// requeueing. When no pair of runs works the gap is absorbed whole.
func splitWideGap(units []*geos.Geom, holeGeom *geos.Geom, boundaries []holeBoundary) []*geos.Geom {
	type pair struct {
		i, j     int
		distance float64
	}
	var pairs []pair
	lines := make([]*geos.Geom, len(boundaries))
	for i, bd := range boundaries {
		lines[i] = lineString(bd.points)
	}
	defer func() {
		for _, l := range lines {
			l.Destroy()
		}
	}()

	adjacent := func(a, b holeBoundary) bool {
		return a.end() == b.start() || b.end() == a.start()
	}
	for i := 0; i < len(boundaries); i++ {
		for j := i + 1; j < len(boundaries); j++ {
			if boundaries[i].neighbor.Exterior && boundaries[j].neighbor.Exterior {
				continue
			}
			if adjacent(boundaries[i], boundaries[j]) {
				continue
			}
			pairs = append(pairs, pair{i: i, j: j, distance: lines[i].Distance(lines[j])})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].distance < pairs[b].distance })

	triangulation := triangulatePolygon(holeGeom)
	defer func() {
		for _, t := range triangulation {
			t.Destroy()
		}
	}()

	for _, p := range pairs {
		bi, bj := boundaries[p.i], boundaries[p.j]

		var cutLines []*geos.Geom
		var assign func(piece *geos.Geom) int

		if bi.neighbor.Exterior || bj.neighbor.Exterior {
			// Carve a triangle against the unit run: shortest paths from both
			// of its endpoints to the exterior vertex nearest the run, and
			// everything severed goes to that unit.
			interior, exterior := bi, bj
			if bi.neighbor.Exterior {
				interior, exterior = bj, bi
			}
			interiorLine := lineString(interior.points)
			_, pos := nearestVertex(interiorLine, exterior.points)
			interiorLine.Destroy()
			anchor := exterior.points[pos]
			pathA := shortestPathInPolygon(holeGeom, interior.start(), anchor, triangulation)
			pathB := shortestPathInPolygon(holeGeom, interior.end(), anchor, triangulation)
			cutLines = []*geos.Geom{
				lineString(interior.points),
				lineString(pathA),
				lineString(pathB),
			}
			unit := interior.neighbor.Unit
			assign = func(*geos.Geom) int { return unit }
		} else {
			// The runs must be strongly mutually visible: the two geodesics
			// joining opposite ends have to be disjoint.
			testA := shortestPathInPolygon(holeGeom, bi.start(), bj.end(), triangulation)
			testB := shortestPathInPolygon(holeGeom, bi.end(), bj.start(), triangulation)
			if pathsShareVertices(testA, testB) {
				continue
			}
			pathA, pathB := testA, testB
			if bi.neighbor != bj.neighbor {
				// Crossing geodesics instead, start to start and end to end,
				// so each severed piece borders exactly one of the two units.
				pathA = shortestPathInPolygon(holeGeom, bi.start(), bj.start(), triangulation)
				pathB = shortestPathInPolygon(holeGeom, bi.end(), bj.end(), triangulation)
			}
			cutLines = []*geos.Geom{
				lineString(bi.points),
				lineString(bj.points),
				lineString(pathA),
				lineString(pathB),
			}
			assign = func(piece *geos.Geom) int {
				sideI := runOverlapLength(piece, bi)
				sideJ := runOverlapLength(piece, bj)
				switch {
				case sideI > 0 && sideJ == 0:
					return bi.neighbor.Unit
				case sideJ > 0 && sideI == 0:
					return bj.neighbor.Unit
				case sideI > 0 && sideJ > 0 && bi.neighbor == bj.neighbor:
					return bi.neighbor.Unit
				}
				return -1
			}
		}

		pieces := polygonizeLines(cutLines)

		remainder := holeGeom.Clone()
		assigned := false
		for _, piece := range pieces {
			if piece.Area() == 0 {
				piece.Destroy()
				continue
			}
			if target := assign(piece); target >= 0 {
				unionInto(units, target, piece)
				next := remainder.Difference(piece)
				remainder.Destroy()
				remainder = next
				assigned = true
			}
			piece.Destroy()
		}

		if !assigned {
			remainder.Destroy()
			continue
		}

		var rest []*geos.Geom
		for _, part := range utils.PolygonParts(remainder) {
			if part.Area() == 0 {
				part.Destroy()
				continue
			}
			rest = append(rest, orientPolygon(part))
			part.Destroy()
		}
		remainder.Destroy()
		return rest
	}

	// Nothing splittable; hand the whole gap to its longest neighbor.
	if best, ok := longestNeighbor(boundaries); ok {
		log.Printf("gap with %d boundary runs could not be split; absorbing whole", len(boundaries))
		unionInto(units, best, holeGeom)
	}
	return nil
}

func pathsShareVertices(a, b []r2.Point) bool {
	set := make(map[r2.Point]bool, len(a))
	for _, p := range a {
		set[p] = true
	}
	for _, p := range b {
		if set[p] {
			return true
		}
	}
	return false
}

// runOverlapLength measures how much of a face's boundary lies exactly on
// the given run.
func runOverlapLength(face *geos.Geom, bd holeBoundary) float64 {
	set := make(map[segment]bool)
	for _, s := range lineSegments(bd.points) {
		set[s] = true
		set[s.reversed()] = true
	}
	total := 0.0
	for _, s := range ringSegments(exteriorPoints(face)) {
		if set[s] {
			total += s.length()
		}
	}
	return total
}
