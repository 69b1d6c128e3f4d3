package repair

import (
	"log"

	"github.com/golang/geo/r2"
	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

// adjacency is the shared geometry between a pair of units: line segments for
// rook neighbors, isolated points for queen neighbors.
type adjacency struct {
	a, b int
	geom *geos.Geom
}

// adjacencies enumerates every touching pair of units, each pair once with
// a < b.
func adjacencies(units []*geos.Geom) []adjacency {
	index := utils.NewSpatialIndex(units)
	var out []adjacency
	for i := range units {
		if units[i] == nil || units[i].IsEmpty() {
			continue
		}
		for _, j := range index.Query(units[i]) {
			if j <= i || units[j] == nil || units[j].IsEmpty() {
				continue
			}
			inter := units[i].Intersection(units[j])
			if inter == nil || inter.IsEmpty() {
				if inter != nil {
					inter.Destroy()
				}
				continue
			}
			out = append(out, adjacency{a: i, b: j, geom: inter})
		}
	}
	return out
}

// smallRookToQueen converts every rook adjacency shorter than minLength into
// a queen adjacency. Around each short shared edge a disk of radius 0.6 times
// the edge length is carved out of the tiling and re-partitioned into pie
// wedges meeting at a single interior point, so the two units end up sharing
// just that point. Overlapping disks are merged (by iterated convex hulls)
// and carved together.
func smallRookToQueen(units []*geos.Geom, minLength float64) {
	var disks []*geos.Geom
	converted := 0

	for _, adj := range adjacencies(units) {
		if adj.geom.Area() > 0 {
			log.Printf("units %d and %d still overlap; skipping their adjacency", adj.a, adj.b)
			adj.geom.Destroy()
			continue
		}
		lines := utils.LineComponents(adj.geom)
		total := 0.0
		for _, l := range lines {
			total += l.Length()
		}
		if total == 0 || total >= minLength {
			for _, l := range lines {
				l.Destroy()
			}
			adj.geom.Destroy()
			continue
		}

		var segs []segment
		for _, l := range lines {
			segs = append(segs, lineSegments(linePoints(l))...)
			l.Destroy()
		}
		for _, chain := range mergePolylines(segs) {
			length := 0.0
			for i := 0; i+1 < len(chain); i++ {
				length += chain[i+1].Sub(chain[i]).Norm()
			}
			if length == 0 {
				continue
			}
			mid := chain[0].Add(chain[len(chain)-1]).Mul(0.5)
			center := pointGeom(mid)
			disks = append(disks, center.Buffer(0.6*length, 8))
			center.Destroy()
			converted++
		}
		adj.geom.Destroy()
	}

	if len(disks) == 0 {
		return
	}
	log.Printf("converting %d short rook adjacencies to queen adjacencies", converted)

	for _, disk := range mergeDisks(disks) {
		carveDisk(units, disk)
		disk.Destroy()
	}
}

func unionParts(geoms []*geos.Geom) []*geos.Geom {
	collection := geos.NewCollection(geos.TypeIDMultiPolygon, geoms)
	merged := collection.UnaryUnion()
	collection.Destroy()
	parts := utils.PolygonParts(merged)
	merged.Destroy()
	return parts
}

// mergeDisks unions the carving disks and replaces overlapping clusters with
// their convex hulls, repeating until the hulls are pairwise disjoint. A
// cluster of nearby short edges is then handled by one carve.
func mergeDisks(disks []*geos.Geom) []*geos.Geom {
	polys := disks
	for {
		merged := unionParts(polys)
		if len(merged) == 1 {
			return merged
		}
		hulls := make([]*geos.Geom, len(merged))
		for i, part := range merged {
			hulls[i] = part.ConvexHull()
			part.Destroy()
		}
		hullClones := make([]*geos.Geom, len(hulls))
		for i, h := range hulls {
			hullClones[i] = h.Clone()
		}
		mergedHulls := unionParts(hullClones)
		if len(mergedHulls) == len(hulls) {
			for _, part := range mergedHulls {
				part.Destroy()
			}
			return hulls
		}
		for _, h := range hulls {
			h.Destroy()
		}
		polys = mergedHulls
	}
}

// carveDisk removes the disk's footprint from every unit it touches and
// re-partitions it into pie wedges: each unit gets the wedge spanned by the
// arcs it still borders, all wedges meeting at one interior point.
func carveDisk(units []*geos.Geom, disk *geos.Geom) {
	index := utils.NewSpatialIndex(units)
	var cands []int
	for _, c := range index.Query(disk) {
		inter := disk.Intersection(units[c])
		touches := inter != nil && !inter.IsEmpty()
		if inter != nil {
			inter.Destroy()
		}
		if touches {
			cands = append(cands, c)
		}
	}
	if len(cands) == 0 {
		return
	}

	lines := utils.LineComponents(disk.Boundary())
	for _, c := range cands {
		for _, part := range polygonParts(units[c]) {
			lines = append(lines, utils.LineComponents(part.Boundary())...)
		}
	}
	faces := polygonizeLines(lines)

	type owned struct {
		geom *geos.Geom
		unit int
	}
	var insideFaces []*geos.Geom
	var outsideFaces []owned
	for _, face := range faces {
		point := face.PointOnSurface()
		inDisk := disk.Contains(point)
		owner := -1
		for _, c := range cands {
			if units[c].Contains(point) {
				owner = c
				break
			}
		}
		point.Destroy()

		if inDisk {
			insideFaces = append(insideFaces, face)
			continue
		}
		if owner >= 0 {
			outsideFaces = append(outsideFaces, owned{geom: face, unit: owner})
			continue
		}
		face.Destroy()
	}
	if len(insideFaces) == 0 {
		for _, of := range outsideFaces {
			of.geom.Destroy()
		}
		return
	}

	refinedParts := unionParts(insideFaces)
	refined := geos.NewCollection(geos.TypeIDMultiPolygon, refinedParts)

	for _, c := range cands {
		units[c].Destroy()
		units[c] = geos.NewEmptyPolygon()
	}
	for _, of := range outsideFaces {
		unionInto(units, of.unit, of.geom)
		of.geom.Destroy()
	}

	// All wedges share one apex so every unit around the disk meets its
	// neighbors at exactly that point.
	apex := vertexMean(refined)
	for _, c := range cands {
		inter := refined.Intersection(units[c])
		if inter == nil || inter.IsEmpty() {
			if inter != nil {
				inter.Destroy()
			}
			continue
		}
		var segs []segment
		for _, l := range utils.LineComponents(inter) {
			segs = append(segs, lineSegments(linePoints(l))...)
			l.Destroy()
		}
		inter.Destroy()
		for _, arc := range mergePolylines(segs) {
			wedge := utils.CoerceValid(polygonFromPoints(append(arc, apex)))
			unionInto(units, c, wedge)
			wedge.Destroy()
		}
	}
	refined.Destroy()
}

// vertexMean averages the shell vertices of a polygonal geometry; for the
// convex carved disks this always lands strictly inside.
func vertexMean(geom *geos.Geom) r2.Point {
	var sum r2.Point
	count := 0
	for _, part := range polygonParts(geom) {
		for _, p := range exteriorPoints(part) {
			sum = sum.Add(p)
			count++
		}
	}
	if count == 0 {
		return r2.Point{}
	}
	return sum.Mul(1 / float64(count))
}
