package repair

import (
	"log"

	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

// DoctorReport itemizes the defects found in a collection of units.
type DoctorReport struct {
	NonPolygonal []int // unit indices whose geometry is not polygonal
	Invalid      []int // unit indices with invalid geometry
	OverlapCount int
	OverlapPairs [][2]int
	HoleCount    int // holes in the union of all units

	// Populated only when a target collection was supplied.
	TargetChecked bool
	UnionsMatch   bool
}

// Clean reports whether the collection passed every check. Holes fail the
// collection only when acceptHoles was false.
func (r DoctorReport) clean(acceptHoles bool) bool {
	if len(r.NonPolygonal) > 0 || len(r.Invalid) > 0 || r.OverlapCount > 0 {
		return false
	}
	if !acceptHoles && r.HoleCount > 0 {
		return false
	}
	if r.TargetChecked && !r.UnionsMatch {
		return false
	}
	return true
}

// Log writes a human-readable summary of the report.
func (r DoctorReport) Log() {
	if len(r.NonPolygonal) > 0 {
		log.Printf("doctor: %d units have non-polygonal geometry: %v", len(r.NonPolygonal), r.NonPolygonal)
	}
	if len(r.Invalid) > 0 {
		log.Printf("doctor: %d units have invalid geometry: %v", len(r.Invalid), r.Invalid)
	}
	if r.OverlapCount > 0 {
		log.Printf("doctor: found %d overlapping pairs of units", r.OverlapCount)
	}
	if r.HoleCount > 0 {
		log.Printf("doctor: the union of the units has %d holes", r.HoleCount)
	}
	if r.TargetChecked && !r.UnionsMatch {
		log.Printf("doctor: the union of the units does not match the union of the target collection")
	}
}

// Doctor diagnoses a collection of units without modifying it: it flags
// non-polygonal and invalid geometries, counts pairwise overlaps of positive
// area, counts holes in the collection's union, and, when a target collection
// is supplied, checks that the two unions cover the same territory. It
// returns true when the collection is clean; holes are tolerated when
// acceptHoles is set.
func Doctor(units []Unit, target []Unit, acceptHoles bool) (bool, DoctorReport) {
	var report DoctorReport

	checkable := make([]*geos.Geom, 0, len(units))
	original := make([]int, 0, len(units))
	for i, u := range units {
		if u.Geom == nil {
			report.NonPolygonal = append(report.NonPolygonal, i)
			continue
		}
		if t := u.Geom.TypeID(); t != geos.TypeIDPolygon && t != geos.TypeIDMultiPolygon {
			report.NonPolygonal = append(report.NonPolygonal, i)
			continue
		}
		if !u.Geom.IsValid() {
			report.Invalid = append(report.Invalid, i)
			continue
		}
		checkable = append(checkable, u.Geom)
		original = append(original, i)
	}

	// Overlap and hole checks need valid polygonal inputs; broken units are
	// already reported above and excluded here.
	index := utils.NewSpatialIndex(checkable)
	for i := range checkable {
		if checkable[i].IsEmpty() {
			continue
		}
		for _, j := range index.Query(checkable[i]) {
			if j <= i || checkable[j].IsEmpty() {
				continue
			}
			inter := checkable[i].Intersection(checkable[j])
			if inter == nil {
				continue
			}
			overlapping := inter.Area() > 0
			inter.Destroy()
			if overlapping {
				report.OverlapCount++
				report.OverlapPairs = append(report.OverlapPairs, [2]int{original[i], original[j]})
			}
		}
	}

	merged := unionAll(checkable)
	report.HoleCount = countHoles(merged)

	if target != nil {
		report.TargetChecked = true
		targetGeoms := make([]*geos.Geom, 0, len(target))
		for _, t := range target {
			if t.Geom != nil && t.Geom.IsValid() {
				targetGeoms = append(targetGeoms, t.Geom)
			}
		}
		targetUnion := unionAll(targetGeoms)
		report.UnionsMatch = merged.Equals(targetUnion)
		targetUnion.Destroy()
	}
	merged.Destroy()

	return report.clean(acceptHoles), report
}

func unionAll(geoms []*geos.Geom) *geos.Geom {
	if len(geoms) == 0 {
		return geos.NewEmptyPolygon()
	}
	clones := make([]*geos.Geom, len(geoms))
	for i, g := range geoms {
		clones[i] = g.Clone()
	}
	collection := geos.NewCollection(geos.TypeIDGeometryCollection, clones)
	merged := collection.UnaryUnion()
	collection.Destroy()
	return merged
}

func countHoles(geom *geos.Geom) int {
	count := 0
	for _, part := range polygonParts(geom) {
		count += part.NumInteriorRings()
	}
	return count
}
