package repair

import (
	"log"

	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

func containsLabel(labels []int, unit int) bool {
	for _, l := range labels {
		if l == unit {
			return true
		}
	}
	return false
}

// unionInto replaces units[u] with its union with geom, releasing the old
// geometry. geom stays owned by the caller.
func unionInto(units []*geos.Geom, u int, geom *geos.Geom) {
	old := units[u]
	units[u] = old.Union(geom)
	old.Destroy()
}

// reconstructFromOverlapTower rebuilds the member units from the overlap
// tower. Every unit is reset to the union of its singly-covered faces, then
// the multiply-covered faces are handed out level by level: a unit left with
// more connected components than it started with gets first claim on pieces
// it covered that touch it along positive length, until its component count
// recovers, and remaining pieces go to whichever covering unit shares the
// longest boundary with them. Ties resolve to the lowest unit index.
//
// The tower consumes its piece geometries; they are released here.
func reconstructFromOverlapTower(units []*geos.Geom, tower [][]piece, members []int, nested bool) {
	origComponents := make(map[int]int, len(members))
	for _, m := range members {
		origComponents[m] = utils.NumComponents(units[m])
		units[m].Destroy()
		units[m] = geos.NewEmptyPolygon()
	}
	if len(tower) == 0 {
		return
	}

	for _, p := range tower[0] {
		unionInto(units, p.labels[0], p.geom)
		p.geom.Destroy()
	}

	var disconnected []int
	for _, m := range members {
		if utils.NumComponents(units[m]) > origComponents[m] {
			disconnected = append(disconnected, m)
		}
	}

	for level := 1; level < len(tower); level++ {
		pieces := tower[level]
		if len(pieces) == 0 {
			continue
		}
		used := make([]bool, len(pieces))

		if len(disconnected) > 0 {
			pieceGeoms := make([]*geos.Geom, len(pieces))
			for i, p := range pieces {
				pieceGeoms[i] = p.geom
			}
			pieceIndex := utils.NewSpatialIndex(pieceGeoms)

			for _, g := range disconnected {
				for _, pi := range pieceIndex.Query(units[g]) {
					if used[pi] || !containsLabel(pieces[pi].labels, g) {
						continue
					}
					inter := units[g].Intersection(pieces[pi].geom)
					claim := inter != nil && !inter.IsEmpty() && inter.Length() > 0
					if inter != nil {
						inter.Destroy()
					}
					if claim {
						unionInto(units, g, pieces[pi].geom)
						used[pi] = true
						if utils.NumComponents(units[g]) <= origComponents[g] {
							break
						}
					}
				}
			}

			stillDisconnected := disconnected[:0]
			for _, g := range disconnected {
				if utils.NumComponents(units[g]) > origComponents[g] {
					stillDisconnected = append(stillDisconnected, g)
				}
			}
			disconnected = stillDisconnected
		}

		for pi, p := range pieces {
			if used[pi] {
				continue
			}
			best := -1
			bestLength := 0.0
			for _, c := range p.labels {
				if l := sharedBoundaryLength(units[c], p.geom); l > bestLength {
					bestLength = l
					best = c
				}
			}
			if best < 0 {
				// No covering unit touches the piece along positive length;
				// keep the area anyway rather than losing it.
				best = p.labels[0]
				if !nested {
					log.Printf("overlap piece at level %d touches no unit along an edge; assigning to unit %d", level+1, best)
				}
			}
			unionInto(units, best, p.geom)
		}

		for _, p := range pieces {
			p.geom.Destroy()
		}
	}
}
