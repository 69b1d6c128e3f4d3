package repair

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

// Unit is one row of a collection: a polygonal geometry plus its attributes.
// Attributes ride along untouched; the repair only ever rewrites geometry.
type Unit struct {
	Geom       *geos.Geom
	Properties map[string]interface{}
}

// Options controls the repair pipeline.
type Options struct {
	// Snap rounds all vertices onto a grid before repairing, so boundary
	// edges that were meant to coincide actually do. SnapPrecision is the
	// number of significant decimal digits kept relative to the magnitude of
	// the coordinates.
	Snap          bool
	SnapPrecision int

	// FillGaps closes the gaps between units. FillGapsThreshold, when set,
	// leaves open any gap larger than that fraction of the area of its
	// largest neighboring unit; nil fills every gap regardless of size.
	FillGaps          bool
	FillGapsThreshold *float64

	// DisconnectionThreshold bounds the size of stray fragments that get
	// reattached to a neighbor after the repair, as a fraction of the
	// owning unit's area.
	DisconnectionThreshold float64

	// NestWithinRegions confines the repair inside each region of a clean
	// outer partition: units are clipped to their region and gaps never
	// close across region lines.
	NestWithinRegions []Unit

	// MinRookLength, when set, converts every rook adjacency shorter than
	// this length into a queen adjacency.
	MinRookLength *float64
}

// DefaultOptions returns the standard configuration: snapping at 10
// significant digits, filling gaps up to a tenth of the largest neighbor.
func DefaultOptions() Options {
	threshold := 0.1
	return Options{
		Snap:                   true,
		SnapPrecision:          10,
		FillGaps:               true,
		FillGapsThreshold:      &threshold,
		DisconnectionThreshold: 1e-4,
	}
}

// Repair rebuilds a polygon collection into a clean tiling: geometries are
// validated and snapped, overlaps are redistributed among the units that
// claimed them, gaps are filled by their neighbors, stray fragments are
// reattached, and (optionally) short rook adjacencies become queen points.
// The input is never modified; attributes carry over row by row.
func Repair(input []Unit, opts Options) ([]Unit, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("no units to repair")
	}

	units := make([]*geos.Geom, len(input))
	for i, u := range input {
		if u.Geom == nil {
			return nil, fmt.Errorf("unit %d has no geometry", i)
		}
		switch u.Geom.TypeID() {
		case geos.TypeIDPolygon, geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		default:
			return nil, fmt.Errorf("unit %d is not polygonal", i)
		}
		units[i] = utils.CoerceValid(u.Geom.Clone())
	}

	var regions []*geos.Geom
	if len(opts.NestWithinRegions) > 0 {
		ok, report := Doctor(opts.NestWithinRegions, nil, true)
		if !ok {
			report.Log()
			return nil, fmt.Errorf("regions must be valid, polygonal, and non-overlapping before nesting")
		}
		regions = make([]*geos.Geom, len(opts.NestWithinRegions))
		for i, r := range opts.NestWithinRegions {
			regions[i] = utils.CoerceValid(r.Geom.Clone())
		}
	}

	if opts.Snap {
		magnitude := snapMagnitude(append(append([]*geos.Geom(nil), units...), regions...), opts.SnapPrecision)
		for i := range units {
			snapped := utils.SnapToGrid(units[i], magnitude)
			units[i].Destroy()
			units[i] = utils.CoerceValid(snapped)
		}
		for i := range regions {
			snapped := utils.SnapToGrid(regions[i], magnitude)
			regions[i].Destroy()
			regions[i] = utils.CoerceValid(snapped)
		}
	}

	origComponents := make([]int, len(units))
	origAreas := make([]float64, len(units))
	for i := range units {
		origComponents[i] = utils.NumComponents(units[i])
		origAreas[i] = units[i].Area()
	}

	var assignment []int
	if regions != nil {
		assignment = assignUnitsToRegions(units, regions)
		for i, r := range assignment {
			if r == -1 {
				log.Printf("unit %d falls in no region and will be left untouched", i)
			}
		}
	}

	tower, holes := buildingBlocks(units, regions, assignment)

	if regions == nil {
		members := make([]int, len(units))
		for i := range members {
			members[i] = i
		}
		reconstructFromOverlapTower(units, tower, members, false)
		if opts.FillGaps {
			kept, dropped := dropBadHoles(units, holes, opts.FillGapsThreshold)
			if dropped > 0 {
				log.Printf("leaving %d gaps open (too large or not simple)", dropped)
			}
			smartCloseGaps(units, kept, nil)
		} else {
			for _, h := range holes {
				h.geom.Destroy()
			}
		}
	} else {
		repairWithinRegions(units, regions, assignment, tower, holes, opts)
	}

	cleanupFragments(units, origComponents, origAreas, assignment, opts.DisconnectionThreshold)

	for i := range units {
		if n := utils.NumComponents(units[i]); n > origComponents[i] {
			log.Printf("unit %d still has %d components (started with %d)", i, n, origComponents[i])
		}
	}

	if opts.MinRookLength != nil {
		smallRookToQueen(units, *opts.MinRookLength)
	}

	out := make([]Unit, len(input))
	for i := range input {
		out[i] = Unit{Geom: units[i], Properties: input[i].Properties}
	}
	return out, nil
}

// repairWithinRegions runs reconstruction and gap filling separately inside
// each region, so no repair ever moves area across a region line.
func repairWithinRegions(units, regions []*geos.Geom, assignment []int, tower [][]piece, holes []hole, opts Options) {
	for r := range regions {
		var members []int
		for i, a := range assignment {
			if a == r {
				members = append(members, i)
			}
		}
		if len(members) == 0 {
			continue
		}

		regionTower := make([][]piece, len(tower))
		for level := range tower {
			for _, p := range tower[level] {
				if p.region == r {
					regionTower[level] = append(regionTower[level], p)
				}
			}
		}
		reconstructFromOverlapTower(units, regionTower, members, true)
	}

	if !opts.FillGaps {
		for _, h := range holes {
			h.geom.Destroy()
		}
		return
	}

	for r := range regions {
		memberSet := make(map[int]bool)
		for i, a := range assignment {
			if a == r {
				memberSet[i] = true
			}
		}
		if len(memberSet) == 0 {
			continue
		}

		var regionHoles []hole
		for _, h := range holes {
			if h.region == r {
				regionHoles = append(regionHoles, h)
			}
		}
		kept, dropped := dropBadHoles(units, regionHoles, opts.FillGapsThreshold)
		if dropped > 0 {
			log.Printf("region %d: leaving %d gaps open (too large or not simple)", r, dropped)
		}
		smartCloseGaps(units, kept, memberSet)
	}
}

// snapMagnitude picks the grid exponent that keeps precision significant
// digits relative to the larger side of the collection's bounding box, so the
// grid stays fine even when the coordinates sit far from the origin.
func snapMagnitude(geoms []*geos.Geom, precision int) int {
	minX, minY, maxX, maxY := utils.TotalBounds(geoms)
	largest := math.Max(maxX-minX, maxY-minY)
	if largest <= 0 {
		return -precision
	}
	return int(math.Trunc(math.Log10(largest))) - precision
}

// cleanupFragments reattaches stray components created by the repair: any
// unit with more components than it started with gives its smallest surplus
// components, when small enough relative to the unit, to the neighbor
// sharing the most boundary with them.
func cleanupFragments(units []*geos.Geom, origComponents []int, origAreas []float64, assignment []int, threshold float64) {
	for i := range units {
		parts := utils.PolygonParts(units[i])
		excess := len(parts) - origComponents[i]
		if excess <= 0 {
			for _, p := range parts {
				p.Destroy()
			}
			continue
		}

		sort.SliceStable(parts, func(a, b int) bool { return parts[a].Area() < parts[b].Area() })
		bigArea := math.Max(units[i].Area(), origAreas[i])
		index := utils.NewSpatialIndex(units)

		moved := make([]bool, len(parts))
		for k := 0; k < excess && k < len(parts); k++ {
			frag := parts[k]
			if frag.Area() >= threshold*bigArea {
				continue
			}

			best := -1
			bestLength := 0.0
			for _, j := range index.Query(frag) {
				if j == i {
					continue
				}
				if assignment != nil && assignment[j] != assignment[i] {
					continue
				}
				inter := units[j].Boundary().Intersection(frag.Boundary())
				if inter == nil || inter.IsEmpty() {
					if inter != nil {
						inter.Destroy()
					}
					continue
				}
				length := inter.Length()
				inter.Destroy()
				if best == -1 || length > bestLength {
					best = j
					bestLength = length
				}
			}
			if best == -1 {
				log.Printf("unit %d has a stray fragment with no neighbor to take it", i)
				continue
			}
			unionInto(units, best, frag)
			moved[k] = true
		}

		anyMoved := false
		var keep []*geos.Geom
		for k, p := range parts {
			if moved[k] {
				anyMoved = true
			} else {
				keep = append(keep, p.Clone())
			}
		}
		if anyMoved {
			units[i].Destroy()
			switch len(keep) {
			case 0:
				log.Printf("unit %d lost all of its components to fragment cleanup", i)
				units[i] = geos.NewEmptyPolygon()
			case 1:
				units[i] = keep[0]
			default:
				units[i] = geos.NewCollection(geos.TypeIDMultiPolygon, keep)
			}
		} else {
			for _, p := range keep {
				p.Destroy()
			}
		}
		for _, p := range parts {
			p.Destroy()
		}
	}
}
