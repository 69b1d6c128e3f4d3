package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mggg/maup/repair"
	"github.com/mggg/maup/utils"
	"github.com/twpayne/go-geos"
)

func main() {
	var (
		inPath        = flag.String("in", "", "input shapefile or GeoJSON feature collection")
		outPath       = flag.String("out", "", "output path for the repaired collection")
		mode          = flag.String("mode", "repair", "repair or doctor")
		snap          = flag.Bool("snap", true, "snap vertices to a grid before repairing")
		snapPrecision = flag.Int("snap-precision", 10, "significant digits kept when snapping")
		fillGaps      = flag.Bool("fill-gaps", true, "fill gaps between units")
		gapThreshold  = flag.Float64("gap-threshold", 0.1,
			"largest gap to fill, as a fraction of its biggest neighbor; negative fills everything")
		disconnection = flag.Float64("disconnection-threshold", 1e-4,
			"largest stray fragment to reattach, as a fraction of its unit")
		regionsPath = flag.String("regions", "", "partition to nest the repair within")
		targetPath  = flag.String("target", "", "collection to compare coverage against (doctor mode)")
		minRook     = flag.Float64("min-rook-length", -1,
			"convert rook adjacencies shorter than this to queen; negative disables")
		acceptHoles = flag.Bool("accept-holes", false, "doctor mode: tolerate holes in the union")
		workers     = flag.Int("workers", 0, "parallel workers for input validation (0 = all CPUs)")
	)
	flag.Parse()

	if *inPath == "" {
		log.Fatal("-in is required")
	}

	units, prj, err := loadUnits(*inPath)
	if err != nil {
		log.Fatalf("loading %s: %v", *inPath, err)
	}
	log.Printf("loaded %d units from %s", len(units), *inPath)

	if prj != "" && utils.IsGeographicProjection(prj) {
		log.Fatal("input uses a geographic (unprojected) coordinate system; reproject it before repairing")
	}
	reportInvalid(units, *workers)

	switch *mode {
	case "doctor":
		runDoctor(units, *targetPath, *acceptHoles)

	case "repair":
		if *outPath == "" {
			log.Fatal("-out is required in repair mode")
		}

		opts := repair.DefaultOptions()
		opts.Snap = *snap
		opts.SnapPrecision = *snapPrecision
		opts.FillGaps = *fillGaps
		if *gapThreshold < 0 {
			opts.FillGapsThreshold = nil
		} else {
			threshold := *gapThreshold
			opts.FillGapsThreshold = &threshold
		}
		opts.DisconnectionThreshold = *disconnection
		if *minRook >= 0 {
			length := *minRook
			opts.MinRookLength = &length
		}

		if *regionsPath != "" {
			regions, regionPrj, err := loadUnits(*regionsPath)
			if err != nil {
				log.Fatalf("loading regions %s: %v", *regionsPath, err)
			}
			if prj != "" && regionPrj != "" && prj != regionPrj {
				log.Fatal("units and regions use different coordinate systems")
			}
			opts.NestWithinRegions = regions
		}

		repaired, err := repair.Repair(units, opts)
		if err != nil {
			log.Fatalf("repair failed: %v", err)
		}
		if err := saveUnits(*outPath, repaired); err != nil {
			log.Fatalf("writing %s: %v", *outPath, err)
		}
		log.Printf("wrote %d units to %s", len(repaired), *outPath)

	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func runDoctor(units []repair.Unit, targetPath string, acceptHoles bool) {
	var target []repair.Unit
	if targetPath != "" {
		loaded, _, err := loadUnits(targetPath)
		if err != nil {
			log.Fatalf("loading target %s: %v", targetPath, err)
		}
		target = loaded
	}

	clean, report := repair.Doctor(units, target, acceptHoles)
	report.Log()
	if clean {
		fmt.Println("collection is clean")
		return
	}
	fmt.Println("collection has problems")
	os.Exit(1)
}

func loadUnits(path string) ([]repair.Unit, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		gs, props, err := utils.ReadShapefile(path)
		if err != nil {
			return nil, "", err
		}
		return zipUnits(gs, props), utils.ReadProjection(path), nil
	default:
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, "", err
		}
		gs, props, err := utils.ReadGeoJSON(payload)
		if err != nil {
			return nil, "", err
		}
		return zipUnits(gs, props), "", nil
	}
}

func zipUnits(geoms []*geos.Geom, props []map[string]interface{}) []repair.Unit {
	units := make([]repair.Unit, len(geoms))
	for i, geom := range geoms {
		var p map[string]interface{}
		if i < len(props) {
			p = props[i]
		}
		units[i] = repair.Unit{Geom: geom, Properties: p}
	}
	return units
}

func saveUnits(path string, units []repair.Unit) error {
	geoms := make([]*geos.Geom, len(units))
	props := make([]map[string]interface{}, len(units))
	for i, u := range units {
		geoms[i] = u.Geom
		props[i] = u.Properties
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return utils.WriteShapefile(path, geoms, props)
	default:
		payload, err := utils.WriteGeoJSON(geoms, props)
		if err != nil {
			return err
		}
		return os.WriteFile(path, payload, 0o644)
	}
}

// reportInvalid checks input validity up front, in parallel, so the log
// shows how much work the repair has ahead of it.
func reportInvalid(units []repair.Unit, workers int) {
	items := make([]interface{}, len(units))
	for i := range units {
		items[i] = i
	}

	processor := utils.NewParallelProcessor(workers)
	results := processor.ProcessBatch(items, func(job interface{}) interface{} {
		i := job.(int)
		if units[i].Geom != nil && !units[i].Geom.IsValid() {
			return i
		}
		return nil
	}, "Validating input")

	if len(results) > 0 {
		log.Printf("%d of %d input geometries are invalid and will be repaired", len(results), len(units))
	}
}
