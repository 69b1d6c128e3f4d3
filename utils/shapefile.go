package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geos"
)

// ReadShapefile loads polygon geometries and their attribute rows from a
// shapefile. Rows with non-polygonal shapes come back as empty polygons so
// that row count and order match the .dbf exactly.
func ReadShapefile(path string) ([]*geos.Geom, []map[string]interface{}, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open shapefile %s: %v", path, err)
	}
	defer reader.Close()

	fields := reader.Fields()
	fieldNames := make([]string, len(fields))
	for i, field := range fields {
		fieldNames[i] = strings.TrimRight(string(field.Name[:]), "\x00")
	}

	var geoms []*geos.Geom
	var properties []map[string]interface{}

	for reader.Next() {
		row, shape := reader.Shape()

		props := make(map[string]interface{}, len(fields))
		for i := range fields {
			props[fieldNames[i]] = reader.ReadAttribute(row, i)
		}

		polygon, ok := shape.(*shp.Polygon)
		if !ok {
			geoms = append(geoms, geos.NewEmptyPolygon())
			properties = append(properties, props)
			continue
		}

		geoms = append(geoms, shapePolygonToGeom(polygon))
		properties = append(properties, props)
	}

	return geoms, properties, nil
}

// shapePolygonToGeom assembles a geos geometry from a shapefile polygon
// record. Shapefile convention: outer rings wind clockwise, holes
// counter-clockwise; holes are matched to outers by containment.
func shapePolygonToGeom(polygon *shp.Polygon) *geos.Geom {
	rings := make([][][]float64, 0, len(polygon.Parts))
	for p, start := range polygon.Parts {
		end := int32(len(polygon.Points))
		if p+1 < len(polygon.Parts) {
			end = polygon.Parts[p+1]
		}
		ring := make([][]float64, 0, end-start)
		for _, point := range polygon.Points[start:end] {
			ring = append(ring, []float64{point.X, point.Y})
		}
		if len(ring) >= 4 {
			rings = append(rings, ring)
		}
	}
	if len(rings) == 0 {
		return geos.NewEmptyPolygon()
	}

	var outers [][][]float64
	var holes [][][]float64
	for _, ring := range rings {
		if ShoelaceArea(ring) < 0 { // clockwise
			outers = append(outers, ring)
		} else {
			holes = append(holes, ring)
		}
	}
	if len(outers) == 0 {
		// Some writers ignore the winding convention; take everything as outer.
		outers, holes = rings, nil
	}

	polygons := make([]*geos.Geom, 0, len(outers))
	for _, outer := range outers {
		shell := geos.NewPolygon([][][]float64{outer})
		polyRings := [][][]float64{outer}
		for _, hole := range holes {
			probe := geos.NewPoint(hole[0])
			if shell.Contains(probe) || shell.Intersects(probe) {
				polyRings = append(polyRings, hole)
			}
			probe.Destroy()
		}
		shell.Destroy()
		polygons = append(polygons, geos.NewPolygon(polyRings))
	}

	if len(polygons) == 1 {
		return polygons[0]
	}
	return geos.NewCollection(geos.TypeIDMultiPolygon, polygons)
}

// ShoelaceArea returns the signed area of a ring: positive when the ring
// winds counter-clockwise.
func ShoelaceArea(ring [][]float64) float64 {
	sum := 0.0
	if len(ring) == 0 {
		return 0
	}
	prev := ring[len(ring)-1]
	for _, point := range ring {
		sum += prev[0]*point[1] - point[0]*prev[1]
		prev = point
	}
	return sum / 2
}

// WriteShapefile writes polygon geometries with their attribute rows.
func WriteShapefile(path string, geoms []*geos.Geom, properties []map[string]interface{}) error {
	if len(geoms) == 0 {
		return fmt.Errorf("no features to write to shapefile")
	}

	writer, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("failed to create shapefile %s: %v", path, err)
	}
	defer writer.Close()

	var firstProps map[string]interface{}
	if len(properties) > 0 {
		firstProps = properties[0]
	}
	fields := createFieldsFromProperties(firstProps)
	writer.SetFields(fields)

	for row, geom := range geoms {
		writer.Write(geomToShapePolygon(geom))

		var props map[string]interface{}
		if row < len(properties) {
			props = properties[row]
		}
		writeAttributes(writer, props, fields, row)
	}

	return nil
}

func geomToShapePolygon(geom *geos.Geom) *shp.Polygon {
	polygon := &shp.Polygon{}
	if geom == nil || geom.IsEmpty() {
		return polygon
	}

	appendRing := func(ring *geos.Geom, wantClockwise bool) {
		seq := ring.CoordSeq()
		coords := make([][]float64, 0, seq.Size())
		for i := 0; i < seq.Size(); i++ {
			coords = append(coords, []float64{seq.X(i), seq.Y(i)})
		}
		if (ShoelaceArea(coords) > 0) == wantClockwise {
			for i, j := 0, len(coords)-1; i < j; i, j = i+1, j-1 {
				coords[i], coords[j] = coords[j], coords[i]
			}
		}
		polygon.Parts = append(polygon.Parts, int32(len(polygon.Points)))
		for _, coord := range coords {
			polygon.Points = append(polygon.Points, shp.Point{X: coord[0], Y: coord[1]})
		}
	}

	for _, part := range PolygonParts(geom) {
		appendRing(part.ExteriorRing(), true)
		for r := 0; r < part.NumInteriorRings(); r++ {
			appendRing(part.InteriorRing(r), false)
		}
		part.Destroy()
	}

	polygon.NumParts = int32(len(polygon.Parts))
	polygon.NumPoints = int32(len(polygon.Points))
	minX, minY, maxX, maxY := polygonBounds(polygon.Points)
	polygon.Box = shp.Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
	return polygon
}

func polygonBounds(points []shp.Point) (minX, minY, maxX, maxY float64) {
	for i, point := range points {
		if i == 0 {
			minX, minY, maxX, maxY = point.X, point.Y, point.X, point.Y
			continue
		}
		if point.X < minX {
			minX = point.X
		}
		if point.Y < minY {
			minY = point.Y
		}
		if point.X > maxX {
			maxX = point.X
		}
		if point.Y > maxY {
			maxY = point.Y
		}
	}
	return minX, minY, maxX, maxY
}

// createFieldsFromProperties analyzes properties to create DBF fields.
func createFieldsFromProperties(properties map[string]interface{}) []shp.Field {
	fields := []shp.Field{}

	for key, value := range properties {
		// DBF limits field names to 10 characters.
		fieldName := key
		if len(fieldName) > 10 {
			fieldName = fieldName[:10]
		}

		switch v := value.(type) {
		case string:
			length := len(v)
			if length < 50 {
				length = 50
			}
			if length > 254 {
				length = 254
			}
			fields = append(fields, shp.StringField(fieldName, uint8(length)))
		case float64:
			fields = append(fields, shp.FloatField(fieldName, 15, 5))
		case int, int32, int64:
			fields = append(fields, shp.NumberField(fieldName, 15))
		default:
			fields = append(fields, shp.StringField(fieldName, 100))
		}
	}

	if len(fields) == 0 {
		fields = append(fields, shp.NumberField("ID", 10))
	}

	return fields
}

func writeAttributes(writer *shp.Writer, properties map[string]interface{}, fields []shp.Field, row int) {
	for i, field := range fields {
		fieldName := strings.TrimRight(string(field.Name[:]), "\x00")

		if fieldName == "ID" && len(properties) == 0 {
			writer.WriteAttribute(row, i, strconv.Itoa(row+1))
			continue
		}

		var value interface{}
		found := false
		for propKey, propValue := range properties {
			if strings.EqualFold(propKey, fieldName) ||
				(len(propKey) > 10 && strings.EqualFold(propKey[:10], fieldName)) {
				value = propValue
				found = true
				break
			}
		}

		if !found {
			writer.WriteAttribute(row, i, "")
			continue
		}

		switch field.Fieldtype {
		case 'N':
			switch v := value.(type) {
			case float64:
				writer.WriteAttribute(row, i, int(v))
			case int:
				writer.WriteAttribute(row, i, v)
			case string:
				if parsed, err := strconv.Atoi(v); err == nil {
					writer.WriteAttribute(row, i, parsed)
				} else {
					writer.WriteAttribute(row, i, 0)
				}
			default:
				writer.WriteAttribute(row, i, 0)
			}
		case 'F':
			switch v := value.(type) {
			case float64:
				writer.WriteAttribute(row, i, v)
			case int:
				writer.WriteAttribute(row, i, float64(v))
			case string:
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					writer.WriteAttribute(row, i, parsed)
				} else {
					writer.WriteAttribute(row, i, 0.0)
				}
			default:
				writer.WriteAttribute(row, i, 0.0)
			}
		default:
			writer.WriteAttribute(row, i, fmt.Sprintf("%v", value))
		}
	}
}

// ReadProjection returns the contents of the .prj sidecar for a shapefile,
// or "" when none exists.
func ReadProjection(shpPath string) string {
	prjPath := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	data, err := os.ReadFile(prjPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// IsGeographicProjection reports whether a .prj definition describes an
// unprojected (geographic) coordinate system.
func IsGeographicProjection(prj string) bool {
	trimmed := strings.TrimSpace(prj)
	return strings.HasPrefix(trimmed, "GEOGCS") || strings.HasPrefix(trimmed, "GEOGCRS")
}
