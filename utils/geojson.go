package utils

import (
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geos"
)

type geoJSONFeature struct {
	Type       string                 `json:"type"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

// ReadGeoJSON parses a GeoJSON feature collection into geometries and
// attribute rows. Non-polygonal features become empty polygons so row order
// is preserved.
func ReadGeoJSON(payload []byte) ([]*geos.Geom, []map[string]interface{}, error) {
	var collection geoJSONFeatureCollection
	if err := json.Unmarshal(payload, &collection); err != nil {
		return nil, nil, fmt.Errorf("failed to parse feature collection: %v", err)
	}

	var geoms []*geos.Geom
	var properties []map[string]interface{}

	for i, feature := range collection.Features {
		geom, err := geos.NewGeomFromGeoJSON(string(feature.Geometry))
		if err != nil {
			return nil, nil, fmt.Errorf("error creating geometry for feature %d: %v", i, err)
		}
		if geom.TypeID() != geos.TypeIDPolygon && geom.TypeID() != geos.TypeIDMultiPolygon {
			geom.Destroy()
			geom = geos.NewEmptyPolygon()
		}
		geoms = append(geoms, geom)
		properties = append(properties, feature.Properties)
	}

	return geoms, properties, nil
}

// WriteGeoJSON serializes geometries and attribute rows as a GeoJSON feature
// collection.
func WriteGeoJSON(geoms []*geos.Geom, properties []map[string]interface{}) ([]byte, error) {
	collection := geoJSONFeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]geoJSONFeature, 0, len(geoms)),
	}

	for i, geom := range geoms {
		var props map[string]interface{}
		if i < len(properties) {
			props = properties[i]
		}
		collection.Features = append(collection.Features, geoJSONFeature{
			Type:       "Feature",
			Geometry:   json.RawMessage(geom.ToGeoJSON(-1)),
			Properties: props,
		})
	}

	return json.Marshal(collection)
}
