/*
Copyright © 2024 the sargrid authors.
This file is part of sargrid.

sargrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

sargrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with sargrid.  If not, see <http://www.gnu.org/licenses/>.
*/

package vector

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
)

type geoJSONFeature struct {
	Type       string                 `json:"type"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geoJSONCollection struct {
	Type     string           `json:"type"`
	Name     string           `json:"name,omitempty"`
	Features []geoJSONFeature `json:"features"`
}

// WriteGeoJSON writes l to path as a GeoJSON FeatureCollection. Unlike
// a shapefile, field names are kept in full.
func WriteGeoJSON(path string, l *Layer) error {
	c := geoJSONCollection{Type: "FeatureCollection", Name: l.Name, Features: make([]geoJSONFeature, len(l.Features))}
	for i, f := range l.Features {
		g, err := geojson.ToGeoJSON(geoJSONGeometry(f.Polygonal))
		if err != nil {
			return fmt.Errorf("vector: encoding %s feature %d: %w", l.Name, i, err)
		}
		props := make(map[string]interface{}, len(l.Fields))
		for _, fld := range l.Fields {
			v, ok := f.Value(fld.Name)
			if !ok {
				v = fld.zero()
			}
			props[fld.Name] = v
		}
		c.Features[i] = geoJSONFeature{Type: "Feature", Geometry: g, Properties: props}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("vector: encoding %s: %w", l.Name, err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("vector: writing %s: %w", path, err)
	}
	return nil
}

// geoJSONGeometry returns p as a type the GeoJSON encoder supports.
func geoJSONGeometry(p geom.Polygonal) geom.Geom {
	switch t := p.(type) {
	case geom.Polygon, geom.MultiPolygon:
		return t
	}
	return geom.MultiPolygon(p.Polygons())
}
