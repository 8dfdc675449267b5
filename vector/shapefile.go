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
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// ShapefileExtensions are the file extensions that make up a shapefile
// dataset.
var ShapefileExtensions = []string{".shp", ".shx", ".dbf", ".prj"}

// ShapefileFiles returns the paths of all files belonging to the
// shapefile at path. Paths without a .shp extension are returned as is.
func ShapefileFiles(path string) []string {
	if filepath.Ext(path) != ".shp" {
		return []string{path}
	}
	base := strings.TrimSuffix(path, ".shp")
	o := make([]string, len(ShapefileExtensions))
	for i, ext := range ShapefileExtensions {
		o[i] = base + ext
	}
	return o
}

// ReadLayer reads a shapefile or, for .json and .geojson files,
// a single GeoJSON geometry.
func ReadLayer(path string) (*Layer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".geojson":
		return ReadGeoJSON(path)
	default:
		return ReadShapefile(path)
	}
}

// ReadShapefile reads the polygon shapefile at path. The layer's
// spatial reference is the text of the .prj file, if there is one.
func ReadShapefile(path string) (*Layer, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("vector: opening shapefile %s: %w", path, err)
	}
	defer d.Close()

	base := strings.TrimSuffix(path, ".shp")
	l := &Layer{Name: filepath.Base(base)}
	prj, err := os.ReadFile(base + ".prj")
	if err == nil {
		l.SR = strings.TrimSpace(string(prj))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("vector: reading projection of %s: %w", path, err)
	}

	names := make([]string, 0, len(d.Fields()))
	for _, f := range d.Fields() {
		field := dbfField(f)
		l.Fields = append(l.Fields, field)
		names = append(names, field.Name)
	}

	for row := 0; ; row++ {
		g, vals, more := d.DecodeRowFields(names...)
		if !more {
			break
		}
		if g == nil {
			continue
		}
		p, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("vector: shapefile %s row %d: geometry type %T is not polygonal", path, row, g)
		}
		f := &Feature{Polygonal: p, Attributes: make(map[string]interface{}, len(l.Fields))}
		for _, field := range l.Fields {
			v, err := parseAttribute(field, vals[field.Name])
			if err != nil {
				return nil, fmt.Errorf("vector: shapefile %s row %d field %s: %w", path, row, field.Name, err)
			}
			f.Attributes[field.Name] = v
		}
		l.Features = append(l.Features, f)
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("vector: reading shapefile %s: %w", path, err)
	}
	return l, nil
}

// dbfField converts a dBase field descriptor into a Field.
func dbfField(f goshp.Field) Field {
	name := f.Name[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	field := Field{Name: strings.TrimSpace(string(name)), Size: int(f.Size), Precision: int(f.Precision)}
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			field.Type = Integer
		} else {
			field.Type = Float
		}
	case 'F':
		field.Type = Float
	default:
		field.Type = String
	}
	return field
}

func parseAttribute(f Field, s string) (interface{}, error) {
	s = strings.TrimSpace(strings.Trim(s, "\x00"))
	switch f.Type {
	case Integer:
		if s == "" {
			return 0, nil
		}
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return int(v), nil
	case Float:
		if s == "" {
			return 0., nil
		}
		return strconv.ParseFloat(s, 64)
	default:
		return s, nil
	}
}

// maxDBFNameLength is the longest field name a dBase table can hold.
const maxDBFNameLength = 10

// dbfNames returns the names fields will have in a dBase table, which
// limits names to 10 characters. Truncated names that collide get a
// numeric suffix.
func dbfNames(fields []Field) []string {
	o := make([]string, len(fields))
	seen := make(map[string]bool)
	for i, f := range fields {
		n := f.Name
		if len(n) > maxDBFNameLength {
			n = n[:maxDBFNameLength]
		}
		for j := 1; seen[strings.ToLower(n)]; j++ {
			suffix := fmt.Sprintf("_%d", j)
			base := f.Name
			if len(base) > maxDBFNameLength-len(suffix) {
				base = base[:maxDBFNameLength-len(suffix)]
			}
			n = base + suffix
		}
		seen[strings.ToLower(n)] = true
		o[i] = n
	}
	return o
}

func shpField(name string, f Field) goshp.Field {
	switch f.Type {
	case Integer:
		size := f.Size
		if size == 0 {
			size = 10
		}
		return goshp.NumberField(name, uint8(size))
	case Float:
		size, prec := f.Size, f.Precision
		if size == 0 {
			size = 19
		}
		if prec == 0 {
			prec = 8
		}
		return goshp.FloatField(name, uint8(size), uint8(prec))
	default:
		size := f.Size
		if size == 0 {
			size = 254
		}
		return goshp.StringField(name, uint8(size))
	}
}

// dbfValue converts v into the Go type the dBase writer expects for f.
func dbfValue(f Field, v interface{}) interface{} {
	if v == nil {
		return f.zero()
	}
	switch f.Type {
	case Integer:
		if x, ok := toFloat(v); ok {
			return int(math.Round(x))
		}
	case Float:
		if x, ok := toFloat(v); ok {
			return x
		}
	default:
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return f.zero()
}

// WriteShapefile writes l to the shapefile at path, overwriting any
// existing dataset. Field names longer than 10 characters are
// truncated. A .prj file is written if l has a spatial reference.
func WriteShapefile(path string, l *Layer) error {
	names := dbfNames(l.Fields)
	fields := make([]goshp.Field, len(l.Fields))
	for i, f := range l.Fields {
		fields[i] = shpField(names[i], f)
	}
	e, err := shp.NewEncoderFromFields(path, goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("vector: creating shapefile %s: %w", path, err)
	}
	vals := make([]interface{}, len(l.Fields))
	for i, f := range l.Features {
		for j, field := range l.Fields {
			v, _ := f.Value(field.Name)
			vals[j] = dbfValue(field, v)
		}
		if err := e.EncodeFields(Polygon(f.Polygonal), vals...); err != nil {
			e.Close()
			return fmt.Errorf("vector: writing feature %d to %s: %w", i, path, err)
		}
	}
	e.Close()

	prj := strings.TrimSuffix(path, ".shp") + ".prj"
	if l.SR == "" {
		if err := os.Remove(prj); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return os.WriteFile(prj, []byte(l.SR), 0644)
}

// RemoveShapefile deletes all files of the shapefile at path. Missing
// files are ignored.
func RemoveShapefile(path string) error {
	for _, f := range ShapefileFiles(path) {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// ReadGeoJSON reads a GeoJSON Polygon or MultiPolygon geometry into a
// single-feature layer with no attributes.
func ReadGeoJSON(path string) (*Layer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vector: reading %s: %w", path, err)
	}
	g, err := geojson.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("vector: decoding %s: %w", path, err)
	}
	p, ok := g.(geom.Polygonal)
	if !ok {
		return nil, fmt.Errorf("vector: %s: geometry type %T is not polygonal", path, g)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &Layer{
		Name:     name,
		Features: []*Feature{{Polygonal: p, Attributes: map[string]interface{}{}}},
	}, nil
}
