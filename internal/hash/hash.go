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


// Package hash computes content hashes used to record the provenance of
// pipeline outputs.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/ctessum/geom"
	"github.com/davecgh/go-spew/spew"
	"github.com/ncc-cnc/sargrid/vector"
)

func init() {
	gob.Register(geom.Polygon{})
	gob.Register(geom.MultiPolygon{})
}

// Hash returns a hash key for the specified object.
func Hash(object interface{}) string {
	if s, ok := object.(fmt.Stringer); ok {
		return s.String()
	}
	h := fnv.New128a()

	e := gob.NewEncoder(h)
	if err := e.Encode(object); err == nil {
		bKey := h.Sum([]byte{})
		return fmt.Sprintf("%x", bKey[0:h.Size()])
	}
	// gob fails on NaN coordinates and unregistered geometry types;
	// fall back to spew.
	h.Reset()
	printer := spew.ConfigState{
		Indent:                  " ",
		SortKeys:                true,
		DisableMethods:          true,
		SpewKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	printer.Fprintf(h, "%#v", object)
	bKey := h.Sum([]byte{})
	return fmt.Sprintf("%x", bKey[0:h.Size()])
}

// layerContent is the part of a layer that identifies its content.
type layerContent struct {
	Fields     []vector.Field
	Geometry   []geom.Polygonal
	Attributes [][]interface{}
}

// Layer returns a hash of the fields, geometry and attributes of l. The
// layer name and spatial reference are not included. Attributes are
// hashed in field order so that the result does not depend on map
// iteration.
func Layer(l *vector.Layer) string {
	c := layerContent{
		Fields:     l.Fields,
		Geometry:   make([]geom.Polygonal, len(l.Features)),
		Attributes: make([][]interface{}, len(l.Features)),
	}
	for i, f := range l.Features {
		c.Geometry[i] = f.Polygonal
		row := make([]interface{}, len(l.Fields))
		for j, fld := range l.Fields {
			row[j], _ = f.Value(fld.Name)
		}
		c.Attributes[i] = row
	}
	return Hash(c)
}
