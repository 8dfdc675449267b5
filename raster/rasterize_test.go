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

package raster

import (
	"errors"
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ncc-cnc/sargrid/vector"
)

func square(x, y, size float64) geom.Polygon {
	return geom.Polygon{{
		{X: x, Y: y}, {X: x + size, Y: y}, {X: x + size, Y: y + size}, {X: x, Y: y + size},
	}}
}

func layer(fields []vector.Field, features ...*vector.Feature) *vector.Layer {
	return &vector.Layer{Name: "test", Fields: fields, Features: features}
}

func feature(p geom.Polygonal, attrs map[string]interface{}) *vector.Feature {
	return &vector.Feature{Polygonal: p, Attributes: attrs}
}

func TestPolygonToRasterCellCenter(t *testing.T) {
	fields := []vector.Field{vector.FloatField("Range_ha"), vector.FloatField("PRI")}
	l := layer(fields,
		feature(square(0, 0, 2000), map[string]interface{}{"Range_ha": 5., "PRI": 1.}),
		feature(square(1000, 0, 2000), map[string]interface{}{"Range_ha": 7., "PRI": 2.}),
		// Does not contain any cell center.
		feature(square(3100, 100, 300), map[string]interface{}{"Range_ha": 9., "PRI": 9.}),
	)
	t.Run("priority", func(t *testing.T) {
		r, err := PolygonToRaster(l, snap, Options{ValueField: "Range_ha", PriorityField: "PRI"})
		if err != nil {
			t.Fatal(err)
		}
		if want := (Grid{X0: 0, Y0: 0, Dx: 1000, Dy: 1000, Nx: 4, Ny: 2}); r.Grid != want {
			t.Fatalf("grid: have %v, want %v", r.Grid, want)
		}
		want := map[[2]float64]float64{
			{500, 500}: 5, {1500, 500}: 7, {2500, 500}: 7, {3500, 500}: 0,
			{500, 1500}: 5, {1500, 1500}: 7, {2500, 1500}: 7,
		}
		for p, v := range want {
			if have := r.ValueAt(p[0], p[1]); have != v {
				t.Errorf("(%g, %g): have %g, want %g", p[0], p[1], have, v)
			}
		}
	})
	t.Run("layer order", func(t *testing.T) {
		r, err := PolygonToRaster(l, snap, Options{ValueField: "Range_ha"})
		if err != nil {
			t.Fatal(err)
		}
		if v := r.ValueAt(1500, 500); v != 5 {
			t.Errorf("have %g, want 5", v)
		}
	})
	t.Run("missing field", func(t *testing.T) {
		_, err := PolygonToRaster(l, snap, Options{ValueField: "BURN"})
		if !errors.Is(err, vector.ErrMissingField) {
			t.Errorf("have error %v", err)
		}
	})
	t.Run("bounded snap", func(t *testing.T) {
		bounded := Grid{X0: 0, Y0: 0, Dx: 1000, Dy: 1000, Nx: 10, Ny: 10}
		one := layer(fields, feature(square(2000, 2000, 1000), map[string]interface{}{"Range_ha": 100., "PRI": 0.}))
		r, err := PolygonToRaster(one, bounded, Options{ValueField: "Range_ha"})
		if err != nil {
			t.Fatal(err)
		}
		if r.Grid != bounded {
			t.Errorf("grid: have %v, want %v", r.Grid, bounded)
		}
		if r.Count() != 1 || r.ValueAt(2500, 2500) != 100 {
			t.Errorf("cells: %v", r.Cells())
		}
	})
	t.Run("outside bounded snap", func(t *testing.T) {
		bounded := Grid{X0: 0, Y0: 0, Dx: 1000, Dy: 1000, Nx: 2, Ny: 2}
		far := layer(fields, feature(square(5000, 5000, 1000), map[string]interface{}{"Range_ha": 1., "PRI": 0.}))
		_, err := PolygonToRaster(far, bounded, Options{ValueField: "Range_ha"})
		if !errors.Is(err, ErrEmpty) {
			t.Errorf("have error %v", err)
		}
	})
	t.Run("empty", func(t *testing.T) {
		_, err := PolygonToRaster(layer(fields), snap, Options{ValueField: "Range_ha"})
		if !errors.Is(err, ErrEmpty) {
			t.Errorf("have error %v", err)
		}
	})
}

func TestPolygonToRasterMaximumCombinedArea(t *testing.T) {
	fields := []vector.Field{vector.IntField("BURN"), vector.FloatField("Range_ha")}
	l := layer(fields,
		// 60% of cell (0, 0) split over two features with the same value.
		feature(geom.Polygon{{{X: 0, Y: 0}, {X: 300, Y: 0}, {X: 300, Y: 1000}, {X: 0, Y: 1000}}},
			map[string]interface{}{"BURN": 100, "Range_ha": 1.}),
		feature(geom.Polygon{{{X: 300, Y: 0}, {X: 600, Y: 0}, {X: 600, Y: 1000}, {X: 300, Y: 1000}}},
			map[string]interface{}{"BURN": 100, "Range_ha": 1.}),
		// 35% of the cell with a different value and higher priority.
		feature(geom.Polygon{{{X: 650, Y: 0}, {X: 1000, Y: 0}, {X: 1000, Y: 1000}, {X: 650, Y: 1000}}},
			map[string]interface{}{"BURN": 50, "Range_ha": 10.}),
	)
	r, err := PolygonToRaster(l, snap, Options{ValueField: "BURN", PriorityField: "Range_ha", Assignment: MaximumCombinedArea})
	if err != nil {
		t.Fatal(err)
	}
	if v := r.ValueAt(500, 500); v != 100 {
		t.Errorf("have %g, want 100", v)
	}
	if r.Count() != 1 {
		t.Errorf("have %d cells, want 1", r.Count())
	}
}

func TestCoverage(t *testing.T) {
	g := Grid{X0: 0, Y0: 0, Dx: 1000, Dy: 1000, Nx: 10, Ny: 10}
	tests := []struct {
		name string
		p    geom.Polygon
	}{
		{name: "triangle", p: geom.Polygon{{{X: 100, Y: 100}, {X: 8700, Y: 300}, {X: 4000, Y: 9300}}}},
		{name: "aligned", p: square(1000, 1000, 5000)},
		{name: "hole", p: geom.Polygon{
			{{X: 0, Y: 0}, {X: 6000, Y: 0}, {X: 6000, Y: 6000}, {X: 0, Y: 6000}},
			{{X: 2500, Y: 2500}, {X: 2500, Y: 3500}, {X: 3500, Y: 3500}, {X: 3500, Y: 2500}},
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cov := Coverage(test.p, g)
			sum := 0.
			for cell, a := range cov {
				if a <= 0 || a > g.Dx*g.Dy*(1+1e-9) {
					t.Errorf("cell %d: area %g", cell, a)
				}
				sum += a
			}
			want := test.p.Area()
			if math.Abs(sum-want) > want*1e-9 {
				t.Errorf("covered area %g, polygon area %g", sum, want)
			}
		})
	}
	t.Run("aligned cells", func(t *testing.T) {
		cov := Coverage(square(1000, 1000, 5000), g)
		if len(cov) != 25 {
			t.Errorf("have %d cells, want 25", len(cov))
		}
	})
}
