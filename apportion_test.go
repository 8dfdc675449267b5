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


package sargrid

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ncc-cnc/sargrid/raster"
	"github.com/ncc-cnc/sargrid/vector"
)

// testGrid is a 10 by 10 km grid of 1 km cells.
var testGrid = raster.Grid{X0: 0, Y0: 0, Dx: 1000, Dy: 1000, Nx: 10, Ny: 10}

func testCells(t *testing.T) *RegularCells {
	cells, err := NewRegularCells(testGrid, "NCCID", "")
	if err != nil {
		t.Fatal(err)
	}
	return cells
}

func oneSpecies(t *testing.T, p *vector.Feature) *Species {
	species, err := Partition(speciesLayer(p), testFields, testNaming)
	if err != nil {
		t.Fatal(err)
	}
	return species[0]
}

func cellHectares(t *testing.T, l *vector.Layer) map[int]float64 {
	o := make(map[int]float64)
	for _, f := range l.Features {
		id, _ := f.Value("NCCID")
		ha, err := f.Float(RangeHaField)
		if err != nil {
			t.Fatal(err)
		}
		km2, err := f.Float(RangeKm2Field)
		if err != nil {
			t.Fatal(err)
		}
		if km2 != ha/100 {
			t.Errorf("cell %v: %g km² != %g ha / 100", id, km2, ha)
		}
		o[id.(int)] = ha
	}
	return o
}

func TestRound(t *testing.T) {
	tests := []struct {
		v        float64
		decimals int
		want     float64
	}{
		{v: 12.5, want: 13},
		{v: 12.4999, want: 12},
		{v: 0.4, want: 0},
		{v: 1.235, decimals: 2, want: 1.24},
		{v: 99.994, decimals: 2, want: 99.99},
	}
	for _, test := range tests {
		if have := Round(test.v, test.decimals); math.Abs(have-test.want) > 1e-12 {
			t.Errorf("Round(%g, %d): have %g, want %g", test.v, test.decimals, have, test.want)
		}
	}
}

func TestApportionConfigValidate(t *testing.T) {
	if err := DefaultApportionConfig().Validate(); err != nil {
		t.Error(err)
	}
	cfg := DefaultApportionConfig()
	cfg.LargeRangeKm2 = 0
	if err := cfg.Validate(); err == nil {
		t.Error("want error for zero threshold")
	}
	cfg = DefaultApportionConfig()
	cfg.HaDecimals = -1
	if err := cfg.Validate(); err == nil {
		t.Error("want error for negative decimals")
	}
}

func TestApportionSingleCell(t *testing.T) {
	// The range covers cell (row 8, col 1) exactly and touches its
	// eight neighbours.
	sp := oneSpecies(t, speciesFeature(square(1000, 1000, 1000), 1, 2))
	a, err := Apportion(sp, testCells(t), DefaultApportionConfig())
	if err != nil {
		t.Fatal(err)
	}
	if a.Branch != Intersected {
		t.Fatalf("have branch %v", a.Branch)
	}
	if a.Layer.Name != GridLayerName(sp.Name) {
		t.Errorf("layer name %s", a.Layer.Name)
	}
	ha := cellHectares(t, a.Layer)
	if len(ha) != 9 {
		t.Errorf("have %d selected cells, want 9: %v", len(ha), ha)
	}
	const covered = 8*10 + 1 + 1
	for id, v := range ha {
		want := 0.
		if id == covered {
			want = 100
		}
		if v != want {
			t.Errorf("cell %d: have %g ha, want %g", id, v, want)
		}
	}
}

func TestApportionDisjointParts(t *testing.T) {
	// 4 ha and 9 ha parts, both within cell (row 8, col 1).
	a4, a9 := square(1100, 1100, 200), square(1500, 1500, 300)
	const cell = 8*10 + 1 + 1
	tests := []struct {
		name     string
		features []*vector.Feature
	}{
		{name: "multipolygon", features: []*vector.Feature{speciesFeature(geom.MultiPolygon{a4, a9}, 4, 2)}},
		{name: "features", features: []*vector.Feature{speciesFeature(a4, 4, 2), speciesFeature(a9, 4, 2)}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			species, err := Partition(speciesLayer(test.features...), testFields, testNaming)
			if err != nil {
				t.Fatal(err)
			}
			a, err := Apportion(species[0], testCells(t), DefaultApportionConfig())
			if err != nil {
				t.Fatal(err)
			}
			ha := cellHectares(t, a.Layer)
			if len(ha) != 1 || ha[cell] != 13 {
				t.Errorf("have %v, want cell %d with 13 ha", ha, cell)
			}
		})
	}
}

func TestApportionTolerance(t *testing.T) {
	tri := geom.Polygon{{{X: 150, Y: 230}, {X: 7420, Y: 580}, {X: 3300, Y: 6870}}}
	sp := oneSpecies(t, speciesFeature(tri, 5, 1))
	for _, decimals := range []int{0, 2} {
		cfg := DefaultApportionConfig()
		cfg.HaDecimals = decimals
		a, err := Apportion(sp, testCells(t), cfg)
		if err != nil {
			t.Fatal(err)
		}
		var sum float64
		for _, v := range cellHectares(t, a.Layer) {
			sum += v
		}
		total := vector.ConvertArea(sp.Layer.Area(), vector.Hectare)
		tol := float64(a.Fragments) * 0.5 * math.Pow(10, -float64(decimals))
		if a.Fragments == 0 || math.Abs(sum-total) > tol+1e-9 {
			t.Errorf("decimals %d: cell sum %g ha, range %g ha, %d fragments", decimals, sum, total, a.Fragments)
		}
	}
}

func TestApportionLargeRange(t *testing.T) {
	sp := oneSpecies(t, speciesFeature(square(1000, 1000, 2000), 3, 0))
	cfg := DefaultApportionConfig()
	cfg.LargeRangeKm2 = 3
	a, err := Apportion(sp, testCells(t), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if a.Branch != LargeRange || a.TotalKm2 != 4 {
		t.Fatalf("have branch %v with %g km²", a.Branch, a.TotalKm2)
	}
	if a.Layer.Len() != 1 {
		t.Fatalf("have %d features", a.Layer.Len())
	}
	f := a.Layer.Features[0]
	if burn, _ := f.Float(BurnField); burn != 100 {
		t.Errorf("burn value %g", burn)
	}
	if ha, _ := f.Float(RangeHaField); ha != 400 {
		t.Errorf("range %g ha", ha)
	}
}
