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
	"testing"
)

var testRasterize = RasterizeConfig{Snap: testGrid, PresenceBurn: 1}

func TestRasterizeIntersected(t *testing.T) {
	// Half of cell 82 and all of cell 83.
	sp := oneSpecies(t, speciesFeature(rect(1500, 1000, 1500, 1000), 1, 2))
	a, err := Apportion(sp, testCells(t), DefaultApportionConfig())
	if err != nil {
		t.Fatal(err)
	}
	r, err := Rasterize(a, testRasterize)
	if err != nil {
		t.Fatal(err)
	}
	if r.Presence {
		t.Error("presence fallback used")
	}
	if r.Count() != 2 {
		t.Errorf("have %d cells, want 2", r.Count())
	}
	if v := r.ValueAt(1500, 1500); v != 50 {
		t.Errorf("cell 82: have %g, want 50", v)
	}
	if v := r.ValueAt(2500, 1500); v != 100 {
		t.Errorf("cell 83: have %g, want 100", v)
	}
}

func TestRasterizePresenceFallback(t *testing.T) {
	// 0.16 ha rounds to 0 ha.
	sp := oneSpecies(t, speciesFeature(square(4480, 4480, 40), 4, 3))
	a, err := Apportion(sp, testCells(t), DefaultApportionConfig())
	if err != nil {
		t.Fatal(err)
	}
	for id, ha := range cellHectares(t, a.Layer) {
		if ha != 0 {
			t.Errorf("cell %d has %g ha", id, ha)
		}
	}
	r, err := Rasterize(a, testRasterize)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Presence {
		t.Error("presence fallback not used")
	}
	if r.Count() == 0 {
		t.Fatal("empty raster")
	}
	if r.Max() != 1 {
		t.Errorf("max value %g, want 1", r.Max())
	}
	if v := r.ValueAt(4500, 4500); v != 1 {
		t.Errorf("cell holding the range: have %g, want 1", v)
	}
}

func TestRasterizeLargeRange(t *testing.T) {
	sp := oneSpecies(t, speciesFeature(square(1000, 1000, 2000), 3, 0))
	cfg := DefaultApportionConfig()
	cfg.LargeRangeKm2 = 3
	a, err := Apportion(sp, testCells(t), cfg)
	if err != nil {
		t.Fatal(err)
	}
	r, err := Rasterize(a, testRasterize)
	if err != nil {
		t.Fatal(err)
	}
	if r.Count() != 4 || r.Sum() != 400 {
		t.Errorf("have %d cells summing to %g, want 4 cells of 100", r.Count(), r.Sum())
	}
}
