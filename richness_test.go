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
	"context"
	"path/filepath"
	"testing"

	"github.com/ncc-cnc/sargrid/raster"
)

func testRaster(g raster.Grid, cells map[[2]int]float64) *raster.Raster {
	r := raster.New(g)
	for rc, v := range cells {
		r.Set(rc[0], rc[1], v)
	}
	return r
}

func TestSumRichness(t *testing.T) {
	g := raster.Grid{X0: 0, Y0: 0, Dx: 1000, Dy: 1000, Nx: 3, Ny: 3}
	a := testRaster(g, map[[2]int]float64{{0, 0}: 12, {1, 1}: 30})

	t.Run("single", func(t *testing.T) {
		sum, count, err := SumRichness(a)
		if err != nil {
			t.Fatal(err)
		}
		if v := sum.At(1, 1); v != 30 {
			t.Errorf("sum: have %g, want 30", v)
		}
		if v := count.At(1, 1); v != 1 {
			t.Errorf("count: have %g, want 1", v)
		}
	})

	t.Run("overlapping", func(t *testing.T) {
		// b is offset one cell east and covers (1,1) of a at its (1,0).
		bg := raster.Grid{X0: 1000, Y0: 0, Dx: 1000, Dy: 1000, Nx: 3, Ny: 3}
		b := testRaster(bg, map[[2]int]float64{{1, 0}: 5, {2, 2}: 7})
		sum, count, err := SumRichness(a, b)
		if err != nil {
			t.Fatal(err)
		}
		if sum.Nx != 4 || sum.Ny != 3 {
			t.Fatalf("extent %v is not the union", sum.Grid)
		}
		tests := []struct {
			row, col   int
			sum, count float64
		}{
			{row: 1, col: 1, sum: 35, count: 2},
			{row: 0, col: 0, sum: 12, count: 1},
			{row: 2, col: 3, sum: 7, count: 1},
			{row: 2, col: 0, sum: 0, count: 0},
		}
		for _, test := range tests {
			if v := sum.At(test.row, test.col); v != test.sum {
				t.Errorf("sum (%d, %d): have %g, want %g", test.row, test.col, v, test.sum)
			}
			if v := count.At(test.row, test.col); v != test.count {
				t.Errorf("count (%d, %d): have %g, want %g", test.row, test.col, v, test.count)
			}
		}
	})
}

func TestRichnessFromFiles(t *testing.T) {
	dir := t.TempDir()
	g := raster.Grid{X0: 0, Y0: 0, Dx: 1000, Dy: 1000, Nx: 2, Ny: 2}
	files := map[string]*raster.Raster{
		RasterName("ECCC_SAR_END_COSEWIC_1", ".tif"): testRaster(g, map[[2]int]float64{{0, 0}: 40, {1, 1}: 100}),
		RasterName("ECCC_SAR_THR_COSEWIC_2", ".tif"): testRaster(g, map[[2]int]float64{{0, 0}: 60}),
		RasterName("ECCC_SAR__COSEWIC_3", ".tif"):    testRaster(g, map[[2]int]float64{{0, 1}: 100}),
	}
	for name, r := range files {
		if err := WriteRaster(filepath.Join(dir, name), r, "", TIFF); err != nil {
			t.Fatal(err)
		}
	}
	rr := NewRasterReader(TIFF, 10)
	ctx := context.Background()

	all, err := RichnessFromFiles(ctx, rr, dir, RichnessConfig{Source: "SAR", Threat: AllStatuses})
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Inputs) != 3 {
		t.Errorf("have inputs %v", all.Inputs)
	}
	if v := all.Sum.At(0, 0); v != 100 {
		t.Errorf("sum: have %g, want 100", v)
	}
	if v := all.Count.At(0, 0); v != 2 {
		t.Errorf("count: have %g, want 2", v)
	}
	if n := all.Count.Sum(); n != 4 {
		t.Errorf("total count %g, want 4", n)
	}

	end, err := RichnessFromFiles(ctx, rr, dir, RichnessConfig{Source: "SAR", Threat: "END"})
	if err != nil {
		t.Fatal(err)
	}
	if len(end.Inputs) != 1 || end.Sum.Sum() != 140 {
		t.Errorf("END richness: inputs %v, sum %g", end.Inputs, end.Sum.Sum())
	}

	if _, err := RichnessFromFiles(ctx, rr, dir, RichnessConfig{Source: "SAR", Threat: "EXT"}); err == nil {
		t.Error("want error when no rasters match")
	}
}

func TestRichnessNames(t *testing.T) {
	cfg := RichnessConfig{Source: "SAR", Threat: "END"}
	if n := cfg.SumName(".tif"); n != "SAR_END_HA_SUM.tif" {
		t.Error(n)
	}
	if n := cfg.CountName(".tif"); n != "SAR_END_N.tif" {
		t.Error(n)
	}
	if n := cfg.StackName(); n != "SAR_END_RICHNESS.ncf" {
		t.Error(n)
	}
}
