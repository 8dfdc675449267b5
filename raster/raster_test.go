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
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func testRaster(g Grid, cells ...Cell) *Raster {
	r := New(g)
	for _, c := range cells {
		r.Set(c.Row, c.Col, c.Value)
	}
	return r
}

func TestMosaic(t *testing.T) {
	a := testRaster(Grid{X0: 0, Y0: 0, Dx: 1000, Dy: 1000, Nx: 2, Ny: 1}, Cell{0, 0, 3}, Cell{0, 1, 4})
	b := testRaster(Grid{X0: 1000, Y0: -1000, Dx: 1000, Dy: 1000, Nx: 1, Ny: 2}, Cell{0, 0, 5}, Cell{1, 0, 6})

	t.Run("single", func(t *testing.T) {
		sum, err := Mosaic(a)
		if err != nil {
			t.Fatal(err)
		}
		n, err := Count(a)
		if err != nil {
			t.Fatal(err)
		}
		if v := sum.ValueAt(500, 500); v != 3 {
			t.Errorf("sum = %g, want 3", v)
		}
		if v := n.ValueAt(500, 500); v != 1 {
			t.Errorf("count = %g, want 1", v)
		}
	})
	t.Run("overlapping", func(t *testing.T) {
		sum, err := Mosaic(a, b)
		if err != nil {
			t.Fatal(err)
		}
		if want := (Grid{X0: 0, Y0: -1000, Dx: 1000, Dy: 1000, Nx: 2, Ny: 2}); sum.Grid != want {
			t.Fatalf("grid: have %v, want %v", sum.Grid, want)
		}
		want := []Cell{{0, 0, 3}, {0, 1, 9}, {1, 1, 6}}
		if have := sum.Cells(); !reflect.DeepEqual(have, want) {
			t.Errorf("sum: have %v, want %v", have, want)
		}
		n, err := Count(a, b)
		if err != nil {
			t.Fatal(err)
		}
		want = []Cell{{0, 0, 1}, {0, 1, 2}, {1, 1, 1}}
		if have := n.Cells(); !reflect.DeepEqual(have, want) {
			t.Errorf("count: have %v, want %v", have, want)
		}
	})
	t.Run("misaligned", func(t *testing.T) {
		c := New(Grid{X0: 10, Y0: 0, Dx: 1000, Dy: 1000, Nx: 1, Ny: 1})
		if _, err := Mosaic(a, c); !errors.Is(err, ErrMisaligned) {
			t.Errorf("have error %v", err)
		}
	})
	t.Run("empty", func(t *testing.T) {
		if _, err := Mosaic(); !errors.Is(err, ErrEmpty) {
			t.Errorf("have error %v", err)
		}
	})
}

func TestUint16(t *testing.T) {
	tests := []struct {
		in   float64
		want uint16
	}{
		{0, 0}, {-3, 0}, {0.2, 1}, {1.49, 1}, {1.5, 2}, {100, 100}, {1e9, 65535},
	}
	for _, test := range tests {
		if have := Uint16(test.in); have != test.want {
			t.Errorf("Uint16(%g) = %d, want %d", test.in, have, test.want)
		}
	}
}

func TestTIFFRoundTrip(t *testing.T) {
	g := Grid{X0: -2000, Y0: 5000, Dx: 1000, Dy: 1000, Nx: 3, Ny: 2}
	r := testRaster(g, Cell{0, 0, 100}, Cell{1, 2, 12.6}, Cell{0, 1, 0.3})
	path := filepath.Join(t.TempDir(), "T_NAT_ECCC_SAR_END_COSEWIC_1.tif")
	if err := WriteTIFF(path, r, "PROJCS[]"); err != nil {
		t.Fatal(err)
	}
	have, err := ReadTIFF(path)
	if err != nil {
		t.Fatal(err)
	}
	if have.Grid != g {
		t.Errorf("grid: have %v, want %v", have.Grid, g)
	}
	want := []Cell{{0, 0, 100}, {0, 1, 1}, {1, 2, 13}}
	if cells := have.Cells(); !reflect.DeepEqual(cells, want) {
		t.Errorf("cells: have %v, want %v", cells, want)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "T_NAT_ECCC_SAR_END_COSEWIC_1.prj")); err != nil {
		t.Error(err)
	}
}

func TestNCFRoundTrip(t *testing.T) {
	g := Grid{X0: 0, Y0: 0, Dx: 1000, Dy: 1000, Nx: 3, Ny: 2}
	vars := map[string]*Raster{
		"HA_SUM": testRaster(g, Cell{0, 0, 150}, Cell{1, 2, 3}),
		"N":      testRaster(g, Cell{0, 0, 2}, Cell{1, 2, 1}),
	}
	f, err := os.Create(filepath.Join(t.TempDir(), "richness.ncf"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := WriteNCF(f, vars, "test"); err != nil {
		t.Fatal(err)
	}
	have, err := ReadNCF(f)
	if err != nil {
		t.Fatal(err)
	}
	for name, want := range vars {
		h, ok := have[name]
		if !ok {
			t.Errorf("missing variable %s", name)
			continue
		}
		if h.Grid != g {
			t.Errorf("%s grid: have %v, want %v", name, h.Grid, g)
		}
		if !reflect.DeepEqual(h.Cells(), want.Cells()) {
			t.Errorf("%s: have %v, want %v", name, h.Cells(), want.Cells())
		}
	}
}
