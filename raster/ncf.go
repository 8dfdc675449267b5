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
	"fmt"
	"os"
	"sort"

	"github.com/ctessum/cdf"
)

// WriteNCF writes rasters sharing one grid to a NetCDF file as float32
// variables with dimensions (y, x), row 0 being the northernmost row.
// The grid is stored in the global attributes x0, y0, dx, dy, nx and ny.
func WriteNCF(w *os.File, vars map[string]*Raster, description string) error {
	if len(vars) == 0 {
		return fmt.Errorf("raster: writing netcdf: %w", ErrEmpty)
	}
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)

	g := vars[names[0]].Grid
	for _, n := range names[1:] {
		if vars[n].Grid != g {
			return fmt.Errorf("%w: netcdf variables %s and %s have different grids", ErrMisaligned, names[0], n)
		}
	}

	h := cdf.NewHeader([]string{"y", "x"}, []int{g.Ny, g.Nx})
	h.AddAttribute("", "comment", description)
	h.AddAttribute("", "x0", []float64{g.X0})
	h.AddAttribute("", "y0", []float64{g.Y0})
	h.AddAttribute("", "dx", []float64{g.Dx})
	h.AddAttribute("", "dy", []float64{g.Dy})
	h.AddAttribute("", "nx", []int32{int32(g.Nx)})
	h.AddAttribute("", "ny", []int32{int32(g.Ny)})
	for _, n := range names {
		h.AddVariable(n, []string{"y", "x"}, []float32{0})
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("raster: creating netcdf: %w", err)
	}
	for _, n := range names {
		r := vars[n]
		data32 := make([]float32, r.Len())
		for i, v := range r.Data.Elements {
			data32[i] = float32(v)
		}
		end := f.Header.Lengths(n)
		start := make([]int, len(end))
		if _, err := f.Writer(n, start, end).Write(data32); err != nil {
			return fmt.Errorf("raster: writing variable %s to netcdf: %w", n, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

// ReadNCF reads all variables of a NetCDF file written by WriteNCF.
func ReadNCF(rw cdf.ReaderWriterAt) (map[string]*Raster, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("raster: opening netcdf: %w", err)
	}
	g, err := ncfGrid(f.Header)
	if err != nil {
		return nil, err
	}
	o := make(map[string]*Raster)
	for _, v := range f.Header.Variables() {
		dims := f.Header.Lengths(v)
		if len(dims) != 2 || dims[0] != g.Ny || dims[1] != g.Nx {
			return nil, fmt.Errorf("raster: netcdf variable %s has dimensions %v, want [%d %d]", v, dims, g.Ny, g.Nx)
		}
		tmp := make([]float32, g.Len())
		if _, err := f.Reader(v, nil, nil).Read(tmp); err != nil {
			return nil, fmt.Errorf("raster: reading netcdf variable %s: %w", v, err)
		}
		r := New(g)
		for i, val := range tmp {
			if val != 0 {
				r.Data.Elements[i] = float64(val)
			}
		}
		o[v] = r
	}
	return o, nil
}

func ncfGrid(h *cdf.Header) (g Grid, err error) {
	defer func() {
		// Attributes of the wrong type cause a panic in the type
		// assertions below.
		if r := recover(); r != nil {
			err = fmt.Errorf("raster: netcdf file is missing grid attributes: %v", r)
		}
	}()
	g = Grid{
		X0: h.GetAttribute("", "x0").([]float64)[0],
		Y0: h.GetAttribute("", "y0").([]float64)[0],
		Dx: h.GetAttribute("", "dx").([]float64)[0],
		Dy: h.GetAttribute("", "dy").([]float64)[0],
		Nx: int(h.GetAttribute("", "nx").([]int32)[0]),
		Ny: int(h.GetAttribute("", "ny").([]int32)[0]),
	}
	return g, g.Validate()
}
