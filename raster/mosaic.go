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
	"fmt"
)

// ErrMisaligned is returned when rasters that must share a lattice
// do not.
var ErrMisaligned = errors.New("raster: rasters are not aligned")

// Mosaic returns the cell-wise sum of rs. The output covers the union
// of the input extents; cells an input does not cover contribute 0.
func Mosaic(rs ...*Raster) (*Raster, error) {
	if len(rs) == 0 {
		return nil, fmt.Errorf("raster: mosaic: %w", ErrEmpty)
	}
	g := rs[0].Grid
	for i, r := range rs[1:] {
		if !rs[0].Aligned(r.Grid) {
			return nil, fmt.Errorf("%w: raster %d (%v) and raster 0 (%v)", ErrMisaligned, i+1, r.Grid, rs[0].Grid)
		}
		g = g.Union(r.Grid)
	}
	o := New(g)
	for _, r := range rs {
		dr, dc := g.offset(r.Grid)
		for i, v := range r.Data.Elements {
			o.Add(i/r.Nx+dr, i%r.Nx+dc, v)
		}
	}
	return o, nil
}

// Count returns the cell-wise number of rasters in rs with a non-zero
// value, on the union of their extents.
func Count(rs ...*Raster) (*Raster, error) {
	b := make([]*Raster, len(rs))
	for i, r := range rs {
		b[i] = Binarize(r)
	}
	return Mosaic(b...)
}
