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
	"math"
	"sort"

	"github.com/ctessum/sparse"
)

// Raster is a single-band raster. Only cells with non-zero values are
// stored, so memory use follows the covered area rather than the
// extent.
type Raster struct {
	Grid

	// Data holds the cell values indexed by [row, col].
	Data *sparse.SparseArray
}

// New returns an all-zero raster on g.
func New(g Grid) *Raster {
	return &Raster{Grid: g, Data: sparse.ZerosSparse(g.Ny, g.Nx)}
}

func (r *Raster) index(row, col int) int { return row*r.Nx + col }

// At returns the value at row and col. Cells outside the raster are 0.
func (r *Raster) At(row, col int) float64 {
	if row < 0 || row >= r.Ny || col < 0 || col >= r.Nx {
		return 0
	}
	return r.Data.Elements[r.index(row, col)]
}

// Set sets the value at row and col.
func (r *Raster) Set(row, col int, v float64) {
	i := r.index(row, col)
	if v == 0 {
		delete(r.Data.Elements, i)
		return
	}
	r.Data.Elements[i] = v
}

// Add adds v to the value at row and col.
func (r *Raster) Add(row, col int, v float64) {
	i := r.index(row, col)
	s := r.Data.Elements[i] + v
	if s == 0 {
		delete(r.Data.Elements, i)
		return
	}
	r.Data.Elements[i] = s
}

// ValueAt returns the value of the cell containing (x, y), or 0 if
// the point is outside the raster.
func (r *Raster) ValueAt(x, y float64) float64 {
	row, col, ok := r.Locate(x, y)
	if !ok {
		return 0
	}
	return r.At(row, col)
}

// Cell is a raster cell with a non-zero value.
type Cell struct {
	Row, Col int
	Value    float64
}

// Cells returns the non-zero cells of r in row-major order.
func (r *Raster) Cells() []Cell {
	idx := r.Data.Nonzero()
	sort.Ints(idx)
	o := make([]Cell, len(idx))
	for i, j := range idx {
		o[i] = Cell{Row: j / r.Nx, Col: j % r.Nx, Value: r.Data.Elements[j]}
	}
	return o
}

// Count returns the number of non-zero cells.
func (r *Raster) Count() int { return len(r.Data.Elements) }

// Sum returns the sum of all cell values.
func (r *Raster) Sum() float64 { return r.Data.Sum() }

// Max returns the largest cell value, or 0 for an empty raster.
func (r *Raster) Max() float64 {
	m := 0.
	for _, v := range r.Data.Elements {
		m = math.Max(m, v)
	}
	return m
}

// Dense returns all cell values in row-major order.
func (r *Raster) Dense() []float64 {
	o := make([]float64, r.Len())
	for i, v := range r.Data.Elements {
		o[i] = v
	}
	return o
}

// Binarize returns a raster holding 1 where r is non-zero.
func Binarize(r *Raster) *Raster {
	o := New(r.Grid)
	for i := range r.Data.Elements {
		o.Data.Elements[i] = 1
	}
	return o
}

// Uint16 converts v to an unsigned 16-bit cell value. Values round half
// up; positive values below one become 1 so that presence survives
// the conversion, and values outside the representable range are
// clamped.
func Uint16(v float64) uint16 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v < 1:
		return 1
	case v >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(math.Floor(v + 0.5))
}
