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

// Package raster holds single-band rasters on a fixed lattice of square
// cells, conversion of polygon layers to rasters, cell-wise mosaics and
// raster file formats.
package raster

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// Grid is a regular lattice of rectangular cells. Rows are numbered
// from north to south and columns from west to east.
type Grid struct {
	// X0 and Y0 are the coordinates of the lower-left corner of the grid.
	X0, Y0 float64

	// Dx and Dy are the cell width and height.
	Dx, Dy float64

	// Nx and Ny are the numbers of columns and rows. A grid with zero
	// columns or rows describes an unbounded lattice, which is
	// useful as a snap reference.
	Nx, Ny int
}

// Validate checks that g describes a usable lattice.
func (g Grid) Validate() error {
	if !(g.Dx > 0) || !(g.Dy > 0) {
		return fmt.Errorf("raster: cell size must be positive, have %g x %g", g.Dx, g.Dy)
	}
	if g.Nx < 0 || g.Ny < 0 {
		return fmt.Errorf("raster: negative grid dimensions %d x %d", g.Nx, g.Ny)
	}
	return nil
}

// Bounded reports whether g has a finite extent.
func (g Grid) Bounded() bool { return g.Nx > 0 && g.Ny > 0 }

// Len returns the number of cells in g.
func (g Grid) Len() int { return g.Nx * g.Ny }

// Bounds returns the extent of g.
func (g Grid) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.X0, Y: g.Y0},
		Max: geom.Point{X: g.X0 + float64(g.Nx)*g.Dx, Y: g.Y0 + float64(g.Ny)*g.Dy},
	}
}

// CellBounds returns the extent of the cell at row and col.
func (g Grid) CellBounds(row, col int) *geom.Bounds {
	x := g.X0 + float64(col)*g.Dx
	y := g.Y0 + float64(g.Ny-1-row)*g.Dy
	return &geom.Bounds{
		Min: geom.Point{X: x, Y: y},
		Max: geom.Point{X: x + g.Dx, Y: y + g.Dy},
	}
}

// CellPolygon returns the outline of the cell at row and col.
func (g Grid) CellPolygon(row, col int) geom.Polygon {
	b := g.CellBounds(row, col)
	return geom.Polygon{{
		b.Min, {X: b.Max.X, Y: b.Min.Y}, b.Max, {X: b.Min.X, Y: b.Max.Y},
	}}
}

// Center returns the center point of the cell at row and col.
func (g Grid) Center(row, col int) geom.Point {
	return geom.Point{
		X: g.X0 + (float64(col)+0.5)*g.Dx,
		Y: g.Y0 + (float64(g.Ny-1-row)+0.5)*g.Dy,
	}
}

// Locate returns the row and column of the cell containing (x, y).
// Points on a shared cell edge belong to the cell to the east or north.
func (g Grid) Locate(x, y float64) (row, col int, ok bool) {
	col = int(math.Floor(lattice((x - g.X0) / g.Dx)))
	r := int(math.Floor(lattice((y - g.Y0) / g.Dy)))
	row = g.Ny - 1 - r
	ok = col >= 0 && col < g.Nx && row >= 0 && row < g.Ny
	return
}

// latticeTolerance is the distance, in cells, within which a coordinate
// is considered to lie exactly on a grid line.
const latticeTolerance = 1e-9

// lattice snaps v, a position measured in cells, onto the nearest grid
// line when it is within latticeTolerance of it.
func lattice(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) < latticeTolerance {
		return r
	}
	return v
}

// Cover returns the smallest grid aligned with g's lattice that covers b.
// If g is bounded the result is clipped to g's extent, and it may
// have no cells.
func (g Grid) Cover(b *geom.Bounds) Grid {
	c0 := int(math.Floor(lattice((b.Min.X - g.X0) / g.Dx)))
	c1 := int(math.Ceil(lattice((b.Max.X - g.X0) / g.Dx)))
	r0 := int(math.Floor(lattice((b.Min.Y - g.Y0) / g.Dy)))
	r1 := int(math.Ceil(lattice((b.Max.Y - g.Y0) / g.Dy)))
	if c1 == c0 {
		c1++
	}
	if r1 == r0 {
		r1++
	}
	if g.Bounded() {
		c0, c1 = clamp(c0, 0, g.Nx), clamp(c1, 0, g.Nx)
		r0, r1 = clamp(r0, 0, g.Ny), clamp(r1, 0, g.Ny)
	}
	return Grid{
		X0: g.X0 + float64(c0)*g.Dx,
		Y0: g.Y0 + float64(r0)*g.Dy,
		Dx: g.Dx,
		Dy: g.Dy,
		Nx: c1 - c0,
		Ny: r1 - r0,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Window returns the range of rows [r0, r1) and columns [c0, c1) of
// the cells of g that overlap b. ok is false if there are none.
func (g Grid) Window(b *geom.Bounds) (r0, r1, c0, c1 int, ok bool) {
	c0 = clamp(int(math.Floor(lattice((b.Min.X-g.X0)/g.Dx))), 0, g.Nx)
	c1 = clamp(int(math.Ceil(lattice((b.Max.X-g.X0)/g.Dx))), 0, g.Nx)
	r0 = clamp(g.Ny-int(math.Ceil(lattice((b.Max.Y-g.Y0)/g.Dy))), 0, g.Ny)
	r1 = clamp(g.Ny-int(math.Floor(lattice((b.Min.Y-g.Y0)/g.Dy))), 0, g.Ny)
	ok = r0 < r1 && c0 < c1
	return
}

// Aligned reports whether g and o have the same cell size and their
// cell edges fall on the same lattice.
func (g Grid) Aligned(o Grid) bool {
	if g.Dx != o.Dx || g.Dy != o.Dy {
		return false
	}
	ox := (o.X0 - g.X0) / g.Dx
	oy := (o.Y0 - g.Y0) / g.Dy
	return math.Abs(ox-math.Round(ox)) < latticeTolerance && math.Abs(oy-math.Round(oy)) < latticeTolerance
}

// Union returns the smallest grid on g's lattice covering both g and o.
// The grids must be aligned.
func (g Grid) Union(o Grid) Grid {
	b := g.Bounds()
	b.Extend(o.Bounds())
	u := Grid{X0: g.X0, Y0: g.Y0, Dx: g.Dx, Dy: g.Dy}
	return u.Cover(b)
}

// offset returns the position of o's first cell within g.
func (g Grid) offset(o Grid) (row, col int) {
	col = int(math.Round((o.X0 - g.X0) / g.Dx))
	r := int(math.Round((o.Y0 - g.Y0) / g.Dy))
	row = g.Ny - o.Ny - r
	return
}

func (g Grid) String() string {
	return fmt.Sprintf("%dx%d cells of %gx%g from (%g, %g)", g.Nx, g.Ny, g.Dx, g.Dy, g.X0, g.Y0)
}
