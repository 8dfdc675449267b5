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
	"fmt"
	"sort"

	"github.com/ncc-cnc/sargrid/raster"
	"github.com/ncc-cnc/sargrid/vector"
)

// GridCells is the fixed grid species are apportioned to. It is read
// concurrently by all workers and must not be modified.
type GridCells interface {
	// Select returns, as a new layer named name, the grid cells that
	// intersect (including by touching) any feature of l, in grid
	// order.
	Select(name string, l *vector.Layer) *vector.Layer

	// IDField is the name of the cell identifier field of the layers
	// returned by Select.
	IDField() string
}

// CellLayer is a grid read from a polygon layer with one feature per
// cell.
type CellLayer struct {
	layer   *vector.Layer
	index   *vector.Index
	idField string
}

// NewCellLayer indexes the cells of l, which must have the identifier
// field idField.
func NewCellLayer(l *vector.Layer, idField string) (*CellLayer, error) {
	if err := l.RequireFields(idField); err != nil {
		return nil, fmt.Errorf("sargrid: grid cells: %w", err)
	}
	return &CellLayer{layer: l, index: vector.NewIndex(l), idField: idField}, nil
}

// IDField implements GridCells.
func (c *CellLayer) IDField() string { return c.idField }

// Select implements GridCells.
func (c *CellLayer) Select(name string, l *vector.Layer) *vector.Layer {
	selected := make(map[int]bool)
	for _, f := range l.Features {
		for _, i := range c.index.Search(f.Bounds()) {
			if selected[i] {
				continue
			}
			if vector.Intersects(c.layer.Features[i].Polygonal, f.Polygonal) {
				selected[i] = true
			}
		}
	}
	return c.layer.Subset(name, sortedKeys(selected))
}

func sortedKeys(m map[int]bool) []int {
	o := make([]int, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Ints(o)
	return o
}

// RegularCells is a grid generated from a bounded raster lattice. Cells
// are numbered from 1 in row-major order starting at the north-west
// corner.
type RegularCells struct {
	grid    raster.Grid
	idField string
	sr      string
}

// NewRegularCells returns the cells of g. sr is the spatial reference
// of the grid coordinates.
func NewRegularCells(g raster.Grid, idField, sr string) (*RegularCells, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if !g.Bounded() {
		return nil, fmt.Errorf("sargrid: grid cells: the snap grid needs an extent to number its cells")
	}
	return &RegularCells{grid: g, idField: idField, sr: sr}, nil
}

// IDField implements GridCells.
func (c *RegularCells) IDField() string { return c.idField }

// CellID returns the identifier of the cell at row and col.
func (c *RegularCells) CellID(row, col int) int { return row*c.grid.Nx + col + 1 }

// Select implements GridCells.
func (c *RegularCells) Select(name string, l *vector.Layer) *vector.Layer {
	selected := make(map[int]bool)
	for _, f := range l.Features {
		r0, r1, c0, c1, ok := c.grid.Window(f.Bounds())
		if !ok {
			continue
		}
		// Cells sharing only an edge or corner with the window.
		r0, r1 = max(r0-1, 0), min(r1+1, c.grid.Ny)
		c0, c1 = max(c0-1, 0), min(c1+1, c.grid.Nx)
		for row := r0; row < r1; row++ {
			for col := c0; col < c1; col++ {
				k := row*c.grid.Nx + col
				if selected[k] {
					continue
				}
				if vector.Intersects(c.grid.CellPolygon(row, col), f.Polygonal) {
					selected[k] = true
				}
			}
		}
	}
	o := &vector.Layer{Name: name, Fields: []vector.Field{vector.IntField(c.idField)}, SR: c.sr}
	for _, k := range sortedKeys(selected) {
		row, col := k/c.grid.Nx, k%c.grid.Nx
		o.Features = append(o.Features, &vector.Feature{
			Polygonal:  c.grid.CellPolygon(row, col),
			Attributes: map[string]interface{}{c.idField: c.CellID(row, col)},
		})
	}
	return o
}
