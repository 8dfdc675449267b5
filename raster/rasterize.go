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
	"math"

	"github.com/ctessum/geom"
	"github.com/ncc-cnc/sargrid/vector"
)

// ErrEmpty is returned when there is nothing to rasterize.
var ErrEmpty = errors.New("raster: no features to rasterize")

// Assignment selects how the value of a cell is chosen when features
// are converted to a raster.
type Assignment int

const (
	// CellCenter assigns each cell the value of the feature that
	// contains the cell center.
	CellCenter Assignment = iota

	// MaximumCombinedArea combines the areas within each cell of all
	// features sharing a value and assigns the value with the largest
	// combined area.
	MaximumCombinedArea
)

func (a Assignment) String() string {
	switch a {
	case CellCenter:
		return "CELL_CENTER"
	case MaximumCombinedArea:
		return "MAXIMUM_COMBINED_AREA"
	default:
		return fmt.Sprintf("Assignment(%d)", int(a))
	}
}

// Options control PolygonToRaster.
type Options struct {
	// ValueField is the numeric field whose value is burned into cells.
	ValueField string

	// PriorityField, if set, is a numeric field used to decide between
	// features competing for a cell: the larger value wins. Without
	// it, or when priorities are equal, the feature that comes first
	// in the layer wins.
	PriorityField string

	Assignment Assignment
}

type candidate struct {
	value, priority float64
	area            float64
	order           int
}

// beats reports whether c should replace o as the value of a cell.
func (c candidate) beats(o candidate, a Assignment) bool {
	if a == MaximumCombinedArea && c.area != o.area {
		return c.area > o.area
	}
	if c.priority != o.priority {
		return c.priority > o.priority
	}
	if a == MaximumCombinedArea && c.value != o.value {
		return c.value > o.value
	}
	return c.order < o.order
}

// PolygonToRaster converts the features of l into a raster on snap's
// lattice. If snap is bounded the raster has snap's extent; otherwise
// it covers the extent of l.
func PolygonToRaster(l *vector.Layer, snap Grid, opt Options) (*Raster, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if l.Len() == 0 {
		return nil, fmt.Errorf("%w in %s", ErrEmpty, l.Name)
	}
	if err := l.RequireFields(opt.ValueField); err != nil {
		return nil, err
	}
	if opt.PriorityField != "" {
		if err := l.RequireFields(opt.PriorityField); err != nil {
			return nil, err
		}
	}
	g := snap
	if !g.Bounded() {
		g = snap.Cover(l.Bounds())
	}
	if _, _, _, _, ok := g.Window(l.Bounds()); !ok {
		return nil, fmt.Errorf("%w: %s is outside of the snap grid (%v)", ErrEmpty, l.Name, snap)
	}

	cands := make([]candidate, len(l.Features))
	for i, f := range l.Features {
		v, err := f.Float(opt.ValueField)
		if err != nil {
			return nil, fmt.Errorf("raster: %s feature %d: %w", l.Name, i, err)
		}
		c := candidate{value: v, order: i}
		if opt.PriorityField != "" {
			if c.priority, err = f.Float(opt.PriorityField); err != nil {
				return nil, fmt.Errorf("raster: %s feature %d: %w", l.Name, i, err)
			}
		}
		cands[i] = c
	}

	best := make(map[int]candidate)
	switch opt.Assignment {
	case CellCenter:
		for i, f := range l.Features {
			r0, r1, c0, c1, ok := g.Window(f.Bounds())
			if !ok {
				continue
			}
			for row := r0; row < r1; row++ {
				for col := c0; col < c1; col++ {
					if g.Center(row, col).Within(f.Polygonal) == geom.Outside {
						continue
					}
					k := row*g.Nx + col
					if o, ok := best[k]; !ok || cands[i].beats(o, CellCenter) {
						best[k] = cands[i]
					}
				}
			}
		}
	case MaximumCombinedArea:
		// Combined area and highest priority per cell and value.
		type key struct {
			cell  int
			value float64
		}
		groups := make(map[key]candidate)
		var keys []key
		for i, f := range l.Features {
			for cell, a := range Coverage(f.Polygonal, g) {
				k := key{cell: cell, value: cands[i].value}
				c, ok := groups[k]
				if !ok {
					c = cands[i]
					c.area = 0
					keys = append(keys, k)
				} else if cands[i].priority > c.priority {
					c.priority = cands[i].priority
				}
				c.area += a
				groups[k] = c
			}
		}
		for _, k := range keys {
			c := groups[k]
			if o, ok := best[k.cell]; !ok || c.beats(o, MaximumCombinedArea) {
				best[k.cell] = c
			}
		}
	default:
		return nil, fmt.Errorf("raster: invalid cell assignment %v", opt.Assignment)
	}

	r := New(g)
	for k, c := range best {
		r.Set(k/g.Nx, k%g.Nx, c.value)
	}
	return r, nil
}

// Coverage returns the area of p within each cell of g that p overlaps,
// keyed by row*g.Nx+col. p is clipped one row of cells at a time and
// only cells crossed by the clipped outline are intersected exactly;
// the remaining cells are either fully covered or empty, which is
// decided from the cell center.
func Coverage(p geom.Polygonal, g Grid) map[int]float64 {
	o := make(map[int]float64)
	r0, r1, c0, c1, ok := g.Window(p.Bounds())
	if !ok {
		return o
	}
	cellArea := g.Dx * g.Dy
	for row := r0; row < r1; row++ {
		band := g.CellBounds(row, c0)
		band.Max.X = g.CellBounds(row, c1-1).Max.X
		strip := vector.Polygon(bandPolygon(band).Intersection(p))
		if len(strip) == 0 {
			continue
		}
		edge := edgeColumns(strip, band, g, c0, c1)
		for col := c0; col < c1; col++ {
			if edge[col-c0] {
				a := g.CellPolygon(row, col).Intersection(strip).Area()
				if a > 0 {
					o[row*g.Nx+col] = a
				}
				continue
			}
			if g.Center(row, col).Within(strip) != geom.Outside {
				o[row*g.Nx+col] = cellArea
			}
		}
	}
	return o
}

func bandPolygon(b *geom.Bounds) geom.Polygon {
	return geom.Polygon{{
		b.Min, {X: b.Max.X, Y: b.Min.Y}, b.Max, {X: b.Min.X, Y: b.Max.Y},
	}}
}

// edgeColumns marks the columns in [c0, c1) crossed by an edge of
// strip other than the horizontal edges along the band's top and
// bottom.
func edgeColumns(strip geom.Polygon, band *geom.Bounds, g Grid, c0, c1 int) []bool {
	o := make([]bool, c1-c0)
	onBand := func(a, b geom.Point) bool {
		return a.Y == b.Y && (a.Y == band.Min.Y || a.Y == band.Max.Y)
	}
	for _, ring := range strip {
		for i, a := range ring {
			b := ring[(i+1)%len(ring)]
			if onBand(a, b) {
				continue
			}
			lo := int(math.Floor(lattice((math.Min(a.X, b.X) - g.X0) / g.Dx)))
			hi := int(math.Ceil(lattice((math.Max(a.X, b.X) - g.X0) / g.Dx)))
			if hi == lo {
				hi++
			}
			for c := clamp(lo, c0, c1); c < clamp(hi, c0, c1); c++ {
				o[c-c0] = true
			}
		}
	}
	return o
}
