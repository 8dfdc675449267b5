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

	"github.com/ncc-cnc/sargrid/raster"
	"github.com/ncc-cnc/sargrid/vector"
)

// RasterizeConfig holds the parameters of the rasterizer.
type RasterizeConfig struct {
	// Snap is the reference lattice, and extent if it is bounded, of
	// all output rasters.
	Snap raster.Grid

	// PresenceBurn is the value burned when no feature has a positive
	// area value.
	PresenceBurn float64
}

// Rasterization is a species raster and how it was produced.
type Rasterization struct {
	*raster.Raster

	// Presence is true if the presence fallback was used.
	Presence bool
}

// Rasterize converts an apportioned species to a raster. Intersected
// species burn the apportioned hectares of each grid cell, choosing
// cells by center with the larger area winning; large ranges burn the
// constant burn value by maximum combined area, with the larger range
// area winning.
func Rasterize(a *Apportionment, cfg RasterizeConfig) (*Rasterization, error) {
	var r *Rasterization
	var err error
	switch a.Branch {
	case Intersected:
		r, err = RasterizeLayer(a.Layer, cfg, RangeHaField, RangeHaField, raster.CellCenter)
	case LargeRange:
		r, err = RasterizeLayer(a.Layer, cfg, BurnField, RangeHaField, raster.MaximumCombinedArea)
	default:
		err = fmt.Errorf("sargrid: invalid branch %v", a.Branch)
	}
	if err != nil {
		return nil, fmt.Errorf("sargrid: rasterizing %s: %w", a.Species.Name, err)
	}
	return r, nil
}

// RasterizeLayer burns the positive values of valueField into a
// raster. If no feature has a positive value, for example because
// every cell's area rounded down to zero, all features of l are burned
// with cfg.PresenceBurn by cell center without priority instead.
func RasterizeLayer(l *vector.Layer, cfg RasterizeConfig, valueField, priorityField string, assign raster.Assignment) (*Rasterization, error) {
	if err := l.RequireFields(valueField); err != nil {
		return nil, err
	}
	positive := l.Select(l.Name, vector.GreaterThan(valueField, 0))
	if positive.Len() > 0 {
		r, err := raster.PolygonToRaster(positive, cfg.Snap, raster.Options{
			ValueField:    valueField,
			PriorityField: priorityField,
			Assignment:    assign,
		})
		if err != nil {
			return nil, err
		}
		return &Rasterization{Raster: r}, nil
	}

	burned, err := l.SetField(vector.FloatField(BurnField), vector.Constant(cfg.PresenceBurn))
	if err != nil {
		return nil, err
	}
	r, err := raster.PolygonToRaster(burned, cfg.Snap, raster.Options{
		ValueField: BurnField,
		Assignment: raster.CellCenter,
	})
	if err != nil {
		return nil, err
	}
	return &Rasterization{Raster: r, Presence: true}, nil
}
