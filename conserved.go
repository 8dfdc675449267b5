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
	"math"

	"github.com/ncc-cnc/sargrid/raster"
	"github.com/ncc-cnc/sargrid/vector"
)

// Names of the existing conservation datasets.
const (
	PreparedParksName        = "PREPPED_PARKS"
	ExistingConservationName = "Existing_Conservation"
	IncludeField             = "Include"
)

// ConservedConfig holds the parameters used to build the protected and
// conserved land layer from the Canadian Protected and Conserved Areas
// Database (CPCAD) and Nature Conservancy of Canada (NCC) properties.
type ConservedConfig struct {
	// PropertyField is the NCC property type field and
	// PropertyPrefixes the property types that are kept.
	PropertyField    string
	PropertyPrefixes []string

	// BiomeField and Biome select the CPCAD areas that are kept.
	BiomeField, Biome string

	// IncludeHa is the conserved area, in hectares, at or above which a
	// grid cell counts as conserved.
	IncludeHa float64
}

// DefaultConservedConfig returns the canonical parameters.
func DefaultConservedConfig() ConservedConfig {
	return ConservedConfig{
		PropertyField:    "FIRST_PCL_",
		PropertyPrefixes: []string{"Fee Simple", "Conservation Agreement"},
		BiomeField:       "BIOME",
		Biome:            "T",
		IncludeHa:        50,
	}
}

// PrepareConserved combines terrestrial CPCAD areas and NCC fee simple
// and conservation agreement properties into one dissolved layer with
// no internal overlaps. NCC properties are erased from CPCAD before
// the two are merged.
func PrepareConserved(cpcad, ncc *vector.Layer, cfg ConservedConfig) (*vector.Layer, error) {
	if err := ncc.RequireFields(cfg.PropertyField); err != nil {
		return nil, fmt.Errorf("sargrid: preparing conserved areas: %w", err)
	}
	if err := cpcad.RequireFields(cfg.BiomeField); err != nil {
		return nil, fmt.Errorf("sargrid: preparing conserved areas: %w", err)
	}
	properties := ncc.Select("NCC", vector.HasPrefix(cfg.PropertyField, cfg.PropertyPrefixes...))
	terrestrial := cpcad.Select("CPCAD", vector.Equals(cfg.BiomeField, cfg.Biome))
	erased := vector.Erase("CPCAD_NCC_erase", terrestrial, properties)

	if erased.SR == "" {
		erased.SR = properties.SR
	}
	merged, err := vector.Merge("CPCAD_NCC", geometryOnly(erased), geometryOnly(properties))
	if err != nil {
		return nil, fmt.Errorf("sargrid: preparing conserved areas: %w", err)
	}
	if merged.Len() == 0 {
		return nil, fmt.Errorf("sargrid: preparing conserved areas: no CPCAD or NCC features were selected")
	}
	o, err := vector.Dissolve(PreparedParksName, merged, nil)
	if err != nil {
		return nil, fmt.Errorf("sargrid: preparing conserved areas: %w", err)
	}
	return o, nil
}

// ConservedGrid is the conserved land apportioned to the grid.
type ConservedGrid struct {
	// Cells are the grid cells overlapping conserved land with the
	// conserved hectares in RangeHaField and RangeKm2Field and 1 in
	// IncludeField for cells at or above the include threshold.
	Cells *vector.Layer

	// Hectares holds the conserved hectares of each cell.
	Hectares *raster.Raster

	// Included holds 1 for included cells. It is nil if no cell
	// reaches the include threshold.
	Included *raster.Raster
}

// GridConserved apportions the prepared conserved layer to whole
// hectares per grid cell and rasterizes the result.
func GridConserved(prepared *vector.Layer, cells GridCells, cfg ConservedConfig, rcfg RasterizeConfig) (*ConservedGrid, error) {
	sp := &Species{Name: ExistingConservationName, Layer: prepared}
	a, err := Apportion(sp, cells, ApportionConfig{LargeRangeKm2: math.Inf(1), LargeRangeBurn: 1})
	if err != nil {
		return nil, err
	}
	o := new(ConservedGrid)
	o.Cells, err = a.Layer.SetField(vector.IntField(IncludeField), func(f *vector.Feature) (interface{}, error) {
		ha, err := f.Float(RangeHaField)
		if err != nil {
			return nil, err
		}
		if ha >= cfg.IncludeHa {
			return 1, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("sargrid: gridding conserved areas: %w", err)
	}
	o.Cells.Name = ExistingConservationName

	r, err := RasterizeLayer(o.Cells, rcfg, RangeHaField, RangeHaField, raster.CellCenter)
	if err != nil {
		return nil, fmt.Errorf("sargrid: rasterizing conserved hectares: %w", err)
	}
	o.Hectares = r.Raster

	included := o.Cells.Select(o.Cells.Name, vector.GreaterThan(IncludeField, 0))
	if included.Len() > 0 {
		o.Included, err = raster.PolygonToRaster(included, rcfg.Snap, raster.Options{
			ValueField: IncludeField,
			Assignment: raster.CellCenter,
		})
		if err != nil {
			return nil, fmt.Errorf("sargrid: rasterizing conserved cells: %w", err)
		}
	}
	return o, nil
}
