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
	"strconv"

	"github.com/ncc-cnc/sargrid/vector"
)

// Field names written by the apportionment, rasterization and
// protection stages.
const (
	RangeHaField      = "Range_ha"
	RangeKm2Field     = "Range_km2"
	BurnField         = "BURN"
	ProtectionHaField = "Protection_ha"
)

// Round rounds v to the given number of decimal places, halves away
// from zero.
func Round(v float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(v)
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// ApportionConfig holds the parameters of the area apportionment
// engine.
type ApportionConfig struct {
	// LargeRangeKm2 is the total range area above which grid
	// intersection is skipped and the range is rasterized directly.
	LargeRangeKm2 float64

	// LargeRangeBurn is the value burned into the cells of large
	// ranges, a nominal area in hectares per cell.
	LargeRangeBurn float64

	// HaDecimals is the number of decimal places each fragment's area
	// in hectares is rounded to before it is added to its cell total:
	// 0 for whole hectares, 2 for hundredths.
	HaDecimals int
}

// DefaultApportionConfig returns the canonical parameters.
func DefaultApportionConfig() ApportionConfig {
	return ApportionConfig{LargeRangeKm2: 2e6, LargeRangeBurn: 100, HaDecimals: 0}
}

// Validate checks the configuration.
func (c ApportionConfig) Validate() error {
	if !(c.LargeRangeKm2 > 0) {
		return fmt.Errorf("sargrid: large range threshold must be positive, have %g", c.LargeRangeKm2)
	}
	if !(c.LargeRangeBurn > 0) {
		return fmt.Errorf("sargrid: large range burn value must be positive, have %g", c.LargeRangeBurn)
	}
	if c.HaDecimals < 0 || c.HaDecimals > 6 {
		return fmt.Errorf("sargrid: hectare rounding must be between 0 and 6 decimals, have %d", c.HaDecimals)
	}
	return nil
}

// Branch records how a species was apportioned.
type Branch int

const (
	// Intersected species were intersected with the grid cells.
	Intersected Branch = iota

	// LargeRange species were too large to intersect and are
	// rasterized directly with a constant burn value.
	LargeRange
)

func (b Branch) String() string {
	switch b {
	case Intersected:
		return "grid"
	case LargeRange:
		return "large range"
	default:
		return fmt.Sprintf("Branch(%d)", int(b))
	}
}

// Apportionment is the result of apportioning one species.
type Apportionment struct {
	Species *Species
	Branch  Branch

	// TotalKm2 is the total range area used to choose the branch.
	TotalKm2 float64

	// Layer is the dataset passed to the rasterizer. For Intersected
	// species it holds the selected grid cells with the apportioned
	// area in RangeHaField and RangeKm2Field. For LargeRange species it
	// is the species layer with the constant BurnField and its range
	// area in RangeHaField.
	Layer *vector.Layer

	// Fragments is the number of intersection fragments summed into
	// the cell totals.
	Fragments int
}

// TotalKm2 returns the total area of l in square kilometres, summing
// each feature's area rounded to whole square kilometres.
func TotalKm2(l *vector.Layer) float64 {
	var t float64
	for _, f := range l.Features {
		t += math.Round(vector.ConvertArea(f.Area(), vector.SquareKilometre))
	}
	return t
}

// Apportion distributes the area of sp onto cells. Ranges larger than
// cfg.LargeRangeKm2 are only tagged with the burn value.
func Apportion(sp *Species, cells GridCells, cfg ApportionConfig) (*Apportionment, error) {
	a := &Apportionment{Species: sp, TotalKm2: TotalKm2(sp.Layer)}
	if a.TotalKm2 > cfg.LargeRangeKm2 {
		a.Branch = LargeRange
		l, err := ensureRangeHa(sp.Layer)
		if err != nil {
			return nil, err
		}
		a.Layer, err = l.SetField(vector.FloatField(BurnField), vector.Constant(cfg.LargeRangeBurn))
		if err != nil {
			return nil, fmt.Errorf("sargrid: apportioning %s: %w", sp.Name, err)
		}
		return a, nil
	}

	a.Branch = Intersected
	selected := cells.Select(GridLayerName(sp.Name), sp.Layer)
	idField := cells.IDField()
	frags := vector.Intersect(sp.Name+"_i", selected, geometryOnly(sp.Layer))
	a.Fragments = frags.Len()

	ha := make(map[string]float64)
	for i, f := range frags.Features {
		id, ok := f.Value(idField)
		if !ok {
			return nil, fmt.Errorf("%w: fragment %d of %s has no %s", ErrInconsistent, i, sp.Name, idField)
		}
		ha[attrKey(id)] += Round(vector.ConvertArea(f.Area(), vector.Hectare), cfg.HaDecimals)
	}

	l, err := selected.SetField(vector.FloatField(RangeHaField), func(f *vector.Feature) (interface{}, error) {
		id, _ := f.Value(idField)
		return Round(ha[attrKey(id)], cfg.HaDecimals), nil
	})
	if err != nil {
		return nil, fmt.Errorf("sargrid: apportioning %s: %w", sp.Name, err)
	}
	a.Layer, err = l.SetField(vector.FloatField(RangeKm2Field), func(f *vector.Feature) (interface{}, error) {
		v, err := f.Float(RangeHaField)
		return v / 100, err
	})
	if err != nil {
		return nil, fmt.Errorf("sargrid: apportioning %s: %w", sp.Name, err)
	}
	return a, nil
}

// geometryOnly returns l without attributes, so intersecting it adds
// no fields to the fragments.
func geometryOnly(l *vector.Layer) *vector.Layer {
	o := &vector.Layer{Name: l.Name, SR: l.SR, Features: make([]*vector.Feature, len(l.Features))}
	for i, f := range l.Features {
		o.Features[i] = &vector.Feature{Polygonal: f.Polygonal, Attributes: map[string]interface{}{}}
	}
	return o
}

// ensureRangeHa returns l with a RangeHaField holding each feature's
// area in hectares, unless l already has one.
func ensureRangeHa(l *vector.Layer) (*vector.Layer, error) {
	if l.FieldIndex(RangeHaField) >= 0 {
		return l, nil
	}
	return l.SetField(vector.FloatField(RangeHaField), func(f *vector.Feature) (interface{}, error) {
		return vector.ConvertArea(f.Area(), vector.Hectare), nil
	})
}

// attrKey returns a map key for an attribute value under which
// numerically equal integers and floats coincide.
func attrKey(v interface{}) string {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	}
	return fmt.Sprintf("%T:%v", v, v)
}
