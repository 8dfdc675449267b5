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

	"github.com/ncc-cnc/sargrid/vector"
)

// ProtectionConfig holds the parameters of the protection overlap
// engine.
type ProtectionConfig struct {
	// IDField is the species identifier field.
	IDField string

	// Decimals is the number of decimal places each overlap fragment's
	// area in hectares is rounded to.
	Decimals int
}

// Protection returns a copy of species with the hectares of each
// species' range that overlap protected, summed per identifier, in
// ProtectionHaField and each feature's own area in hectares in
// RangeHaField. Species with no overlap get 0. protected must already
// be dissolved so that its features do not overlap each other.
func Protection(species, protected *vector.Layer, cfg ProtectionConfig) (*vector.Layer, error) {
	if err := species.RequireFields(cfg.IDField); err != nil {
		return nil, fmt.Errorf("sargrid: protection: %w", err)
	}
	ids := &vector.Layer{Name: species.Name, SR: species.SR, Fields: []vector.Field{}}
	idField, _ := species.Field(cfg.IDField)
	ids.Fields = append(ids.Fields, idField)
	for _, f := range species.Features {
		v, _ := f.Value(cfg.IDField)
		ids.Features = append(ids.Features, &vector.Feature{
			Polygonal:  f.Polygonal,
			Attributes: map[string]interface{}{idField.Name: v},
		})
	}

	// The intersection only lives for the duration of this call.
	frags := vector.Intersect(species.Name+"_i", ids, geometryOnly(protected))
	ha := make(map[string]float64)
	for _, f := range frags.Features {
		v, _ := f.Value(idField.Name)
		ha[attrKey(v)] += Round(vector.ConvertArea(f.Area(), vector.Hectare), cfg.Decimals)
	}

	o, err := species.SetField(vector.FloatField(ProtectionHaField), func(f *vector.Feature) (interface{}, error) {
		v, _ := f.Value(idField.Name)
		return Round(ha[attrKey(v)], cfg.Decimals), nil
	})
	if err != nil {
		return nil, fmt.Errorf("sargrid: protection: %w", err)
	}
	o, err = o.SetField(vector.FloatField(RangeHaField), func(f *vector.Feature) (interface{}, error) {
		return Round(vector.ConvertArea(f.Area(), vector.Hectare), cfg.Decimals), nil
	})
	if err != nil {
		return nil, fmt.Errorf("sargrid: protection: %w", err)
	}
	return o, nil
}
