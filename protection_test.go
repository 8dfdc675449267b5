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
	"math"
	"testing"

	"github.com/ncc-cnc/sargrid/vector"
)

func TestProtection(t *testing.T) {
	species := speciesLayer(
		speciesFeature(square(0, 0, 2000), 1, 2),
		speciesFeature(square(6000, 6000, 1000), 2, 3),
	)
	protected := &vector.Layer{Name: "parks", Features: []*vector.Feature{
		{Polygonal: square(1000, 0, 2000), Attributes: map[string]interface{}{}},
	}}
	o, err := Protection(species, protected, ProtectionConfig{IDField: "COSEWICID", Decimals: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := map[int][2]float64{1: {200, 400}, 2: {0, 100}}
	for _, f := range o.Features {
		id, _ := f.Value("COSEWICID")
		p, err := f.Float(ProtectionHaField)
		if err != nil {
			t.Fatal(err)
		}
		r, err := f.Float(RangeHaField)
		if err != nil {
			t.Fatal(err)
		}
		w := want[id.(int)]
		if math.Abs(p-w[0]) > 1e-9 || math.Abs(r-w[1]) > 1e-9 {
			t.Errorf("species %v: have protection %g ha and range %g ha, want %v", id, p, r, w)
		}
	}
	byID, err := ProtectionByID(o, "COSEWICID")
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := byID[attrKey(2)]; !ok || v != 0 {
		t.Errorf("species without overlap: have %g, %v", v, ok)
	}
}

func TestProtectionSharedID(t *testing.T) {
	// Two rows of one species, for example with different common names.
	species := speciesLayer(
		speciesFeature(square(0, 0, 1000), 7, 2),
		speciesFeature(square(3000, 0, 1000), 7, 2),
	)
	protected := &vector.Layer{Name: "parks", Features: []*vector.Feature{
		{Polygonal: square(500, 500, 500), Attributes: map[string]interface{}{}},
	}}
	o, err := Protection(species, protected, ProtectionConfig{IDField: "COSEWICID", Decimals: 2})
	if err != nil {
		t.Fatal(err)
	}
	for i, f := range o.Features {
		if p, _ := f.Float(ProtectionHaField); math.Abs(p-25) > 1e-9 {
			t.Errorf("feature %d: have %g ha, want 25", i, p)
		}
	}
	byID, err := ProtectionByID(o, "COSEWICID")
	if err != nil {
		t.Fatal(err)
	}
	if v := byID[attrKey(7)]; math.Abs(v-25) > 1e-9 {
		t.Errorf("have %g ha, want 25", v)
	}
}

func TestConserved(t *testing.T) {
	cpcad := &vector.Layer{
		Name:   "CPCAD",
		Fields: []vector.Field{vector.StringField("BIOME")},
		Features: []*vector.Feature{
			{Polygonal: square(0, 0, 3000), Attributes: map[string]interface{}{"BIOME": "T"}},
			{Polygonal: square(5000, 5000, 1000), Attributes: map[string]interface{}{"BIOME": "M"}},
		},
	}
	ncc := &vector.Layer{
		Name:   "NCC",
		Fields: []vector.Field{vector.StringField("FIRST_PCL_")},
		Features: []*vector.Feature{
			{Polygonal: square(2000, 0, 2000), Attributes: map[string]interface{}{"FIRST_PCL_": "Fee Simple - Donation"}},
			{Polygonal: square(8000, 8000, 1000), Attributes: map[string]interface{}{"FIRST_PCL_": "Lease"}},
		},
	}
	cfg := DefaultConservedConfig()
	prepared, err := PrepareConserved(cpcad, ncc, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if prepared.Name != PreparedParksName || prepared.Len() != 1 {
		t.Fatalf("have %s with %d features", prepared.Name, prepared.Len())
	}
	if a := prepared.Area(); math.Abs(a-11e6) > 1 {
		t.Errorf("prepared area %g m², want 11e6", a)
	}

	g, err := GridConserved(prepared, testCells(t), cfg, testRasterize)
	if err != nil {
		t.Fatal(err)
	}
	if s := g.Hectares.Sum(); math.Abs(s-1100) > 1e-9 {
		t.Errorf("conserved hectares %g, want 1100", s)
	}
	if g.Included == nil || g.Included.Count() != 11 {
		t.Errorf("included cells: %v", g.Included)
	}
}
