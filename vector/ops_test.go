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

package vector

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func gridLayer() *Layer {
	l := &Layer{Name: "grid", Fields: []Field{IntField("NCCID")}}
	id := 1
	for j := 0; j < 2; j++ {
		for i := 0; i < 2; i++ {
			l.Features = append(l.Features, &Feature{
				Polygonal:  square(float64(i)*1000, float64(j)*1000, 1000),
				Attributes: map[string]interface{}{"NCCID": id},
			})
			id++
		}
	}
	return l
}

func TestIntersects(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
		want bool
	}{
		{name: "overlap", x: 500, y: 500, want: true},
		{name: "touch", x: 1000, y: 0, want: true},
		{name: "disjoint", x: 1500, y: 0, want: false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if have := Intersects(square(0, 0, 1000), square(test.x, test.y, 500)); have != test.want {
				t.Errorf("have %v, want %v", have, test.want)
			}
		})
	}
}

func TestSelectByLocation(t *testing.T) {
	species := &Layer{Name: "sp", Features: []*Feature{
		{Polygonal: square(1200, 1200, 300), Attributes: map[string]interface{}{}},
	}}
	s := SelectByLocation("s", gridLayer(), species)
	if s.Len() != 1 || s.Features[0].Attributes["NCCID"] != 4 {
		t.Errorf("have %d features: %v", s.Len(), s.Features)
	}
}

func TestIntersect(t *testing.T) {
	species := &Layer{
		Name:   "sp",
		Fields: []Field{IntField("COSEWICID"), IntField("NCCID")},
		Features: []*Feature{
			{Polygonal: square(500, 500, 1000), Attributes: map[string]interface{}{"COSEWICID": 7, "NCCID": 0}},
		},
	}
	o := Intersect("x", species, gridLayer())
	if o.Len() != 4 {
		t.Fatalf("have %d fragments, want 4", o.Len())
	}
	wantFields := []Field{IntField("COSEWICID"), IntField("NCCID"), IntField("NCCID_1")}
	if !reflect.DeepEqual(o.Fields, wantFields) {
		t.Errorf("fields: have %v, want %v", o.Fields, wantFields)
	}
	for i, f := range o.Features {
		if a := f.Area(); math.Abs(a-250000) > 1e-6 {
			t.Errorf("fragment %d: area %g, want 250000", i, a)
		}
		if f.Attributes["NCCID_1"] != i+1 {
			t.Errorf("fragment %d: cell %v", i, f.Attributes["NCCID_1"])
		}
	}
	if a := o.Area(); math.Abs(a-species.Area()) > 1e-6 {
		t.Errorf("fragments cover %g, species covers %g", a, species.Area())
	}
}

func TestErase(t *testing.T) {
	a := &Layer{Name: "a", Features: []*Feature{
		{Polygonal: square(0, 0, 1000), Attributes: map[string]interface{}{}},
		{Polygonal: square(3000, 0, 100), Attributes: map[string]interface{}{}},
	}}
	b := &Layer{Name: "b", Features: []*Feature{
		{Polygonal: square(500, 0, 1000), Attributes: map[string]interface{}{}},
		{Polygonal: square(2900, -100, 500), Attributes: map[string]interface{}{}},
	}}
	o := Erase("e", a, b)
	if o.Len() != 1 {
		t.Fatalf("have %d features, want 1", o.Len())
	}
	if a := o.Area(); math.Abs(a-5e5) > 1e-6 {
		t.Errorf("area = %g, want 5e5", a)
	}
}

func TestMerge(t *testing.T) {
	a := &Layer{Name: "a", Fields: []Field{StringField("NAME")}, Features: []*Feature{
		{Polygonal: square(0, 0, 1), Attributes: map[string]interface{}{"NAME": "park"}},
	}}
	b := &Layer{Name: "b", Fields: []Field{FloatField("AREA")}, Features: []*Feature{
		{Polygonal: square(5, 0, 1), Attributes: map[string]interface{}{"AREA": 1.}},
	}}
	o, err := Merge("m", a, b)
	if err != nil {
		t.Fatal(err)
	}
	if o.Len() != 2 {
		t.Fatalf("have %d features", o.Len())
	}
	want := map[string]interface{}{"NAME": "", "AREA": 1.}
	if !reflect.DeepEqual(o.Features[1].Attributes, want) {
		t.Errorf("have %v, want %v", o.Features[1].Attributes, want)
	}
	c := &Layer{Name: "c", Fields: []Field{IntField("NAME")}}
	if _, err := Merge("m", a, c); !errors.Is(err, ErrFieldType) {
		t.Errorf("conflicting types: have error %v", err)
	}
}

func TestDissolve(t *testing.T) {
	l := testLayer()
	o, err := Dissolve("d", l, []string{"COSEWICID"},
		Statistic{Field: "Range_ha", Kind: Sum},
		Statistic{Field: "SAR_STAT_E", Kind: Min, OutName: "SAR_STAT_E"},
	)
	if err != nil {
		t.Fatal(err)
	}
	if o.Len() != 2 {
		t.Fatalf("have %d features, want 2", o.Len())
	}
	wantFields := []Field{IntField("COSEWICID"), FloatField("SUM_Range_ha"), StringField("SAR_STAT_E")}
	if !reflect.DeepEqual(o.Fields, wantFields) {
		t.Errorf("fields: have %v, want %v", o.Fields, wantFields)
	}
	first, second := o.Features[0], o.Features[1]
	if first.Attributes["COSEWICID"] != 1 || second.Attributes["COSEWICID"] != 2 {
		t.Errorf("groups out of order: %v, %v", first.Attributes, second.Attributes)
	}
	if second.Attributes["SUM_Range_ha"] != 200. {
		t.Errorf("sum = %v, want 200", second.Attributes["SUM_Range_ha"])
	}
	if a := second.Area(); math.Abs(a-2e6) > 1e-6 {
		t.Errorf("dissolved area = %g, want 2e6", a)
	}
	if _, err := Dissolve("d", l, []string{"nope"}); !errors.Is(err, ErrMissingField) {
		t.Errorf("missing field: have error %v", err)
	}
}
