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


package hash

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/ncc-cnc/sargrid/vector"
)

func testLayer(name string, id int) *vector.Layer {
	return &vector.Layer{
		Name:   name,
		Fields: []vector.Field{vector.IntField("ID"), vector.StringField("NAME")},
		Features: []*vector.Feature{{
			Polygonal:  geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}},
			Attributes: map[string]interface{}{"ID": id, "NAME": "a"},
		}},
	}
}

func TestLayer(t *testing.T) {
	a := Layer(testLayer("a", 1))
	if b := Layer(testLayer("b", 1)); a != b {
		t.Errorf("hash depends on layer name: %s != %s", a, b)
	}
	if c := Layer(testLayer("a", 2)); a == c {
		t.Errorf("different attributes have the same hash %s", a)
	}
	if a != Layer(testLayer("a", 1)) {
		t.Error("hash is not repeatable")
	}
}

type stringer struct{}

func (stringer) String() string { return "key" }

func TestHashStringer(t *testing.T) {
	if h := Hash(stringer{}); h != "key" {
		t.Errorf("have %s, want key", h)
	}
}
