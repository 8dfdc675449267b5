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
	"errors"
	"testing"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   interface{}
		want Status
	}{
		{in: 0, want: NoStatus},
		{in: 1, want: Extirpated},
		{in: int64(2), want: Endangered},
		{in: 3.0, want: Threatened},
		{in: "4", want: SpecialConcern},
		{in: int32(5), want: NoSARAStatus},
		{in: 6, want: NotAtRisk},
		{in: "Endangered", want: Endangered},
		{in: " special concern ", want: SpecialConcern},
	}
	for _, test := range tests {
		have, err := NormalizeStatus(test.in)
		if err != nil {
			t.Errorf("%#v: %v", test.in, err)
			continue
		}
		if have != test.want {
			t.Errorf("%#v: have %q, want %q", test.in, have, test.want)
		}
	}
}

func TestNormalizeStatusUnmapped(t *testing.T) {
	for _, v := range []interface{}{7, -1, 2.5, "Critically imperilled", nil} {
		_, err := NormalizeStatus(v)
		if !errors.Is(err, ErrUnmappedStatus) {
			t.Errorf("%#v: have error %v, want ErrUnmappedStatus", v, err)
			continue
		}
		var ue *UnmappedStatusError
		if !errors.As(err, &ue) || ue.Value != v {
			t.Errorf("%#v: error does not carry the value: %v", v, err)
		}
	}
}

func TestParseStatusToken(t *testing.T) {
	for in, want := range map[string]Status{"end": Endangered, "THR": Threatened, "0": NoStatus, "Not at risk": NotAtRisk} {
		have, err := ParseStatusToken(in)
		if err != nil {
			t.Fatal(err)
		}
		if have != want {
			t.Errorf("%s: have %q, want %q", in, have, want)
		}
	}
	if _, err := ParseStatusToken("XYZ"); !errors.Is(err, ErrUnmappedStatus) {
		t.Errorf("have %v", err)
	}
}
