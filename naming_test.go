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

import "testing"

func TestNaming(t *testing.T) {
	n := Naming{Prefix: RangeMaps.Prefix(), IDKey: "COSEWIC"}
	tests := []struct {
		status Status
		id     interface{}
		want   string
	}{
		{status: Endangered, id: 1, want: "ECCC_SAR_END_COSEWIC_1"},
		{status: NoStatus, id: 2.0, want: "ECCC_SAR__COSEWIC_2"},
		{status: Threatened, id: "1054", want: "ECCC_SAR_THR_COSEWIC_1054"},
	}
	for _, test := range tests {
		if have := n.Species(test.status, test.id); have != test.want {
			t.Errorf("have %s, want %s", have, test.want)
		}
	}
	if have := (Naming{Prefix: CriticalHabitat.Prefix()}).Merged(); have != "ECCC_CH_SAR" {
		t.Errorf("merged name %s", have)
	}
	if have := RasterName(GridLayerName("A"), ".tif"); have != "T_NAT_A_X.tif" {
		t.Errorf("raster name %s", have)
	}
}

func TestParseSourceType(t *testing.T) {
	if st, err := ParseSourceType("ch"); err != nil || st != CriticalHabitat {
		t.Errorf("have %v, %v", st, err)
	}
	if _, err := ParseSourceType("range"); err == nil {
		t.Error("want error")
	}
}

func TestThreatPattern(t *testing.T) {
	files := []string{
		"T_NAT_ECCC_SAR_END_COSEWIC_1.tif",
		"T_NAT_ECCC_SAR__COSEWIC_2.tif",
		"T_NAT_ECCC_SAR_THR_COSEWIC_3.tif",
	}
	tests := []struct {
		threat string
		want   []bool
	}{
		{threat: AllStatuses, want: []bool{true, true, true}},
		{threat: "END", want: []bool{true, false, false}},
		{threat: "Threatened", want: []bool{false, false, true}},
		{threat: "0", want: []bool{false, true, false}},
	}
	for _, test := range tests {
		t.Run(test.threat, func(t *testing.T) {
			pattern, err := ThreatPattern(test.threat)
			if err != nil {
				t.Fatal(err)
			}
			for i, f := range files {
				if have := MatchName(pattern, f); have != test.want[i] {
					t.Errorf("%s: have %v, want %v", f, have, test.want[i])
				}
			}
		})
	}
}
