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
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"
)

var (
	// ErrStatusConflict is returned when features sharing an identifier
	// do not share a status.
	ErrStatusConflict = errors.New("sargrid: features with the same identifier have different statuses")

	// ErrInconsistent indicates an internal-consistency fault, such as
	// an identifier that matches no features of the layer it was
	// read from.
	ErrInconsistent = errors.New("sargrid: inconsistent data")
)

// SourceType identifies the kind of species data being processed.
type SourceType string

// Source types: range maps and critical habitat.
const (
	RangeMaps       SourceType = "SAR"
	CriticalHabitat SourceType = "CH"
)

// ParseSourceType parses s as a SourceType, case-insensitively.
func ParseSourceType(s string) (SourceType, error) {
	switch strings.ToUpper(s) {
	case string(RangeMaps):
		return RangeMaps, nil
	case string(CriticalHabitat):
		return CriticalHabitat, nil
	}
	return "", fmt.Errorf("sargrid: invalid source type %q; valid types are SAR and CH", s)
}

// Prefix returns the default dataset name prefix for t.
func (t SourceType) Prefix() string {
	if t == CriticalHabitat {
		return "ECCC_CH_SAR"
	}
	return "ECCC_SAR"
}

// Naming builds the deterministic names of the datasets produced for
// each species. Downstream stages select datasets by matching these
// names, so they must not change between runs.
type Naming struct {
	// Prefix identifies the source, e.g. ECCC_SAR.
	Prefix string

	// IDKey names the identifier, e.g. COSEWIC.
	IDKey string
}

// Species returns the name of the dataset of the species with the
// given status and identifier: {prefix}_{status}_{key}_{id}.
func (n Naming) Species(status Status, id interface{}) string {
	return fmt.Sprintf("%s_%s_%s_%s", n.Prefix, status, n.IDKey, FormatID(id))
}

// Merged returns the name of the layer holding all species.
func (n Naming) Merged() string { return n.Prefix }

// GridLayerName returns the name of the grid cells selected for the
// named species.
func GridLayerName(species string) string { return species + "_X" }

// RasterName returns the file name of the raster of the named species.
func RasterName(species, ext string) string { return "T_NAT_" + species + ext }

// FormatID formats an identifier value for use in names. Integral
// floating point values are written without a fractional part.
func FormatID(id interface{}) string {
	switch t := id.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	}
	return fmt.Sprint(id)
}

// AllStatuses selects every raster in ThreatPattern.
const AllStatuses = "All"

// ThreatPattern returns the file name pattern selecting rasters of
// species with the given status. threat is AllStatuses, a status token
// or a status label; the empty token selects species without a status.
func ThreatPattern(threat string) (string, error) {
	if strings.EqualFold(threat, AllStatuses) {
		return "*", nil
	}
	st, err := ParseStatusToken(threat)
	if err != nil {
		return "", err
	}
	return "*_" + string(st) + "_*", nil
}

// MatchName reports whether the base name of file matches pattern.
func MatchName(pattern, file string) bool {
	ok, err := path.Match(pattern, path.Base(strings.ReplaceAll(file, `\`, "/")))
	return err == nil && ok
}
