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

// Package sargrid allocates species-at-risk range maps and critical
// habitat polygons onto a fixed national 1 km grid. It splits a
// dissolved multi-species layer into one layer per species, apportions
// each species' area onto grid cells, rasterizes the result, computes
// the area of each range that falls in protected or conserved land and
// sums species rasters into richness surfaces.
package sargrid

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Status is the short token of a SARA risk status.
type Status string

// Risk status tokens. NoStatus is the empty token used for species
// without a SARA schedule status.
const (
	NoStatus       Status = ""
	Extirpated     Status = "EXT"
	Endangered     Status = "END"
	Threatened     Status = "THR"
	SpecialConcern Status = "SPC"
	NoSARAStatus   Status = "NOS"
	NotAtRisk      Status = "NAR"
)

// statusCodes lists the tokens by their integer status code.
var statusCodes = []Status{NoStatus, Extirpated, Endangered, Threatened, SpecialConcern, NoSARAStatus, NotAtRisk}

var statusLabels = map[string]Status{
	"extirpated":      Extirpated,
	"endangered":      Endangered,
	"threatened":      Threatened,
	"special concern": SpecialConcern,
	"no status":       NoSARAStatus,
	"not at risk":     NotAtRisk,
}

// ErrUnmappedStatus is matched by every UnmappedStatusError.
var ErrUnmappedStatus = errors.New("sargrid: unmapped status")

// UnmappedStatusError reports a status value that is not one of the
// recognized codes or labels.
type UnmappedStatusError struct {
	Value interface{}
}

func (e *UnmappedStatusError) Error() string {
	return fmt.Sprintf("sargrid: unmapped status %#v", e.Value)
}

// Is makes errors.Is(err, ErrUnmappedStatus) true.
func (e *UnmappedStatusError) Is(target error) bool { return target == ErrUnmappedStatus }

// NormalizeStatus maps a status value to its token. v may be an
// integer code from 0 to 6 (as an integer, an integral float or a
// numeric string) or a status label such as "Endangered". Any other
// value returns an *UnmappedStatusError.
func NormalizeStatus(v interface{}) (Status, error) {
	switch t := v.(type) {
	case int:
		return statusCode(int64(t), v)
	case int32:
		return statusCode(int64(t), v)
	case int64:
		return statusCode(t, v)
	case float64:
		if t != math.Trunc(t) {
			return "", &UnmappedStatusError{Value: v}
		}
		return statusCode(int64(t), v)
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return statusCode(i, v)
		}
		if st, ok := statusLabels[strings.ToLower(s)]; ok {
			return st, nil
		}
	}
	return "", &UnmappedStatusError{Value: v}
}

func statusCode(c int64, v interface{}) (Status, error) {
	if c < 0 || c >= int64(len(statusCodes)) {
		return "", &UnmappedStatusError{Value: v}
	}
	return statusCodes[c], nil
}

// ParseStatusToken converts a status token or label, as given on the
// command line, to a Status. Tokens are matched case-insensitively.
func ParseStatusToken(s string) (Status, error) {
	for _, st := range statusCodes[1:] {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return NormalizeStatus(s)
}
