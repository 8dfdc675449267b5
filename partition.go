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

// Species is the feature subset of one species.
type Species struct {
	// Name is the deterministic dataset name of the species.
	Name string

	ID     interface{}
	Status Status

	// SciName and ComName are the scientific and common names, when
	// known.
	SciName, ComName string

	Layer *vector.Layer
}

// PartitionFields names the fields Partition reads.
type PartitionFields struct {
	ID, Status string
}

// Partition splits l into one layer per distinct value of the
// identifier field, in ascending identifier order. Every feature
// sharing an identifier must normalize to the same status; the layers
// keep all of l's fields.
func Partition(l *vector.Layer, fields PartitionFields, naming Naming) ([]*Species, error) {
	if err := l.RequireFields(fields.ID, fields.Status); err != nil {
		return nil, fmt.Errorf("sargrid: partitioning %s: %w", l.Name, err)
	}
	ids, err := l.UniqueValues(fields.ID)
	if err != nil {
		return nil, err
	}
	o := make([]*Species, 0, len(ids))
	for _, id := range ids {
		sub := l.Select("", vector.Equals(fields.ID, id))
		if sub.Len() == 0 {
			return nil, fmt.Errorf("%w: identifier %v has no features in %s", ErrInconsistent, id, l.Name)
		}
		status, err := speciesStatus(sub, fields.Status)
		if err != nil {
			return nil, fmt.Errorf("sargrid: partitioning %s, %s %v: %w", l.Name, fields.ID, id, err)
		}
		sub.Name = naming.Species(status, id)
		o = append(o, &Species{Name: sub.Name, ID: id, Status: status, Layer: sub})
	}
	return o, nil
}

// speciesStatus returns the status shared by all features of l.
func speciesStatus(l *vector.Layer, field string) (Status, error) {
	var status Status
	for i, f := range l.Features {
		v, _ := f.Value(field)
		st, err := NormalizeStatus(v)
		if err != nil {
			return "", err
		}
		if i == 0 {
			status = st
		} else if st != status {
			return "", fmt.Errorf("%w: %q and %q", ErrStatusConflict, status, st)
		}
	}
	return status, nil
}
