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

// Package vector holds polygon layers with attribute tables and the
// geoprocessing operations used to prepare species data for gridding:
// reprojection, dissolve, area calculation, attribute and location
// selection, intersection, erase, merge and field updates.
// Operations never modify their inputs; each returns a new Layer.
package vector

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrMissingField is returned when a layer does not have a field
	// an operation requires.
	ErrMissingField = errors.New("vector: missing field")

	// ErrFieldType is returned when a field holds values of an
	// unexpected type.
	ErrFieldType = errors.New("vector: wrong field type")
)

// FieldType is the type of the values held by a Field.
type FieldType int

// Field types. Integer fields hold int values, Float fields hold
// float64 values and String fields hold string values.
const (
	Integer FieldType = iota
	Float
	String
)

func (t FieldType) String() string {
	switch t {
	case Integer:
		return "Integer"
	case Float:
		return "Float"
	case String:
		return "String"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field describes an attribute column.
type Field struct {
	Name string
	Type FieldType

	// Size and Precision are used when writing dBase tables.
	// Zero values select defaults for the field type.
	Size, Precision int
}

// IntField returns an Integer field named name.
func IntField(name string) Field { return Field{Name: name, Type: Integer} }

// FloatField returns a Float field named name.
func FloatField(name string) Field { return Field{Name: name, Type: Float} }

// StringField returns a String field named name.
func StringField(name string) Field { return Field{Name: name, Type: String} }

// zero returns the zero value for the field type.
func (f Field) zero() interface{} {
	switch f.Type {
	case Integer:
		return 0
	case Float:
		return 0.
	default:
		return ""
	}
}

// Feature is a polygon with attributes.
type Feature struct {
	geom.Polygonal
	Attributes map[string]interface{}
}

// Value returns the value of the named attribute, matching the
// name case-insensitively.
func (f *Feature) Value(name string) (interface{}, bool) {
	if v, ok := f.Attributes[name]; ok {
		return v, true
	}
	for k, v := range f.Attributes {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// Float returns the named attribute as a float64.
func (f *Feature) Float(name string) (float64, error) {
	v, ok := f.Value(name)
	if !ok {
		return 0, fmt.Errorf("%w %s", ErrMissingField, name)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("%w: %s is %T, not numeric", ErrFieldType, name, v)
	}
}

// copy returns a copy of f that shares f's geometry.
func (f *Feature) copy() *Feature {
	o := &Feature{
		Polygonal:  f.Polygonal,
		Attributes: make(map[string]interface{}, len(f.Attributes)),
	}
	for k, v := range f.Attributes {
		o.Attributes[k] = v
	}
	return o
}

// Layer is a polygon dataset: a schema, a set of features and the
// spatial reference the coordinates are in.
type Layer struct {
	// Name identifies the layer; it is used as the file name when the
	// layer is exported.
	Name string

	Fields   []Field
	Features []*Feature

	// SR is the text of the spatial reference (WKT or PROJ.4) of
	// the feature coordinates. It may be empty.
	SR string
}

// FieldIndex returns the index of the named field, matching the name
// case-insensitively, or -1 if the layer has no such field.
func (l *Layer) FieldIndex(name string) int {
	for i, f := range l.Fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// Field returns the named field.
func (l *Layer) Field(name string) (Field, error) {
	i := l.FieldIndex(name)
	if i < 0 {
		return Field{}, fmt.Errorf("%w %s in layer %s", ErrMissingField, name, l.Name)
	}
	return l.Fields[i], nil
}

// RequireFields returns an error if any of the named fields are
// missing from l.
func (l *Layer) RequireFields(names ...string) error {
	for _, n := range names {
		if _, err := l.Field(n); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of features in l.
func (l *Layer) Len() int { return len(l.Features) }

// empty returns a layer with the same schema and spatial reference
// as l but no features.
func (l *Layer) empty(name string) *Layer {
	return &Layer{
		Name:   name,
		Fields: append([]Field(nil), l.Fields...),
		SR:     l.SR,
	}
}

// Copy returns a deep copy of l's schema and attributes. Geometries are
// shared because no operation modifies them in place.
func (l *Layer) Copy(name string) *Layer {
	o := l.empty(name)
	o.Features = make([]*Feature, len(l.Features))
	for i, f := range l.Features {
		o.Features[i] = f.copy()
	}
	return o
}

// Area returns the summed area of all features in l.
func (l *Layer) Area() float64 {
	a := make([]float64, len(l.Features))
	for i, f := range l.Features {
		a[i] = f.Area()
	}
	return floats.Sum(a)
}

// Bounds returns the bounding box of all features in l.
func (l *Layer) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for _, f := range l.Features {
		b.Extend(f.Bounds())
	}
	return b
}

// Predicate reports whether a feature should be selected.
type Predicate func(*Feature) bool

// Select returns a new layer holding the features of l for which
// keep returns true.
func (l *Layer) Select(name string, keep Predicate) *Layer {
	o := l.empty(name)
	for _, f := range l.Features {
		if keep(f) {
			o.Features = append(o.Features, f.copy())
		}
	}
	return o
}

// Subset returns a layer holding the features of l at the given
// positions, in that order.
func (l *Layer) Subset(name string, positions []int) *Layer {
	o := l.empty(name)
	o.Features = make([]*Feature, len(positions))
	for i, j := range positions {
		o.Features[i] = l.Features[j].copy()
	}
	return o
}

// Equals returns a predicate matching features whose field has value v.
// Integer and float values compare numerically.
func Equals(field string, v interface{}) Predicate {
	return func(f *Feature) bool {
		fv, ok := f.Value(field)
		return ok && Compare(fv, v) == 0
	}
}

// GreaterThan returns a predicate matching features whose numeric
// field is greater than v.
func GreaterThan(field string, v float64) Predicate {
	return func(f *Feature) bool {
		fv, err := f.Float(field)
		return err == nil && fv > v
	}
}

// HasPrefix returns a predicate matching features whose string field
// starts with any of prefixes, the equivalent of
// `field LIKE 'prefix%' OR ...`.
func HasPrefix(field string, prefixes ...string) Predicate {
	return func(f *Feature) bool {
		fv, ok := f.Value(field)
		if !ok {
			return false
		}
		s, ok := fv.(string)
		if !ok {
			return false
		}
		for _, p := range prefixes {
			if strings.HasPrefix(s, p) {
				return true
			}
		}
		return false
	}
}

// Compare orders attribute values. Numbers sort numerically and before
// strings; strings sort lexically. A nil value sorts first.
func Compare(a, b interface{}) int {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	switch {
	case aNum && bNum:
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

// UniqueValues returns the distinct values of field in ascending order.
func (l *Layer) UniqueValues(field string) ([]interface{}, error) {
	if _, err := l.Field(field); err != nil {
		return nil, err
	}
	var o []interface{}
	for _, f := range l.Features {
		v, _ := f.Value(field)
		o = append(o, v)
	}
	sort.SliceStable(o, func(i, j int) bool { return Compare(o[i], o[j]) < 0 })
	u := o[:0]
	for i, v := range o {
		if i == 0 || Compare(v, u[len(u)-1]) != 0 {
			u = append(u, v)
		}
	}
	return u, nil
}

// SetField returns a copy of l in which field holds the value computed
// by fn for each feature. The field is added to the schema if l does not
// already have it; otherwise its type must match.
func (l *Layer) SetField(field Field, fn func(*Feature) (interface{}, error)) (*Layer, error) {
	o := l.Copy(l.Name)
	if i := o.FieldIndex(field.Name); i >= 0 {
		if o.Fields[i].Type != field.Type {
			return nil, fmt.Errorf("%w: %s is %v, not %v", ErrFieldType, field.Name, o.Fields[i].Type, field.Type)
		}
		field.Name = o.Fields[i].Name
	} else {
		o.Fields = append(o.Fields, field)
	}
	for _, f := range o.Features {
		v, err := fn(f)
		if err != nil {
			return nil, err
		}
		if v == nil {
			v = field.zero()
		}
		f.Attributes[field.Name] = v
	}
	return o, nil
}

// Constant returns a field update function that sets every feature
// to v.
func Constant(v interface{}) func(*Feature) (interface{}, error) {
	return func(*Feature) (interface{}, error) { return v, nil }
}
