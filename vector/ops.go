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
	"fmt"
	"sort"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/unit"
)

// indexedFeature is a feature stored in a spatial index together with
// its position in the source layer, so search results can be put back
// into layer order.
type indexedFeature struct {
	*Feature
	index int
}

// Index is a spatial index over the features of a layer.
type Index struct {
	tree *rtree.Rtree
}

// NewIndex indexes the features of l.
func NewIndex(l *Layer) *Index {
	idx := &Index{tree: rtree.NewTree(25, 50)}
	for i, f := range l.Features {
		idx.tree.Insert(indexedFeature{Feature: f, index: i})
	}
	return idx
}

// Search returns the positions of the features whose bounding boxes
// overlap b, in ascending order.
func (idx *Index) Search(b *geom.Bounds) []int {
	var o []int
	for _, g := range idx.tree.SearchIntersect(b) {
		o = append(o, g.(indexedFeature).index)
	}
	sort.Ints(o)
	return o
}

// Polygon flattens any polygonal geometry into a single polygon whose
// rings are the rings of all of its parts.
func Polygon(g geom.Polygonal) geom.Polygon {
	if p, ok := g.(geom.Polygon); ok {
		return p
	}
	var o geom.Polygon
	for _, p := range g.Polygons() {
		o = append(o, p...)
	}
	return o
}

// Intersects reports whether a and b share any point, including
// touching boundaries.
func Intersects(a, b geom.Polygonal) bool {
	if !a.Bounds().Overlaps(b.Bounds()) {
		return false
	}
	if anyVertexWithin(a, b) || anyVertexWithin(b, a) {
		return true
	}
	// Edges may cross without either polygon having a vertex inside
	// the other.
	return a.Intersection(b).Area() > 0
}

func anyVertexWithin(a, b geom.Polygonal) bool {
	for _, p := range a.Polygons() {
		for _, path := range p {
			for _, pt := range path {
				if pt.Within(b) != geom.Outside {
					return true
				}
			}
		}
	}
	return false
}

// SelectByLocation returns the features of l that intersect any
// feature of ref.
func SelectByLocation(name string, l, ref *Layer) *Layer {
	idx := NewIndex(ref)
	o := l.empty(name)
	for _, f := range l.Features {
		for _, j := range idx.Search(f.Bounds()) {
			if Intersects(f.Polygonal, ref.Features[j].Polygonal) {
				o.Features = append(o.Features, f.copy())
				break
			}
		}
	}
	return o
}

// joinFields returns the combined schema of a and b and the names
// b's fields are given in it. Fields of b whose names collide with a
// field of a get a "_1" suffix.
func joinFields(a, b *Layer) ([]Field, map[string]string) {
	fields := append([]Field(nil), a.Fields...)
	rename := make(map[string]string, len(b.Fields))
	for _, f := range b.Fields {
		name := f.Name
		for n := 1; fieldIndex(fields, name) >= 0; n++ {
			name = fmt.Sprintf("%s_%d", f.Name, n)
		}
		rename[f.Name] = name
		f.Name = name
		fields = append(fields, f)
	}
	return fields, rename
}

func fieldIndex(fields []Field, name string) int {
	for i, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// Intersect returns one fragment for every pair of overlapping features
// in a and b. Each fragment's geometry is the intersection of the pair
// and it carries the attributes of both. Pairs that only touch produce
// no fragment. Fragments are ordered by a's feature order, then b's.
func Intersect(name string, a, b *Layer) *Layer {
	fields, rename := joinFields(a, b)
	o := &Layer{Name: name, Fields: fields, SR: a.SR}
	idx := NewIndex(b)
	for _, fa := range a.Features {
		for _, j := range idx.Search(fa.Bounds()) {
			fb := b.Features[j]
			g := Polygon(fa.Polygonal.Intersection(fb.Polygonal))
			if len(g) == 0 || g.Area() <= 0 {
				continue
			}
			frag := &Feature{
				Polygonal:  g,
				Attributes: make(map[string]interface{}, len(fields)),
			}
			for k, v := range fa.Attributes {
				frag.Attributes[k] = v
			}
			for k, v := range fb.Attributes {
				frag.Attributes[rename[k]] = v
			}
			o.Features = append(o.Features, frag)
		}
	}
	return o
}

// Erase returns the parts of the features of a that are not covered
// by any feature of b. Features that are erased completely are dropped.
func Erase(name string, a, b *Layer) *Layer {
	o := a.empty(name)
	idx := NewIndex(b)
	for _, fa := range a.Features {
		g := Polygon(fa.Polygonal)
		for _, j := range idx.Search(fa.Bounds()) {
			g = Polygon(g.Difference(b.Features[j].Polygonal))
			if len(g) == 0 {
				break
			}
		}
		if len(g) == 0 || g.Area() <= 0 {
			continue
		}
		f := fa.copy()
		f.Polygonal = g
		o.Features = append(o.Features, f)
	}
	return o
}

// Merge concatenates the features of layers into one layer. The schema
// is the union of the input schemas; features get the zero value for
// fields their source layer did not have.
func Merge(name string, layers ...*Layer) (*Layer, error) {
	o := &Layer{Name: name}
	for _, l := range layers {
		if o.SR == "" {
			o.SR = l.SR
		}
		for _, f := range l.Fields {
			i := fieldIndex(o.Fields, f.Name)
			if i < 0 {
				o.Fields = append(o.Fields, f)
				continue
			}
			if o.Fields[i].Type != f.Type {
				return nil, fmt.Errorf("%w: merging %s: field %s is %v in one layer and %v in another",
					ErrFieldType, name, f.Name, o.Fields[i].Type, f.Type)
			}
		}
	}
	for _, l := range layers {
		for _, f := range l.Features {
			nf := &Feature{Polygonal: f.Polygonal, Attributes: make(map[string]interface{}, len(o.Fields))}
			for _, field := range o.Fields {
				v, ok := f.Value(field.Name)
				if !ok {
					v = field.zero()
				}
				nf.Attributes[field.Name] = v
			}
			o.Features = append(o.Features, nf)
		}
	}
	return o, nil
}

// StatisticKind is the reduction applied to a field during Dissolve.
type StatisticKind string

// Statistic kinds.
const (
	Min   StatisticKind = "MIN"
	Max   StatisticKind = "MAX"
	Sum   StatisticKind = "SUM"
	First StatisticKind = "FIRST"
)

// Statistic summarizes a field over the features of a dissolve group.
type Statistic struct {
	Field string
	Kind  StatisticKind

	// OutName is the name of the output field. If empty,
	// it is KIND_Field.
	OutName string
}

func (s Statistic) outName() string {
	if s.OutName != "" {
		return s.OutName
	}
	return string(s.Kind) + "_" + s.Field
}

func (s Statistic) reduce(acc, v interface{}) interface{} {
	if acc == nil {
		if s.Kind == Sum {
			a, _ := toFloat(v)
			return a
		}
		return v
	}
	switch s.Kind {
	case Min:
		if Compare(v, acc) < 0 {
			return v
		}
	case Max:
		if Compare(v, acc) > 0 {
			return v
		}
	case Sum:
		a, _ := toFloat(acc)
		b, _ := toFloat(v)
		return a + b
	}
	return acc
}

type dissolveGroup struct {
	values []interface{}
	stats  []interface{}
	parts  []geom.Polygonal
}

// Dissolve merges all features sharing the same values of groupFields
// into a single (possibly multi-part) feature. The output has the group
// fields followed by one field per statistic. Groups are ordered by
// their field values.
func Dissolve(name string, l *Layer, groupFields []string, stats ...Statistic) (*Layer, error) {
	o := &Layer{Name: name, SR: l.SR}
	for _, gf := range groupFields {
		f, err := l.Field(gf)
		if err != nil {
			return nil, err
		}
		o.Fields = append(o.Fields, f)
	}
	for _, s := range stats {
		f, err := l.Field(s.Field)
		if err != nil {
			return nil, err
		}
		if s.Kind == Sum {
			f.Type = Float
		}
		f.Name = s.outName()
		o.Fields = append(o.Fields, f)
	}

	groups := make(map[string]*dissolveGroup)
	var keys []string
	for _, f := range l.Features {
		values := make([]interface{}, len(groupFields))
		for i, gf := range groupFields {
			values[i], _ = f.Value(gf)
		}
		key := fmt.Sprintf("%#v", values)
		g, ok := groups[key]
		if !ok {
			g = &dissolveGroup{values: values, stats: make([]interface{}, len(stats))}
			groups[key] = g
			keys = append(keys, key)
		}
		for i, s := range stats {
			v, _ := f.Value(s.Field)
			g.stats[i] = s.reduce(g.stats[i], v)
		}
		g.parts = append(g.parts, f.Polygonal)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := groups[keys[i]].values, groups[keys[j]].values
		for k := range a {
			if c := Compare(a[k], b[k]); c != 0 {
				return c < 0
			}
		}
		return false
	})

	for _, key := range keys {
		g := groups[key]
		f := &Feature{
			Polygonal:  union(g.parts),
			Attributes: make(map[string]interface{}, len(o.Fields)),
		}
		for i, v := range g.values {
			f.Attributes[o.Fields[i].Name] = v
		}
		for i, v := range g.stats {
			f.Attributes[o.Fields[len(groupFields)+i].Name] = v
		}
		o.Features = append(o.Features, f)
	}
	return o, nil
}

// union returns the union of parts.
func union(parts []geom.Polygonal) geom.Polygon {
	if len(parts) == 0 {
		return nil
	}
	u := Polygon(parts[0])
	for _, p := range parts[1:] {
		u = Polygon(u.Union(p))
	}
	return u
}

// Reproject returns a copy of l with coordinates transformed into the
// spatial reference dst, whose text representation is dstText.
func Reproject(l *Layer, dst *proj.SR, dstText string) (*Layer, error) {
	if l.SR == "" {
		return nil, fmt.Errorf("vector: reprojecting %s: layer has no spatial reference", l.Name)
	}
	src, err := proj.Parse(l.SR)
	if err != nil {
		return nil, fmt.Errorf("vector: reprojecting %s: parsing source spatial reference: %w", l.Name, err)
	}
	trans, err := src.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("vector: reprojecting %s: %w", l.Name, err)
	}
	o := l.Copy(l.Name)
	o.SR = dstText
	for i, f := range o.Features {
		g, err := f.Polygonal.Transform(trans)
		if err != nil {
			return nil, fmt.Errorf("vector: reprojecting %s feature %d: %w", l.Name, i, err)
		}
		p, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("vector: reprojecting %s feature %d: got %T", l.Name, i, g)
		}
		f.Polygonal = p
	}
	return o, nil
}

// Hectare and SquareKilometre are the area units of the outputs.
var (
	Hectare         = unit.New(1.e4, unit.Meter2)
	SquareKilometre = unit.New(1.e6, unit.Meter2)
)

// ConvertArea returns m2, an area in square metres, as a multiple of
// the area u. It panics if u is not an area.
func ConvertArea(m2 float64, u *unit.Unit) float64 {
	v := unit.Div(unit.New(m2, unit.Meter2), u)
	if err := v.Check(unit.Dimless); err != nil {
		panic(fmt.Errorf("vector: converting area: %v", err))
	}
	return v.Value()
}

// ComputeArea returns a copy of l with the area of each feature in
// hectares stored in haField and in square kilometres stored in
// km2Field. Coordinates are assumed to be in metres.
func ComputeArea(l *Layer, haField, km2Field string) (*Layer, error) {
	o, err := l.SetField(FloatField(haField), func(f *Feature) (interface{}, error) {
		return ConvertArea(f.Area(), Hectare), nil
	})
	if err != nil {
		return nil, err
	}
	return o.SetField(FloatField(km2Field), func(f *Feature) (interface{}, error) {
		return ConvertArea(f.Area(), SquareKilometre), nil
	})
}
