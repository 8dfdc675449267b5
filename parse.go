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
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/ncc-cnc/sargrid/vector"
)

// ParsedDir is the directory, relative to the output directory, that
// per-species layers are exported to.
const ParsedDir = "Parsed"

// ParseFields names the attribute fields of a raw species layer.
type ParseFields struct {
	ID, Status, SciName, ComName string
}

// ParseConfig holds the parameters of the parse stage.
type ParseConfig struct {
	Fields ParseFields

	// StatusStatistic is empty to dissolve by status, or vector.Min
	// or vector.Max to dissolve without status and keep the minimum
	// or maximum status of each identifier.
	StatusStatistic vector.StatisticKind

	Naming Naming

	// SR is the target spatial reference and SRText its text.
	SR     *proj.SR
	SRText string

	// Where, if not empty, is a boolean expression over the raw
	// fields selecting the features that are parsed.
	Where string

	// Mask, if not nil, clips the ranges. It must be in the target
	// spatial reference.
	Mask *vector.Layer
}

// Validate checks c for errors.
func (c ParseConfig) Validate() error {
	switch {
	case c.Fields.ID == "" || c.Fields.Status == "":
		return fmt.Errorf("sargrid: parse: identifier and status fields must be set")
	case c.Naming.Prefix == "":
		return fmt.Errorf("sargrid: parse: name prefix must be set")
	}
	switch c.StatusStatistic {
	case "", vector.Min, vector.Max:
	default:
		return fmt.Errorf("sargrid: parse: status statistic is %q but should be empty, MIN or MAX", c.StatusStatistic)
	}
	return nil
}

// Parsed is the result of the parse stage.
type Parsed struct {
	// Dissolved has one feature per species, with range areas.
	Dissolved *vector.Layer

	Species []*Species
}

// Parse prepares a raw species layer for gridding: the layer is
// reprojected to cfg.SR unless it already has that spatial reference,
// dissolved to one feature per species, given Range_ha and Range_km2
// fields and partitioned by identifier.
func Parse(raw *vector.Layer, cfg ParseConfig) (*Parsed, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := cfg.Fields
	if err := raw.RequireFields(f.ID, f.Status); err != nil {
		return nil, fmt.Errorf("sargrid: parsing %s: %w", raw.Name, err)
	}
	l := raw
	if cfg.Where != "" {
		var err error
		if l, err = vector.Where(raw.Name, raw, cfg.Where); err != nil {
			return nil, fmt.Errorf("sargrid: parsing %s: %w", raw.Name, err)
		}
		if l.Len() == 0 {
			return nil, fmt.Errorf("sargrid: parsing %s: no features match %q", raw.Name, cfg.Where)
		}
	}
	if cfg.SR != nil && l.SR != cfg.SRText {
		var err error
		if l, err = vector.Reproject(l, cfg.SR, cfg.SRText); err != nil {
			return nil, err
		}
	}

	if cfg.Mask != nil {
		l = vector.Intersect(l.Name, l, geometryOnly(cfg.Mask))
		if l.Len() == 0 {
			return nil, fmt.Errorf("sargrid: parsing %s: no ranges overlap the mask", raw.Name)
		}
	}

	var names []string
	for _, n := range []string{f.SciName, f.ComName} {
		if n != "" && l.FieldIndex(n) >= 0 {
			names = append(names, n)
		}
	}
	var d *vector.Layer
	var err error
	if cfg.StatusStatistic == "" {
		d, err = vector.Dissolve(cfg.Naming.Prefix, l, append([]string{f.ID, f.Status}, names...))
	} else {
		d, err = vector.Dissolve(cfg.Naming.Prefix, l, append([]string{f.ID}, names...),
			vector.Statistic{Field: f.Status, Kind: cfg.StatusStatistic, OutName: f.Status})
	}
	if err != nil {
		return nil, fmt.Errorf("sargrid: dissolving %s: %w", raw.Name, err)
	}
	if d, err = vector.ComputeArea(d, RangeHaField, RangeKm2Field); err != nil {
		return nil, err
	}

	species, err := Partition(d, PartitionFields{ID: f.ID, Status: f.Status}, cfg.Naming)
	if err != nil {
		return nil, err
	}
	for _, sp := range species {
		sp.SciName = firstString(sp.Layer, f.SciName)
		sp.ComName = firstString(sp.Layer, f.ComName)
	}
	return &Parsed{Dissolved: d, Species: species}, nil
}

// firstString returns the first non-empty value of field in l.
func firstString(l *vector.Layer, field string) string {
	if field == "" {
		return ""
	}
	for _, f := range l.Features {
		if v, ok := f.Value(field); ok {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// WriteParsed exports each species layer to {dir}/Parsed/{name}.shp and
// their merge to {dir}/{prefix}.shp, returning the path of the merged
// layer.
func WriteParsed(dir string, p *Parsed, naming Naming) (string, error) {
	pdir := filepath.Join(dir, ParsedDir)
	if err := os.MkdirAll(pdir, os.ModePerm); err != nil {
		return "", fmt.Errorf("sargrid: %w", err)
	}
	layers := make([]*vector.Layer, len(p.Species))
	for i, sp := range p.Species {
		if err := vector.WriteShapefile(filepath.Join(pdir, sp.Name+".shp"), sp.Layer); err != nil {
			return "", fmt.Errorf("sargrid: exporting %s: %w", sp.Name, err)
		}
		layers[i] = sp.Layer
	}
	merged, err := vector.Merge(naming.Merged(), layers...)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, merged.Name+".shp")
	if err := vector.WriteShapefile(path, merged); err != nil {
		return "", fmt.Errorf("sargrid: exporting %s: %w", merged.Name, err)
	}
	return path, nil
}

// ReadSpecies reads a merged species layer written by WriteParsed and
// partitions it again.
func ReadSpecies(path string, fields ParseFields, naming Naming) ([]*Species, error) {
	l, err := vector.ReadLayer(path)
	if err != nil {
		return nil, err
	}
	if l.FieldIndex(RangeHaField) < 0 {
		if l, err = vector.ComputeArea(l, RangeHaField, RangeKm2Field); err != nil {
			return nil, err
		}
	}
	species, err := Partition(l, PartitionFields{ID: fields.ID, Status: fields.Status}, naming)
	if err != nil {
		return nil, err
	}
	for _, sp := range species {
		sp.SciName = firstString(sp.Layer, fields.SciName)
		sp.ComName = firstString(sp.Layer, fields.ComName)
	}
	return species, nil
}
