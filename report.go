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
	"github.com/tealeg/xlsx"
)

// Report sheet names.
const (
	SpeciesSheet  = "Species"
	FailuresSheet = "Failures"
)

var reportColumns = []string{
	"Name", "ID", "Status", "Scientific name", "Common name",
	"Range_km2", "Range_ha", "Branch", "Cells", "Presence",
	"Protection_ha", "Raster", "Grid layer", "Hash", "Error",
}

// ProtectionByID returns the Protection_ha value of each identifier of
// a layer produced by Protection. Every feature of an identifier carries
// the identifier's total, so it is taken once rather than summed.
func ProtectionByID(l *vector.Layer, idField string) (map[string]float64, error) {
	if err := l.RequireFields(idField, ProtectionHaField); err != nil {
		return nil, err
	}
	o := make(map[string]float64, l.Len())
	for _, f := range l.Features {
		id, _ := f.Value(idField)
		v, err := f.Float(ProtectionHaField)
		if err != nil {
			return nil, err
		}
		o[attrKey(id)] = v
	}
	return o, nil
}

// WriteReport writes a workbook summarizing s to path, with one row per
// species on the Species sheet and one row per failed species on the
// Failures sheet. protection, which may be nil, holds the protected
// hectares of each species by identifier.
func WriteReport(path string, s *Summary, protection map[string]float64) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SpeciesSheet)
	if err != nil {
		return fmt.Errorf("sargrid: report: %w", err)
	}
	header := sheet.AddRow()
	for _, c := range reportColumns {
		header.AddCell().SetString(c)
	}
	failures, err := f.AddSheet(FailuresSheet)
	if err != nil {
		return fmt.Errorf("sargrid: report: %w", err)
	}
	fh := failures.AddRow()
	fh.AddCell().SetString("Name")
	fh.AddCell().SetString("Error")

	for _, r := range s.Results {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Name)
		row.AddCell().SetString(FormatID(r.ID))
		row.AddCell().SetString(string(r.Status))
		row.AddCell().SetString(r.SciName)
		row.AddCell().SetString(r.ComName)
		row.AddCell().SetFloat(r.TotalKm2)
		row.AddCell().SetFloat(r.Hectares)
		if r.Err != nil {
			for i := 0; i < 6; i++ {
				row.AddCell()
			}
			row.AddCell().SetString(r.Hash)
			row.AddCell().SetString(r.Err.Error())
			fr := failures.AddRow()
			fr.AddCell().SetString(r.Name)
			fr.AddCell().SetString(r.Err.Error())
			continue
		}
		row.AddCell().SetString(r.Branch.String())
		row.AddCell().SetInt(r.Cells)
		row.AddCell().SetBool(r.Presence)
		c := row.AddCell()
		if v, ok := protection[attrKey(r.ID)]; ok {
			c.SetFloat(v)
		}
		row.AddCell().SetString(r.Raster)
		row.AddCell().SetString(r.GridLayer)
		row.AddCell().SetString(r.Hash)
		row.AddCell()
	}
	if err := f.Save(path); err != nil {
		return fmt.Errorf("sargrid: writing report %s: %w", path, err)
	}
	return nil
}
