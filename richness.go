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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ncc-cnc/sargrid/raster"
)

// RichnessConfig selects the rasters summed into richness surfaces.
type RichnessConfig struct {
	// Source is the source token used in output names, e.g. SAR.
	Source string

	// Threat is AllStatuses or the status whose species are summed.
	Threat string
}

// SumName returns the file name of the cumulative area raster.
func (c RichnessConfig) SumName(ext string) string {
	return fmt.Sprintf("%s_%s_HA_SUM%s", c.Source, c.Threat, ext)
}

// CountName returns the file name of the species count raster.
func (c RichnessConfig) CountName(ext string) string {
	return fmt.Sprintf("%s_%s_N%s", c.Source, c.Threat, ext)
}

// StackName returns the file name of the NetCDF file holding both
// richness surfaces.
func (c RichnessConfig) StackName() string {
	return fmt.Sprintf("%s_%s_RICHNESS.ncf", c.Source, c.Threat)
}

// Richness holds the two richness surfaces of a set of species rasters.
type Richness struct {
	// Inputs are the files that were summed.
	Inputs []string

	// Sum is the cell-wise sum of the input values.
	Sum *raster.Raster

	// Count is the cell-wise number of inputs with a non-zero value.
	Count *raster.Raster
}

// SumRichness computes the richness surfaces of rs. The outputs cover
// the union of the input extents.
func SumRichness(rs ...*raster.Raster) (sum, count *raster.Raster, err error) {
	if sum, err = raster.Mosaic(rs...); err != nil {
		return nil, nil, fmt.Errorf("sargrid: richness sum: %w", err)
	}
	if count, err = raster.Count(rs...); err != nil {
		return nil, nil, fmt.Errorf("sargrid: richness count: %w", err)
	}
	return sum, count, nil
}

// SelectRasters returns the species raster files in dir whose names
// match cfg.Threat, in name order. Only files with the extension ext
// and the T_NAT_ species raster prefix are considered.
func SelectRasters(dir, ext string, cfg RichnessConfig) ([]string, error) {
	pattern, err := ThreatPattern(cfg.Threat)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sargrid: listing species rasters: %w", err)
	}
	var o []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ext || !MatchName(RasterName("*", ext), name) {
			continue
		}
		if MatchName(pattern, name) {
			o = append(o, filepath.Join(dir, name))
		}
	}
	sort.Strings(o)
	return o, nil
}

// RichnessFromFiles reads the species rasters matching cfg in dir with
// rr and sums them.
func RichnessFromFiles(ctx context.Context, rr *RasterReader, dir string, cfg RichnessConfig) (*Richness, error) {
	files, err := SelectRasters(dir, rr.format.Ext(), cfg)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("sargrid: no species rasters in %s match status %s", dir, cfg.Threat)
	}
	rs, err := rr.ReadAll(ctx, files)
	if err != nil {
		return nil, err
	}
	o := &Richness{Inputs: files}
	if o.Sum, o.Count, err = SumRichness(rs...); err != nil {
		return nil, err
	}
	return o, nil
}
