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


package sargridutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/ncc-cnc/sargrid"
	"github.com/ncc-cnc/sargrid/raster"
	"github.com/ncc-cnc/sargrid/vector"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// getString returns the string value of key with environment variables
// expanded.
func getString(cfg *viper.Viper, key string) string {
	return os.ExpandEnv(cfg.GetString(key))
}

func getFloat(cfg *viper.Viper, key string) (float64, error) {
	v, err := cast.ToFloat64E(cfg.Get(key))
	if err != nil {
		return 0, fmt.Errorf("sargrid: parsing configuration: %s: %v", key, err)
	}
	return v, nil
}

func getInt(cfg *viper.Viper, key string) (int, error) {
	v, err := cast.ToIntE(cfg.Get(key))
	if err != nil {
		return 0, fmt.Errorf("sargrid: parsing configuration: %s: %v", key, err)
	}
	return v, nil
}

// SourceType returns the configured source type.
func SourceType(cfg *viper.Viper) (sargrid.SourceType, error) {
	t, err := sargrid.ParseSourceType(cfg.GetString("Source.Type"))
	if err != nil {
		return "", fmt.Errorf("sargrid: parsing configuration: Source.Type: %v", err)
	}
	return t, nil
}

// Naming returns the dataset naming scheme.
func Naming(cfg *viper.Viper) (sargrid.Naming, error) {
	t, err := SourceType(cfg)
	if err != nil {
		return sargrid.Naming{}, err
	}
	n := sargrid.Naming{
		Prefix: cfg.GetString("Source.Prefix"),
		IDKey:  cfg.GetString("Fields.IDKey"),
	}
	if n.Prefix == "" {
		n.Prefix = t.Prefix()
	}
	if n.IDKey == "" {
		return n, fmt.Errorf("sargrid: parsing configuration: Fields.IDKey must be set")
	}
	if strings.ContainsAny(n.Prefix, `/\*?[`) {
		return n, fmt.Errorf("sargrid: parsing configuration: Source.Prefix=%q should not contain path separators or wildcards", n.Prefix)
	}
	return n, nil
}

// ParseFields returns the attribute fields of the raw species layer.
func ParseFields(cfg *viper.Viper) sargrid.ParseFields {
	return sargrid.ParseFields{
		ID:      cfg.GetString("Fields.ID"),
		Status:  cfg.GetString("Fields.Status"),
		SciName: cfg.GetString("Fields.SciName"),
		ComName: cfg.GetString("Fields.ComName"),
	}
}

// GridSR returns the parsed grid projection and its text.
func GridSR(cfg *viper.Viper) (*proj.SR, string, error) {
	text := cfg.GetString("Grid.Proj")
	if text == "" {
		return nil, "", fmt.Errorf("sargrid: parsing configuration: Grid.Proj must be set")
	}
	sr, err := proj.Parse(text)
	if err != nil {
		return nil, "", fmt.Errorf("sargrid: parsing configuration: Grid.Proj: %v", err)
	}
	return sr, text, nil
}

// ParseConfig returns the configuration of the parse stage, without a
// mask.
func ParseConfig(cfg *viper.Viper) (sargrid.ParseConfig, error) {
	var c sargrid.ParseConfig
	var err error
	if c.Naming, err = Naming(cfg); err != nil {
		return c, err
	}
	c.Fields = ParseFields(cfg)
	c.StatusStatistic = vector.StatisticKind(strings.ToUpper(cfg.GetString("Fields.StatusStatistic")))
	c.Where = cfg.GetString("Source.Where")
	if c.SR, c.SRText, err = GridSR(cfg); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("sargrid: parsing configuration: %v", err)
	}
	return c, nil
}

// SnapGrid returns the snap grid. If snapRaster, a local path, is not
// empty the grid is read from its world file; otherwise it is given by
// the Grid.Xo, Grid.Yo, Grid.Dx, Grid.Dy, Grid.Nx and Grid.Ny options.
func SnapGrid(cfg *viper.Viper, snapRaster string) (raster.Grid, error) {
	if snapRaster != "" {
		g, err := raster.ReadGrid(snapRaster)
		if err != nil {
			return g, fmt.Errorf("sargrid: parsing configuration: Grid.SnapRaster: %v", err)
		}
		return g, nil
	}
	var g raster.Grid
	var err error
	for _, v := range []struct {
		key string
		dst *float64
	}{{"Grid.Xo", &g.X0}, {"Grid.Yo", &g.Y0}, {"Grid.Dx", &g.Dx}, {"Grid.Dy", &g.Dy}} {
		if *v.dst, err = getFloat(cfg, v.key); err != nil {
			return g, err
		}
	}
	if g.Nx, err = getInt(cfg, "Grid.Nx"); err != nil {
		return g, err
	}
	if g.Ny, err = getInt(cfg, "Grid.Ny"); err != nil {
		return g, err
	}
	switch {
	case !(g.Dx > 0):
		return g, fmt.Errorf("sargrid: parsing configuration: Grid.Dx=%g but should be >0", g.Dx)
	case !(g.Dy > 0):
		return g, fmt.Errorf("sargrid: parsing configuration: Grid.Dy=%g but should be >0", g.Dy)
	case g.Nx < 0:
		return g, fmt.Errorf("sargrid: parsing configuration: Grid.Nx=%d but should be >=0", g.Nx)
	case g.Ny < 0:
		return g, fmt.Errorf("sargrid: parsing configuration: Grid.Ny=%d but should be >=0", g.Ny)
	}
	return g, nil
}

// ApportionConfig returns the configuration of the apportionment engine.
func ApportionConfig(cfg *viper.Viper) (sargrid.ApportionConfig, error) {
	var c sargrid.ApportionConfig
	var err error
	if c.LargeRangeKm2, err = getFloat(cfg, "Apportion.LargeRangeKm2"); err != nil {
		return c, err
	}
	if c.LargeRangeBurn, err = getFloat(cfg, "Apportion.LargeRangeBurn"); err != nil {
		return c, err
	}
	if c.HaDecimals, err = getInt(cfg, "Apportion.HaDecimals"); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("sargrid: parsing configuration: %v", err)
	}
	return c, nil
}

// RasterizeConfig returns the configuration of the rasterizer on the
// given snap grid.
func RasterizeConfig(cfg *viper.Viper, snap raster.Grid) (sargrid.RasterizeConfig, error) {
	burn, err := getFloat(cfg, "Apportion.PresenceBurn")
	if err != nil {
		return sargrid.RasterizeConfig{}, err
	}
	if !(burn > 0) {
		return sargrid.RasterizeConfig{}, fmt.Errorf("sargrid: parsing configuration: Apportion.PresenceBurn=%g but should be >0", burn)
	}
	return sargrid.RasterizeConfig{Snap: snap, PresenceBurn: burn}, nil
}

// ProtectionConfig returns the configuration of the protection overlap
// engine.
func ProtectionConfig(cfg *viper.Viper) (sargrid.ProtectionConfig, error) {
	d, err := getInt(cfg, "Protection.Decimals")
	if err != nil {
		return sargrid.ProtectionConfig{}, err
	}
	if d < 0 {
		return sargrid.ProtectionConfig{}, fmt.Errorf("sargrid: parsing configuration: Protection.Decimals=%d but should be >=0", d)
	}
	return sargrid.ProtectionConfig{IDField: cfg.GetString("Fields.ID"), Decimals: d}, nil
}

// ConservedConfig returns the configuration used to build the protected
// and conserved areas layer.
func ConservedConfig(cfg *viper.Viper) (sargrid.ConservedConfig, error) {
	c := sargrid.ConservedConfig{
		PropertyField: cfg.GetString("Conserved.PropertyField"),
		BiomeField:    cfg.GetString("Conserved.BiomeField"),
		Biome:         cfg.GetString("Conserved.Biome"),
	}
	var err error
	if c.PropertyPrefixes, err = cast.ToStringSliceE(cfg.Get("Conserved.PropertyPrefixes")); err != nil {
		return c, fmt.Errorf("sargrid: parsing configuration: Conserved.PropertyPrefixes: %v", err)
	}
	if c.IncludeHa, err = getFloat(cfg, "Conserved.IncludeHa"); err != nil {
		return c, err
	}
	if c.IncludeHa < 0 {
		return c, fmt.Errorf("sargrid: parsing configuration: Conserved.IncludeHa=%g but should be >=0", c.IncludeHa)
	}
	if c.PropertyField == "" || c.BiomeField == "" {
		return c, fmt.Errorf("sargrid: parsing configuration: Conserved.PropertyField and Conserved.BiomeField must be set")
	}
	return c, nil
}

// RichnessConfig returns the richness selection.
func RichnessConfig(cfg *viper.Viper) (sargrid.RichnessConfig, error) {
	c := sargrid.RichnessConfig{
		Source: cfg.GetString("Richness.Source"),
		Threat: cfg.GetString("Richness.Threat"),
	}
	if c.Source == "" {
		t, err := SourceType(cfg)
		if err != nil {
			return c, err
		}
		c.Source = string(t)
	}
	if _, err := sargrid.ThreatPattern(c.Threat); err != nil {
		return c, fmt.Errorf("sargrid: parsing configuration: Richness.Threat: %v", err)
	}
	return c, nil
}

// RasterFormat returns the format of the output rasters.
func RasterFormat(cfg *viper.Viper) (sargrid.RasterFormat, error) {
	f, err := sargrid.ParseRasterFormat(cfg.GetString("RasterFormat"))
	if err != nil {
		return "", fmt.Errorf("sargrid: parsing configuration: RasterFormat: %v", err)
	}
	return f, nil
}

// Workers returns the number of species processed in parallel.
func Workers(cfg *viper.Viper) (int, error) {
	n, err := getInt(cfg, "Workers")
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("sargrid: parsing configuration: Workers=%d but should be >0", n)
	}
	return n, nil
}

// outputPath returns the value of key, or name in outputDir if it is
// empty.
func outputPath(cfg *viper.Viper, key, outputDir, name string) string {
	p := getString(cfg, key)
	if p == "" {
		return filepath.Join(outputDir, name)
	}
	return p
}

// checkOutputFile makes sure the directory of path exists.
func checkOutputFile(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("sargrid: creating output directory %s: %v", dir, err)
	}
	return nil
}
