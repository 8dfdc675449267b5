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


// Package sargridutil contains the command-line interface of sargrid.
package sargridutil

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/ncc-cnc/sargrid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// CanadaAlbers is the default grid projection, the Canada Albers Equal
// Area Conic.
const CanadaAlbers = "+proj=aea +lat_1=50 +lat_2=70 +lat_0=40 +lon_0=-96 +x_0=0 +y_0=0 +ellps=GRS80 +units=m +no_defs"

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	source := []*pflag.FlagSet{parseCmd.Flags(), gridCmd.Flags(), protectCmd.Flags(), runCmd.Flags()}
	grid := []*pflag.FlagSet{gridCmd.Flags(), conservedCmd.Flags(), runCmd.Flags()}
	output := []*pflag.FlagSet{Root.PersistentFlags()}

	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Source.File",
			usage: `
              Source.File is the raw species range or critical habitat
              layer. It can be a shapefile path, an http(s) URL or a blob
              storage path (file://, s3:// or gs://).`,
			defaultVal: "",
			flagsets:   source,
		},
		{
			name: "Source.Type",
			usage: `
              Source.Type is SAR for species range maps or CH for critical
              habitat.`,
			defaultVal: "SAR",
			flagsets:   append(source, richnessCmd.Flags()),
		},
		{
			name: "Source.Prefix",
			usage: `
              Source.Prefix is the prefix of all dataset names. If empty,
              it is ECCC_SAR for range maps and ECCC_CH_SAR for critical
              habitat.`,
			defaultVal: "",
			flagsets:   source,
		},
		{
			name: "Source.Where",
			usage: `
              Source.Where is an optional expression selecting the raw
              features that are parsed, for example
              "SAR_STAT_E >= 2 && TAXON == 'Birds'".`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{parseCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Source.Mask",
			usage: `
              Source.Mask is an optional GeoJSON polygon, in the grid
              projection, that the ranges are clipped to.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{parseCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Fields.ID",
			usage: `
              Fields.ID is the species identifier field.`,
			defaultVal: "COSEWICID",
			flagsets:   source,
		},
		{
			name: "Fields.IDKey",
			usage: `
              Fields.IDKey is the identifier token used in dataset names.`,
			defaultVal: "COSEWIC",
			flagsets:   source,
		},
		{
			name: "Fields.Status",
			usage: `
              Fields.Status is the SARA status field.`,
			defaultVal: "SAR_STAT_E",
			flagsets:   source,
		},
		{
			name: "Fields.SciName",
			usage: `
              Fields.SciName is the scientific name field.`,
			defaultVal: "SCI_NAME",
			flagsets:   source,
		},
		{
			name: "Fields.ComName",
			usage: `
              Fields.ComName is the common name field.`,
			defaultVal: "COM_NAME_E",
			flagsets:   source,
		},
		{
			name: "Fields.StatusStatistic",
			usage: `
              Fields.StatusStatistic is empty to dissolve ranges by status,
              or MIN or MAX to dissolve without status and keep the minimum
              or maximum status of each species, as is done for critical
              habitat.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{parseCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Grid.Cells",
			usage: `
              Grid.Cells is the grid cell shapefile. If empty, cells are
              generated from the snap grid.`,
			defaultVal: "",
			flagsets:   grid,
		},
		{
			name: "Grid.CellID",
			usage: `
              Grid.CellID is the grid cell identifier field.`,
			defaultVal: "NCCID",
			flagsets:   grid,
		},
		{
			name: "Grid.SnapRaster",
			usage: `
              Grid.SnapRaster is the reference raster (a TIFF with a .tfw
              world file) that all output rasters are aligned with and
              clipped to. If empty, the snap grid is given by Grid.Xo,
              Grid.Yo, Grid.Dx, Grid.Dy, Grid.Nx and Grid.Ny.`,
			defaultVal: "",
			flagsets:   grid,
		},
		{
			name: "Grid.Xo",
			usage: `
              Grid.Xo is the X coordinate of the lower-left corner of the
              snap grid.`,
			defaultVal: 0.,
			flagsets:   grid,
		},
		{
			name: "Grid.Yo",
			usage: `
              Grid.Yo is the Y coordinate of the lower-left corner of the
              snap grid.`,
			defaultVal: 0.,
			flagsets:   grid,
		},
		{
			name: "Grid.Dx",
			usage: `
              Grid.Dx is the cell width in metres.`,
			defaultVal: 1000.,
			flagsets:   grid,
		},
		{
			name: "Grid.Dy",
			usage: `
              Grid.Dy is the cell height in metres.`,
			defaultVal: 1000.,
			flagsets:   grid,
		},
		{
			name: "Grid.Nx",
			usage: `
              Grid.Nx is the number of columns of the snap grid. 0 leaves
              the grid unbounded.`,
			defaultVal: 0,
			flagsets:   grid,
		},
		{
			name: "Grid.Ny",
			usage: `
              Grid.Ny is the number of rows of the snap grid. 0 leaves
              the grid unbounded.`,
			defaultVal: 0,
			flagsets:   grid,
		},
		{
			name: "Grid.Proj",
			usage: `
              Grid.Proj gives the projection of the grid in Proj4 or WKT
              format. Ranges are reprojected to it.`,
			defaultVal: CanadaAlbers,
			flagsets:   append(append([]*pflag.FlagSet{}, grid...), parseCmd.Flags(), protectCmd.Flags()),
		},
		{
			name: "Apportion.LargeRangeKm2",
			usage: `
              Apportion.LargeRangeKm2 is the range area, in km², above
              which ranges are not intersected with the grid cells but
              rasterized directly with a constant value.`,
			defaultVal: 2.e6,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Apportion.LargeRangeBurn",
			usage: `
              Apportion.LargeRangeBurn is the value written to the cells of
              large ranges.`,
			defaultVal: 100.,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Apportion.PresenceBurn",
			usage: `
              Apportion.PresenceBurn is the value written to the cells of
              ranges whose cell areas all round to zero.`,
			defaultVal: 1.,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Apportion.HaDecimals",
			usage: `
              Apportion.HaDecimals is the number of decimal places the
              apportioned hectares are rounded to: 0 for whole hectares,
              2 for hundredths.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Protection.Layer",
			usage: `
              Protection.Layer is the dissolved protected and conserved
              areas layer, for example the output of the conserved
              command.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{protectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Protection.Decimals",
			usage: `
              Protection.Decimals is the number of decimal places protected
              hectares are rounded to.`,
			defaultVal: 2,
			flagsets:   []*pflag.FlagSet{protectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Conserved.CPCAD",
			usage: `
              Conserved.CPCAD is the Canadian Protected and Conserved Areas
              Database layer.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{conservedCmd.Flags()},
		},
		{
			name: "Conserved.NCC",
			usage: `
              Conserved.NCC is the Nature Conservancy of Canada properties
              layer.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{conservedCmd.Flags()},
		},
		{
			name: "Conserved.PropertyField",
			usage: `
              Conserved.PropertyField is the NCC property type field.`,
			defaultVal: "FIRST_PCL_",
			flagsets:   []*pflag.FlagSet{conservedCmd.Flags()},
		},
		{
			name: "Conserved.PropertyPrefixes",
			usage: `
              Conserved.PropertyPrefixes are the NCC property types that
              are kept.`,
			defaultVal: []string{"Fee Simple", "Conservation Agreement"},
			flagsets:   []*pflag.FlagSet{conservedCmd.Flags()},
		},
		{
			name: "Conserved.BiomeField",
			usage: `
              Conserved.BiomeField is the CPCAD biome field.`,
			defaultVal: "BIOME",
			flagsets:   []*pflag.FlagSet{conservedCmd.Flags()},
		},
		{
			name: "Conserved.Biome",
			usage: `
              Conserved.Biome is the CPCAD biome that is kept.`,
			defaultVal: "T",
			flagsets:   []*pflag.FlagSet{conservedCmd.Flags()},
		},
		{
			name: "Conserved.IncludeHa",
			usage: `
              Conserved.IncludeHa is the conserved area, in hectares, at
              or above which a grid cell counts as conserved.`,
			defaultVal: 50.,
			flagsets:   []*pflag.FlagSet{conservedCmd.Flags()},
		},
		{
			name: "Richness.Input",
			usage: `
              Richness.Input is the directory of species rasters. If empty,
              it is the Rasters directory of OutputDir.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{richnessCmd.Flags()},
		},
		{
			name: "Richness.Threat",
			usage: `
              Richness.Threat selects the species that are summed: All, or
              a status such as END or Threatened.`,
			defaultVal: sargrid.AllStatuses,
			flagsets:   []*pflag.FlagSet{richnessCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Richness.Source",
			usage: `
              Richness.Source is the source token of the richness raster
              names. If empty, it is Source.Type.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{richnessCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "RasterFormat",
			usage: `
              RasterFormat is tif for 16-bit unsigned TIFF rasters with
              world files or ncf for NetCDF rasters.`,
			defaultVal: string(sargrid.TIFF),
			flagsets:   output,
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory outputs are written to. It can
              be a blob storage path, in which case outputs are uploaded
              when the command finishes.`,
			defaultVal: "output",
			flagsets:   output,
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the log file. If empty, it is sargrid.log in
              OutputDir.`,
			defaultVal: "",
			flagsets:   output,
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of species processed in parallel.`,
			defaultVal: runtime.GOMAXPROCS(-1),
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Report",
			usage: `
              Report is the summary workbook. If empty, it is
              {prefix}_summary.xlsx in OutputDir.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Configuration environment variables are named like
	// SARGRID_GRID_DX.
	Cfg.SetEnvPrefix("SARGRID")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			if err := Cfg.BindPFlag(option.name, set.Lookup(option.name)); err != nil {
				panic(err)
			}
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(parseCmd)
	Root.AddCommand(gridCmd)
	Root.AddCommand(protectCmd)
	Root.AddCommand(conservedCmd)
	Root.AddCommand(richnessCmd)
	Root.AddCommand(runCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("sargrid: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "sargrid",
	Short: "Grid species at risk ranges to a 1 km national grid.",
	Long: `sargrid apportions species at risk range maps and critical habitat
to a fixed grid of 1 km cells, rasterizes them, measures their overlap with
protected and conserved areas and sums them into species richness rasters.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SARGRID_VAR' where 'VAR' is
the name of the variable to be set, with dots replaced by underscores.
File paths may contain environment variables.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of sargrid.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("sargrid v%s\n", sargrid.Version)
	},
	DisableAutoGenTag: true,
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Dissolve and split the raw ranges into one layer per species.",
	Long: `parse reprojects the raw ranges to the grid projection, dissolves them
to one feature per species, computes their areas and writes one layer per
species to the Parsed directory and their merge to {prefix}.shp.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, s *session) error {
			_, err := s.parse(ctx)
			return err
		})
	},
	DisableAutoGenTag: true,
}

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Apportion and rasterize each species.",
	Long: `grid apportions the area of each species to the grid cells, writes the
selected cells to the Grid directory, writes one raster per species to the
Rasters directory and writes a summary workbook. The species are read from
the merged layer written by parse, or from Source.File if it has not been
parsed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, s *session) error {
			species, err := s.readParsed(ctx)
			if err != nil {
				return err
			}
			summary, err := s.grid(ctx, species)
			if err != nil {
				return err
			}
			return s.report(summary, nil)
		})
	},
	DisableAutoGenTag: true,
}

var protectCmd = &cobra.Command{
	Use:   "protect",
	Short: "Measure the protected area of each species.",
	Long: `protect intersects the species ranges with the protected areas layer and
writes {prefix}_protection.shp with the protected hectares of each species.
The shapefile truncates Protection_ha to Protection; the same layer is also
written to {prefix}_protection.geojson with the full field names.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, s *session) error {
			_, err := s.protect(ctx)
			return err
		})
	},
	DisableAutoGenTag: true,
}

var conservedCmd = &cobra.Command{
	Use:   "conserved",
	Short: "Build the protected and conserved areas layer and grid it.",
	Long: `conserved combines terrestrial CPCAD areas with NCC properties into
PREPPED_PARKS.shp, apportions it to the grid cells and writes the
Existing_Conservation rasters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, s *session) error {
			return s.conserved(ctx)
		})
	},
	DisableAutoGenTag: true,
}

var richnessCmd = &cobra.Command{
	Use:   "richness",
	Short: "Sum species rasters into richness rasters.",
	Long: `richness sums the species rasters matching Richness.Threat into a
cumulative area raster and a species count raster.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, s *session) error {
			return s.richness(ctx)
		})
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run all species stages.",
	Long: `run parses the raw ranges, grids and rasterizes each species, measures
protection if Protection.Layer is set, writes the summary workbook and
computes species richness.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, s *session) error {
			p, err := s.parse(ctx)
			if err != nil {
				return err
			}
			summary, err := s.grid(ctx, p.Species)
			if err != nil {
				return err
			}
			var protection map[string]float64
			if Cfg.GetString("Protection.Layer") != "" {
				if protection, err = s.protect(ctx); err != nil {
					return err
				}
			}
			if err := s.report(summary, protection); err != nil {
				return err
			}
			return s.richness(ctx)
		})
	},
	DisableAutoGenTag: true,
}
