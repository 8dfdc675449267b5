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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/ncc-cnc/sargrid"
	"github.com/ncc-cnc/sargrid/cloud"
	"github.com/ncc-cnc/sargrid/raster"
	"github.com/ncc-cnc/sargrid/vector"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// richnessCacheSize is the number of species rasters kept in memory
// while richness is computed.
const richnessCacheSize = 64

// session holds the state shared by the stages of one command.
type session struct {
	log     *logrus.Logger
	logFile *os.File

	naming sargrid.Naming
	format sargrid.RasterFormat

	// outputDir is the local output directory. If the configured
	// output directory is a blob path, outputDir is a staging
	// directory that is uploaded to upload when the command finishes.
	outputDir, upload string

	// scratch holds downloaded inputs and staged outputs.
	scratch string

	parsed *sargrid.Parsed
}

// run sets up a session for cmd and runs f in it. The context is
// cancelled on interrupt.
func run(cmd *cobra.Command, f func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	s, err := newSession(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer s.close()

	s.log.WithField("command", cmd.Name()).Infof("sargrid v%s", sargrid.Version)
	if err := f(ctx, s); err != nil {
		s.log.WithError(err).Error("sargrid failed")
		return err
	}
	if s.upload != "" {
		s.log.WithField("destination", s.upload).Info("uploading outputs")
		if err := cloud.Upload(ctx, s.outputDir, s.upload, s.notify); err != nil {
			s.log.WithError(err).Error("upload failed")
			return err
		}
	}
	s.log.Info("sargrid finished")
	return nil
}

func newSession(w io.Writer) (_ *session, err error) {
	s := new(session)
	if s.naming, err = Naming(Cfg); err != nil {
		return nil, err
	}
	if s.format, err = RasterFormat(Cfg); err != nil {
		return nil, err
	}
	if s.scratch, err = os.MkdirTemp("", "sargrid"); err != nil {
		return nil, fmt.Errorf("sargrid: creating scratch directory: %v", err)
	}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	s.outputDir = getString(Cfg, "OutputDir")
	if s.outputDir == "" {
		return nil, fmt.Errorf("sargrid: parsing configuration: OutputDir must be set")
	}
	if cloud.IsBlob(s.outputDir) {
		s.upload = s.outputDir
		s.outputDir = filepath.Join(s.scratch, "output")
	}
	if err = os.MkdirAll(s.outputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("sargrid: creating output directory: %v", err)
	}

	logPath := outputPath(Cfg, "LogFile", s.outputDir, "sargrid.log")
	if err = checkOutputFile(logPath); err != nil {
		return nil, err
	}
	if s.logFile, err = os.Create(logPath); err != nil {
		return nil, fmt.Errorf("sargrid: preparing to open log file: %v", err)
	}
	s.log = logrus.New()
	s.log.Out = io.MultiWriter(w, s.logFile)
	s.log.Formatter = &logrus.TextFormatter{FullTimestamp: true, DisableColors: true}
	return s, nil
}

func (s *session) close() {
	if s.logFile != nil {
		s.logFile.Close()
	}
	os.RemoveAll(s.scratch)
}

func (s *session) notify(err error, wait time.Duration) {
	s.log.WithError(err).Warnf("transfer failed; retrying in %v", wait)
}

// fetch returns a local copy of the file named by the configuration
// key, downloading it if it is remote. It returns an empty path if the
// option is not set.
func (s *session) fetch(ctx context.Context, key string) (string, error) {
	p := getString(Cfg, key)
	if p == "" {
		return "", nil
	}
	local, err := cloud.Download(ctx, p, filepath.Join(s.scratch, "input", key), s.notify)
	if err != nil {
		return "", fmt.Errorf("sargrid: %s: %w", key, err)
	}
	return local, nil
}

// readLayer reads the layer named by the configuration key.
func (s *session) readLayer(ctx context.Context, key string) (*vector.Layer, error) {
	p, err := s.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	if p == "" {
		return nil, fmt.Errorf("sargrid: parsing configuration: %s must be set", key)
	}
	l, err := vector.ReadLayer(p)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"option": key, "path": p, "features": l.Len()}).Info("read layer")
	return l, nil
}

// toGrid reprojects l to the grid projection if it has a different
// spatial reference.
func toGrid(l *vector.Layer) (*vector.Layer, error) {
	sr, text, err := GridSR(Cfg)
	if err != nil {
		return nil, err
	}
	if l.SR == "" || l.SR == text {
		return l, nil
	}
	return vector.Reproject(l, sr, text)
}

func (s *session) mergedPath() string {
	return filepath.Join(s.outputDir, s.naming.Merged()+".shp")
}

func (s *session) parse(ctx context.Context) (*sargrid.Parsed, error) {
	cfg, err := ParseConfig(Cfg)
	if err != nil {
		return nil, err
	}
	raw, err := s.readLayer(ctx, "Source.File")
	if err != nil {
		return nil, err
	}
	if getString(Cfg, "Source.Mask") != "" {
		if cfg.Mask, err = s.readLayer(ctx, "Source.Mask"); err != nil {
			return nil, err
		}
	}
	p, err := sargrid.Parse(raw, cfg)
	if err != nil {
		return nil, err
	}
	path, err := sargrid.WriteParsed(s.outputDir, p, cfg.Naming)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"species": len(p.Species), "output": path}).Info("parsed species")
	s.parsed = p
	return p, nil
}

// readParsed returns the species written by an earlier parse, parsing
// Source.File if there are none.
func (s *session) readParsed(ctx context.Context) ([]*sargrid.Species, error) {
	if s.parsed != nil {
		return s.parsed.Species, nil
	}
	path := s.mergedPath()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		p, err := s.parse(ctx)
		if err != nil {
			return nil, err
		}
		return p.Species, nil
	}
	species, err := sargrid.ReadSpecies(path, ParseFields(Cfg), s.naming)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"species": len(species), "path": path}).Info("read parsed species")
	return species, nil
}

// speciesLayer returns the dissolved species ranges.
func (s *session) speciesLayer(ctx context.Context) (*vector.Layer, error) {
	if s.parsed != nil {
		return s.parsed.Dissolved, nil
	}
	if path := s.mergedPath(); fileExists(path) {
		return vector.ReadLayer(path)
	}
	p, err := s.parse(ctx)
	if err != nil {
		return nil, err
	}
	return p.Dissolved, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// cells returns the grid cells, the rasterizer configuration and the
// grid projection text.
func (s *session) cells(ctx context.Context) (sargrid.GridCells, sargrid.RasterizeConfig, string, error) {
	var rcfg sargrid.RasterizeConfig
	_, srText, err := GridSR(Cfg)
	if err != nil {
		return nil, rcfg, "", err
	}
	snapPath, err := s.fetch(ctx, "Grid.SnapRaster")
	if err != nil {
		return nil, rcfg, "", err
	}
	snap, err := SnapGrid(Cfg, snapPath)
	if err != nil {
		return nil, rcfg, "", err
	}
	if rcfg, err = RasterizeConfig(Cfg, snap); err != nil {
		return nil, rcfg, "", err
	}
	cellsPath, err := s.fetch(ctx, "Grid.Cells")
	if err != nil {
		return nil, rcfg, "", err
	}
	cells, err := sargrid.ReadCells(cellsPath, Cfg.GetString("Grid.CellID"), snap, srText)
	if err != nil {
		return nil, rcfg, "", err
	}
	s.log.WithField("snap", snap.String()).Info("loaded grid")
	return cells, rcfg, srText, nil
}

func (s *session) grid(ctx context.Context, species []*sargrid.Species) (*sargrid.Summary, error) {
	cells, rcfg, srText, err := s.cells(ctx)
	if err != nil {
		return nil, err
	}
	acfg, err := ApportionConfig(Cfg)
	if err != nil {
		return nil, err
	}
	workers, err := Workers(Cfg)
	if err != nil {
		return nil, err
	}

	progress := make(chan sargrid.Progress)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for p := range progress {
			s.log.Info(p.String())
		}
	}()
	r := &sargrid.Runner{
		Cells:     cells,
		Apportion: acfg,
		Rasterize: rcfg,
		Format:    s.format,
		OutputDir: s.outputDir,
		SR:        srText,
		Workers:   workers,
		Progress:  progress,
	}
	summary, err := r.Run(ctx, species)
	close(progress)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	for _, res := range summary.Results {
		if res.Err != nil {
			s.log.WithError(res.Err).WithField("species", res.Name).Error("species failed")
		}
	}
	s.log.WithFields(logrus.Fields{
		"processed": summary.Processed,
		"failed":    len(summary.Failed),
	}).Info("gridding finished")
	return summary, nil
}

// protect writes {prefix}_protection.shp, and {prefix}_protection.geojson
// with untruncated field names, and returns the protected hectares of
// each species identifier.
func (s *session) protect(ctx context.Context) (map[string]float64, error) {
	cfg, err := ProtectionConfig(Cfg)
	if err != nil {
		return nil, err
	}
	species, err := s.speciesLayer(ctx)
	if err != nil {
		return nil, err
	}
	protected, err := s.readLayer(ctx, "Protection.Layer")
	if err != nil {
		return nil, err
	}
	if protected, err = toGrid(protected); err != nil {
		return nil, err
	}
	o, err := sargrid.Protection(species, protected, cfg)
	if err != nil {
		return nil, err
	}
	o.Name = s.naming.Prefix + "_protection"
	path := filepath.Join(s.outputDir, o.Name+".shp")
	if err := vector.WriteShapefile(path, o); err != nil {
		return nil, err
	}
	geoPath := filepath.Join(s.outputDir, o.Name+".geojson")
	if err := vector.WriteGeoJSON(geoPath, o); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"output": path, "geojson": geoPath}).Info("measured protection")
	return sargrid.ProtectionByID(o, cfg.IDField)
}

func (s *session) report(summary *sargrid.Summary, protection map[string]float64) error {
	path := outputPath(Cfg, "Report", s.outputDir, s.naming.Prefix+"_summary.xlsx")
	if err := checkOutputFile(path); err != nil {
		return err
	}
	if err := sargrid.WriteReport(path, summary, protection); err != nil {
		return err
	}
	s.log.WithField("output", path).Info("wrote report")
	return nil
}

// conserved writes PREPPED_PARKS.shp, the conserved grid cells and the
// Existing_Conservation rasters.
func (s *session) conserved(ctx context.Context) error {
	cfg, err := ConservedConfig(Cfg)
	if err != nil {
		return err
	}
	var layers [2]*vector.Layer
	for i, key := range []string{"Conserved.CPCAD", "Conserved.NCC"} {
		l, err := s.readLayer(ctx, key)
		if err != nil {
			return err
		}
		if layers[i], err = toGrid(l); err != nil {
			return err
		}
	}
	prepared, err := sargrid.PrepareConserved(layers[0], layers[1], cfg)
	if err != nil {
		return err
	}
	path := filepath.Join(s.outputDir, sargrid.PreparedParksName+".shp")
	if err := vector.WriteShapefile(path, prepared); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"output": path, "features": prepared.Len()}).Info("prepared conserved areas")

	cells, rcfg, srText, err := s.cells(ctx)
	if err != nil {
		return err
	}
	g, err := sargrid.GridConserved(prepared, cells, cfg, rcfg)
	if err != nil {
		return err
	}
	for _, d := range []string{sargrid.GridDir, sargrid.RastersDir} {
		if err := os.MkdirAll(filepath.Join(s.outputDir, d), os.ModePerm); err != nil {
			return fmt.Errorf("sargrid: creating output directory: %v", err)
		}
	}
	cellsPath := filepath.Join(s.outputDir, sargrid.GridDir, sargrid.GridLayerName(g.Cells.Name)+".shp")
	if err := vector.WriteShapefile(cellsPath, g.Cells); err != nil {
		return err
	}
	ext := s.format.Ext()
	haPath := filepath.Join(s.outputDir, sargrid.RastersDir, sargrid.ExistingConservationName+"_ha"+ext)
	if err := sargrid.WriteRaster(haPath, g.Hectares, srText, s.format); err != nil {
		return err
	}
	if g.Included == nil {
		s.log.WithField("threshold_ha", cfg.IncludeHa).Warn("no grid cell reaches the include threshold")
		return nil
	}
	inclPath := filepath.Join(s.outputDir, sargrid.RastersDir, sargrid.ExistingConservationName+ext)
	if err := sargrid.WriteRaster(inclPath, g.Included, srText, s.format); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"cells": g.Cells.Len(), "included": g.Included.Count()}).Info("gridded conserved areas")
	return nil
}

// richness writes the richness rasters and their NetCDF stack.
func (s *session) richness(ctx context.Context) error {
	cfg, err := RichnessConfig(Cfg)
	if err != nil {
		return err
	}
	_, srText, err := GridSR(Cfg)
	if err != nil {
		return err
	}
	dir := getString(Cfg, "Richness.Input")
	if dir == "" {
		dir = filepath.Join(s.outputDir, sargrid.RastersDir)
	}
	rr := sargrid.NewRasterReader(s.format, richnessCacheSize)
	r, err := sargrid.RichnessFromFiles(ctx, rr, dir, cfg)
	if err != nil {
		return err
	}
	ext := s.format.Ext()
	for name, v := range map[string]*raster.Raster{cfg.SumName(ext): r.Sum, cfg.CountName(ext): r.Count} {
		if err := sargrid.WriteRaster(filepath.Join(s.outputDir, name), v, srText, s.format); err != nil {
			return err
		}
	}
	stack := filepath.Join(s.outputDir, cfg.StackName())
	f, err := os.Create(stack)
	if err != nil {
		return fmt.Errorf("sargrid: %v", err)
	}
	vars := map[string]*raster.Raster{"HA_SUM": r.Sum, "N": r.Count}
	if err := raster.WriteNCF(f, vars, fmt.Sprintf("%s %s species richness", cfg.Source, cfg.Threat)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("sargrid: %v", err)
	}
	s.log.WithFields(logrus.Fields{
		"species":     len(r.Inputs),
		"max_species": r.Count.Max(),
		"output":      stack,
	}).Info("computed richness")
	return nil
}
