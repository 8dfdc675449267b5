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
	"runtime"
	"sort"
	"sync"

	"github.com/ncc-cnc/sargrid/internal/hash"
	"github.com/ncc-cnc/sargrid/raster"
	"github.com/ncc-cnc/sargrid/vector"
	"golang.org/x/sync/errgroup"
)

// Output directories, relative to Runner.OutputDir.
const (
	GridDir    = "Grid"
	RastersDir = "Rasters"
	scratchDir = ".scratch"
)

// Progress reports that a pipeline stage has started on a dataset.
type Progress struct {
	Stage string
	Name  string

	// Index is the 1-based position of the dataset among Total.
	Index, Total int
}

func (p Progress) String() string {
	return fmt.Sprintf("%s: %s (%d/%d)", p.Stage, p.Name, p.Index, p.Total)
}

// Result is the outcome of gridding one species.
type Result struct {
	Name             string
	ID               interface{}
	Status           Status
	SciName, ComName string

	Branch   Branch
	TotalKm2 float64

	// Cells is the number of raster cells with a value, and Hectares
	// the sum of the apportioned hectares.
	Cells    int
	Hectares float64
	Presence bool

	// GridLayer and Raster are the paths of the outputs.
	GridLayer, Raster string

	// Hash identifies the species geometry and attributes the outputs
	// were made from.
	Hash string

	Err error
}

// Summary is the outcome of a batch run.
type Summary struct {
	Processed int

	// Failed holds the names of the species that could not be
	// processed, in name order.
	Failed []string

	// Results holds one result per species, in input order.
	Results []*Result
}

// Runner grids a batch of species: each species is apportioned onto the
// grid cells, the selected cells are exported to {OutputDir}/Grid and
// the species raster is written to {OutputDir}/Rasters.
type Runner struct {
	Cells     GridCells
	Apportion ApportionConfig
	Rasterize RasterizeConfig
	Format    RasterFormat

	OutputDir string

	// SR is the spatial reference text written next to the rasters.
	SR string

	// Workers is the number of species processed in parallel. If it
	// is < 1, the number of CPUs is used.
	Workers int

	// Progress, if not nil, receives a value as each species starts.
	Progress chan<- Progress
}

// Run grids species. Failures of individual species are recorded in
// the summary and do not stop the batch; Run only returns an error if
// the configuration is invalid, the output directories cannot be
// created or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, species []*Species) (*Summary, error) {
	if r.Cells == nil {
		return nil, fmt.Errorf("sargrid: runner has no grid cells")
	}
	if err := r.Apportion.Validate(); err != nil {
		return nil, err
	}
	if err := r.Rasterize.Snap.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseRasterFormat(string(r.Format)); err != nil {
		return nil, err
	}
	for _, d := range []string{GridDir, RastersDir, scratchDir} {
		if err := os.MkdirAll(filepath.Join(r.OutputDir, d), os.ModePerm); err != nil {
			return nil, fmt.Errorf("sargrid: creating output directory: %w", err)
		}
	}
	defer os.Remove(filepath.Join(r.OutputDir, scratchDir))

	workers := r.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(-1)
	}
	s := &Summary{Results: make([]*Result, len(species))}
	var mu sync.Mutex
	started := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sp := range species {
		if gctx.Err() != nil {
			break
		}
		i, sp := i, sp
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := r.start(gctx, &mu, &started, sp, len(species)); err != nil {
				return err
			}
			s.Results[i] = r.species(sp)
			return nil
		})
	}
	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("sargrid: batch interrupted: %w", err)
	}
	for _, res := range s.Results {
		s.Processed++
		if res.Err != nil {
			s.Failed = append(s.Failed, res.Name)
		}
	}
	sort.Strings(s.Failed)
	return s, nil
}

// start numbers sp and reports it on r.Progress. The report is sent
// while mu is held so that reports arrive in index order.
func (r *Runner) start(ctx context.Context, mu *sync.Mutex, started *int, sp *Species, total int) error {
	mu.Lock()
	defer mu.Unlock()
	*started++
	if r.Progress == nil {
		return nil
	}
	p := Progress{Stage: "Processing", Name: sp.Name, Index: *started, Total: total}
	select {
	case r.Progress <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// species grids one species, recording any error in the result.
func (r *Runner) species(sp *Species) *Result {
	res := &Result{
		Name:    sp.Name,
		ID:      sp.ID,
		Status:  sp.Status,
		SciName: sp.SciName,
		ComName: sp.ComName,
		Hash:    hash.Layer(sp.Layer),
	}
	res.Err = r.grid(sp, res)
	return res
}

func (r *Runner) grid(sp *Species, res *Result) error {
	scratch, err := os.MkdirTemp(filepath.Join(r.OutputDir, scratchDir), sp.Name+"-")
	if err != nil {
		return fmt.Errorf("sargrid: %s: %w", sp.Name, err)
	}
	defer os.RemoveAll(scratch)

	a, err := Apportion(sp, r.Cells, r.Apportion)
	if err != nil {
		return err
	}
	res.Branch = a.Branch
	res.TotalKm2 = a.TotalKm2
	for _, f := range a.Layer.Features {
		v, err := f.Float(RangeHaField)
		if err != nil {
			return fmt.Errorf("sargrid: %s: %w", sp.Name, err)
		}
		res.Hectares += v
	}

	ras, err := Rasterize(a, r.Rasterize)
	if err != nil {
		return err
	}
	res.Presence = ras.Presence
	res.Cells = ras.Count()

	gridName := GridLayerName(sp.Name)
	a.Layer.Name = gridName
	if err := vector.WriteShapefile(filepath.Join(scratch, gridName+".shp"), a.Layer); err != nil {
		return fmt.Errorf("sargrid: exporting %s: %w", gridName, err)
	}
	rasterName := RasterName(sp.Name, r.Format.Ext())
	if err := WriteRaster(filepath.Join(scratch, rasterName), ras.Raster, r.SR, r.Format); err != nil {
		return fmt.Errorf("sargrid: writing raster of %s: %w", sp.Name, err)
	}

	if res.GridLayer, err = publish(scratch, filepath.Join(r.OutputDir, GridDir), gridName+".shp"); err != nil {
		return err
	}
	res.Raster, err = publish(scratch, filepath.Join(r.OutputDir, RastersDir), rasterName)
	return err
}

// publish moves the dataset named file, with its sidecar files, from
// the scratch directory into dir, replacing any previous version.
// It returns the new path of file.
func publish(scratch, dir, file string) (string, error) {
	stem := trimExt(file)
	entries, err := os.ReadDir(scratch)
	if err != nil {
		return "", fmt.Errorf("sargrid: %w", err)
	}
	old, err := filepath.Glob(filepath.Join(dir, globEscape(stem)+".*"))
	if err != nil {
		return "", fmt.Errorf("sargrid: %w", err)
	}
	for _, o := range old {
		if trimExt(filepath.Base(o)) != stem {
			continue
		}
		if err := os.Remove(o); err != nil {
			return "", fmt.Errorf("sargrid: removing previous output: %w", err)
		}
	}
	for _, e := range entries {
		if e.IsDir() || trimExt(e.Name()) != stem {
			continue
		}
		if err := os.Rename(filepath.Join(scratch, e.Name()), filepath.Join(dir, e.Name())); err != nil {
			return "", fmt.Errorf("sargrid: %w", err)
		}
	}
	return filepath.Join(dir, file), nil
}

func trimExt(name string) string { return name[:len(name)-len(filepath.Ext(name))] }

// globEscape escapes the filepath.Match metacharacters in s.
func globEscape(s string) string {
	var o []rune
	for _, c := range s {
		switch c {
		case '*', '?', '[', '\\':
			o = append(o, '\\')
		}
		o = append(o, c)
	}
	return string(o)
}

// ReadCells loads the grid cells from a shapefile, or, if path is
// empty, derives regular cells from the bounded snap grid.
func ReadCells(path, idField string, snap raster.Grid, sr string) (GridCells, error) {
	if path == "" {
		return NewRegularCells(snap, idField, sr)
	}
	l, err := vector.ReadLayer(path)
	if err != nil {
		return nil, err
	}
	return NewCellLayer(l, idField)
}
