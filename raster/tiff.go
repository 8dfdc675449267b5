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

package raster

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"
)

// WriteTIFF writes r to path as a single-band unsigned 16-bit TIFF
// (values converted with Uint16) together with a world file locating
// it and, if sr is not empty, a .prj file holding the spatial
// reference.
func WriteTIFF(path string, r *Raster, sr string) error {
	if r.Len() == 0 {
		return fmt.Errorf("raster: writing %s: %w", path, ErrEmpty)
	}
	img := image.NewGray16(image.Rect(0, 0, r.Nx, r.Ny))
	for i, v := range r.Data.Elements {
		img.SetGray16(i%r.Nx, i/r.Nx, color.Gray16{Y: Uint16(v)})
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("raster: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		f.Close()
		return fmt.Errorf("raster: encoding %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("raster: writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("raster: writing %s: %w", path, err)
	}
	if err := writeWorldFile(sidecar(path, ".tfw"), r.Grid); err != nil {
		return err
	}
	prj := sidecar(path, ".prj")
	if sr == "" {
		if err := os.Remove(prj); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return os.WriteFile(prj, []byte(sr), 0644)
}

// ReadTIFF reads a single-band TIFF and its world file.
func ReadTIFF(path string) (*Raster, error) {
	g, err := ReadGrid(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("raster: %w", err)
	}
	defer f.Close()
	img, err := tiff.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("raster: decoding %s: %w", path, err)
	}
	r := New(g)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y
			if v != 0 {
				r.Set(y-b.Min.Y, x-b.Min.X, float64(v))
			}
		}
	}
	return r, nil
}

// ReadGrid returns the grid of the TIFF at path from its dimensions
// and world file, without reading the pixels. It is used to take the
// snap lattice and extent from a reference raster.
func ReadGrid(path string) (Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return Grid{}, fmt.Errorf("raster: %w", err)
	}
	defer f.Close()
	cfg, err := tiff.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return Grid{}, fmt.Errorf("raster: reading %s: %w", path, err)
	}
	g, err := readWorldFile(sidecar(path, ".tfw"), cfg.Width, cfg.Height)
	if err != nil {
		return Grid{}, err
	}
	return g, g.Validate()
}

func sidecar(path, ext string) string {
	if i := strings.LastIndex(path, "."); i > strings.LastIndexAny(path, `/\`) {
		return path[:i] + ext
	}
	return path + ext
}

// writeWorldFile writes the six-line affine transform of g: pixel
// width, two rotation terms, negative pixel height and the center of
// the upper-left pixel.
func writeWorldFile(path string, g Grid) error {
	b := g.Bounds()
	s := fmt.Sprintf("%.10f\n0.0\n0.0\n%.10f\n%.10f\n%.10f\n",
		g.Dx, -g.Dy, b.Min.X+g.Dx/2, b.Max.Y-g.Dy/2)
	if err := os.WriteFile(path, []byte(s), 0644); err != nil {
		return fmt.Errorf("raster: writing world file: %w", err)
	}
	return nil
}

func readWorldFile(path string, nx, ny int) (Grid, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Grid{}, fmt.Errorf("raster: reading world file: %w", err)
	}
	fields := strings.Fields(string(b))
	if len(fields) != 6 {
		return Grid{}, fmt.Errorf("raster: world file %s has %d values, want 6", path, len(fields))
	}
	var v [6]float64
	for i, s := range fields {
		if v[i], err = strconv.ParseFloat(s, 64); err != nil {
			return Grid{}, fmt.Errorf("raster: world file %s: %w", path, err)
		}
	}
	if v[1] != 0 || v[2] != 0 {
		return Grid{}, fmt.Errorf("raster: world file %s: rotated rasters are not supported", path)
	}
	dx, dy := v[0], -v[3]
	return Grid{
		X0: v[4] - dx/2,
		Y0: v[5] + dy/2 - float64(ny)*dy,
		Dx: dx,
		Dy: dy,
		Nx: nx,
		Ny: ny,
	}, nil
}
