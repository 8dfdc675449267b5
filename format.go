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
	"runtime"
	"strings"

	"github.com/ctessum/requestcache"
	"github.com/ncc-cnc/sargrid/raster"
)

// RasterFormat is a raster file format.
type RasterFormat string

// Raster formats.
const (
	// TIFF is an unsigned 16-bit GeoTIFF-style file with a world file.
	TIFF RasterFormat = "tif"

	// NetCDF is a float32 NetCDF file with the raster in the variable
	// named NCFVariable.
	NetCDF RasterFormat = "ncf"
)

// NCFVariable is the variable single rasters are stored in when
// written as NetCDF.
const NCFVariable = "value"

// ParseRasterFormat parses s as a RasterFormat.
func ParseRasterFormat(s string) (RasterFormat, error) {
	switch f := RasterFormat(strings.ToLower(strings.TrimPrefix(s, "."))); f {
	case TIFF, NetCDF:
		return f, nil
	case "tiff":
		return TIFF, nil
	case "nc", "netcdf":
		return NetCDF, nil
	}
	return "", fmt.Errorf("sargrid: invalid raster format %q; valid formats are tif and ncf", s)
}

// Ext returns the file extension of f, including the dot.
func (f RasterFormat) Ext() string { return "." + string(f) }

// WriteRaster writes r to path in format f. sr is the spatial
// reference text, which is only recorded for TIFF files.
func WriteRaster(path string, r *raster.Raster, sr string, f RasterFormat) error {
	switch f {
	case TIFF:
		return raster.WriteTIFF(path, r, sr)
	case NetCDF:
		w, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("sargrid: %w", err)
		}
		if err := raster.WriteNCF(w, map[string]*raster.Raster{NCFVariable: r}, "sargrid raster"); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	}
	return fmt.Errorf("sargrid: invalid raster format %q", f)
}

// ReadRaster reads a raster written by WriteRaster.
func ReadRaster(path string, f RasterFormat) (*raster.Raster, error) {
	switch f {
	case TIFF:
		return raster.ReadTIFF(path)
	case NetCDF:
		r, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("sargrid: %w", err)
		}
		defer r.Close()
		vars, err := raster.ReadNCF(r)
		if err != nil {
			return nil, fmt.Errorf("sargrid: reading %s: %w", path, err)
		}
		v, ok := vars[NCFVariable]
		if !ok {
			return nil, fmt.Errorf("sargrid: %s has no variable %s", path, NCFVariable)
		}
		return v, nil
	}
	return nil, fmt.Errorf("sargrid: invalid raster format %q", f)
}

// RasterReader reads raster files concurrently, keeping recently read
// rasters in memory. Rasters returned by Read are shared between callers
// and must not be modified.
type RasterReader struct {
	format RasterFormat
	cache  *requestcache.Cache
}

// NewRasterReader returns a reader of rasters in format f that keeps up
// to cacheSize rasters in memory.
func NewRasterReader(f RasterFormat, cacheSize int) *RasterReader {
	rr := &RasterReader{format: f}
	rr.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return ReadRaster(request.(string), f)
	}, runtime.GOMAXPROCS(-1),
		requestcache.Deduplicate(), requestcache.Memory(cacheSize))
	return rr
}

// Read reads the raster at path.
func (rr *RasterReader) Read(ctx context.Context, path string) (*raster.Raster, error) {
	result, err := rr.cache.NewRequest(ctx, path, path).Result()
	if err != nil {
		return nil, err
	}
	return result.(*raster.Raster), nil
}

// ReadAll reads all of paths concurrently, returning the rasters in the
// same order.
func (rr *RasterReader) ReadAll(ctx context.Context, paths []string) ([]*raster.Raster, error) {
	o := make([]*raster.Raster, len(paths))
	errs := make(chan error, len(paths))
	for i, p := range paths {
		go func(i int, p string) {
			var err error
			o[i], err = rr.Read(ctx, p)
			errs <- err
		}(i, p)
	}
	var err error
	for range paths {
		if e := <-errs; e != nil && err == nil {
			err = e
		}
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}
