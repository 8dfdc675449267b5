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


package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Retries is the maximum number of times a failed transfer is retried.
var Retries uint64 = 4

// Notify, if not nil, is called before a failed transfer is retried.
type Notify func(err error, wait time.Duration)

// sidecars returns the given file and the files that travel with it:
// [.shx, .dbf, .prj] for shapefiles and [.tfw, .prj] for TIFF rasters.
// The second return value tells which files are required.
func sidecars(filename string) ([]string, []bool) {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	switch strings.ToLower(ext) {
	case ".shp":
		return []string{filename, base + ".shx", base + ".dbf", base + ".prj"},
			[]bool{true, true, true, false}
	case ".tif", ".tiff":
		return []string{filename, base + ".tfw", base + ".prj"},
			[]bool{true, true, false}
	}
	return []string{filename}, []bool{true}
}

func retry(ctx context.Context, op func() error, notify Notify) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), Retries), ctx)
	var n backoff.Notify
	if notify != nil {
		n = backoff.Notify(notify)
	}
	return backoff.RetryNotify(op, b, n)
}

// Download copies the file at path, with its sidecar files if it is a
// shapefile or TIFF raster, into dir and returns the local path of the
// file. path may be a local file, which is returned as is, an http(s)
// URL or a blob path.
func Download(ctx context.Context, path, dir string, notify Notify) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	var get func(ctx context.Context, src string) (io.ReadCloser, error)
	switch {
	case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
		get = getHTTP
	case IsBlob(path):
		bucket, _, err := OpenBucket(ctx, path)
		if err != nil {
			return "", err
		}
		defer bucket.Close()
		get = func(ctx context.Context, src string) (io.ReadCloser, error) {
			_, key, err := splitKey(src)
			if err != nil {
				return nil, err
			}
			r, err := bucket.NewReader(ctx, key, nil)
			if gcerrors.Code(err) == gcerrors.NotFound {
				return nil, fs.ErrNotExist
			}
			return r, err
		}
	default:
		return path, nil
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("cloud: creating download directory: %w", err)
	}
	files, required := sidecars(path)
	for i, src := range files {
		dst := filepath.Join(dir, baseName(src))
		err := retry(ctx, func() error {
			err := fetch(ctx, get, src, dst)
			if errors.Is(err, fs.ErrNotExist) {
				return backoff.Permanent(err)
			}
			return err
		}, notify)
		if errors.Is(err, fs.ErrNotExist) && !required[i] {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("cloud: downloading %s: %w", src, err)
		}
	}
	return filepath.Join(dir, baseName(path)), nil
}

func fetch(ctx context.Context, get func(context.Context, string) (io.ReadCloser, error), src, dst string) error {
	r, err := get(ctx, src)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := os.Create(dst)
	if err != nil {
		return backoff.Permanent(err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func getHTTP(ctx context.Context, src string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fs.ErrNotExist
	case resp.StatusCode >= 500:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %s", src, resp.Status)
	case resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, backoff.Permanent(fmt.Errorf("%s: %s", src, resp.Status))
	}
	return resp.Body, nil
}

// splitKey returns the bucket URL and key of a blob path.
func splitKey(path string) (bucket, key string, err error) {
	i := strings.Index(path, "://")
	if i < 0 {
		return "", "", fmt.Errorf("cloud: %s is not a blob path", path)
	}
	rest := path[i+3:]
	j := strings.Index(rest, "/")
	if j < 0 {
		return path, "", nil
	}
	return path[:i+3] + rest[:j], rest[j+1:], nil
}

// baseName returns the last element of a local path or URL, without
// any query.
func baseName(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 && strings.Contains(path, "://") {
		path = path[:i]
	}
	return filepath.Base(filepath.FromSlash(path))
}

// Upload copies every file under the local directory dir to the blob
// directory dst, keeping relative paths.
func Upload(ctx context.Context, dir, dst string, notify Notify) error {
	bucket, prefix, err := OpenBucket(ctx, dst)
	if err != nil {
		return err
	}
	defer bucket.Close()
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(prefix, "/") + "/" + filepath.ToSlash(rel)
		key = strings.TrimPrefix(key, "/")
		return retry(ctx, func() error { return put(ctx, bucket, path, key) }, notify)
	})
}

func put(ctx context.Context, bucket *blob.Bucket, src, key string) error {
	r, err := os.Open(src)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("cloud: opening %s for upload: %w", src, err))
	}
	defer r.Close()
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := bucket.NewWriter(wctx, key, nil)
	if err != nil {
		return fmt.Errorf("cloud: creating writer for blob %s: %w", key, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		w.Close()
		return fmt.Errorf("cloud: copying blob %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("cloud: writing blob %s: %w", key, err)
	}
	return nil
}
