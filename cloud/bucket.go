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


// Package cloud reads pipeline inputs from and writes outputs to blob
// storage.
package cloud

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob" // registers gs://
	_ "gocloud.dev/blob/s3blob"  // registers s3://
)

// IsBlob returns whether the given path represents a blob
// (i.e., if it starts with `gs://`, `s3://`, or `file://`).
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// OpenBucket returns the blob storage bucket that holds path, together
// with the key of path within the bucket. path must be in the format
// 'provider://name/key'. The accepted providers are "file" for the
// local filesystem, where the bucket is the root directory and the key
// the absolute path without its leading slash, "gs" for Google Cloud
// Storage and "s3" for AWS S3. Credentials and the S3 region are taken
// from the environment.
func OpenBucket(ctx context.Context, path string) (*blob.Bucket, string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return nil, "", fmt.Errorf("cloud: parsing blob path: %w", err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	var b *blob.Bucket
	switch u.Scheme {
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return nil, "", fmt.Errorf("cloud: file blob %s must have an absolute path", path)
		}
		b, err = fileblob.OpenBucket("/", nil)
	case "gs", "s3":
		b, err = blob.OpenBucket(ctx, u.Scheme+"://"+u.Host)
	default:
		return nil, "", fmt.Errorf("cloud: invalid provider %q", u.Scheme)
	}
	if err != nil {
		return nil, "", fmt.Errorf("cloud: opening bucket for %s: %w", path, err)
	}
	return b, key, nil
}
