// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/grailbio/base/file"
)

// openFileOrURL opens name for reading, where name may be a local path, an
// S3 path (s3://bucket/key, via the "s3" file.Implementation registered in
// main's init), or an http(s) URL. It returns the source's size when known
// (-1 for an http response without a Content-Length) and a cleanup func
// that must be called once reading is done.
func openFileOrURL(ctx context.Context, name string) (io.Reader, int64, func(context.Context) error, error) {
	if strings.HasPrefix(name, "http") {
		resp, err := http.Get(name)
		if err != nil {
			return nil, 0, nil, err
		}
		return resp.Body, resp.ContentLength, func(context.Context) error {
			return resp.Body.Close()
		}, nil
	}
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	return f.Reader(ctx), info.Size(), f.Close, nil
}

// createFile opens name for writing, local or S3; an empty name writes to
// stdout.
func createFile(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	if len(name) == 0 {
		return os.Stdout, func(context.Context) error { return nil }, nil
	}
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), f.Close, nil
}

// existsRemoteOrLocal reports whether name already exists, local or S3.
func existsRemoteOrLocal(ctx context.Context, name string) bool {
	_, err := file.Stat(ctx, name)
	return err == nil
}

// rewindHeader reassembles a reader that yields header followed by the
// remainder of src, for sources that can't be seeked back to the start
// after a magic-sniffing peek.
func rewindHeader(header []byte, src io.Reader) io.Reader {
	return io.MultiReader(bytes.NewReader(header), src)
}
