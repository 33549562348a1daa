// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import (
	"fmt"
	"io"
	"os"
)

// Source is a raw scan/recovery input: a regular file or a block device,
// opened once and then read at arbitrary offsets for the lifetime of a
// scan or reconstruction run. Sizing a block device requires seeking to
// its end rather than calling Stat, since device files commonly report a
// size of zero from stat(2).
type Source struct {
	Path string
	f    *os.File
	size int64
}

// OpenSource opens path for reading and determines its size by seeking to
// its end, which works uniformly for regular files and block devices.
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: SourceIoError, Offset: -1, Err: err}
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, &Error{Kind: SourceIoError, Offset: -1, Err: err}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, &Error{Kind: SourceIoError, Offset: -1, Err: err}
	}
	return &Source{Path: path, f: f, size: size}, nil
}

// Size returns the source's byte length as measured at open time.
func (s *Source) Size() int64 { return s.size }

// ReadAt implements io.ReaderAt so multiple readers of the same Source can
// be used without racing the shared seek offset — callers that also use
// Close must still coordinate their own access, since *os.File itself
// serializes ReadAt calls but Close invalidates them all.
func (s *Source) ReadAt(buf []byte, offset int64) (int, error) {
	return s.f.ReadAt(buf, offset)
}

// Close releases the underlying file handle. It is safe to call multiple
// times.
func (s *Source) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *Source) String() string {
	return fmt.Sprintf("%s (%d bytes)", s.Path, s.size)
}

// OpenSources opens every path in paths, closing any already-opened
// sources if a later one fails, so no handle is ever leaked on a partial
// failure.
func OpenSources(paths []string) ([]*Source, error) {
	sources := make([]*Source, 0, len(paths))
	for _, p := range paths {
		s, err := OpenSource(p)
		if err != nil {
			CloseSources(sources)
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// CloseSources closes every source, collecting but not stopping on
// individual close errors.
func CloseSources(sources []*Source) error {
	var errs []error
	for _, s := range sources {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("sbx: closing sources: %v", errs)
}
