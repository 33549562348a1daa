// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	cerrors "cloudeng.io/errors"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cosnicolaou/sbx/index"
)

// Selector picks which containers Recover should emit. All takes
// precedence over the name-based fields when set.
type Selector struct {
	All       bool
	UIDs      []string
	SbxNames  []string
	Filenames []string
}

// ResolveSelector turns sel into the list of UID hex strings it names,
// resolving filenames and container names through the index's meta
// relation. It returns NothingToRecover if sel names something with no
// matching block records at all.
func ResolveSelector(store *index.Store, sel Selector) ([]string, error) {
	if sel.All {
		uids, err := store.ListUIDs()
		if err != nil {
			return nil, &Error{Kind: IndexIoError, Offset: -1, Err: err}
		}
		if len(uids) == 0 {
			return nil, &Error{Kind: NothingToRecover, Offset: -1, Err: fmt.Errorf("sbx: index has no recorded uids")}
		}
		return uids, nil
	}

	var out []string
	var missing []string
	for _, uid := range sel.UIDs {
		blocks, err := store.BlocksForUID(uid)
		if err != nil {
			return nil, &Error{Kind: IndexIoError, Offset: -1, Err: err}
		}
		if len(blocks) == 0 {
			missing = append(missing, uid)
			continue
		}
		out = append(out, uid)
	}
	for _, name := range sel.Filenames {
		uid, ok, err := store.ResolveByFilename(name)
		if err != nil {
			return nil, &Error{Kind: IndexIoError, Offset: -1, Err: err}
		}
		if !ok {
			missing = append(missing, name)
			continue
		}
		out = append(out, uid)
	}
	for _, name := range sel.SbxNames {
		uid, ok, err := store.ResolveBySbxName(name)
		if err != nil {
			return nil, &Error{Kind: IndexIoError, Offset: -1, Err: err}
		}
		if !ok {
			missing = append(missing, name)
			continue
		}
		out = append(out, uid)
	}
	if len(missing) > 0 {
		return nil, &Error{Kind: NothingToRecover, Offset: -1, Err: fmt.Errorf("sbx: no block records for %v", missing)}
	}
	if len(out) == 0 {
		return nil, &Error{Kind: NothingToRecover, Offset: -1, Err: fmt.Errorf("sbx: selector matched nothing")}
	}
	return out, nil
}

type recoverOpts struct {
	fill        bool
	overwrite   bool
	password    string
	progressCh  chan<- Progress
	handleCache int
}

// RecoverOption configures a Recover call.
type RecoverOption func(*recoverOpts)

// Fill enables synthesizing all-zero placeholder blocks for gaps in a
// recovered container's block numbers.
func Fill() RecoverOption { return func(o *recoverOpts) { o.fill = true } }

// RecoverOverwrite allows Recover to replace an existing output file
// instead of disambiguating its name with a "(1)", "(2)", ... suffix.
func RecoverOverwrite() RecoverOption { return func(o *recoverOpts) { o.overwrite = true } }

// RecoverPassword supplies the password needed to whiten synthesized
// gap-fill blocks identically to the rest of a whitened container.
func RecoverPassword(password string) RecoverOption {
	return func(o *recoverOpts) { o.password = password }
}

// RecoverSendUpdates sets the channel Recover reports Progress on. Closed
// by Recover before it returns.
func RecoverSendUpdates(ch chan<- Progress) RecoverOption {
	return func(o *recoverOpts) { o.progressCh = ch }
}

// RecoverHandleCacheSize bounds how many source files Recover keeps open
// concurrently; least-recently-used sources are closed to make room. The
// default is 16.
func RecoverHandleCacheSize(n int) RecoverOption {
	return func(o *recoverOpts) { o.handleCache = n }
}

// RecoverResult summarizes one recovered (or failed) container.
type RecoverResult struct {
	UID           string
	OutputPath    string
	BlocksWritten int
	MissingBlocks int
	// Err aggregates everything that went wrong for this UID. An empty
	// OutputPath alongside a non-nil Err means no output was produced at
	// all.
	Err error
}

// Recover reconstructs one .sbx container per UID selected by sel,
// reading raw blocks back from the sources recorded in store's index and
// writing each one to destDir in block-number order. It writes the
// original on-wire bytes untouched: CRCs, whitening, and wear all carry
// over unchanged. A failure on a UID's first block is fatal for that UID
// alone; every other error is collected into that UID's RecoverResult so
// a single bad container does not abort the whole run.
func Recover(store *index.Store, destDir string, sel Selector, opts ...RecoverOption) ([]RecoverResult, error) {
	o := recoverOpts{handleCache: 16}
	for _, fn := range opts {
		fn(&o)
	}
	if o.progressCh != nil {
		defer close(o.progressCh)
	}

	uids, err := ResolveSelector(store, sel)
	if err != nil {
		return nil, err
	}

	cache, err := lru.NewWithEvict[string, *Source](o.handleCache, func(_ string, s *Source) { s.Close() })
	if err != nil {
		return nil, fmt.Errorf("sbx: create handle cache: %w", err)
	}
	defer func() {
		for _, key := range cache.Keys() {
			if s, ok := cache.Peek(key); ok {
				s.Close()
			}
		}
	}()
	openSource := func(path string) (*Source, error) {
		if s, ok := cache.Get(path); ok {
			return s, nil
		}
		s, err := OpenSource(path)
		if err != nil {
			return nil, err
		}
		cache.Add(path, s)
		return s, nil
	}

	results := make([]RecoverResult, 0, len(uids))
	for _, uid := range uids {
		r := recoverOne(store, openSource, destDir, uid, o)
		results = append(results, r)
		if o.progressCh != nil {
			o.progressCh <- Progress{Block: uint64(r.BlocksWritten)}
		}
	}
	if o.progressCh != nil {
		o.progressCh <- Progress{Done: true}
	}
	return results, nil
}

func recoverOne(store *index.Store, openSource func(string) (*Source, error), destDir, uid string, o recoverOpts) RecoverResult {
	result := RecoverResult{UID: uid}

	versionNum, err := store.VersionForUID(uid)
	if err != nil {
		result.Err = &Error{Kind: IndexIoError, Offset: -1, Err: err}
		return result
	}
	version := Version(versionNum)

	blocks, err := store.BlocksForUID(uid)
	if err != nil {
		result.Err = &Error{Kind: IndexIoError, Offset: -1, Err: err}
		return result
	}
	if len(blocks) == 0 {
		result.Err = &Error{Kind: NothingToRecover, Offset: -1, Err: fmt.Errorf("sbx: no blocks recorded for %s", uid)}
		return result
	}

	uidBytes, err := uidFromHex(uid)
	if err != nil {
		result.Err = err
		return result
	}
	codec, err := NewCodec(version, uidBytes, o.password)
	if err != nil {
		result.Err = err
		return result
	}

	meta, err := store.MetaForUID(uid)
	if err != nil {
		result.Err = &Error{Kind: IndexIoError, Offset: -1, Err: err}
		return result
	}
	outputPath, err := outputPathFor(destDir, uid, meta, o.overwrite)
	if err != nil {
		result.Err = err
		return result
	}

	out, err := os.Create(outputPath)
	if err != nil {
		result.Err = &Error{Kind: SourceIoError, Offset: -1, Err: err}
		return result
	}
	defer out.Close()
	result.OutputPath = outputPath

	blockSize := codec.BlockSize()
	buf := make([]byte, blockSize)
	lastEmitted := int64(-1)

	writeRaw := func(path string, offset int64) error {
		src, err := openSource(path)
		if err != nil {
			return err
		}
		n, err := src.ReadAt(buf, offset)
		if n != blockSize {
			return &Error{Kind: SourceIoError, Offset: offset, Err: err}
		}
		_, werr := out.Write(buf)
		return werr
	}

	errs := &cerrors.M{}
	for _, b := range blocks {
		for gap := lastEmitted + 1; gap < int64(b.BlockNumber); gap++ {
			if gap == 0 {
				continue // a zero-metadata block 0 is worse than no block 0.
			}
			result.MissingBlocks++
			if !o.fill {
				continue
			}
			zero := make([]byte, codec.PayloadSize())
			fillBlock, err := codec.Encode(uint32(gap), zero, nil)
			if err != nil {
				result.Err = err
				return result
			}
			if _, err := out.Write(fillBlock); err != nil {
				result.Err = &Error{Kind: SourceIoError, Offset: -1, Err: err}
				return result
			}
			result.BlocksWritten++
		}

		if err := writeRaw(b.SourcePath, b.Offset); err != nil {
			if result.BlocksWritten == 0 {
				out.Close()
				os.Remove(outputPath)
				result.OutputPath = ""
				result.Err = err
				return result
			}
			errs.Append(err)
			continue
		}
		result.BlocksWritten++
		lastEmitted = int64(b.BlockNumber)
	}

	result.Err = errs.Err()
	return result
}

// outputPathFor determines where a recovered container is written: the
// recovered SNM name if one was observed, else "<hex-uid>.sbx"; when not
// overwriting, a "(1)", "(2)", ... suffix is added until the path is free.
func outputPathFor(destDir, uid string, meta *index.MetaRecord, overwrite bool) (string, error) {
	name := uid + ".sbx"
	if meta != nil && meta.SbxName != "" {
		name = meta.SbxName
	}
	path := filepath.Join(destDir, name)
	if overwrite {
		return path, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	for i := 1; ; i++ {
		candidate := filepath.Join(destDir, fmt.Sprintf("%s(%d)%s", base, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
}

func uidFromHex(s string) (UID, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != UIDSize {
		return UID{}, fmt.Errorf("sbx: malformed uid %q", s)
	}
	var u UID
	copy(u[:], b)
	return u, nil
}
