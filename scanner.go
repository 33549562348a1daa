// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import (
	"bytes"
	"sort"

	"github.com/cosnicolaou/sbx/index"
)

type scanOpts struct {
	step       int64
	offset     int64
	password   string
	verbose    bool
	progressCh chan<- Progress
}

// ScanOption configures a Scan call.
type ScanOption func(*scanOpts)

// ScanStep sets the byte stride the scanner probes at. The default is the
// configured version's block size, which finds every well-aligned block;
// a smaller step finds misaligned blocks left by filesystem fragmentation
// at the cost of proportionally more reads.
func ScanStep(step int64) ScanOption {
	return func(o *scanOpts) { o.step = step }
}

// ScanOffset sets the byte offset each source is first probed at.
func ScanOffset(offset int64) ScanOption {
	return func(o *scanOpts) { o.offset = offset }
}

// ScanPassword configures the scanner to look for whitened blocks
// produced with this password.
func ScanPassword(password string) ScanOption {
	return func(o *scanOpts) { o.password = password }
}

// ScanVerbose turns on trace logging of each candidate block examined.
func ScanVerbose(v bool) ScanOption {
	return func(o *scanOpts) { o.verbose = v }
}

// ScanSendUpdates sets the channel Scan reports Progress on. Closed by
// Scan before it returns.
func ScanSendUpdates(ch chan<- Progress) ScanOption {
	return func(o *scanOpts) { o.progressCh = ch }
}

// ScanStats summarizes a completed Scan call.
type ScanStats struct {
	SourcesScanned  int
	CandidatesFound int
	BlocksRecorded  int
	MetadataBlocks  int
}

// Scan probes every source for blocks of version, recording every one it
// finds into store. Sources are visited in ascending size order so that
// fast media populate the index before slow full-device reads begin, per
// the format's recovery design. A decode failure on a single candidate
// block is not fatal: the scanner simply keeps looking, since unrelated
// data on raw media commonly produces four-byte magic collisions.
func Scan(sources []*Source, version Version, store *index.Store, opts ...ScanOption) (ScanStats, error) {
	o := scanOpts{}
	for _, fn := range opts {
		fn(&o)
	}

	probeCodec, err := NewCodec(version, UID{}, o.password)
	if err != nil {
		return ScanStats{}, err
	}
	blockSize := int64(probeCodec.BlockSize())
	if o.step == 0 {
		o.step = blockSize
	}
	magic := probeCodec.ProbeMagic()

	ordered := make([]*Source, len(sources))
	copy(ordered, sources)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Size() < ordered[j].Size() })

	if o.progressCh != nil {
		defer close(o.progressCh)
	}

	var totalBytes int64
	for _, src := range ordered {
		totalBytes += src.Size()
	}

	var stats ScanStats
	var scannedBefore int64
	buf := make([]byte, blockSize)
	for _, src := range ordered {
		stats.SourcesScanned++
		sourceID, err := store.InsertSource(src.Path)
		if err != nil {
			return stats, &Error{Kind: IndexIoError, Offset: -1, Err: err}
		}

		for p := o.offset; p+blockSize <= src.Size(); p += o.step {
			n, _ := src.ReadAt(buf, p)
			if n < int(blockSize) {
				break
			}
			stats.CandidatesFound++
			if o.progressCh != nil && stats.CandidatesFound%1024 == 0 {
				o.progressCh <- Progress{Block: uint64(stats.BlocksRecorded), BytesProcessed: scannedBefore + p, TotalBytes: totalBytes}
			}

			if !bytes.Equal(buf[:4], magic[:]) {
				continue
			}
			if o.verbose {
				logTrace("sbx: candidate magic at %s:%d", src.Path, p)
			}

			decoded, decErr := probeCodec.Decode(buf)
			if decErr != nil {
				continue
			}

			uidHex := decoded.UID.String()
			if err := store.InsertUID(uidHex, int(version)); err != nil {
				return stats, &Error{Kind: IndexIoError, Offset: p, Err: err}
			}
			if err := store.InsertBlock(uidHex, decoded.BlockNumber, sourceID, p); err != nil {
				return stats, &Error{Kind: IndexIoError, Offset: p, Err: err}
			}
			stats.BlocksRecorded++

			if decoded.IsMetadata() {
				stats.MetadataBlocks++
				m := decoded.Metadata
				rec := index.MetaRecord{
					UID: uidHex, FileSize: -1, FileDatetime: -1, SbxDatetime: -1, SourceID: sourceID,
				}
				if m.HasFileSize {
					rec.FileSize = int64(m.FileSize)
				}
				if m.HasFilename {
					rec.Filename = m.Filename
				}
				if m.HasSbxName {
					rec.SbxName = m.SbxFilename
				}
				if m.HasFileDate {
					rec.FileDatetime = m.FileDate
				}
				if m.HasSbxDate {
					rec.SbxDatetime = m.SbxDate
				}
				if err := store.InsertMeta(rec); err != nil {
					return stats, &Error{Kind: IndexIoError, Offset: p, Err: err}
				}
			}

			if err := store.MaybeCommit(); err != nil {
				return stats, &Error{Kind: IndexIoError, Offset: p, Err: err}
			}
			if o.progressCh != nil {
				o.progressCh <- Progress{Block: uint64(stats.BlocksRecorded), BytesProcessed: scannedBefore + p, TotalBytes: totalBytes}
			}
		}
		scannedBefore += src.Size()
	}

	if err := store.Commit(); err != nil {
		return stats, &Error{Kind: IndexIoError, Offset: -1, Err: err}
	}
	if o.progressCh != nil {
		o.progressCh <- Progress{Done: true}
	}
	return stats, nil
}
