// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import (
	"crypto/sha256"
	"io"
)

type encoderOpts struct {
	omitMetadata bool
	progressCh   chan<- Progress
	precomputed  []byte // caller-supplied SHA-256, skips the hashing pass
}

// EncoderOption configures an Encoder.
type EncoderOption func(*encoderOpts)

// OmitMetadata skips writing block 0 entirely.
func OmitMetadata() EncoderOption {
	return func(o *encoderOpts) { o.omitMetadata = true }
}

// EncoderSendUpdates sets the channel Encode reports Progress on. The
// channel is closed by Encode before it returns.
func EncoderSendUpdates(ch chan<- Progress) EncoderOption {
	return func(o *encoderOpts) { o.progressCh = ch }
}

// EncoderPrecomputedHash supplies an already-computed SHA-256 digest of
// the source, so Encode does not need to make its own hashing pass over
// it before writing blocks.
func EncoderPrecomputedHash(digest []byte) EncoderOption {
	return func(o *encoderOpts) { o.precomputed = digest }
}

// EncodeResult summarizes a completed Encode call.
type EncodeResult struct {
	// BlocksWritten counts data blocks; the metadata block, when present,
	// shows up in OutputSize only.
	BlocksWritten   int
	OutputSize      int64
	OriginalSize    int64
	OverheadPercent float64
}

// Encode streams src into a sequence of blocks written to dst using codec.
// src must support Seek so that Encode can make a clean hashing pass over
// it before emitting any blocks; meta, if non-nil, carries caller-supplied
// fields (FNM, SNM, FDT, SDT) that are merged with the computed FSZ/HSH.
func Encode(dst io.Writer, src io.ReadSeeker, codec *Codec, meta *Metadata, opts ...EncoderOption) (EncodeResult, error) {
	o := encoderOpts{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.progressCh != nil {
		defer close(o.progressCh)
	}

	originalSize, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return EncodeResult{}, &Error{Kind: SourceIoError, Offset: -1, Err: err}
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return EncodeResult{}, &Error{Kind: SourceIoError, Offset: -1, Err: err}
	}

	if !o.omitMetadata {
		if meta == nil {
			meta = &Metadata{}
		}
		meta.SetFileSize(uint64(originalSize))
		digest := o.precomputed
		if digest == nil {
			h := sha256.New()
			if _, err := io.Copy(h, src); err != nil {
				return EncodeResult{}, &Error{Kind: SourceIoError, Offset: -1, Err: err}
			}
			digest = h.Sum(nil)
			if _, err := src.Seek(0, io.SeekStart); err != nil {
				return EncodeResult{}, &Error{Kind: SourceIoError, Offset: -1, Err: err}
			}
		}
		meta.SetHash(digest)

		block0, err := codec.Encode(0, nil, meta)
		if err != nil {
			return EncodeResult{}, err
		}
		if _, err := dst.Write(block0); err != nil {
			return EncodeResult{}, &Error{Kind: SourceIoError, Offset: -1, Err: err}
		}
	}

	payloadSize := codec.PayloadSize()
	buf := make([]byte, payloadSize)
	var blockNumber uint32
	var written int64
	for {
		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			blockNumber++
			payload := buf[:n]
			if n < payloadSize {
				padded := make([]byte, payloadSize)
				copy(padded, payload)
				for i := n; i < payloadSize; i++ {
					padded[i] = Padding
				}
				payload = padded
			}
			block, err := codec.Encode(blockNumber, payload, nil)
			if err != nil {
				return EncodeResult{}, err
			}
			if _, err := dst.Write(block); err != nil {
				return EncodeResult{}, &Error{Kind: SourceIoError, Offset: -1, Err: err}
			}
			written += int64(codec.BlockSize())
			if o.progressCh != nil {
				o.progressCh <- Progress{Block: uint64(blockNumber), BytesProcessed: int64(blockNumber) * int64(payloadSize), TotalBytes: originalSize}
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return EncodeResult{}, &Error{Kind: SourceIoError, Offset: -1, Err: readErr}
		}
	}

	if !o.omitMetadata {
		written += int64(codec.BlockSize())
	}
	result := EncodeResult{
		BlocksWritten: int(blockNumber),
		OutputSize:    written,
		OriginalSize:  originalSize,
	}
	if originalSize > 0 {
		result.OverheadPercent = float64(written-originalSize) / float64(originalSize) * 100
	}
	if o.progressCh != nil {
		o.progressCh <- Progress{Block: uint64(blockNumber), BytesProcessed: written, TotalBytes: originalSize, Done: true}
	}
	return result, nil
}
