// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import (
	"bytes"
	"crypto/sha256"
	"io"

	cerrors "cloudeng.io/errors"
)

type decoderOpts struct {
	continueOnError bool
	testOnly        bool
	progressCh      chan<- Progress
	verbose         bool
}

// DecoderOption configures a Decode call.
type DecoderOption func(*decoderOpts)

// ContinueOnError makes Decode accumulate warnings instead of aborting on
// the first BlocksOutOfOrder or block-decode error.
func ContinueOnError() DecoderOption {
	return func(o *decoderOpts) { o.continueOnError = true }
}

// TestOnly makes Decode verify a container (CRCs, hash, ordering) without
// writing any output bytes.
func TestOnly() DecoderOption {
	return func(o *decoderOpts) { o.testOnly = true }
}

// DecoderSendUpdates sets the channel Decode reports Progress on. Closed
// by Decode before it returns.
func DecoderSendUpdates(ch chan<- Progress) DecoderOption {
	return func(o *decoderOpts) { o.progressCh = ch }
}

// DecoderVerbose turns on trace logging of each block processed.
func DecoderVerbose(v bool) DecoderOption {
	return func(o *decoderOpts) { o.verbose = v }
}

// DecodeResult summarizes a completed Decode call.
type DecodeResult struct {
	Metadata      *Metadata
	BlocksRead    int
	MissingBlocks int
	BytesWritten  int64
	HashVerified  bool
	// TrailingPaddingHint is an informational best-effort count of
	// trailing Padding bytes within the last four bytes of the last
	// payload, populated only when neither FSZ nor HSH was present to
	// determine the real EOF.
	TrailingPaddingHint int
}

// Decode reads a container from src block by block until EOF (a short
// final read ends the stream) and writes the reconstructed file
// to dst, or verifies the container only if dst is nil. codec must already
// be configured with the container's version and password, if any.
func Decode(dst io.Writer, src io.Reader, codec *Codec, opts ...DecoderOption) (DecodeResult, error) {
	o := decoderOpts{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.progressCh != nil {
		defer close(o.progressCh)
	}
	if o.testOnly {
		dst = nil
	}

	var (
		result      DecodeResult
		lastEmitted uint32
		sawMeta     bool
		haveFSZ     bool
		targetSize  uint64
		written     uint64
		hasher      = sha256.New()
		blockSize   = codec.BlockSize()
		buf         = make([]byte, blockSize)
		warnings    = &cerrors.M{}
		lastPayload []byte
	)

	for {
		n, readErr := io.ReadFull(src, buf)
		if readErr == io.EOF {
			break
		}
		if readErr == io.ErrUnexpectedEOF {
			break // a short final read terminates the stream.
		}
		if readErr != nil {
			return result, &Error{Kind: SourceIoError, Offset: -1, Err: readErr}
		}
		result.BlocksRead++

		decoded, err := codec.Decode(buf[:n])
		if err != nil {
			if o.continueOnError {
				warnings.Append(err)
				continue
			}
			return result, err
		}

		if decoded.BlockNumber == 0 {
			if !sawMeta {
				sawMeta = true
				result.Metadata = decoded.Metadata
				if decoded.Metadata.HasFileSize {
					haveFSZ = true
					targetSize = decoded.Metadata.FileSize
				}
			}
			if o.verbose {
				logTrace("sbx: decoded metadata block")
			}
			continue
		}

		if decoded.BlockNumber != lastEmitted+1 {
			outOfOrder := &Error{Kind: BlocksOutOfOrder, Offset: -1, Err: blockOutOfOrderErr(lastEmitted, decoded.BlockNumber)}
			if !o.continueOnError {
				return result, outOfOrder
			}
			warnings.Append(outOfOrder)
			if decoded.BlockNumber <= lastEmitted {
				// a duplicate or regressed block carries nothing new.
				continue
			}
			result.MissingBlocks += int(decoded.BlockNumber-lastEmitted) - 1
		}
		lastEmitted = decoded.BlockNumber

		payload := decoded.Payload
		if haveFSZ {
			remaining := int64(targetSize) - int64(written)
			if remaining <= 0 {
				payload = nil
			} else if int64(len(payload)) > remaining {
				payload = payload[:remaining]
			}
		}
		lastPayload = decoded.Payload

		if len(payload) > 0 {
			written += uint64(len(payload))
			hasher.Write(payload)
			if dst != nil {
				if _, err := dst.Write(payload); err != nil {
					return result, &Error{Kind: SourceIoError, Offset: -1, Err: err}
				}
			}
		}

		if o.progressCh != nil {
			o.progressCh <- Progress{Block: uint64(decoded.BlockNumber), BytesProcessed: int64(written)}
		}
	}

	result.BytesWritten = int64(written)

	if result.Metadata != nil && result.Metadata.HasHash {
		sum := hasher.Sum(nil)
		if !bytes.Equal(sum, result.Metadata.Hash) {
			return result, &Error{Kind: HashMismatch, Offset: -1, Err: hashMismatchErr()}
		}
		result.HashVerified = true
	} else if !haveFSZ && len(lastPayload) >= 4 {
		tail := lastPayload[len(lastPayload)-4:]
		for i := len(tail) - 1; i >= 0 && tail[i] == Padding; i-- {
			result.TrailingPaddingHint++
		}
	}

	if o.progressCh != nil {
		o.progressCh <- Progress{Block: uint64(lastEmitted), BytesProcessed: int64(written), Done: true}
	}

	if warnings.Err() != nil {
		return result, warnings.Err()
	}
	return result, nil
}
