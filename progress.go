// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import "time"

// Progress is sent on a caller-supplied channel by Encoder, Decoder,
// Scanner, and Reconstructor so that a supervising tool can render a
// progress bar or decide to kill a stuck process. No cancellation
// protocol beyond process termination is defined; Progress exists purely
// for visibility.
type Progress struct {
	// Block is the most recently processed block number; for the scanner
	// it is the count of blocks recorded so far, and for the reconstructor
	// the count of blocks written for the container just finished.
	Block uint64
	// BytesProcessed is the number of source or container bytes consumed
	// so far.
	BytesProcessed int64
	// TotalBytes is the known total size of the operation's input, or 0
	// if unknown (e.g. reading from stdin).
	TotalBytes int64
	// Duration is the wall-clock time spent on the most recent unit of
	// work, if the caller wants per-block timing.
	Duration time.Duration
	// Done is set on the final Progress value sent before the channel is
	// closed.
	Done bool
}
