// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import (
	"fmt"
	"log"
)

// logTrace is the package's one trace sink, gated by each component's
// verbose option.
func logTrace(format string, args ...interface{}) {
	log.Printf(format, args...)
}

func blockOutOfOrderErr(lastEmitted, got uint32) error {
	return fmt.Errorf("sbx: expected block %d, got %d", lastEmitted+1, got)
}

func hashMismatchErr() error {
	return fmt.Errorf("sbx: recomputed sha-256 does not match HSH metadata")
}
