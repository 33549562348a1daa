// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"golang.org/x/crypto/ssh/terminal"
)

// progressWriter returns stdout when it's a terminal, else stderr, so a
// progress bar never corrupts redirected stdout output.
func progressWriter() *os.File {
	if terminal.IsTerminal(int(os.Stdout.Fd())) {
		return os.Stdout
	}
	return os.Stderr
}
