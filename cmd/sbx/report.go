// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/cosnicolaou/sbx"
	"github.com/cosnicolaou/sbx/index"
)

type reportFlags struct {
	CommonFlags
}

// report lists every container a scan has found, in the style of the
// original SeqBox recovery tool's report command: hex uid, block count,
// filesize (flagged when estimated from block count rather than an
// observed FSZ tag), and the recorded container name if any.
func report(ctx context.Context, values interface{}, args []string) error {
	store, err := index.Open(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	payloadSize := func(uid string) int {
		version, err := store.VersionForUID(uid)
		if err != nil {
			return 0
		}
		n, err := sbx.PayloadSizeForVersion(sbx.Version(version))
		if err != nil {
			return 0
		}
		return n
	}

	rows, err := store.Report(payloadSize)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("no containers recorded in this index")
		return nil
	}
	for _, r := range rows {
		size := fmt.Sprintf("%d", r.FileSize)
		if r.SizeEstimate {
			size = "~" + size
		}
		name := r.SbxName
		if name == "" {
			name = r.UID + ".sbx"
		}
		fmt.Printf("%-14s %6d blocks  %10s bytes  %s\n", r.UID, r.BlockCount, size, name)
	}
	return nil
}
