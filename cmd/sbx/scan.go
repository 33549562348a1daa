// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"cloudeng.io/cmdutil"
	"cloudeng.io/errors"
	"github.com/cosnicolaou/sbx"
	"github.com/cosnicolaou/sbx/index"
	"github.com/schollz/progressbar/v2"
)

type scanFlags struct {
	CommonFlags
	Index    string `subcmd:"index,scan.sbxidx,path of the index database to create or append to"`
	Offset   int64  `subcmd:"offset,0,byte offset to start scanning each source at"`
	Step     int64  `subcmd:"step,0,byte stride between probe positions; 0 means the version's block size"`
	Version  int    `subcmd:"version,1,container version to scan for"`
	Password string `subcmd:"password,,password used to find whitened blocks"`
	Progress bool   `subcmd:"progress,true,display a progress bar per source"`
}

func scan(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	cmdutil.HandleSignals(cancel, os.Interrupt)
	cl := values.(*scanFlags)

	sources, err := sbx.OpenSources(args)
	if err != nil {
		return err
	}
	defer sbx.CloseSources(sources)

	store, err := index.Open(cl.Index)
	if err != nil {
		return err
	}
	defer store.Close()

	var scanOpts []sbx.ScanOption
	if cl.Offset != 0 {
		scanOpts = append(scanOpts, sbx.ScanOffset(cl.Offset))
	}
	if cl.Step != 0 {
		scanOpts = append(scanOpts, sbx.ScanStep(cl.Step))
	}
	if cl.Password != "" {
		scanOpts = append(scanOpts, sbx.ScanPassword(cl.Password))
	}
	if cl.Verbose {
		scanOpts = append(scanOpts, sbx.ScanVerbose(true))
	}

	var totalSize int64
	for _, s := range sources {
		totalSize += s.Size()
	}
	if cl.Progress {
		ch := make(chan sbx.Progress, 8)
		scanOpts = append(scanOpts, sbx.ScanSendUpdates(ch))
		bar := progressbar.NewOptions64(totalSize,
			progressbar.OptionSetBytes64(totalSize),
			progressbar.OptionSetWriter(progressWriter()))
		bar.RenderBlank()
		var last int64
		go drainProgress(ch, func(p sbx.Progress) {
			if p.BytesProcessed <= last {
				return
			}
			bar.Add(int(p.BytesProcessed - last))
			last = p.BytesProcessed
		})
	}

	stats, err := sbx.Scan(sources, sbx.Version(cl.Version), store, scanOpts...)
	errs := &errors.M{}
	errs.Append(err)
	if cl.Progress {
		fmt.Println()
	}
	fmt.Printf("scanned %d sources, %d candidates, %d blocks recorded (%d metadata blocks)\n",
		stats.SourcesScanned, stats.CandidatesFound, stats.BlocksRecorded, stats.MetadataBlocks)
	return errs.Err()
}
