// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloudeng.io/cmdutil"
	"github.com/cosnicolaou/sbx"
	"github.com/schollz/progressbar/v2"
)

type encodeFlags struct {
	CommonFlags
	Version      int    `subcmd:"version,1,'container version: 1 (512B blocks), 2 (128B), or 3 (4096B)'"`
	UID          string `subcmd:"uid,,'hex UID to use instead of a random one'"`
	Password     string `subcmd:"password,,'whiten blocks with this password'"`
	NoMetadata   bool   `subcmd:"no-metadata,false,omit block 0 entirely"`
	Overwrite    bool   `subcmd:"overwrite,false,replace an existing container path"`
	Progress     bool   `subcmd:"progress,true,display a progress bar"`
	OutputSuffix string `subcmd:"output-suffix,.sbx,'suffix used to derive the container path from the source path'"`
}

func encode(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*encodeFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	srcPath := args[0]
	dstPath := srcPath + cl.OutputSuffix
	if !cl.Overwrite && existsRemoteOrLocal(ctx, dstPath) {
		return &sbx.Error{Kind: sbx.TargetExists, Offset: -1, Err: fmt.Errorf("%s already exists", dstPath)}
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return err
	}

	var uid sbx.UID
	if cl.UID != "" {
		b, err := parseHexUID(cl.UID)
		if err != nil {
			return err
		}
		uid = b
	} else {
		uid, err = sbx.NewUID()
		if err != nil {
			return err
		}
	}

	codec, err := sbx.NewCodec(sbx.Version(cl.Version), uid, cl.Password)
	if err != nil {
		return err
	}

	dst, writerCleanup, err := createFile(ctx, dstPath)
	if err != nil {
		return err
	}
	defer writerCleanup(ctx)

	var meta *sbx.Metadata
	var encOpts []sbx.EncoderOption
	if cl.NoMetadata {
		encOpts = append(encOpts, sbx.OmitMetadata())
	} else {
		meta = &sbx.Metadata{}
		meta.Filename, meta.HasFilename = filepath.Base(srcPath), true
		meta.SbxFilename, meta.HasSbxName = filepath.Base(dstPath), true
		meta.FileDate, meta.HasFileDate = info.ModTime().Unix(), true
		meta.SbxDate, meta.HasSbxDate = time.Now().Unix(), true
	}

	if cl.Progress {
		ch := make(chan sbx.Progress, 8)
		encOpts = append(encOpts, sbx.EncoderSendUpdates(ch))
		bar := progressbar.NewOptions64(info.Size(),
			progressbar.OptionSetBytes64(info.Size()),
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

	result, err := sbx.Encode(dst, src, codec, meta, encOpts...)
	if err != nil {
		return err
	}
	if cl.Progress {
		fmt.Println()
	}
	fmt.Printf("%s: %d blocks, %d bytes (%.1f%% overhead), uid %s\n",
		dstPath, result.BlocksWritten, result.OutputSize, result.OverheadPercent, uid)
	return nil
}

func parseHexUID(s string) (sbx.UID, error) {
	var u sbx.UID
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(u) {
		return u, fmt.Errorf("uid %q must be %d hex characters", s, len(u)*2)
	}
	copy(u[:], b)
	return u, nil
}

// drainProgress forwards Progress values to fn until ch is closed; it is
// the single-reader counterpart to the several components' Progress
// channels.
func drainProgress(ch <-chan sbx.Progress, fn func(sbx.Progress)) {
	for p := range ch {
		fn(p)
	}
}
