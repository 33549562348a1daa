// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloudeng.io/cmdutil"
	"github.com/cosnicolaou/sbx"
)

type decodeFlags struct {
	CommonFlags
	Password  string `subcmd:"password,,password the container was whitened with"`
	TestOnly  bool   `subcmd:"test-only,false,verify the container without writing any output"`
	InfoOnly  bool   `subcmd:"info-only,false,print the container metadata and exit"`
	Continue  bool   `subcmd:"continue,false,keep going past decode errors instead of aborting"`
	Overwrite bool   `subcmd:"overwrite,false,replace an existing output path"`
	Output    string `subcmd:"output,,'output file path, defaults to stripping the source .sbx suffix'"`
}

func decode(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*decodeFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	srcPath := args[0]
	rd, _, readerCleanup, err := openFileOrURL(ctx, srcPath)
	if err != nil {
		return err
	}
	defer readerCleanup(ctx)

	var header [4]byte
	if _, err := io.ReadFull(rd, header[:]); err != nil {
		return &sbx.Error{Kind: sbx.NotASeqBoxFile, Offset: -1, Err: fmt.Errorf("%s: %w", srcPath, err)}
	}
	version, err := sbx.ContainerVersion(header[:], cl.Password)
	if err != nil {
		return fmt.Errorf("%s: %w", srcPath, err)
	}
	src := rewindHeader(header[:], rd)

	codec, err := sbx.NewCodec(version, sbx.UID{}, cl.Password)
	if err != nil {
		return err
	}

	var decOpts []sbx.DecoderOption
	if cl.Continue {
		decOpts = append(decOpts, sbx.ContinueOnError())
	}
	if cl.Verbose {
		decOpts = append(decOpts, sbx.DecoderVerbose(true))
	}

	var dst io.Writer
	if cl.TestOnly || cl.InfoOnly {
		decOpts = append(decOpts, sbx.TestOnly())
	} else {
		outputPath := cl.Output
		if outputPath == "" {
			outputPath = stripSuffix(srcPath, ".sbx")
		}
		if !cl.Overwrite && existsRemoteOrLocal(ctx, outputPath) {
			return &sbx.Error{Kind: sbx.TargetExists, Offset: -1, Err: fmt.Errorf("%s already exists", outputPath)}
		}
		wr, writerCleanup, err := createFile(ctx, outputPath)
		if err != nil {
			return err
		}
		defer writerCleanup(ctx)
		dst = wr
	}

	result, err := sbx.Decode(dst, src, codec, decOpts...)
	if err != nil {
		return err
	}

	if cl.InfoOnly {
		printMetadata(srcPath, result.Metadata)
		return nil
	}
	if result.Metadata != nil && result.Metadata.HasHash {
		fmt.Printf("%s: sha-256 verified\n", srcPath)
	}
	if result.MissingBlocks > 0 {
		fmt.Printf("%s: %d missing blocks\n", srcPath, result.MissingBlocks)
	}
	fmt.Printf("%s: %d blocks, %d bytes written\n", srcPath, result.BlocksRead, result.BytesWritten)
	return nil
}

func printMetadata(path string, m *sbx.Metadata) {
	if m == nil {
		fmt.Printf("%s: no metadata block\n", path)
		return
	}
	if m.HasFilename {
		fmt.Printf("  filename: %s\n", m.Filename)
	}
	if m.HasSbxName {
		fmt.Printf("  sbx name: %s\n", m.SbxFilename)
	}
	if m.HasFileSize {
		fmt.Printf("  filesize: %d\n", m.FileSize)
	}
	if m.HasFileDate {
		fmt.Printf("  file date: %s\n", time.Unix(m.FileDate, 0).UTC().Format(time.RFC3339))
	}
	if m.HasSbxDate {
		fmt.Printf("  sbx date:  %s\n", time.Unix(m.SbxDate, 0).UTC().Format(time.RFC3339))
	}
	if m.HasHash {
		fmt.Printf("  hash:     %x\n", m.Hash)
	}
}

func stripSuffix(path, suffix string) string {
	if len(path) > len(suffix) && path[len(path)-len(suffix):] == suffix {
		return path[:len(path)-len(suffix)]
	}
	return path + ".out"
}
