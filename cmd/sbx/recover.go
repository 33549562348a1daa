// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cloudeng.io/cmdutil"
	"cloudeng.io/errors"
	"github.com/cosnicolaou/sbx"
	"github.com/cosnicolaou/sbx/index"
)

type recoverFlags struct {
	CommonFlags
	Dest      string `subcmd:"dest,.,destination directory for recovered containers"`
	All       bool   `subcmd:"all,false,recover every container in the index"`
	UIDs      string `subcmd:"uid,,comma separated hex UIDs to recover"`
	SbxNames  string `subcmd:"sbx,,comma separated container filenames to recover"`
	Filenames string `subcmd:"file,,comma separated original filenames to recover"`
	Fill      bool   `subcmd:"fill,false,synthesize zeroed placeholder blocks for gaps"`
	Overwrite bool   `subcmd:"overwrite,false,replace existing output files instead of disambiguating names"`
	Password  string `subcmd:"password,,password used to whiten synthesized gap-fill blocks"`
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func recover_(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	cmdutil.HandleSignals(cancel, os.Interrupt)
	cl := values.(*recoverFlags)

	store, err := index.Open(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	sel := sbx.Selector{
		All:       cl.All,
		UIDs:      splitList(cl.UIDs),
		SbxNames:  splitList(cl.SbxNames),
		Filenames: splitList(cl.Filenames),
	}

	var recOpts []sbx.RecoverOption
	if cl.Fill {
		recOpts = append(recOpts, sbx.Fill())
	}
	if cl.Overwrite {
		recOpts = append(recOpts, sbx.RecoverOverwrite())
	}
	if cl.Password != "" {
		recOpts = append(recOpts, sbx.RecoverPassword(cl.Password))
	}

	results, err := sbx.Recover(store, cl.Dest, sel, recOpts...)
	if err != nil {
		return err
	}

	errs := &errors.M{}
	for _, r := range results {
		if r.Err != nil {
			errs.Append(fmt.Errorf("%s: %w", r.UID, r.Err))
			continue
		}
		msg := fmt.Sprintf("%s: %d blocks written", r.OutputPath, r.BlocksWritten)
		if r.MissingBlocks > 0 {
			msg += fmt.Sprintf(" (%d missing)", r.MissingBlocks)
		}
		fmt.Println(msg)
	}
	return errs.Err()
}
