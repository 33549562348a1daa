// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command sbx encodes, decodes, scans, and recovers SeqBox (.sbx)
// containers. See the package doc of github.com/cosnicolaou/sbx for the
// format itself; this binary is a thin driver over that library.
package main

import (
	"context"

	"cloudeng.io/cmdutil/subcmd"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
)

// CommonFlags are shared across every verb.
type CommonFlags struct {
	Verbose bool `subcmd:"verbose,false,trace each block processed"`
}

var cmdSet *subcmd.CommandSet

func init() {
	encodeCmd := subcmd.NewCommand("encode",
		subcmd.MustRegisterFlagStruct(&encodeFlags{}, nil, nil),
		encode, subcmd.ExactlyNumArguments(1))
	encodeCmd.Document(`encode a file into an SBX container.`)

	decodeCmd := subcmd.NewCommand("decode",
		subcmd.MustRegisterFlagStruct(&decodeFlags{}, nil, nil),
		decode, subcmd.ExactlyNumArguments(1))
	decodeCmd.Document(`decode an SBX container back into a file.`)

	scanCmd := subcmd.NewCommand("scan",
		subcmd.MustRegisterFlagStruct(&scanFlags{}, nil, nil),
		scan, subcmd.AtLeastNArguments(1))
	scanCmd.Document(`scan raw sources for SBX blocks and record them in an index.`)

	recoverCmd := subcmd.NewCommand("recover",
		subcmd.MustRegisterFlagStruct(&recoverFlags{}, nil, nil),
		recover_, subcmd.ExactlyNumArguments(1))
	recoverCmd.Document(`rebuild .sbx containers from a scan index.`)

	reportCmd := subcmd.NewCommand("report",
		subcmd.MustRegisterFlagStruct(&reportFlags{}, nil, nil),
		report, subcmd.ExactlyNumArguments(1))
	reportCmd.Document(`list the containers recoverable from a scan index.`)

	cmdSet = subcmd.NewCommandSet(encodeCmd, decodeCmd, scanCmd, recoverCmd, reportCmd)
	cmdSet.Document(`encode, decode, scan for, and recover SeqBox containers.`)

	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	cmdSet.MustDispatch(context.Background())
}
