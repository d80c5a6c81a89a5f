// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/lib/runbook"
)

type docsParams struct {
	Plain bool `flag:"plain" desc:"uncolored output, no pager"`
}

func docsCommand() *cli.Command {
	var params docsParams
	return &cli.Command{
		Name:    "docs",
		Summary: "Show the operator runbook",
		Usage:   "reliquary docs [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("docs", &params) },
		Run:     func(args []string) error { return runDocs(&params, args) },
	}
}

func runDocs(params *docsParams, args []string) error {
	if len(args) != 0 {
		return cli.Validation("docs takes no positional arguments")
	}

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	if interactive && !params.Plain {
		if err := runbook.Page(); err != nil {
			return cli.Internal("pager: %v", err)
		}
		return nil
	}

	width := runbook.DefaultWidth
	if interactive {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	fmt.Print(runbook.Render(width, true))
	return nil
}
