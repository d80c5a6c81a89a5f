// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command reliquary seals removed archive objects into encrypted
// recovery bundles and recovers them with a quorum of share holders.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/cmd/reliquary/commands"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)

		var tool *cli.ToolError
		if errors.As(err, &tool) && tool.Hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", tool.Hint)
		}

		var coded interface{ ExitCode() int }
		if errors.As(err, &coded) {
			os.Exit(coded.ExitCode())
		}
		os.Exit(1)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
