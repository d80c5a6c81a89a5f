// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/lib/object"
	"github.com/bureau-foundation/reliquary/lib/swhid"
)

type extractParams struct {
	KeySourceParams
	Output string `flag:"output,o" default:"-" desc:"destination file ('-' for stdout)"`
}

func extractCommand() *cli.Command {
	var params extractParams
	return &cli.Command{
		Name:    "extract",
		Summary: "Write one content object's bytes out of a bundle",
		Description: `Extract decrypts a single content object and writes its raw bytes.
The SWHID must identify a content object present in the bundle.`,
		Usage: "reliquary extract <bundle> <swhid> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("extract", &params) },
		Examples: []cli.Example{
			{
				Description: "Extract a file to disk with two holder identities",
				Command:     "reliquary extract case-0042.bundle swh:1:cnt:94a9ed024d3859793618152ea559a168bbcbb5e2 -i alice.age -i bob.age -o recovered.bin",
			},
		},
		Run: func(args []string) error { return runExtract(&params, args) },
	}
}

func runExtract(params *extractParams, args []string) error {
	if len(args) != 2 {
		return cli.Validation("usage: reliquary extract <bundle> <swhid>")
	}
	id, err := swhid.Parse(args[1])
	if err != nil {
		return cli.Validation("%v", err)
	}
	opened, err := openBundle(args[0])
	if err != nil {
		return err
	}
	defer opened.Close()

	// Check presence before bothering a quorum for the key.
	present := false
	for _, entry := range opened.Entries() {
		if entry.Kind == object.KindContent && entry.ID == id {
			present = true
			break
		}
	}
	if !present {
		return cli.NotFound("no content object %s in %s", id, opened.Path()).
			WithHint("'reliquary info --list' prints the bundle's inventory")
	}

	ctx, cancel := interruptContext()
	defer cancel()

	source, err := params.keySource(ctx, nil)
	if err != nil {
		return err
	}
	identity, err := source.RecoverIdentity(ctx, opened.Manifest())
	if err != nil {
		return mapError(err)
	}
	defer identity.Close()

	var destination io.Writer = os.Stdout
	if params.Output != "-" {
		file, err := os.OpenFile(params.Output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				return cli.Conflict("%s already exists", params.Output)
			}
			return cli.Internal("creating %s: %v", params.Output, err)
		}
		defer file.Close()
		destination = file
	}

	if err := opened.ExtractContent(ctx, identity, id, destination); err != nil {
		return mapError(err)
	}
	if params.Output != "-" {
		fmt.Fprintf(os.Stderr, "%s written to %s\n", id, params.Output)
	}
	return nil
}
