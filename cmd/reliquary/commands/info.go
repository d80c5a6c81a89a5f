// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/lib/object"
)

type infoParams struct {
	DumpManifest bool `flag:"dump-manifest" desc:"print the raw manifest YAML and exit"`
	List         bool `flag:"list" desc:"print the SWHID inventory, one per line"`
}

func infoCommand() *cli.Command {
	var params infoParams
	return &cli.Command{
		Name:    "info",
		Summary: "Show a bundle's manifest summary",
		Description: `Info reads only the plaintext manifest; no key material is needed
and no object is decrypted.`,
		Usage: "reliquary info <bundle> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("info", &params) },
		Run:   func(args []string) error { return runInfo(&params, args) },
	}
}

func runInfo(params *infoParams, args []string) error {
	if len(args) != 1 {
		return cli.Validation("usage: reliquary info <bundle>")
	}
	opened, err := openBundle(args[0])
	if err != nil {
		return err
	}
	defer opened.Close()
	manifest := opened.Manifest()

	if params.DumpManifest {
		raw, err := manifest.Encode()
		if err != nil {
			return mapError(err)
		}
		os.Stdout.Write(raw)
		return nil
	}

	if params.List {
		for _, id := range manifest.SWHIDs {
			fmt.Println(id)
		}
		return nil
	}

	fmt.Printf("bundle:     %s\n", opened.Path())
	fmt.Printf("identifier: %s\n", manifest.RemovalIdentifier)
	fmt.Printf("created:    %s\n", manifest.Created.Format(time.RFC3339))
	if manifest.Reason != "" {
		fmt.Printf("reason:     %s\n", manifest.Reason)
	}
	if !manifest.Expire.IsZero() {
		fmt.Printf("expire:     %s\n", manifest.Expire.Format(time.RFC3339))
	}

	counts := map[object.Kind]int{}
	for _, entry := range opened.Entries() {
		counts[entry.Kind]++
	}
	fmt.Printf("objects:    %d\n", len(opened.Entries()))
	for _, kind := range object.Kinds() {
		if counts[kind] > 0 {
			fmt.Printf("  %-21s %d\n", kind, counts[kind])
		}
	}

	holders := manifest.Holders()
	fmt.Printf("holders:    %d\n", len(holders))
	for _, holder := range holders {
		fmt.Printf("  %s\n", holder)
	}
	return nil
}
