// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/lib/share"
)

type rolloverParams struct {
	KeySourceParams
	Roster string `flag:"roster" desc:"JSONC roster file naming the new holders and threshold"`
}

func rolloverCommand() *cli.Command {
	var params rolloverParams
	return &cli.Command{
		Name:    "rollover",
		Summary: "Re-key a bundle's shares to a new holder roster",
		Description: `Rollover reconstructs the bundle identity from the current roster's
shares, re-splits it, and wraps the new shares to the new roster. The
object ciphertext is untouched; only the manifest's share set changes.
The replacement is atomic, and the old shares stop working as soon as
the new manifest lands.`,
		Usage: "reliquary rollover <bundle> --roster <file> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("rollover", &params) },
		Examples: []cli.Example{
			{
				Description: "A holder left; re-key to the replacement roster",
				Command:     "reliquary rollover case-0042.bundle --roster new-roster.jsonc -i alice.age -i bob.age",
			},
		},
		Run: func(args []string) error { return runRollover(&params, args) },
	}
}

func runRollover(params *rolloverParams, args []string) error {
	if len(args) != 1 {
		return cli.Validation("usage: reliquary rollover <bundle>")
	}
	if params.Roster == "" {
		return cli.Validation("--roster is required")
	}
	roster, err := share.LoadRoster(params.Roster)
	if err != nil {
		return cli.Validation("roster %s: %v", params.Roster, err)
	}
	opened, err := openBundle(args[0])
	if err != nil {
		return err
	}
	defer opened.Close()

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

	revision, err := opened.Rollover(ctx, identity, roster)
	if err != nil {
		return mapError(err)
	}

	fmt.Printf("re-keyed %s\n", opened.Path())
	fmt.Printf("  holders:   %d (threshold %d)\n", len(roster.Holders), roster.Threshold)
	for _, holder := range revision.Holders() {
		fmt.Printf("  %s\n", holder)
	}
	return nil
}
