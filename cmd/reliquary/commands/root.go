// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/lib/version"
)

// Root builds the complete reliquary command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "reliquary",
		Description: `Reliquary: recoverable backups for removed archive objects.

Objects removed from the archive are sealed into an encrypted bundle
whose key is split among a roster of holders. A quorum of holders can
recover the contents; nobody can alone.`,
		Subcommands: []*cli.Command{
			createCommand(),
			infoCommand(),
			verifyCommand(),
			recoverCommand(),
			extractCommand(),
			exportCommand(),
			rolloverCommand(),
			mountCommand(),
			keygenCommand(),
			docsCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("reliquary %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Seal a removal set into a bundle",
				Command:     "reliquary create --identifier case-0042 --input removal-set.cbor --roster roster.jsonc --output case-0042.bundle",
			},
			{
				Description: "Inspect a bundle without any key material",
				Command:     "reliquary info case-0042.bundle",
			},
			{
				Description: "Recover the bundle key with two holder identities",
				Command:     "reliquary recover case-0042.bundle -i alice.age -i bob.age",
			},
			{
				Description: "Re-key a bundle to a new holder roster",
				Command:     "reliquary rollover case-0042.bundle --roster new-roster.jsonc -i alice.age -i bob.age",
			},
			{
				Description: "Read the operator runbook",
				Command:     "reliquary docs",
			},
		},
	}
}
