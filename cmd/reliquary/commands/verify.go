// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/lib/secret"
)

type verifyParams struct {
	KeySourceParams
}

func verifyCommand() *cli.Command {
	var params verifyParams
	return &cli.Command{
		Name:    "verify",
		Summary: "Check a bundle's structural integrity",
		Description: `Verify checks the container structure, entry naming, and manifest
invariants. With a key source it additionally decrypts every object
and checks each payload against the manifest inventory.`,
		Usage: "reliquary verify <bundle> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("verify", &params) },
		Examples: []cli.Example{
			{
				Description: "Structural check, no key material",
				Command:     "reliquary verify case-0042.bundle",
			},
			{
				Description: "Full decrypt verification with two holder identities",
				Command:     "reliquary verify case-0042.bundle -i alice.age -i bob.age",
			},
		},
		Run: func(args []string) error { return runVerify(&params, args) },
	}
}

func runVerify(params *verifyParams, args []string) error {
	if len(args) != 1 {
		return cli.Validation("usage: reliquary verify <bundle>")
	}
	opened, err := openBundle(args[0])
	if err != nil {
		return err
	}
	defer opened.Close()

	ctx, cancel := interruptContext()
	defer cancel()

	var identity *secret.Buffer
	if params.explicit() {
		source, err := params.keySource(ctx, nil)
		if err != nil {
			return err
		}
		identity, err = source.RecoverIdentity(ctx, opened.Manifest())
		if err != nil {
			return mapError(err)
		}
		defer identity.Close()
	}

	if err := opened.Verify(ctx, identity); err != nil {
		return mapError(err)
	}

	if identity != nil {
		fmt.Printf("%s: structure and all %d payloads verified\n", opened.Path(), len(opened.Entries()))
	} else {
		fmt.Printf("%s: structure verified (no key material; payloads not decrypted)\n", opened.Path())
	}
	return nil
}
