// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/lib/seal"
)

type keygenParams struct {
	Output string `flag:"output,o" desc:"write the secret key to this file (0600) instead of stderr"`
}

func keygenCommand() *cli.Command {
	var params keygenParams
	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an age keypair for a share holder",
		Description: `Keygen provisions a holder: the public key (for the roster file) goes
to stdout, the secret key to stderr or --output. Holders with
hardware keys skip this and enroll their device's recipient instead.`,
		Usage: "reliquary keygen [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("keygen", &params) },
		Examples: []cli.Example{
			{
				Description: "Provision a holder, secret straight to a key file",
				Command:     "reliquary keygen -o alice.age >> roster-recipients.txt",
			},
		},
		Run: func(args []string) error { return runKeygen(&params, args) },
	}
}

func runKeygen(params *keygenParams, args []string) error {
	if len(args) != 0 {
		return cli.Validation("keygen takes no positional arguments")
	}
	identity, err := seal.GenerateIdentity()
	if err != nil {
		return cli.Internal("generating identity: %v", err)
	}
	defer identity.Close()

	fmt.Println(identity.Recipient)

	if params.Output == "" {
		if _, err := identity.Secret.WriteTo(os.Stderr); err != nil {
			return cli.Internal("writing secret: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return nil
	}

	file, err := os.OpenFile(params.Output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return cli.Conflict("%s already exists", params.Output)
		}
		return cli.Internal("creating %s: %v", params.Output, err)
	}
	if _, err := fmt.Fprintf(file, "# public key: %s\n", identity.Recipient); err != nil {
		file.Close()
		return cli.Internal("writing %s: %v", params.Output, err)
	}
	if _, err := identity.Secret.WriteTo(file); err != nil {
		file.Close()
		return cli.Internal("writing %s: %v", params.Output, err)
	}
	if _, err := file.WriteString("\n"); err != nil {
		file.Close()
		return cli.Internal("writing %s: %v", params.Output, err)
	}
	if err := file.Close(); err != nil {
		return cli.Internal("closing %s: %v", params.Output, err)
	}
	fmt.Fprintf(os.Stderr, "secret key written to %s\n", params.Output)
	return nil
}
