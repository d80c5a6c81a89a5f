// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/lib/share"
)

type recoverParams struct {
	KeySourceParams
	ShowMnemonics bool   `flag:"show-mnemonics" desc:"print each unwrapped share as mnemonic words on stderr"`
	Output        string `flag:"output,o" desc:"write the recovered identity to this file (0600) instead of stdout"`
}

func recoverCommand() *cli.Command {
	var params recoverParams
	return &cli.Command{
		Name:    "recover",
		Summary: "Recover a bundle's age identity from holder shares",
		Description: `Recover reconstructs the bundle's decryption identity from a quorum
of shares. Shares come from holder identity files (-i), attached
YubiKeys (--yubikeys), or mnemonics typed or pasted by holders
(--mnemonic, or the interactive wizard when no key flag is given).

The recovered identity is an age secret key; anyone holding it can
decrypt every object in the bundle. Handle the output accordingly.`,
		Usage: "reliquary recover <bundle> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("recover", &params) },
		Examples: []cli.Example{
			{
				Description: "Recover with two holder key files",
				Command:     "reliquary recover case-0042.bundle -i alice.age -i bob.age",
			},
			{
				Description: "Read a mnemonic over the phone, then type it interactively",
				Command:     "reliquary recover case-0042.bundle",
			},
		},
		Run: func(args []string) error { return runRecover(&params, args) },
	}
}

func runRecover(params *recoverParams, args []string) error {
	if len(args) != 1 {
		return cli.Validation("usage: reliquary recover <bundle>")
	}
	opened, err := openBundle(args[0])
	if err != nil {
		return err
	}
	defer opened.Close()

	ctx, cancel := interruptContext()
	defer cancel()

	var onShare func(holder string, recovered share.Share)
	if params.ShowMnemonics {
		onShare = func(holder string, recovered share.Share) {
			mnemonic, err := recovered.Mnemonic()
			if err != nil {
				fmt.Fprintf(os.Stderr, "share %d (%s): %v\n", recovered.Index, holder, err)
				return
			}
			fmt.Fprintf(os.Stderr, "share %d (%s): %s\n", recovered.Index, holder, mnemonic)
		}
	}

	source, err := params.keySource(ctx, onShare)
	if err != nil {
		return err
	}
	identity, err := source.RecoverIdentity(ctx, opened.Manifest())
	if err != nil {
		return mapError(err)
	}
	defer identity.Close()

	if params.Output != "" {
		file, err := os.OpenFile(params.Output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			if os.IsExist(err) {
				return cli.Conflict("%s already exists", params.Output)
			}
			return cli.Internal("creating %s: %v", params.Output, err)
		}
		if _, err := identity.WriteTo(file); err != nil {
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
		fmt.Fprintf(os.Stderr, "identity written to %s\n", params.Output)
		return nil
	}

	if _, err := identity.WriteTo(os.Stdout); err != nil {
		return cli.Internal("writing identity: %v", err)
	}
	fmt.Println()
	return nil
}
