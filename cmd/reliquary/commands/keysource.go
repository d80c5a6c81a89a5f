// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"filippo.io/age"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/lib/bundle"
	"github.com/bureau-foundation/reliquary/lib/recoverui"
	"github.com/bureau-foundation/reliquary/lib/seal"
	"github.com/bureau-foundation/reliquary/lib/secret"
	"github.com/bureau-foundation/reliquary/lib/share"
)

// KeySourceParams is the flag block shared by every command that
// needs the bundle identity. Embed it in the command's params struct.
type KeySourceParams struct {
	IdentityFiles []string `flag:"identity,i" desc:"holder identity file used to unwrap shares (repeatable)"`
	IdentityFile  string   `flag:"identity-file" desc:"file holding an already-recovered bundle identity"`
	Mnemonics     []string `flag:"mnemonic" desc:"share mnemonic, quoted as one argument (repeatable)"`
	YubiKeys      bool     `flag:"yubikeys" desc:"unwrap shares with all attached YubiKeys"`
}

// explicit reports whether any key source flag was given. Without
// one, recover falls through to the interactive wizard and verify
// stays structural.
func (params *KeySourceParams) explicit() bool {
	return len(params.IdentityFiles) > 0 || params.IdentityFile != "" ||
		len(params.Mnemonics) > 0 || params.YubiKeys
}

// keySource assembles the key source from the flags, in precedence
// order: a recovered identity file, mnemonics, holder identities
// (key files and YubiKeys together), then the interactive wizard.
// onShare, when non-nil, observes each share unwrapped from holder
// identities.
func (params *KeySourceParams) keySource(ctx context.Context, onShare func(holder string, recovered share.Share)) (bundle.KeySource, error) {
	if params.IdentityFile != "" {
		identity, err := secret.ReadFromPath(params.IdentityFile)
		if err != nil {
			return nil, cli.Validation("reading identity file: %v", err)
		}
		return bundle.StaticKey{Identity: identity}, nil
	}

	if len(params.Mnemonics) > 0 {
		return bundle.MnemonicKey{Mnemonics: params.Mnemonics}, nil
	}

	if len(params.IdentityFiles) > 0 || params.YubiKeys {
		identities, err := params.holderIdentities(ctx)
		if err != nil {
			return nil, err
		}
		return bundle.HolderKey{Identities: identities, OnShare: onShare}, nil
	}

	return recoverui.Wizard{}, nil
}

// holderIdentities loads age identities from the -i files and, with
// --yubikeys, from every attached device.
func (params *KeySourceParams) holderIdentities(ctx context.Context) ([]age.Identity, error) {
	var identities []age.Identity

	for _, path := range params.IdentityFiles {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, cli.Validation("reading identity file: %v", err)
		}
		parsed, err := seal.ParseIdentities(string(content))
		secret.Zero(content)
		if err != nil {
			return nil, cli.Validation("%s: %v", path, err)
		}
		identities = append(identities, parsed...)
	}

	if params.YubiKeys {
		devices, err := seal.ListYubiKeyIdentities(ctx)
		if err != nil {
			return nil, cli.Internal("listing YubiKeys: %v", err)
		}
		if len(devices) == 0 && len(identities) == 0 {
			return nil, cli.NotFound("no YubiKeys attached").
				WithHint("plug in a device holding a share, or pass -i with a key file")
		}
		for _, device := range devices {
			parsed, err := seal.ParseIdentities(device.Identity)
			if err != nil {
				return nil, cli.Internal("%s: %v", device.Holder(), err)
			}
			identities = append(identities, parsed...)
		}
	}

	return identities, nil
}

// openBundle opens and structurally validates a bundle argument.
func openBundle(path string) (*bundle.Bundle, error) {
	if path == "" {
		return nil, cli.Validation("bundle path is required")
	}
	opened, err := bundle.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, cli.NotFound("no bundle at %s", path)
		}
		return nil, mapError(fmt.Errorf("opening %s: %w", path, err))
	}
	return opened, nil
}
