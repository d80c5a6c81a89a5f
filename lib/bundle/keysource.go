// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"context"
	"errors"
	"fmt"

	"filippo.io/age"

	"github.com/bureau-foundation/reliquary/lib/seal"
	"github.com/bureau-foundation/reliquary/lib/secret"
	"github.com/bureau-foundation/reliquary/lib/share"
)

// A KeySource recovers the bundle's decryption identity. The three
// sources here cover a pasted identity, transcribed mnemonics, and
// wrapped shares unlocked by holder identities (software key files or
// hardware plugins); the interactive recovery wizard is a fourth,
// living with the TUI code. BundleOpener code never cares which kind
// it was handed.
type KeySource interface {
	// RecoverIdentity produces the bundle identity in guarded memory.
	// The caller owns the returned buffer.
	RecoverIdentity(ctx context.Context, manifest Manifest) (*secret.Buffer, error)
}

// CombineToIdentity reconstructs the bundle identity from a quorum of
// shares and verifies the result parses as an age identity. The
// parse is the integrity check for the whole reconstruction: shares
// from a wrong quorum interpolate to garbage, and garbage does not
// carry a valid Bech32 identity encoding.
func CombineToIdentity(shares []share.Share) (*secret.Buffer, error) {
	combined, err := share.Combine(shares)
	if err != nil {
		return nil, err
	}
	if _, err := seal.ParseX25519Identity(combined); err != nil {
		combined.Close()
		return nil, fmt.Errorf("%w: %v", ErrReconstruct, err)
	}
	return combined, nil
}

// StaticKey is a KeySource holding an already-known identity, read
// from a file or a previous recovery session's output.
type StaticKey struct {
	// Identity is the AGE-SECRET-KEY-1… string in guarded memory.
	// RecoverIdentity transfers ownership of it to the caller.
	Identity *secret.Buffer
}

func (key StaticKey) RecoverIdentity(ctx context.Context, manifest Manifest) (*secret.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := seal.ParseX25519Identity(key.Identity); err != nil {
		return nil, err
	}
	return key.Identity, nil
}

// MnemonicKey is a KeySource fed with share mnemonics collected out
// of band (read over the phone, typed from paper).
type MnemonicKey struct {
	Mnemonics []string
}

func (key MnemonicKey) RecoverIdentity(ctx context.Context, manifest Manifest) (*secret.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(key.Mnemonics) == 0 {
		return nil, fmt.Errorf("%w: no mnemonics provided", share.ErrCombine)
	}

	shares := make([]share.Share, 0, len(key.Mnemonics))
	defer func() { share.ZeroAll(shares) }()
	for index, mnemonic := range key.Mnemonics {
		parsed, err := share.ParseMnemonic(mnemonic)
		if err != nil {
			return nil, fmt.Errorf("mnemonic %d: %w", index+1, err)
		}
		shares = append(shares, parsed)
	}
	return CombineToIdentity(shares)
}

// HolderKey is a KeySource that unwraps the manifest's encrypted
// shares with holder identities. Shares none of the identities can
// open are skipped; shares bound to a different bundle are rejected
// individually without ending the attempt. Hardware-backed
// identities may block on a physical touch per share, so the context
// is consulted before each unwrap.
type HolderKey struct {
	Identities []age.Identity

	// OnShare, when set, observes each successfully unwrapped share
	// before it is combined (the recover command's --show-mnemonics).
	OnShare func(holder string, recovered share.Share)
}

func (key HolderKey) RecoverIdentity(ctx context.Context, manifest Manifest) (*secret.Buffer, error) {
	if len(key.Identities) == 0 {
		return nil, fmt.Errorf("%w: no holder identities provided", share.ErrCombine)
	}

	var shares []share.Share
	defer func() { share.ZeroAll(shares) }()

	var skipped error
	for _, holder := range manifest.Holders() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if enough(shares) {
			break
		}

		recovered, err := UnwrapShare(manifest.DecryptionKeyShares[holder], manifest.RemovalIdentifier, key.Identities...)
		switch {
		case err == nil:
			if key.OnShare != nil {
				key.OnShare(holder, recovered)
			}
			shares = append(shares, recovered)
		case errors.Is(err, seal.ErrDecrypt):
			// None of our identities hold this share. Normal when the
			// operator has fewer keys than the roster has holders.
			continue
		case errors.Is(err, ErrWrongBundle), errors.Is(err, share.ErrVerify):
			skipped = errors.Join(skipped, fmt.Errorf("holder %q: %w", holder, err))
		default:
			return nil, fmt.Errorf("holder %q: %w", holder, err)
		}
	}

	identity, err := CombineToIdentity(shares)
	if err != nil {
		return nil, errors.Join(err, skipped)
	}
	return identity, nil
}

// enough reports whether the collected shares already meet their own
// embedded threshold. The threshold lives in the shares, not the
// manifest, so it cannot be weakened by editing the manifest.
func enough(shares []share.Share) bool {
	return len(shares) > 0 && len(shares) >= int(shares[0].Threshold)
}
