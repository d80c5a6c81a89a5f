// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"fmt"
	"strings"

	"filippo.io/age"

	"github.com/bureau-foundation/reliquary/lib/seal"
	"github.com/bureau-foundation/reliquary/lib/secret"
	"github.com/bureau-foundation/reliquary/lib/share"
)

// A wrapped share's plaintext is exactly:
//
//	[<removal_identifier>] <mnemonic words>
//
// The identifier prefix ties the share to its bundle, so a share
// decrypted for the wrong bundle (an operator with many escrow
// envelopes, a replayed ciphertext) is rejected before it can poison
// a reconstruction.

// WrapShares splits the bundle identity into one share per roster
// holder and seals each share's wrapped plaintext to that holder's
// public key. Holders are paired with shares in sorted-name order.
// The identity buffer is borrowed, not closed; every intermediate
// share and mnemonic is zeroed before returning.
func WrapShares(removalIdentifier string, identity *secret.Buffer, roster share.Roster) (map[string]string, error) {
	if removalIdentifier == "" {
		return nil, fmt.Errorf("bundle: empty removal identifier")
	}
	if err := roster.Validate(); err != nil {
		return nil, err
	}

	names := roster.Names()
	shares, err := share.Split(identity, len(names), roster.Threshold)
	if err != nil {
		return nil, err
	}
	defer share.ZeroAll(shares)

	wrapped := make(map[string]string, len(names))
	for i, name := range names {
		recipient, err := seal.ParseRecipient(roster.Holders[name])
		if err != nil {
			return nil, fmt.Errorf("bundle: holder %q: %w", name, err)
		}

		mnemonic, err := shares[i].Mnemonic()
		if err != nil {
			return nil, err
		}
		plaintext := []byte("[" + removalIdentifier + "] " + mnemonic)

		ciphertext, err := seal.EncryptArmored(plaintext, recipient)
		secret.Zero(plaintext)
		if err != nil {
			return nil, fmt.Errorf("bundle: wrapping share for %q: %w", name, err)
		}
		wrapped[name] = ciphertext
	}
	return wrapped, nil
}

// UnwrapShare decrypts one holder's wrapped share and checks its
// bundle binding. A ciphertext none of the identities can open
// surfaces as seal.ErrDecrypt; a share for another bundle as
// ErrWrongBundle; a garbled mnemonic as share.ErrVerify.
func UnwrapShare(armored, removalIdentifier string, identities ...age.Identity) (share.Share, error) {
	plaintext, err := seal.DecryptArmored(armored, identities...)
	if err != nil {
		return share.Share{}, err
	}
	defer plaintext.Close()

	return ParseWrappedShare(plaintext.String(), removalIdentifier)
}

// ParseWrappedShare validates a wrapped share plaintext against the
// bundle's removal identifier and decodes the mnemonic.
func ParseWrappedShare(plaintext, removalIdentifier string) (share.Share, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(plaintext), "[")
	if !ok {
		return share.Share{}, fmt.Errorf("%w: plaintext has no identifier prefix", ErrWrongBundle)
	}
	// Mnemonic words never contain "]", so the last separator is the
	// real one even if the identifier itself holds brackets.
	split := strings.LastIndex(rest, "] ")
	if split < 0 {
		return share.Share{}, fmt.Errorf("%w: plaintext has no identifier prefix", ErrWrongBundle)
	}
	identifier, mnemonic := rest[:split], rest[split+2:]
	if identifier != removalIdentifier {
		return share.Share{}, fmt.Errorf("%w: share is for %q, this bundle is %q",
			ErrWrongBundle, identifier, removalIdentifier)
	}
	return share.ParseMnemonic(mnemonic)
}
