// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"filippo.io/age"

	"github.com/bureau-foundation/reliquary/lib/seal"
	"github.com/bureau-foundation/reliquary/lib/secret"
	"github.com/bureau-foundation/reliquary/lib/share"
)

// Rollover re-keys the bundle's share set: the same identity is
// re-split and re-wrapped to a new holder roster, and a manifest
// revision carrying only the new shares replaces the old one. Object
// ciphertext is copied bit-for-bit; nothing else about the bundle
// changes, and the old shares stop working the moment the rename
// lands. The replacement is atomic: any failure leaves the original
// bundle file untouched.
//
// The identity buffer is borrowed, not closed. The caller should
// reopen the bundle to observe the new manifest, and must treat
// rollover as exclusive: no concurrent rollover or share-set-reading
// session on the same bundle.
func (bundle *Bundle) Rollover(ctx context.Context, identity *secret.Buffer, roster share.Roster) (Manifest, error) {
	if err := bundle.verifyIdentity(identity); err != nil {
		return Manifest{}, err
	}

	wrapped, err := WrapShares(bundle.RemovalIdentifier(), identity, roster)
	if err != nil {
		return Manifest{}, err
	}
	revision := bundle.reader.manifest.WithShares(wrapped)
	if err := revision.Validate(); err != nil {
		return Manifest{}, err
	}

	temporary := bundle.path + ".tmp"
	file, err := os.OpenFile(temporary, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return Manifest{}, fmt.Errorf("bundle: creating %s: %w", temporary, err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(temporary)
		}
	}()

	writer := newContainerWriter(file)
	for _, entry := range bundle.reader.entries {
		if err = ctx.Err(); err != nil {
			return Manifest{}, err
		}
		if err = writer.copyEntry(bundle.reader.files[entry.Name]); err != nil {
			return Manifest{}, err
		}
	}
	if err = writer.writeManifest(revision); err != nil {
		return Manifest{}, err
	}
	if err = writer.close(); err != nil {
		return Manifest{}, err
	}

	if err = file.Sync(); err != nil {
		return Manifest{}, fmt.Errorf("bundle: syncing %s: %w", temporary, err)
	}
	if err = file.Close(); err != nil {
		return Manifest{}, fmt.Errorf("bundle: closing %s: %w", temporary, err)
	}
	if err = os.Rename(temporary, bundle.path); err != nil {
		os.Remove(temporary)
		return Manifest{}, fmt.Errorf("bundle: publishing %s: %w", bundle.path, err)
	}
	return revision, nil
}

// verifyIdentity confirms the identity actually opens this bundle
// before any share is re-wrapped under it. Re-keying with a wrong
// identity would produce a bundle whose shares reconstruct a key
// that decrypts nothing — unrecoverable data loss discovered only at
// the next recovery attempt.
func (bundle *Bundle) verifyIdentity(identity *secret.Buffer) error {
	parsed, err := seal.ParseX25519Identity(identity)
	if err != nil {
		return err
	}
	if len(bundle.reader.entries) == 0 {
		return fmt.Errorf("bundle: no object entries")
	}

	// The age header alone proves whether this identity is a
	// recipient; the payload is not read.
	name := bundle.reader.entries[0].Name
	ciphertext, err := bundle.reader.readFile(name)
	if err != nil {
		return err
	}
	if _, err := age.Decrypt(bytes.NewReader(ciphertext), parsed); err != nil {
		return fmt.Errorf("%w: identity does not open %s: %v", seal.ErrDecrypt, name, err)
	}
	return nil
}
