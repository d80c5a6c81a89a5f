// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/reliquary/lib/seal"
	"github.com/bureau-foundation/reliquary/lib/secret"
	"github.com/bureau-foundation/reliquary/lib/swhid"
)

// Verify checks the bundle's internal consistency. Without an
// identity it is structural: the manifest inventory must match the
// entry names exactly, and skipped-content ordinals must count
// 1..n per identifier. With an identity it additionally decrypts
// every entry and confirms each payload re-derives its own entry
// name, proving nothing was renamed, substituted, or corrupted.
//
// Pass a nil identity for the structural check.
func (bundle *Bundle) Verify(ctx context.Context, identity *secret.Buffer) error {
	if err := bundle.verifyStructure(); err != nil {
		return err
	}
	if identity == nil {
		return nil
	}
	return bundle.verifyPayloads(ctx, identity)
}

func (bundle *Bundle) verifyStructure() error {
	fromEntries := make(map[swhid.SWHID]bool)
	ordinals := make(map[swhid.SWHID]int)
	for _, entry := range bundle.reader.entries {
		fromEntries[entry.ID] = true
		if entry.Ordinal > 0 {
			ordinals[entry.ID]++
			if entry.Ordinal != ordinals[entry.ID] {
				return fmt.Errorf("bundle: skipped_content %s ordinals are not consecutive (found %d, expected %d)",
					entry.ID, entry.Ordinal, ordinals[entry.ID])
			}
		}
	}

	fromManifest := make(map[swhid.SWHID]bool, len(bundle.reader.manifest.SWHIDs))
	for _, id := range bundle.reader.manifest.SWHIDs {
		fromManifest[id] = true
		if !fromEntries[id] {
			return fmt.Errorf("bundle: manifest lists %s but no entry carries it", id)
		}
	}
	for id := range fromEntries {
		if !fromManifest[id] {
			return fmt.Errorf("bundle: entry identifier %s is missing from the manifest", id)
		}
	}
	return nil
}

func (bundle *Bundle) verifyPayloads(ctx context.Context, identity *secret.Buffer) error {
	parsed, err := seal.ParseX25519Identity(identity)
	if err != nil {
		return err
	}

	for _, entry := range bundle.reader.entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		decoded, err := bundle.decryptEntry(entry.Name, parsed)
		if err != nil {
			return err
		}
		// The payload must map back to the exact name it was stored
		// under. The skipped-content ordinal is positional, so it is
		// taken from the name being checked.
		derived, err := entryName(decoded, entry.Ordinal)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name, err)
		}
		if derived.Name != entry.Name {
			return fmt.Errorf("bundle: entry %s holds an object that belongs at %s", entry.Name, derived.Name)
		}
	}
	return nil
}
