// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"context"
	"fmt"
	"io"
	"slices"

	"filippo.io/age"

	"github.com/bureau-foundation/reliquary/lib/object"
	"github.com/bureau-foundation/reliquary/lib/seal"
	"github.com/bureau-foundation/reliquary/lib/secret"
	"github.com/bureau-foundation/reliquary/lib/swhid"
)

// Bundle is an opened, read-only recovery bundle. Opening checks
// structure (entry names, manifest schema) but needs no key
// material; the Decrypt and Extract operations take the recovered
// identity per call, so a Bundle can be browsed before any quorum is
// assembled.
type Bundle struct {
	path   string
	reader *containerReader
}

// Open reads and structurally validates the bundle at path.
func Open(path string) (*Bundle, error) {
	reader, err := openContainer(path)
	if err != nil {
		return nil, err
	}
	return &Bundle{path: path, reader: reader}, nil
}

// Close releases the underlying archive.
func (bundle *Bundle) Close() error {
	return bundle.reader.close()
}

// Path returns the bundle's file path.
func (bundle *Bundle) Path() string { return bundle.path }

// Manifest returns a copy of the decoded manifest.
func (bundle *Bundle) Manifest() Manifest {
	manifest := bundle.reader.manifest
	return manifest.WithShares(manifest.DecryptionKeyShares)
}

// Entries lists the object entries in archive order.
func (bundle *Bundle) Entries() []Entry {
	return slices.Clone(bundle.reader.entries)
}

// RemovalIdentifier returns the bundle's removal identifier.
func (bundle *Bundle) RemovalIdentifier() string {
	return bundle.reader.manifest.RemovalIdentifier
}

// DecryptObject decrypts and decodes one entry by container path.
// The identity buffer is borrowed, not closed.
func (bundle *Bundle) DecryptObject(ctx context.Context, identity *secret.Buffer, name string) (object.Object, error) {
	if err := ctx.Err(); err != nil {
		return object.Object{}, err
	}

	parsed, err := seal.ParseX25519Identity(identity)
	if err != nil {
		return object.Object{}, err
	}
	return bundle.decryptEntry(name, parsed)
}

func (bundle *Bundle) decryptEntry(name string, identity *age.X25519Identity) (object.Object, error) {
	ciphertext, err := bundle.reader.readFile(name)
	if err != nil {
		return object.Object{}, err
	}
	payload, err := seal.Decrypt(ciphertext, identity)
	if err != nil {
		return object.Object{}, fmt.Errorf("%s: %w", name, err)
	}
	decoded, err := object.Deserialize(payload)
	if err != nil {
		return object.Object{}, fmt.Errorf("%s: %w", name, err)
	}
	return decoded, nil
}

// ExtractContent decrypts the content object with the given SWHID and
// writes its raw bytes to w.
func (bundle *Bundle) ExtractContent(ctx context.Context, identity *secret.Buffer, id swhid.SWHID, w io.Writer) error {
	for _, entry := range bundle.reader.entries {
		if entry.Kind != object.KindContent || entry.ID != id {
			continue
		}
		decoded, err := bundle.DecryptObject(ctx, identity, entry.Name)
		if err != nil {
			return err
		}
		data, ok := decoded.Data()
		if !ok {
			return fmt.Errorf("bundle: content %s carries no data", id)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("bundle: writing content %s: %w", id, err)
		}
		return nil
	}
	return fmt.Errorf("bundle: no content object %s", id)
}

// ForEachObject decrypts every entry in archive order and hands each
// to fn. Entries decrypt independently: an error from one entry (or
// from fn) stops the walk but a caller catching it can resume with
// the remaining names. Cancellation is checked between entries.
func (bundle *Bundle) ForEachObject(ctx context.Context, identity *secret.Buffer, fn func(Entry, object.Object) error) error {
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
		if err := fn(entry, decoded); err != nil {
			return err
		}
	}
	return nil
}
