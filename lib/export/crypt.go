// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/bureau-foundation/reliquary/lib/secret"
)

// KeySize is the byte length of an export key.
const KeySize = 32

// hkdfInfoEntry is the HKDF domain separator for per-entry keys. The
// entry name is appended, so no two entries in an archive share a
// key even though the archive has one export key.
const hkdfInfoEntry = "reliquary.export.entry.v1:"

// NewKey generates a random export key in guarded memory. The key is
// handed to whoever performs the out-of-band restore; it is never
// stored in the archive.
func NewKey() (*secret.Buffer, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("export: generating key: %w", err)
	}
	return secret.NewFromBytes(key)
}

// deriveEntryKey derives one entry's encryption key. The export key
// is borrowed, not closed.
func deriveEntryKey(exportKey *secret.Buffer, name string) (*secret.Buffer, error) {
	reader := hkdf.New(sha256.New, exportKey.Bytes(), nil, []byte(hkdfInfoEntry+name))
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("export: deriving entry key: %w", err)
	}
	return secret.NewFromBytes(derived)
}

// entryAAD binds a ciphertext to the archive format version and its
// entry name, so encrypted blobs cannot be swapped between entries.
func entryAAD(name string) []byte {
	aad := make([]byte, 1+len(name))
	aad[0] = formatVersion
	copy(aad[1:], name)
	return aad
}

// encryptEntry seals a compressed blob with XChaCha20-Poly1305 under
// a key derived for this entry. Layout: 24-byte random nonce, then
// ciphertext and tag.
func encryptEntry(exportKey *secret.Buffer, name string, blob []byte) ([]byte, error) {
	entryKey, err := deriveEntryKey(exportKey, name)
	if err != nil {
		return nil, err
	}
	defer entryKey.Close()

	aead, err := chacha20poly1305.NewX(entryKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("export: creating cipher: %w", err)
	}
	output := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(blob)+aead.Overhead())
	if _, err := rand.Read(output); err != nil {
		return nil, fmt.Errorf("export: generating nonce: %w", err)
	}
	return aead.Seal(output, output[:chacha20poly1305.NonceSizeX], blob, entryAAD(name)), nil
}

// decryptEntry opens an encrypted blob. Wrong key, swapped entries,
// and bit rot all surface as an authentication error.
func decryptEntry(exportKey *secret.Buffer, name string, sealed []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("export: entry %s is too short to be a sealed blob", name)
	}

	entryKey, err := deriveEntryKey(exportKey, name)
	if err != nil {
		return nil, err
	}
	defer entryKey.Close()

	aead, err := chacha20poly1305.NewX(entryKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("export: creating cipher: %w", err)
	}
	blob, err := aead.Open(nil, sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:], entryAAD(name))
	if err != nil {
		return nil, fmt.Errorf("export: entry %s failed authentication (wrong key or corrupted data)", name)
	}
	return blob, nil
}
