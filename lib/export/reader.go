// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/reliquary/lib/codec"
	"github.com/bureau-foundation/reliquary/lib/secret"
)

// ErrKeyRequired reports an encrypted archive opened without a key.
var ErrKeyRequired = errors.New("export: archive is encrypted and no key was given")

// Reader reads a restore archive. Entries are loaded lazily; the
// index is read and validated up front.
type Reader struct {
	file      *os.File
	entries   []Entry
	byName    map[string]int
	exportKey *secret.Buffer
}

// Open validates the archive header and index at path. For an
// encrypted archive the export key must be present; for a plaintext
// one a non-nil key is rejected so a caller cannot silently believe
// an unprotected file was protected. The key is borrowed, not closed.
func Open(path string, exportKey *secret.Buffer) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("export: opening %s: %w", path, err)
	}
	reader, err := open(file, exportKey)
	if err != nil {
		file.Close()
		return nil, err
	}
	return reader, nil
}

func open(file *os.File, exportKey *secret.Buffer) (*Reader, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("export: stat: %w", err)
	}
	size := info.Size()
	if size < headerLength+trailerLength {
		return nil, fmt.Errorf("export: file is too short (%d bytes) to be an archive", size)
	}

	header := make([]byte, headerLength)
	if _, err := file.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("export: reading header: %w", err)
	}
	if !bytes.Equal(header[:len(magic)], magic) {
		return nil, fmt.Errorf("export: not a restore archive (bad magic)")
	}
	if version := header[len(magic)]; version != formatVersion {
		return nil, fmt.Errorf("export: unsupported archive version %d (this build reads version %d)", version, formatVersion)
	}
	flags := header[len(magic)+1]

	encrypted := flags&flagEncrypted != 0
	if encrypted && exportKey == nil {
		return nil, ErrKeyRequired
	}
	if !encrypted && exportKey != nil {
		return nil, fmt.Errorf("export: archive is not encrypted but a key was given")
	}
	if exportKey != nil && exportKey.Len() != KeySize {
		return nil, fmt.Errorf("export: key must be %d bytes, got %d", KeySize, exportKey.Len())
	}

	trailer := make([]byte, trailerLength)
	if _, err := file.ReadAt(trailer, size-trailerLength); err != nil {
		return nil, fmt.Errorf("export: reading trailer: %w", err)
	}
	indexLength := int64(binary.BigEndian.Uint64(trailer))
	if indexLength <= 0 || indexLength > size-headerLength-trailerLength {
		return nil, fmt.Errorf("export: trailer gives impossible index length %d", indexLength)
	}

	indexOffset := size - trailerLength - indexLength
	index := make([]byte, indexLength)
	if _, err := file.ReadAt(index, indexOffset); err != nil {
		return nil, fmt.Errorf("export: reading index: %w", err)
	}
	var entries []Entry
	if err := codec.Unmarshal(index, &entries); err != nil {
		return nil, fmt.Errorf("export: decoding index: %w", err)
	}

	byName := make(map[string]int, len(entries))
	for position, entry := range entries {
		if entry.Name == "" {
			return nil, fmt.Errorf("export: index entry %d has an empty name", position)
		}
		if _, taken := byName[entry.Name]; taken {
			return nil, fmt.Errorf("export: index lists %s twice", entry.Name)
		}
		if entry.Offset < headerLength || entry.StoredSize < 0 || entry.Offset+entry.StoredSize > indexOffset {
			return nil, fmt.Errorf("export: entry %s points outside the blob region", entry.Name)
		}
		if entry.Size < 0 {
			return nil, fmt.Errorf("export: entry %s has negative size", entry.Name)
		}
		if len(entry.Checksum) != 32 {
			return nil, fmt.Errorf("export: entry %s has a %d-byte checksum, want 32", entry.Name, len(entry.Checksum))
		}
		byName[entry.Name] = position
	}

	return &Reader{
		file:      file,
		entries:   entries,
		byName:    byName,
		exportKey: exportKey,
	}, nil
}

// Close releases the underlying file.
func (reader *Reader) Close() error {
	return reader.file.Close()
}

// Entries returns the index in archive order.
func (reader *Reader) Entries() []Entry {
	entries := make([]Entry, len(reader.entries))
	copy(entries, reader.entries)
	return entries
}

// Read returns one entry's plaintext payload. The payload's BLAKE3
// checksum is verified against the index on every read.
func (reader *Reader) Read(name string) ([]byte, error) {
	position, found := reader.byName[name]
	if !found {
		return nil, fmt.Errorf("export: no entry named %s", name)
	}
	entry := reader.entries[position]

	blob := make([]byte, entry.StoredSize)
	if _, err := reader.file.ReadAt(blob, entry.Offset); err != nil {
		return nil, fmt.Errorf("export: reading entry %s: %w", name, err)
	}

	if reader.exportKey != nil {
		opened, err := decryptEntry(reader.exportKey, name, blob)
		if err != nil {
			return nil, err
		}
		blob = opened
	}

	payload, err := decompress(blob, entry.Compression, int(entry.Size))
	if err != nil {
		return nil, fmt.Errorf("export: entry %s: %w", name, err)
	}

	checksum := blake3.Sum256(payload)
	if subtle.ConstantTimeCompare(checksum[:], entry.Checksum) != 1 {
		return nil, fmt.Errorf("%w: %s", ErrChecksum, name)
	}
	return payload, nil
}
