// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package export writes and reads restore archives: single files
// holding the decrypted objects of a recovery bundle, for hand-off
// to the tooling that reinserts them into the archive.
//
// The format is designed for that one trip. Layout:
//
//	[8B magic "RELEXP01"] [1B version] [1B flags]
//	entry blobs…
//	CBOR index
//	[8B big-endian index length]
//
// Each entry is individually compressed (probed per payload: none,
// LZ4, or zstd) and, when the archive is keyed, individually
// encrypted with XChaCha20-Poly1305 under a key derived from the
// archive's export key and the entry name. The index records each
// entry's offset, sizes, compression tag, and a BLAKE3-256 of the
// plaintext that the reader always verifies.
package export

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/reliquary/lib/codec"
	"github.com/bureau-foundation/reliquary/lib/object"
	"github.com/bureau-foundation/reliquary/lib/secret"
	"github.com/bureau-foundation/reliquary/lib/swhid"
)

var magic = []byte("RELEXP01")

const (
	formatVersion byte = 1

	flagEncrypted byte = 1 << 0

	headerLength  = 8 + 1 + 1
	trailerLength = 8
)

// ErrChecksum reports an entry whose decompressed bytes do not hash
// to the checksum recorded at export time.
var ErrChecksum = errors.New("export: entry checksum mismatch")

// Entry is one archived object in the index.
type Entry struct {
	// Name is the unique entry name, conventionally the bundle's
	// container path without the .age extension.
	Name string `cbor:"name"`

	// ID and Kind identify the archived object.
	ID   swhid.SWHID `cbor:"id"`
	Kind object.Kind `cbor:"kind"`

	// Offset and StoredSize locate the (compressed, possibly
	// encrypted) blob in the file.
	Offset     int64 `cbor:"offset"`
	StoredSize int64 `cbor:"stored_size"`

	// Size is the plaintext payload length.
	Size int64 `cbor:"size"`

	// Compression tags the blob's encoding.
	Compression CompressionTag `cbor:"compression"`

	// Checksum is BLAKE3-256 of the plaintext payload.
	Checksum []byte `cbor:"checksum"`
}

// Writer builds a restore archive. Entries accumulate in the temp
// file as they are added; Close writes the index and publishes the
// archive atomically. A Writer abandoned without Close leaves only
// the temp file, removed by Abort.
type Writer struct {
	path      string
	temporary string
	file      *os.File
	offset    int64
	entries   []Entry
	names     map[string]struct{}
	exportKey *secret.Buffer
}

// NewWriter starts an archive at path. A nil exportKey produces a
// plaintext archive; otherwise every entry is encrypted and the same
// key must be presented to Open. The key is borrowed, not closed.
func NewWriter(path string, exportKey *secret.Buffer) (*Writer, error) {
	if exportKey != nil && exportKey.Len() != KeySize {
		return nil, fmt.Errorf("export: key must be %d bytes, got %d", KeySize, exportKey.Len())
	}

	temporary := path + ".tmp"
	file, err := os.OpenFile(temporary, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("export: creating %s: %w", temporary, err)
	}

	header := make([]byte, 0, headerLength)
	header = append(header, magic...)
	header = append(header, formatVersion)
	var flags byte
	if exportKey != nil {
		flags |= flagEncrypted
	}
	header = append(header, flags)
	if _, err := file.Write(header); err != nil {
		file.Close()
		os.Remove(temporary)
		return nil, fmt.Errorf("export: writing header: %w", err)
	}

	return &Writer{
		path:      path,
		temporary: temporary,
		file:      file,
		offset:    headerLength,
		names:     make(map[string]struct{}),
		exportKey: exportKey,
	}, nil
}

// Add appends one object payload under a unique entry name.
func (writer *Writer) Add(name string, id swhid.SWHID, kind object.Kind, payload []byte) error {
	if name == "" {
		return fmt.Errorf("export: empty entry name")
	}
	if _, taken := writer.names[name]; taken {
		return fmt.Errorf("export: duplicate entry name %s", name)
	}

	checksum := blake3.Sum256(payload)
	blob, tag := compress(payload)
	if writer.exportKey != nil {
		sealed, err := encryptEntry(writer.exportKey, name, blob)
		if err != nil {
			return err
		}
		blob = sealed
	}

	if _, err := writer.file.Write(blob); err != nil {
		return fmt.Errorf("export: writing entry %s: %w", name, err)
	}

	writer.names[name] = struct{}{}
	writer.entries = append(writer.entries, Entry{
		Name:        name,
		ID:          id,
		Kind:        kind,
		Offset:      writer.offset,
		StoredSize:  int64(len(blob)),
		Size:        int64(len(payload)),
		Compression: tag,
		Checksum:    checksum[:],
	})
	writer.offset += int64(len(blob))
	return nil
}

// Close writes the index and trailer, syncs, and renames the archive
// into place. The Writer is unusable afterwards.
func (writer *Writer) Close() (err error) {
	defer func() {
		if err != nil {
			writer.Abort()
		}
	}()

	if len(writer.entries) == 0 {
		return fmt.Errorf("export: no entries added")
	}

	index, err := codec.Marshal(writer.entries)
	if err != nil {
		return fmt.Errorf("export: encoding index: %w", err)
	}
	if _, err = writer.file.Write(index); err != nil {
		return fmt.Errorf("export: writing index: %w", err)
	}
	if err = binary.Write(writer.file, binary.BigEndian, int64(len(index))); err != nil {
		return fmt.Errorf("export: writing trailer: %w", err)
	}

	if err = writer.file.Sync(); err != nil {
		return fmt.Errorf("export: syncing: %w", err)
	}
	if err = writer.file.Close(); err != nil {
		return fmt.Errorf("export: closing: %w", err)
	}
	if err = os.Rename(writer.temporary, writer.path); err != nil {
		return fmt.Errorf("export: publishing %s: %w", writer.path, err)
	}
	writer.file = nil
	return nil
}

// Abort discards the work in progress. Safe after a failed Close.
func (writer *Writer) Abort() {
	if writer.file != nil {
		writer.file.Close()
		writer.file = nil
	}
	os.Remove(writer.temporary)
}
