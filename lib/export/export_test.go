// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"bytes"
	"errors"
	mathrand "math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/reliquary/lib/object"
	"github.com/bureau-foundation/reliquary/lib/secret"
	"github.com/bureau-foundation/reliquary/lib/swhid"
)

var (
	contentID = swhid.MustParse("swh:1:cnt:94a9ed024d3859793618152ea559a168bbcbb5e2")
	originID  = swhid.MustParse("swh:1:ori:b63a575fe3faab7692c9f38fb09d4bb45651bb0f")
)

// compressible is text-like and should come back tagged zstd; the
// random payload should be stored uncompressed.
var (
	compressible = []byte(strings.Repeat("the quick brown fox jumps over the lazy dog\n", 200))
	random       = func() []byte {
		data := make([]byte, 4096)
		mathrand.New(mathrand.NewSource(42)).Read(data)
		return data
	}()
)

func writeArchive(t *testing.T, key *secret.Buffer) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "restore.relexp")

	writer, err := NewWriter(path, key)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := writer.Add("content/swh_1_cnt_94a9ed024d3859793618152ea559a168bbcbb5e2", contentID, object.KindContent, compressible); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := writer.Add("origin/swh_1_ori_b63a575fe3faab7692c9f38fb09d4bb45651bb0f", originID, object.KindOrigin, random); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestRoundTripPlaintext(t *testing.T) {
	path := writeArchive(t, nil)

	reader, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	entries := reader.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Compression != CompressionZstd {
		t.Errorf("text entry compressed as %s, want zstd", entries[0].Compression)
	}
	if entries[0].Size != int64(len(compressible)) {
		t.Errorf("text entry size %d, want %d", entries[0].Size, len(compressible))
	}

	for _, want := range []struct {
		name    string
		payload []byte
	}{
		{entries[0].Name, compressible},
		{entries[1].Name, random},
	} {
		got, err := reader.Read(want.name)
		if err != nil {
			t.Fatalf("Read(%s): %v", want.name, err)
		}
		if !bytes.Equal(got, want.payload) {
			t.Errorf("Read(%s): payload mismatch", want.name)
		}
	}
}

func TestRoundTripEncrypted(t *testing.T) {
	key, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	defer key.Close()
	path := writeArchive(t, key)

	reader, err := Open(path, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	for _, entry := range reader.Entries() {
		if _, err := reader.Read(entry.Name); err != nil {
			t.Errorf("Read(%s): %v", entry.Name, err)
		}
	}
}

func TestEncryptedArchiveRequiresKey(t *testing.T) {
	key, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	defer key.Close()
	path := writeArchive(t, key)

	if _, err := Open(path, nil); !errors.Is(err, ErrKeyRequired) {
		t.Fatalf("Open without key: got %v, want ErrKeyRequired", err)
	}
}

func TestWrongKeyFailsAuthentication(t *testing.T) {
	key, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	defer key.Close()
	path := writeArchive(t, key)

	wrong, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	defer wrong.Close()

	reader, err := Open(path, wrong)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	for _, entry := range reader.Entries() {
		if _, err := reader.Read(entry.Name); err == nil {
			t.Errorf("Read(%s) with wrong key succeeded", entry.Name)
		}
	}
}

func TestKeyOnPlaintextArchiveRejected(t *testing.T) {
	path := writeArchive(t, nil)

	key, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	defer key.Close()

	if _, err := Open(path, key); err == nil {
		t.Fatal("Open of plaintext archive with a key succeeded")
	}
}

func TestCorruptedBlobFailsChecksum(t *testing.T) {
	path := writeArchive(t, nil)

	reader, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	entry := reader.Entries()[1] // stored uncompressed, so a flip survives decode
	reader.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	data[entry.Offset+entry.StoredSize/2] ^= 0x01
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reader, err = Open(path, nil)
	if err != nil {
		t.Fatalf("Open after corruption: %v", err)
	}
	defer reader.Close()
	if _, err := reader.Read(entry.Name); !errors.Is(err, ErrChecksum) {
		t.Fatalf("Read of corrupted entry: got %v, want ErrChecksum", err)
	}
}

func TestDuplicateEntryNameRejected(t *testing.T) {
	writer, err := NewWriter(filepath.Join(t.TempDir(), "restore.relexp"), nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer writer.Abort()

	if err := writer.Add("twice", contentID, object.KindContent, compressible); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := writer.Add("twice", originID, object.KindOrigin, random); err == nil {
		t.Fatal("duplicate Add succeeded")
	}
}

func TestAbortLeavesNothing(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "restore.relexp")

	writer, err := NewWriter(path, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := writer.Add("entry", contentID, object.KindContent, compressible); err != nil {
		t.Fatalf("Add: %v", err)
	}
	writer.Abort()

	leftovers, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("Abort left %d files behind", len(leftovers))
	}
}

func TestTruncatedFileRejected(t *testing.T) {
	path := writeArchive(t, nil)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-4], 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Open(path, nil); err == nil {
		t.Fatal("Open of truncated archive succeeded")
	}
}
