// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/reliquary/lib/swhid"
)

func sampleSet() []Object {
	return []Object{
		{
			ID:   swhid.MustParse("swh:1:ori:33abcd5df9cf9c7be38e9c8dede45c0bac9219f5"),
			Kind: KindOrigin,
			Properties: map[string]any{
				"url": "https://example.com/swift",
			},
		},
		{
			ID:   swhid.MustParse("swh:1:cnt:94a9ed024d3859793618152ea559a168bbcbb5e2"),
			Kind: KindContent,
			Properties: map[string]any{
				"data":   []byte("#include <stdio.h>\n"),
				"length": int64(19),
				"status": "visible",
			},
		},
	}
}

func TestRemovalSetRoundTrip(t *testing.T) {
	var stream bytes.Buffer
	if err := WriteRemovalSet(&stream, sampleSet()); err != nil {
		t.Fatalf("WriteRemovalSet failed: %v", err)
	}

	objects, err := ReadRemovalSet(&stream)
	if err != nil {
		t.Fatalf("ReadRemovalSet failed: %v", err)
	}

	if len(objects) != 2 {
		t.Fatalf("read %d objects, want 2", len(objects))
	}
	if objects[0].Kind != KindOrigin || objects[1].Kind != KindContent {
		t.Errorf("kinds = %v, %v", objects[0].Kind, objects[1].Kind)
	}
	if data, ok := objects[1].Data(); !ok || len(data) != 19 {
		t.Errorf("content data = %q, %v", data, ok)
	}
}

func TestReadRemovalSetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "removal.cbor")

	var stream bytes.Buffer
	if err := WriteRemovalSet(&stream, sampleSet()); err != nil {
		t.Fatalf("WriteRemovalSet failed: %v", err)
	}
	if err := os.WriteFile(path, stream.Bytes(), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	objects, err := ReadRemovalSetFile(path)
	if err != nil {
		t.Fatalf("ReadRemovalSetFile failed: %v", err)
	}
	if len(objects) != 2 {
		t.Errorf("read %d objects, want 2", len(objects))
	}
}

func TestWriteRemovalSetRejectsInvalidEntry(t *testing.T) {
	bad := sampleSet()
	bad[1].Kind = KindRevision // cnt identifier under a rev kind

	var stream bytes.Buffer
	if err := WriteRemovalSet(&stream, bad); err == nil {
		t.Fatal("expected validation error")
	}
	if stream.Len() != 0 {
		t.Error("invalid set must not produce output")
	}
}

func TestReadRemovalSetRejectsGarbage(t *testing.T) {
	if _, err := ReadRemovalSet(bytes.NewReader([]byte("not cbor"))); err == nil {
		t.Fatal("expected decode error")
	}
}
