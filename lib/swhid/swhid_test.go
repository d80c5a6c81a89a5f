// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package swhid

import (
	"slices"
	"testing"
)

const contentID = "swh:1:cnt:94a9ed024d3859793618152ea559a168bbcbb5e2"

func TestParseValid(t *testing.T) {
	cases := []struct {
		input string
		kind  ObjectType
	}{
		{contentID, Content},
		{"swh:1:ori:8156088e6b74bd1a0435f133193f4d7c08ebbb18", Origin},
		{"swh:1:snp:0000000000000000000000000000000000000022", Snapshot},
		{"swh:1:rel:db46d5d60f1f543071b716249401b250e1a6d4ee", Release},
		{"swh:1:rev:0000000000000000000000000000000000000018", Revision},
		{"swh:1:dir:4b825dc642cb6eb9a060e54bf8d69288fbee4904", Directory},
	}

	for _, c := range cases {
		id, err := Parse(c.input)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", c.input, err)
			continue
		}
		if id.Type() != c.kind {
			t.Errorf("Parse(%q).Type() = %q, want %q", c.input, id.Type(), c.kind)
		}
		if id.String() != c.input {
			t.Errorf("Parse(%q).String() = %q", c.input, id.String())
		}
		if id.IsZero() {
			t.Errorf("Parse(%q) is zero", c.input)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []string{
		"",
		"swh:1:cnt",
		"swh:2:cnt:94a9ed024d3859793618152ea559a168bbcbb5e2",
		"swh:1:bad:94a9ed024d3859793618152ea559a168bbcbb5e2",
		"swh:1:cnt:94a9ed",
		"swh:1:cnt:94A9ED024D3859793618152EA559A168BBCBB5E2",
		"swh:1:cnt:94a9ed024d3859793618152ea559a168bbcbb5ez",
		"swh:1:cnt:94a9ed024d3859793618152ea559a168bbcbb5e2f0",
		"spdx:1:cnt:94a9ed024d3859793618152ea559a168bbcbb5e2",
	}

	for _, input := range cases {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}

func TestHexAndDigest(t *testing.T) {
	id := MustParse(contentID)

	if id.Hex() != "94a9ed024d3859793618152ea559a168bbcbb5e2" {
		t.Errorf("Hex() = %q", id.Hex())
	}

	digest := id.Digest()
	if digest[0] != 0x94 || digest[19] != 0xe2 {
		t.Errorf("Digest() boundary bytes = %x %x", digest[0], digest[19])
	}

	rebuilt, err := New(Content, digest)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if rebuilt != id {
		t.Errorf("New round-trip = %v, want %v", rebuilt, id)
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	var digest [DigestLength]byte
	if _, err := New(ObjectType("xyz"), digest); err == nil {
		t.Fatal("expected error for unknown object type")
	}
}

func TestCompareSorts(t *testing.T) {
	ids := []SWHID{
		MustParse("swh:1:snp:0000000000000000000000000000000000000022"),
		MustParse(contentID),
		MustParse("swh:1:dir:4b825dc642cb6eb9a060e54bf8d69288fbee4904"),
	}

	slices.SortFunc(ids, Compare)

	if ids[0].Type() != Content || ids[1].Type() != Directory || ids[2].Type() != Snapshot {
		t.Errorf("sorted order: %v %v %v", ids[0], ids[1], ids[2])
	}
}

func TestTextMarshaling(t *testing.T) {
	id := MustParse(contentID)

	text, err := id.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	if string(text) != contentID {
		t.Errorf("MarshalText = %q", text)
	}

	var decoded SWHID
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if decoded != id {
		t.Errorf("round-trip = %v, want %v", decoded, id)
	}

	var zero SWHID
	if err := zero.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(empty) failed: %v", err)
	}
	if !zero.IsZero() {
		t.Error("empty input should produce the zero value")
	}

	if err := decoded.UnmarshalText([]byte("swh:1:cnt:short")); err == nil {
		t.Error("UnmarshalText should reject malformed input")
	}
}
