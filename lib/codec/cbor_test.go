// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalDeterministic(t *testing.T) {
	// Two maps with the same entries inserted in different orders
	// must encode identically under Core Deterministic Encoding.
	first := map[string]any{}
	first["url"] = "https://example.com/repo"
	first["type"] = "git"
	first["visit"] = int64(3)

	second := map[string]any{}
	second["visit"] = int64(3)
	second["type"] = "git"
	second["url"] = "https://example.com/repo"

	firstBytes, err := Marshal(first)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	secondBytes, err := Marshal(second)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if !bytes.Equal(firstBytes, secondBytes) {
		t.Errorf("insertion order changed encoding:\n%x\n%x", firstBytes, secondBytes)
	}
}

func TestRoundTripAnyMap(t *testing.T) {
	original := map[string]any{
		"status":   "full",
		"visit":    int64(1),
		"snapshot": []byte{0xde, 0xad, 0xbe, 0xef},
		"metadata": map[string]any{"mirror": true},
	}

	encoded, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded["status"] != "full" {
		t.Errorf("status = %v", decoded["status"])
	}
	if decoded["visit"] != int64(1) {
		t.Errorf("visit = %v (%T)", decoded["visit"], decoded["visit"])
	}
	if !bytes.Equal(decoded["snapshot"].([]byte), original["snapshot"].([]byte)) {
		t.Errorf("snapshot bytes differ")
	}

	nested, ok := decoded["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("nested map decoded as %T, want map[string]any", decoded["metadata"])
	}
	if nested["mirror"] != true {
		t.Errorf("metadata.mirror = %v", nested["mirror"])
	}
}

func TestStreamEncoderDecoder(t *testing.T) {
	var stream bytes.Buffer

	encoder := NewEncoder(&stream)
	for _, value := range []string{"one", "two", "three"} {
		if err := encoder.Encode(value); err != nil {
			t.Fatalf("Encode(%q) failed: %v", value, err)
		}
	}

	decoder := NewDecoder(&stream)
	for _, want := range []string{"one", "two", "three"} {
		var got string
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got != want {
			t.Errorf("decoded %q, want %q", got, want)
		}
	}
}

func TestDiagnose(t *testing.T) {
	encoded, err := Marshal(map[string]any{"kind": "origin"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	notation, err := Diagnose(encoded)
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if notation == "" {
		t.Error("empty diagnostic notation")
	}
}
