// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/bureau-foundation/reliquary/lib/swhid"
)

func originVisitStatus() Object {
	return Object{
		ID:   swhid.MustParse("swh:1:ori:8156088e6b74bd1a0435f133193f4d7c08ebbb18"),
		Kind: KindOriginVisitStatus,
		Properties: map[string]any{
			"visit":    int64(1),
			"date":     "2015-01-01T23:00:00.000000+00:00",
			"status":   "full",
			"snapshot": []byte{0x00, 0x22},
		},
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	original := originVisitStatus()

	payload, err := Serialize(original)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	recovered, err := Deserialize(payload)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	if recovered.ID != original.ID {
		t.Errorf("ID = %v, want %v", recovered.ID, original.ID)
	}
	if recovered.Kind != original.Kind {
		t.Errorf("Kind = %v, want %v", recovered.Kind, original.Kind)
	}
	if !reflect.DeepEqual(recovered.Properties, original.Properties) {
		t.Errorf("Properties = %#v, want %#v", recovered.Properties, original.Properties)
	}
}

func TestSerializeDeterministic(t *testing.T) {
	// Same logical object, attribute maps built in different orders.
	first := Object{
		ID:         swhid.MustParse("swh:1:ori:33abcd5df9cf9c7be38e9c8dede45c0bac9219f5"),
		Kind:       KindOrigin,
		Properties: map[string]any{},
	}
	first.Properties["url"] = "https://example.com/swift"
	first.Properties["zeta"] = int64(9)

	second := Object{
		ID:         first.ID,
		Kind:       KindOrigin,
		Properties: map[string]any{},
	}
	second.Properties["zeta"] = int64(9)
	second.Properties["url"] = "https://example.com/swift"

	firstPayload, err := Serialize(first)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	secondPayload, err := Serialize(second)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	if !bytes.Equal(firstPayload, secondPayload) {
		t.Error("equal objects serialized to different bytes")
	}
}

func TestSerializeRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		o    Object
	}{
		{"zero swhid", Object{Kind: KindOrigin}},
		{"unknown kind", Object{
			ID:   swhid.MustParse("swh:1:cnt:94a9ed024d3859793618152ea559a168bbcbb5e2"),
			Kind: Kind("artifact"),
		}},
		{"kind/type mismatch", Object{
			ID:   swhid.MustParse("swh:1:cnt:94a9ed024d3859793618152ea559a168bbcbb5e2"),
			Kind: KindRevision,
		}},
	}

	for _, c := range cases {
		if _, err := Serialize(c.o); !errors.Is(err, ErrSerialize) {
			t.Errorf("%s: error = %v, want ErrSerialize", c.name, err)
		}
	}
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	if _, err := Deserialize([]byte{0xff, 0x00, 0x01}); !errors.Is(err, ErrDeserialize) {
		t.Errorf("error = %v, want ErrDeserialize", err)
	}
}

func TestAccessors(t *testing.T) {
	status := originVisitStatus()

	visit, ok := status.Visit()
	if !ok || visit != 1 {
		t.Errorf("Visit() = %d, %v", visit, ok)
	}

	date, ok := status.VisitDate()
	if !ok || date != "2015-01-01T23:00:00.000000+00:00" {
		t.Errorf("VisitDate() = %q, %v", date, ok)
	}

	if _, ok := status.Data(); ok {
		t.Error("Data() present on a visit status")
	}

	content := Object{
		ID:   swhid.MustParse("swh:1:cnt:94a9ed024d3859793618152ea559a168bbcbb5e2"),
		Kind: KindContent,
		Properties: map[string]any{
			"data":   []byte("hello\n"),
			"length": int64(6),
		},
	}
	data, ok := content.Data()
	if !ok || string(data) != "hello\n" {
		t.Errorf("Data() = %q, %v", data, ok)
	}
}

func TestKindObjectType(t *testing.T) {
	cases := map[Kind]swhid.ObjectType{
		KindOrigin:            swhid.Origin,
		KindOriginVisit:       swhid.Origin,
		KindOriginVisitStatus: swhid.Origin,
		KindSnapshot:          swhid.Snapshot,
		KindRelease:           swhid.Release,
		KindRevision:          swhid.Revision,
		KindDirectory:         swhid.Directory,
		KindContent:           swhid.Content,
		KindSkippedContent:    swhid.Content,
	}

	for kind, want := range cases {
		got, err := kind.ObjectType()
		if err != nil {
			t.Errorf("%s: %v", kind, err)
			continue
		}
		if got != want {
			t.Errorf("%s.ObjectType() = %v, want %v", kind, got, want)
		}
	}

	if _, err := Kind("unknown").ObjectType(); err == nil {
		t.Error("unknown kind should error")
	}
}

func TestKindsCoversAll(t *testing.T) {
	kinds := Kinds()
	if len(kinds) != 9 {
		t.Fatalf("Kinds() has %d entries", len(kinds))
	}
	for _, kind := range kinds {
		if !kind.Valid() {
			t.Errorf("listed kind %q not valid", kind)
		}
	}
}
