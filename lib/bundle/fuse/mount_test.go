// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filippo.io/age"

	"github.com/bureau-foundation/reliquary/lib/bundle"
	"github.com/bureau-foundation/reliquary/lib/object"
	"github.com/bureau-foundation/reliquary/lib/secret"
	"github.com/bureau-foundation/reliquary/lib/share"
	"github.com/bureau-foundation/reliquary/lib/swhid"
)

var testCreated = time.Unix(1767225600, 0).UTC() // 2026-01-01T00:00:00Z

// fuseAvailable checks whether /dev/fuse is accessible. Tests that
// need a real FUSE mount call this and skip if the device is absent.
func fuseAvailable(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
}

var (
	contentID = swhid.MustParse("swh:1:cnt:94a9ed024d3859793618152ea559a168bbcbb5e2")
	originID  = swhid.MustParse("swh:1:ori:b63a575fe3faab7692c9f38fb09d4bb45651bb0f")

	contentBytes = []byte("#!/bin/sh\necho hello\n")
)

// testMount creates and seals a bundle, recovers its identity through
// the wrapped shares, and mounts it.
func testMount(t *testing.T) (mountpoint string, b *bundle.Bundle, identity *secret.Buffer) {
	t.Helper()
	fuseAvailable(t)

	root := t.TempDir()
	bundlePath := filepath.Join(root, "case-0042.bundle")

	first, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity: %v", err)
	}
	second, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity: %v", err)
	}
	roster := share.Roster{
		Threshold: 2,
		Holders: map[string]string{
			"alice": first.Recipient().String(),
			"bob":   second.Recipient().String(),
		},
	}

	err = bundle.Create(context.Background(), bundle.CreateRequest{
		Path:              bundlePath,
		RemovalIdentifier: "case-0042",
		Objects: []object.Object{
			{
				ID:   originID,
				Kind: object.KindOrigin,
				Properties: map[string]any{
					"url": "https://example.com/repo.git",
				},
			},
			{
				ID:   contentID,
				Kind: object.KindContent,
				Properties: map[string]any{
					"data":   contentBytes,
					"length": int64(len(contentBytes)),
				},
			},
		},
		Roster:  roster,
		Created: testCreated,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	b, err = bundle.Open(bundlePath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	source := bundle.HolderKey{Identities: []age.Identity{first, second}}
	identity, err = source.RecoverIdentity(context.Background(), b.Manifest())
	if err != nil {
		t.Fatalf("RecoverIdentity: %v", err)
	}
	t.Cleanup(func() { identity.Close() })

	mountpoint = filepath.Join(root, "mount")
	server, err := Mount(Options{
		Mountpoint: mountpoint,
		Bundle:     b,
		Identity:   identity,
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Unmount(); err != nil {
			t.Errorf("Unmount: %v", err)
		}
	})

	return mountpoint, b, identity
}

func TestMountRootLayout(t *testing.T) {
	mountpoint, _, _ := testMount(t)

	entries, err := os.ReadDir(mountpoint)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make(map[string]bool)
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	for _, want := range []string{"manifest.yml", "origin", "content", "data"} {
		if !names[want] {
			t.Errorf("root is missing %s (have %v)", want, names)
		}
	}
}

func TestMountManifestReadable(t *testing.T) {
	mountpoint, _, _ := testMount(t)

	manifest, err := os.ReadFile(filepath.Join(mountpoint, "manifest.yml"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(manifest), "case-0042") {
		t.Errorf("manifest does not mention the removal identifier:\n%s", manifest)
	}
}

func TestMountPayloadDecodes(t *testing.T) {
	mountpoint, _, _ := testMount(t)

	name := filepath.Join(mountpoint, "origin",
		"swh_1_ori_b63a575fe3faab7692c9f38fb09d4bb45651bb0f.cbor")
	payload, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	decoded, err := object.Deserialize(payload)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if decoded.ID != originID {
		t.Errorf("decoded SWHID %s, want %s", decoded.ID, originID)
	}
	if url := decoded.Properties["url"]; url != "https://example.com/repo.git" {
		t.Errorf("decoded url %v", url)
	}
}

func TestMountRawContentData(t *testing.T) {
	mountpoint, _, _ := testMount(t)

	data, err := os.ReadFile(filepath.Join(mountpoint, "data", contentID.String()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, contentBytes) {
		t.Errorf("data mismatch: got %q, want %q", data, contentBytes)
	}
}

func TestMountIsReadOnly(t *testing.T) {
	mountpoint, _, _ := testMount(t)

	path := filepath.Join(mountpoint, "data", contentID.String())
	if _, err := os.OpenFile(path, os.O_WRONLY, 0); err == nil {
		t.Fatal("opening a bundle file for writing succeeded")
	}
}
