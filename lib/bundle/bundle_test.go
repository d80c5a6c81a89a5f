// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"filippo.io/age"

	"github.com/bureau-foundation/reliquary/lib/object"
	"github.com/bureau-foundation/reliquary/lib/seal"
	"github.com/bureau-foundation/reliquary/lib/secret"
	"github.com/bureau-foundation/reliquary/lib/share"
	"github.com/bureau-foundation/reliquary/lib/swhid"
)

var (
	originID   = swhid.MustParse("swh:1:ori:8156088e6b74bd1a0435f133193f4d7c08ebbb18")
	snapshotID = swhid.MustParse("swh:1:snp:0000000000000000000000000000000000000022")
	revisionID = swhid.MustParse("swh:1:rev:0000000000000000000000000000000000000018")
	contentID  = swhid.MustParse("swh:1:cnt:94a9ed024d3859793618152ea559a168bbcbb5e2")
)

// testObjects is a realistic mixed removal set: an origin with its
// visit history, the snapshot and revision it led to, a content, and
// two anomaly records sharing the content's identifier.
func testObjects() []object.Object {
	return []object.Object{
		{ID: originID, Kind: object.KindOrigin, Properties: map[string]any{
			"url": "https://example.com/swift/graph",
		}},
		{ID: originID, Kind: object.KindOriginVisit, Properties: map[string]any{
			"visit": int64(1), "type": "git",
		}},
		{ID: originID, Kind: object.KindOriginVisitStatus, Properties: map[string]any{
			"visit": int64(1), "date": "2015-01-01T23:00:00+00:00", "status": "full",
		}},
		{ID: snapshotID, Kind: object.KindSnapshot, Properties: map[string]any{
			"branches": map[string]any{"refs/heads/master": "rev"},
		}},
		{ID: revisionID, Kind: object.KindRevision, Properties: map[string]any{
			"message": []byte("initial import"), "author": "ada",
		}},
		{ID: contentID, Kind: object.KindContent, Properties: map[string]any{
			"data": []byte("hello archive"), "length": int64(13),
		}},
		{ID: contentID, Kind: object.KindSkippedContent, Properties: map[string]any{
			"reason": "too large",
		}},
		{ID: contentID, Kind: object.KindSkippedContent, Properties: map[string]any{
			"reason": "absent",
		}},
	}
}

// testHolders generates count holder identities and a roster naming
// them holder-0, holder-1, …
func testHolders(t *testing.T, count, threshold int) (share.Roster, []age.Identity) {
	t.Helper()
	roster := share.Roster{Threshold: threshold, Holders: make(map[string]string, count)}
	identities := make([]age.Identity, count)
	names := []string{"holder-0", "holder-1", "holder-2", "holder-3", "holder-4"}
	for i := range count {
		identity, err := age.GenerateX25519Identity()
		if err != nil {
			t.Fatalf("GenerateX25519Identity failed: %v", err)
		}
		identities[i] = identity
		roster.Holders[names[i]] = identity.Recipient().String()
	}
	return roster, identities
}

// createTestBundle seals the standard fixture bundle and returns its
// path plus the roster's holder identities.
func createTestBundle(t *testing.T, threshold, holders int) (string, share.Roster, []age.Identity) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	roster, identities := testHolders(t, holders, threshold)

	err := Create(context.Background(), CreateRequest{
		Path:              path,
		RemovalIdentifier: "TDN-2023-06-18-01",
		Objects:           testObjects(),
		Roster:            roster,
		Created:           time.Date(2023, 6, 18, 13, 12, 42, 0, time.UTC),
		Reason:            "takedown notice TDN-2023-06-18-01",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return path, roster, identities
}

// recoverWith reconstructs the bundle identity from a subset of the
// holder identities.
func recoverWith(t *testing.T, bundle *Bundle, identities ...age.Identity) *secret.Buffer {
	t.Helper()
	identity, err := HolderKey{Identities: identities}.RecoverIdentity(context.Background(), bundle.Manifest())
	if err != nil {
		t.Fatalf("RecoverIdentity failed: %v", err)
	}
	t.Cleanup(func() { identity.Close() })
	return identity
}

func TestCreateOpenRecoverRoundTrip(t *testing.T) {
	path, _, identities := createTestBundle(t, 2, 3)

	bundle, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer bundle.Close()

	manifest := bundle.Manifest()
	if manifest.RemovalIdentifier != "TDN-2023-06-18-01" {
		t.Errorf("RemovalIdentifier = %q", manifest.RemovalIdentifier)
	}
	wantIDs := []swhid.SWHID{contentID, originID, revisionID, snapshotID}
	if !reflect.DeepEqual(manifest.SWHIDs, wantIDs) {
		t.Errorf("SWHIDs = %v, want %v", manifest.SWHIDs, wantIDs)
	}
	if got := len(bundle.Entries()); got != len(testObjects()) {
		t.Errorf("bundle has %d entries, want %d", got, len(testObjects()))
	}

	// Two of the three holders cooperate.
	identity := recoverWith(t, bundle, identities[0], identities[2])

	recovered := make(map[string]object.Object)
	err = bundle.ForEachObject(context.Background(), identity, func(entry Entry, o object.Object) error {
		recovered[entry.Name] = o
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachObject failed: %v", err)
	}
	if len(recovered) != len(testObjects()) {
		t.Fatalf("recovered %d objects, want %d", len(recovered), len(testObjects()))
	}
	for _, want := range testObjects() {
		found := false
		for _, got := range recovered {
			if got.ID == want.ID && got.Kind == want.Kind && reflect.DeepEqual(got.Properties, want.Properties) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("object %s (%s) did not survive the round trip", want.ID, want.Kind)
		}
	}

	var data bytes.Buffer
	if err := bundle.ExtractContent(context.Background(), identity, contentID, &data); err != nil {
		t.Fatalf("ExtractContent failed: %v", err)
	}
	if data.String() != "hello archive" {
		t.Errorf("extracted content = %q", data.String())
	}

	if err := bundle.Verify(context.Background(), identity); err != nil {
		t.Errorf("Verify failed on a freshly built bundle: %v", err)
	}
}

func TestAnyQuorumRecoversTheSameKey(t *testing.T) {
	path, _, identities := createTestBundle(t, 2, 3)

	bundle, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer bundle.Close()

	quorums := [][]age.Identity{
		{identities[0], identities[1]},
		{identities[1], identities[2]},
		{identities[0], identities[2]},
		{identities[0], identities[1], identities[2]},
	}
	var reference *secret.Buffer
	for i, quorum := range quorums {
		identity := recoverWith(t, bundle, quorum...)
		if reference == nil {
			reference = identity
			continue
		}
		if !identity.Equal(reference) {
			t.Errorf("quorum %d reconstructed a different identity", i)
		}
	}
}

func TestRecoveryBelowThreshold(t *testing.T) {
	path, _, identities := createTestBundle(t, 2, 3)

	bundle, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer bundle.Close()

	_, err = HolderKey{Identities: identities[:1]}.RecoverIdentity(context.Background(), bundle.Manifest())
	if !errors.Is(err, share.ErrCombine) {
		t.Fatalf("RecoverIdentity with one share = %v, want share.ErrCombine", err)
	}
}

func TestWrongIdentityFailsDecryption(t *testing.T) {
	path, _, _ := createTestBundle(t, 2, 3)

	bundle, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer bundle.Close()

	stranger, err := seal.GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}
	defer stranger.Close()

	entry := bundle.Entries()[0]
	_, err = bundle.DecryptObject(context.Background(), stranger.Secret, entry.Name)
	if !errors.Is(err, seal.ErrDecrypt) {
		t.Fatalf("DecryptObject with wrong identity = %v, want seal.ErrDecrypt", err)
	}
}

func TestMnemonicRecovery(t *testing.T) {
	path, _, identities := createTestBundle(t, 2, 3)

	bundle, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer bundle.Close()

	// Unwrap two shares the way operators do, then feed the wizard's
	// textual mnemonics back through a MnemonicKey.
	manifest := bundle.Manifest()
	var mnemonics []string
	for i, holder := range manifest.Holders()[:2] {
		recovered, err := UnwrapShare(manifest.DecryptionKeyShares[holder], manifest.RemovalIdentifier, identities...)
		if err != nil {
			t.Fatalf("UnwrapShare(%d) failed: %v", i, err)
		}
		mnemonic, err := recovered.Mnemonic()
		if err != nil {
			t.Fatalf("Mnemonic failed: %v", err)
		}
		mnemonics = append(mnemonics, mnemonic)
		recovered.Zero()
	}

	identity, err := MnemonicKey{Mnemonics: mnemonics}.RecoverIdentity(context.Background(), manifest)
	if err != nil {
		t.Fatalf("RecoverIdentity failed: %v", err)
	}
	defer identity.Close()

	if err := bundle.Verify(context.Background(), identity); err != nil {
		t.Errorf("Verify with mnemonic-recovered identity failed: %v", err)
	}
}

func TestShareFromAnotherBundleRejected(t *testing.T) {
	roster, identities := testHolders(t, 3, 2)
	directory := t.TempDir()

	paths := make([]string, 2)
	for i, identifier := range []string{"TDN-A", "TDN-B"} {
		paths[i] = filepath.Join(directory, identifier+".zip")
		err := Create(context.Background(), CreateRequest{
			Path:              paths[i],
			RemovalIdentifier: identifier,
			Objects:           testObjects()[:1],
			Roster:            roster,
			Created:           time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Create(%s) failed: %v", identifier, err)
		}
	}

	other, err := Open(paths[1])
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer other.Close()

	// A share wrapped for TDN-B presented during TDN-A's recovery.
	holder := other.Manifest().Holders()[0]
	_, err = UnwrapShare(other.Manifest().DecryptionKeyShares[holder], "TDN-A", identities...)
	if !errors.Is(err, ErrWrongBundle) {
		t.Fatalf("UnwrapShare across bundles = %v, want ErrWrongBundle", err)
	}
}

func TestRollover(t *testing.T) {
	path, _, oldIdentities := createTestBundle(t, 2, 3)

	bundle, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	oldManifest := bundle.Manifest()
	identity := recoverWith(t, bundle, oldIdentities[0], oldIdentities[1])

	ciphertextBefore := make(map[string][]byte)
	for _, entry := range bundle.Entries() {
		data, err := bundle.reader.readFile(entry.Name)
		if err != nil {
			t.Fatalf("reading %s: %v", entry.Name, err)
		}
		ciphertextBefore[entry.Name] = data
	}

	newRoster, newIdentities := testHolders(t, 3, 2)
	revision, err := bundle.Rollover(context.Background(), identity, newRoster)
	if err != nil {
		t.Fatalf("Rollover failed: %v", err)
	}
	bundle.Close()

	if !reflect.DeepEqual(revision.SWHIDs, oldManifest.SWHIDs) {
		t.Errorf("rollover changed the inventory")
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open after rollover failed: %v", err)
	}
	defer reopened.Close()

	// The old share ciphertexts are gone from the manifest.
	manifest := reopened.Manifest()
	for holder, ciphertext := range oldManifest.DecryptionKeyShares {
		if manifest.DecryptionKeyShares[holder] == ciphertext {
			t.Errorf("old share for %q survived the rollover", holder)
		}
	}

	// Object ciphertext is byte-identical: the key did not change.
	for name, before := range ciphertextBefore {
		after, err := reopened.reader.readFile(name)
		if err != nil {
			t.Fatalf("reading %s after rollover: %v", name, err)
		}
		if !bytes.Equal(before, after) {
			t.Errorf("entry %s was rewritten during rollover", name)
		}
	}

	// The new quorum opens everything; the old holders cannot
	// recover from the new manifest.
	newIdentity := recoverWith(t, reopened, newIdentities[0], newIdentities[1])
	if err := reopened.Verify(context.Background(), newIdentity); err != nil {
		t.Errorf("Verify after rollover failed: %v", err)
	}
	_, err = HolderKey{Identities: oldIdentities}.RecoverIdentity(context.Background(), manifest)
	if !errors.Is(err, share.ErrCombine) {
		t.Errorf("old holders against new manifest = %v, want share.ErrCombine", err)
	}
}

func TestRolloverWithWrongIdentityLeavesBundleIntact(t *testing.T) {
	path, _, _ := createTestBundle(t, 2, 3)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading bundle: %v", err)
	}

	bundle, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer bundle.Close()

	stranger, err := seal.GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}
	defer stranger.Close()

	newRoster, _ := testHolders(t, 2, 2)
	if _, err := bundle.Rollover(context.Background(), stranger.Secret, newRoster); !errors.Is(err, seal.ErrDecrypt) {
		t.Fatalf("Rollover with wrong identity = %v, want seal.ErrDecrypt", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("re-reading bundle: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("failed rollover modified the bundle file")
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("failed rollover left a temp file behind")
	}
}

func TestSealCancellationLeavesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.zip")
	roster, _ := testHolders(t, 3, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Create(ctx, CreateRequest{
		Path:              path,
		RemovalIdentifier: "TDN-CANCELLED",
		Objects:           testObjects(),
		Roster:            roster,
		Created:           time.Now().UTC(),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Create with cancelled context = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("cancelled build left the bundle file")
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("cancelled build left a temp file")
	}
}

func TestBuilderPathCollision(t *testing.T) {
	recipientIdentity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity failed: %v", err)
	}
	builder, err := NewBuilder(filepath.Join(t.TempDir(), "b.zip"), Manifest{
		RemovalIdentifier: "TDN-X",
		Created:           time.Now().UTC(),
	}, recipientIdentity.Recipient())
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}

	origin := testObjects()[0]
	if err := builder.Add(origin); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := builder.Add(origin); !errors.Is(err, ErrPathCollision) {
		t.Fatalf("second Add = %v, want ErrPathCollision", err)
	}

	// Same SWHID under different kinds is not a collision, nor are
	// two skipped contents (they get ordinals).
	content := testObjects()[5]
	skipped := testObjects()[6]
	for i, o := range []object.Object{content, skipped, skipped} {
		if err := builder.Add(o); err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
	}
}

func TestVerifyCatchesInventoryDrift(t *testing.T) {
	// Hand-build a container whose manifest lists an identifier no
	// entry carries.
	path := filepath.Join(t.TempDir(), "drifted.zip")
	recipientIdentity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity failed: %v", err)
	}

	payload, err := object.Serialize(testObjects()[0])
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	ciphertext, err := seal.Encrypt(payload, recipientIdentity.Recipient())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating container: %v", err)
	}
	writer := newContainerWriter(file)
	entry, err := entryName(testObjects()[0], 0)
	if err != nil {
		t.Fatalf("entryName failed: %v", err)
	}
	if err := writer.writeEntry(entry.Name, ciphertext); err != nil {
		t.Fatalf("writeEntry failed: %v", err)
	}
	err = writer.writeManifest(Manifest{
		RemovalIdentifier:   "TDN-DRIFT",
		Created:             time.Now().UTC(),
		SWHIDs:              []swhid.SWHID{originID, snapshotID},
		DecryptionKeyShares: map[string]string{"a": "c"},
	})
	if err != nil {
		t.Fatalf("writeManifest failed: %v", err)
	}
	if err := writer.close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("closing file: %v", err)
	}

	bundle, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer bundle.Close()

	if err := bundle.Verify(context.Background(), nil); err == nil {
		t.Fatal("Verify accepted a manifest listing an identifier with no entry")
	}
}
