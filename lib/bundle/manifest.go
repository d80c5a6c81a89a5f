// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/reliquary/lib/swhid"
)

// ManifestVersion is the manifest schema version this package writes
// and the only one it reads.
const ManifestVersion = 1

// ManifestName is the manifest's entry name inside the container. It
// is always the final entry, so a truncated bundle is detectably
// unsealed.
const ManifestName = "manifest.yml"

var (
	// ErrSchemaVersion reports a manifest whose version field is not
	// ManifestVersion. Readers refuse to guess at future schemas.
	ErrSchemaVersion = errors.New("bundle: manifest version is not supported")

	// ErrPathCollision reports two staged objects mapping to the same
	// container entry name.
	ErrPathCollision = errors.New("bundle: entry name collision")

	// ErrReconstruct reports that a quorum of shares combined into
	// bytes that do not parse as an age identity: the shares are
	// corrupt or from a different bundle's split.
	ErrReconstruct = errors.New("bundle: reconstructed key is not a valid identity")

	// ErrWrongBundle reports a decrypted share whose embedded removal
	// identifier names a different bundle.
	ErrWrongBundle = errors.New("bundle: share belongs to a different bundle")
)

// Manifest is the bundle's metadata record. A Manifest is a value:
// accessors return copies, and a rollover produces a new Manifest
// rather than mutating the loaded one.
type Manifest struct {
	// RemovalIdentifier is the human-chosen case identifier, e.g. a
	// takedown-notice number.
	RemovalIdentifier string

	// Created is when the bundle was sealed.
	Created time.Time

	// SWHIDs is the sorted, de-duplicated inventory of object
	// identifiers in the bundle.
	SWHIDs []swhid.SWHID

	// DecryptionKeyShares maps each holder identifier to the armored
	// age ciphertext of their wrapped key share.
	DecryptionKeyShares map[string]string

	// Reason is the optional free-text removal justification.
	Reason string

	// Expire is the optional date after which the bundle should be
	// destroyed. Zero means no expiry.
	Expire time.Time
}

// manifestDocument is the YAML shape of a manifest. Field order here
// is the field order in the file.
type manifestDocument struct {
	Version             int               `yaml:"version"`
	RemovalIdentifier   string            `yaml:"removal_identifier"`
	Created             time.Time         `yaml:"created"`
	SWHIDs              []string          `yaml:"swhids"`
	DecryptionKeyShares map[string]string `yaml:"decryption_key_shares"`
	Reason              string            `yaml:"reason,omitempty"`
	Expire              *time.Time        `yaml:"expire,omitempty"`
}

// Validate checks the invariants every sealed manifest satisfies.
func (manifest Manifest) Validate() error {
	if manifest.RemovalIdentifier == "" {
		return fmt.Errorf("bundle: manifest has no removal identifier")
	}
	if manifest.Created.IsZero() {
		return fmt.Errorf("bundle: manifest has no creation time")
	}
	if len(manifest.SWHIDs) == 0 {
		return fmt.Errorf("bundle: manifest lists no objects")
	}
	for _, id := range manifest.SWHIDs {
		if id.IsZero() {
			return fmt.Errorf("bundle: manifest lists a zero identifier")
		}
	}
	if len(manifest.DecryptionKeyShares) == 0 {
		return fmt.Errorf("bundle: manifest has no key shares")
	}
	for holder, ciphertext := range manifest.DecryptionKeyShares {
		if holder == "" {
			return fmt.Errorf("bundle: manifest has a share with an empty holder identifier")
		}
		if ciphertext == "" {
			return fmt.Errorf("bundle: holder %q has an empty share", holder)
		}
	}
	return nil
}

// Holders returns the share holder identifiers in sorted order.
func (manifest Manifest) Holders() []string {
	return slices.Sorted(maps.Keys(manifest.DecryptionKeyShares))
}

// Shares returns a copy of the holder→ciphertext map.
func (manifest Manifest) Shares() map[string]string {
	return maps.Clone(manifest.DecryptionKeyShares)
}

// WithShares returns the manifest's next revision: identical except
// for a replaced share map. This is the only field a rollover
// touches.
func (manifest Manifest) WithShares(shares map[string]string) Manifest {
	revision := manifest
	revision.SWHIDs = slices.Clone(manifest.SWHIDs)
	revision.DecryptionKeyShares = maps.Clone(shares)
	return revision
}

// Encode serializes the manifest to YAML, validating first.
func (manifest Manifest) Encode() ([]byte, error) {
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	document := manifestDocument{
		Version:             ManifestVersion,
		RemovalIdentifier:   manifest.RemovalIdentifier,
		Created:             manifest.Created,
		DecryptionKeyShares: manifest.DecryptionKeyShares,
		Reason:              manifest.Reason,
	}
	for _, id := range manifest.SWHIDs {
		document.SWHIDs = append(document.SWHIDs, id.String())
	}
	if !manifest.Expire.IsZero() {
		expire := manifest.Expire
		document.Expire = &expire
	}

	encoded, err := yaml.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("bundle: encoding manifest: %w", err)
	}
	return encoded, nil
}

// DecodeManifest parses and validates a manifest document. The
// version field is checked first, on a permissive read, so that a
// future schema fails with ErrSchemaVersion instead of a confusing
// unknown-field error; the full decode is then strict and rejects
// fields this version does not define.
func DecodeManifest(data []byte) (Manifest, error) {
	var probe struct {
		Version int `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return Manifest{}, fmt.Errorf("bundle: parsing manifest: %w", err)
	}
	if probe.Version != ManifestVersion {
		return Manifest{}, fmt.Errorf("%w: version %d", ErrSchemaVersion, probe.Version)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var document manifestDocument
	if err := decoder.Decode(&document); err != nil {
		return Manifest{}, fmt.Errorf("bundle: parsing manifest: %w", err)
	}
	// A second document in the stream would be silently dropped
	// otherwise.
	if err := decoder.Decode(new(manifestDocument)); err != io.EOF {
		return Manifest{}, fmt.Errorf("bundle: manifest holds more than one document")
	}

	manifest := Manifest{
		RemovalIdentifier:   document.RemovalIdentifier,
		Created:             document.Created,
		DecryptionKeyShares: document.DecryptionKeyShares,
		Reason:              document.Reason,
	}
	for _, text := range document.SWHIDs {
		id, err := swhid.Parse(text)
		if err != nil {
			return Manifest{}, fmt.Errorf("bundle: manifest swhids: %w", err)
		}
		manifest.SWHIDs = append(manifest.SWHIDs, id)
	}
	if document.Expire != nil {
		manifest.Expire = *document.Expire
	}

	if err := manifest.Validate(); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}
