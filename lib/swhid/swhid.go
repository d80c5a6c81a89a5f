// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package swhid provides the SWHID persistent identifier value type.
//
// A SWHID names one archived object:
//
//	swh:1:cnt:94a9ed024d3859793618152ea559a168bbcbb5e2
//
// The scheme version is pinned to 1. The object type is one of ori,
// snp, rel, rev, dir, cnt. The digest is 40 lowercase hex characters
// (SHA-1 length). SWHID is immutable and comparable; construct one
// with Parse, MustParse, or New — the zero value is invalid and
// reports IsZero.
package swhid

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ObjectType is the three-letter object type tag inside a SWHID.
type ObjectType string

const (
	Origin    ObjectType = "ori"
	Snapshot  ObjectType = "snp"
	Release   ObjectType = "rel"
	Revision  ObjectType = "rev"
	Directory ObjectType = "dir"
	Content   ObjectType = "cnt"
)

// Valid reports whether the tag is one of the six known object types.
func (t ObjectType) Valid() bool {
	switch t {
	case Origin, Snapshot, Release, Revision, Directory, Content:
		return true
	}
	return false
}

// String returns the three-letter tag.
func (t ObjectType) String() string { return string(t) }

// DigestLength is the byte length of a SWHID digest.
const DigestLength = 20

// prefix is the fixed scheme and version of every identifier this
// package accepts.
const prefix = "swh:1:"

// SWHID is a parsed persistent identifier. The canonical string form
// is precomputed at construction, so String, Compare, and map-key use
// are allocation-free.
type SWHID struct {
	text   string
	kind   ObjectType
	digest [DigestLength]byte
}

// New constructs a SWHID from an object type and raw digest bytes.
func New(kind ObjectType, digest [DigestLength]byte) (SWHID, error) {
	if !kind.Valid() {
		return SWHID{}, fmt.Errorf("swhid: unknown object type %q", string(kind))
	}
	return SWHID{
		text:   prefix + string(kind) + ":" + hex.EncodeToString(digest[:]),
		kind:   kind,
		digest: digest,
	}, nil
}

// Parse parses the canonical string form. The digest must be exactly
// 40 lowercase hex characters; uppercase is rejected so that every
// SWHID has one spelling.
func Parse(s string) (SWHID, error) {
	rest, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return SWHID{}, fmt.Errorf("swhid: %q does not start with %q", s, prefix)
	}

	tag, digestHex, ok := strings.Cut(rest, ":")
	if !ok {
		return SWHID{}, fmt.Errorf("swhid: %q is missing the digest separator", s)
	}

	kind := ObjectType(tag)
	if !kind.Valid() {
		return SWHID{}, fmt.Errorf("swhid: %q has unknown object type %q", s, tag)
	}

	if len(digestHex) != 2*DigestLength {
		return SWHID{}, fmt.Errorf("swhid: %q digest is %d characters, want %d", s, len(digestHex), 2*DigestLength)
	}
	if strings.ToLower(digestHex) != digestHex {
		return SWHID{}, fmt.Errorf("swhid: %q digest must be lowercase", s)
	}

	var digest [DigestLength]byte
	if _, err := hex.Decode(digest[:], []byte(digestHex)); err != nil {
		return SWHID{}, fmt.Errorf("swhid: %q digest is not hex: %w", s, err)
	}

	return SWHID{text: s, kind: kind, digest: digest}, nil
}

// MustParse parses s and panics on error. For fixtures and constants
// known to be valid.
func MustParse(s string) SWHID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Type returns the object type tag.
func (id SWHID) Type() ObjectType { return id.kind }

// Digest returns the raw digest bytes.
func (id SWHID) Digest() [DigestLength]byte { return id.digest }

// Hex returns the digest as 40 lowercase hex characters.
func (id SWHID) Hex() string { return id.text[len(prefix)+4:] }

// String returns the canonical form, satisfying fmt.Stringer. The
// zero value returns "".
func (id SWHID) String() string { return id.text }

// IsZero reports whether this is an uninitialized zero value.
func (id SWHID) IsZero() bool { return id.text == "" }

// Compare orders identifiers lexicographically by canonical form.
// Suitable for slices.SortFunc.
func Compare(a, b SWHID) int { return strings.Compare(a.text, b.text) }

// MarshalText implements encoding.TextMarshaler, emitting the
// canonical string. A zero value marshals as the empty string.
func (id SWHID) MarshalText() ([]byte, error) {
	return []byte(id.text), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input
// produces the zero value, mirroring MarshalText.
func (id *SWHID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = SWHID{}
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
