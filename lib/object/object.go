// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package object models the archived objects carried by a recovery
// bundle and their canonical payload encoding.
//
// An [Object] couples a SWHID with a kind tag and a string-keyed
// attribute map. Attribute values are restricted to what CBOR can
// carry (strings, integers, byte strings, booleans, nil, nested maps
// and arrays); timestamps travel as ISO 8601 strings so the canonical
// encoding never depends on a time representation.
//
// [Serialize] produces the deterministic CBOR payload that gets
// encrypted into the bundle; [Deserialize] is its inverse. Removal
// sets (the hand-off file listing every object to back up) are read
// and written by removalset.go.
package object

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/reliquary/lib/codec"
	"github.com/bureau-foundation/reliquary/lib/swhid"
)

// Serialization sentinels. Wrapped errors carry the object identity
// and the underlying cause.
var (
	ErrSerialize   = errors.New("object: serialization failed")
	ErrDeserialize = errors.New("object: deserialization failed")
)

// Kind identifies which archive table an object came from. The kind
// decides the bundle directory the object is stored under and which
// naming metadata it must carry.
type Kind string

const (
	KindOrigin            Kind = "origin"
	KindOriginVisit       Kind = "origin_visit"
	KindOriginVisitStatus Kind = "origin_visit_status"
	KindSnapshot          Kind = "snapshot"
	KindRelease           Kind = "release"
	KindRevision          Kind = "revision"
	KindDirectory         Kind = "directory"
	KindContent           Kind = "content"
	KindSkippedContent    Kind = "skipped_content"
)

// Kinds lists every kind in bundle layout order: origins first, then
// the history chain down to contents.
func Kinds() []Kind {
	return []Kind{
		KindOrigin,
		KindOriginVisit,
		KindOriginVisitStatus,
		KindSnapshot,
		KindRelease,
		KindRevision,
		KindDirectory,
		KindContent,
		KindSkippedContent,
	}
}

// Valid reports whether the kind is one of the nine known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindOrigin, KindOriginVisit, KindOriginVisitStatus,
		KindSnapshot, KindRelease, KindRevision,
		KindDirectory, KindContent, KindSkippedContent:
		return true
	}
	return false
}

// String returns the kind tag.
func (k Kind) String() string { return string(k) }

// ObjectType returns the SWHID object type a kind's identifier must
// carry. Visits and visit statuses are addressed by their origin's
// SWHID; skipped contents by the content SWHID they stand in for.
func (k Kind) ObjectType() (swhid.ObjectType, error) {
	switch k {
	case KindOrigin, KindOriginVisit, KindOriginVisitStatus:
		return swhid.Origin, nil
	case KindSnapshot:
		return swhid.Snapshot, nil
	case KindRelease:
		return swhid.Release, nil
	case KindRevision:
		return swhid.Revision, nil
	case KindDirectory:
		return swhid.Directory, nil
	case KindContent, KindSkippedContent:
		return swhid.Content, nil
	}
	return "", fmt.Errorf("object: unknown kind %q", string(k))
}

// Object is one archived object: staged for backup by the builder, or
// recovered from a bundle by the opener.
type Object struct {
	ID         swhid.SWHID
	Kind       Kind
	Properties map[string]any
}

// Validate checks the identity invariants: a non-zero SWHID, a known
// kind, and agreement between the kind and the SWHID's object type.
func (o Object) Validate() error {
	if o.ID.IsZero() {
		return fmt.Errorf("object: missing SWHID")
	}
	if !o.Kind.Valid() {
		return fmt.Errorf("object %s: unknown kind %q", o.ID, string(o.Kind))
	}
	want, err := o.Kind.ObjectType()
	if err != nil {
		return err
	}
	if o.ID.Type() != want {
		return fmt.Errorf("object %s: kind %s requires a swh:1:%s identifier", o.ID, o.Kind, want)
	}
	return nil
}

// Visit returns the visit counter, present on origin_visit and
// origin_visit_status objects.
func (o Object) Visit() (int64, bool) {
	value, ok := o.Properties["visit"].(int64)
	return value, ok
}

// VisitDate returns the status timestamp (an ISO 8601 string),
// present on origin_visit_status objects.
func (o Object) VisitDate() (string, bool) {
	value, ok := o.Properties["date"].(string)
	return value, ok
}

// Data returns the raw bytes of a content object.
func (o Object) Data() ([]byte, bool) {
	value, ok := o.Properties["data"].([]byte)
	return value, ok
}

// payloadEnvelope is the on-wire shape of a serialized object. The
// identifier and kind travel inside the payload so a decrypted blob
// is self-describing without its container entry name.
type payloadEnvelope struct {
	ID         swhid.SWHID    `cbor:"id"`
	Kind       Kind           `cbor:"kind"`
	Properties map[string]any `cbor:"properties"`
}

// Serialize encodes an object into its canonical payload: CBOR Core
// Deterministic Encoding of the {id, kind, properties} envelope.
// Serializing the same object twice yields identical bytes.
func Serialize(o Object) ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}

	payload, err := codec.Marshal(payloadEnvelope{
		ID:         o.ID,
		Kind:       o.Kind,
		Properties: o.Properties,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSerialize, o.ID, err)
	}
	return payload, nil
}

// Deserialize decodes a canonical payload back into an Object.
func Deserialize(payload []byte) (Object, error) {
	var envelope payloadEnvelope
	if err := codec.Unmarshal(payload, &envelope); err != nil {
		return Object{}, fmt.Errorf("%w: %v", ErrDeserialize, err)
	}

	o := Object{
		ID:         envelope.ID,
		Kind:       envelope.Kind,
		Properties: envelope.Properties,
	}
	if err := o.Validate(); err != nil {
		return Object{}, fmt.Errorf("%w: %v", ErrDeserialize, err)
	}
	return o, nil
}
