// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the canonical CBOR configuration shared by
// every serialization surface: object payloads, removal-set files,
// and export archive indexes.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2), so equal
// values always produce identical bytes. Decoding accepts standard
// CBOR and forces string-keyed maps for any-typed targets.
//
// Use [Marshal]/[Unmarshal] for in-memory values and
// [NewEncoder]/[NewDecoder] for streams. [Diagnose] renders bytes in
// diagnostic notation for humans.
package codec
