// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundle builds, opens, and re-keys recovery bundles.
//
// A recovery bundle is the artifact kept when objects are removed
// from the archive: a zip container holding one age-encrypted file
// per removed object and a YAML manifest. Every object is encrypted
// to a keypair generated for that bundle alone. The private half is
// never stored; it is split into threshold shares (lib/share), each
// share wrapped to one holder's public key and embedded in the
// manifest. Getting plaintext back out requires a quorum of holders
// — no single operator can read removed content.
//
// [Create] and [Builder] produce bundles with all-or-nothing
// semantics: the container materializes via temp-file-and-rename
// only after every entry and the manifest are written. [Open] gives
// read access; [KeySource] implementations reassemble the identity
// from shares; [Bundle.Rollover] re-wraps the share set for a new
// holder roster without touching object ciphertext.
package bundle
