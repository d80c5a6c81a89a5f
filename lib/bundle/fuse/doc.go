// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuse exposes an opened recovery bundle as a read-only FUSE
// filesystem, so restore tooling and ad-hoc inspection can browse the
// decrypted objects with ordinary file operations instead of the
// bundle API.
package fuse
