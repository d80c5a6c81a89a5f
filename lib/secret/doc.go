// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides guarded memory for key material: age
// identity strings, reconstructed sharing secrets, and share
// mnemonics in transit.
//
// [Buffer] allocates memory outside the Go heap via
// mmap(MAP_ANONYMOUS), locks it into physical RAM via mlock
// (preventing swap), and marks it excluded from core dumps via
// madvise(MADV_DONTDUMP). On Close the memory is zeroed, unlocked,
// and unmapped. Because the region lives outside the Go heap, the
// garbage collector never copies or relocates it, so closing a
// buffer is the end of the secret's life in this process.
//
// Constructors:
//
//   - [New] allocates a zero-filled buffer of a given size
//   - [NewFromBytes] copies into protected memory and zeros the source
//
// Access the contents with [Buffer.Bytes] (a slice into the mmap
// region) or [Buffer.String] (a heap copy, only for API boundaries
// that demand a string). [Buffer.Equal] compares two buffers in
// constant time. [Buffer.WriteTo] streams the contents to a writer
// without an intermediate heap copy. After Close any access panics;
// Close is idempotent.
//
// [Zero] wipes plain byte slices that briefly held secret material
// before it reached a Buffer (or after it left one).
package secret
