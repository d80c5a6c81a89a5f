// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/subtle"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds sensitive bytes in memory that is locked against
// swapping, excluded from core dumps, and zeroed on close. The
// backing region is allocated with mmap outside the Go heap.
//
// A Buffer must not be copied after creation. Call Close as soon as
// the secret is no longer needed; after Close, any read panics.
type Buffer struct {
	mu     sync.Mutex
	region []byte
	length int
	closed bool
}

// New allocates a zero-filled guarded buffer of the given size. The
// region is mlock'd (no swap), MADV_DONTDUMP'd (no core dumps), and
// invisible to the garbage collector. The caller owns the buffer and
// must Close it.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap failed: %w", err)
	}

	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: mlock failed: %w", err)
	}

	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(region)
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	return &Buffer{
		region: region,
		length: size,
	}, nil
}

// NewFromBytes moves existing bytes into a guarded buffer. The source
// slice is zeroed in place after the copy, so the caller's slice no
// longer holds the secret. The source must be non-empty.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: cannot create buffer from empty source")
	}

	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}

	copy(buffer.region, source)
	Zero(source)

	return buffer, nil
}

// Bytes returns the secret contents. The slice aliases the mmap
// region directly: do not retain it past the buffer's lifetime and
// do not pass it to code that may keep a reference. Panics after
// Close.
func (buffer *Buffer) Bytes() []byte {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	if buffer.closed {
		panic("secret: read from closed buffer")
	}

	return buffer.region[:buffer.length]
}

// String returns the contents as a string. Go strings are immutable
// heap values, so the copy escapes the guarded region and cannot be
// zeroed. Use only at API boundaries that require a string (age
// identity parsing); prefer Bytes everywhere else. Panics after
// Close.
func (buffer *Buffer) String() string {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	if buffer.closed {
		panic("secret: read from closed buffer")
	}

	return string(buffer.region[:buffer.length])
}

// Len returns the secret's size in bytes. Valid after Close.
func (buffer *Buffer) Len() int {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.length
}

// Equal reports whether two buffers hold identical contents. The
// comparison is constant-time in the contents (length differences
// return early). Panics if either buffer is closed.
func (buffer *Buffer) Equal(other *Buffer) bool {
	if buffer == other {
		return true
	}
	// Lock ordering does not matter here: Bytes takes and releases
	// each buffer's own lock, and buffers are never locked across
	// calls.
	a := buffer.Bytes()
	b := other.Bytes()
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// WriteTo writes the secret contents to w without an intermediate
// heap copy. Implements io.WriterTo. Panics after Close.
func (buffer *Buffer) WriteTo(w io.Writer) (int64, error) {
	written, err := w.Write(buffer.Bytes())
	return int64(written), err
}

// Close zeroes the contents, unlocks, and unmaps the region. After
// Close, reads panic. Idempotent: second and later calls return nil.
func (buffer *Buffer) Close() error {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	if buffer.closed {
		return nil
	}
	buffer.closed = true

	Zero(buffer.region)

	// Unlock and unmap errors are reported but leave nothing secret
	// behind: the region is already zeroed.
	var firstError error
	if err := unix.Munlock(buffer.region); err != nil {
		firstError = fmt.Errorf("secret: munlock failed: %w", err)
	}
	if err := unix.Munmap(buffer.region); err != nil && firstError == nil {
		firstError = fmt.Errorf("secret: munmap failed: %w", err)
	}

	buffer.region = nil
	return firstError
}

// Zero overwrites a byte slice with zeros. For transient heap slices
// that held secret material outside a Buffer.
func Zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}
