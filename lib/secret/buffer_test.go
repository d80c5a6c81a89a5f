// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"testing"
)

func TestNewZeroFilled(t *testing.T) {
	buffer, err := New(48)
	if err != nil {
		t.Fatalf("New(48) failed: %v", err)
	}
	defer buffer.Close()

	if buffer.Len() != 48 {
		t.Errorf("expected length 48, got %d", buffer.Len())
	}

	for index, value := range buffer.Bytes() {
		if value != 0 {
			t.Fatalf("expected zero at index %d, got %d", index, value)
		}
	}
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1, -100} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) should fail", size)
		}
	}
}

func TestNewFromBytesZerosSource(t *testing.T) {
	source := []byte("AGE-SECRET-KEY-TEST-MATERIAL")
	original := string(source)

	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes failed: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != original {
		t.Errorf("buffer content %q, want %q", got, original)
	}

	for index, value := range source {
		if value != 0 {
			t.Fatalf("source byte %d not zeroed: %d", index, value)
		}
	}
}

func TestNewFromBytesRejectsEmpty(t *testing.T) {
	if _, err := NewFromBytes(nil); err == nil {
		t.Fatal("expected error for empty source")
	}
}

func TestBytesAliasesRegion(t *testing.T) {
	buffer, err := New(8)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer buffer.Close()

	copy(buffer.Bytes(), "sesame")
	if got := buffer.String(); got[:6] != "sesame" {
		t.Errorf("write through Bytes not visible: %q", got)
	}
}

func TestEqual(t *testing.T) {
	left, err := NewFromBytes([]byte("identical"))
	if err != nil {
		t.Fatalf("NewFromBytes failed: %v", err)
	}
	defer left.Close()

	right, err := NewFromBytes([]byte("identical"))
	if err != nil {
		t.Fatalf("NewFromBytes failed: %v", err)
	}
	defer right.Close()

	other, err := NewFromBytes([]byte("different"))
	if err != nil {
		t.Fatalf("NewFromBytes failed: %v", err)
	}
	defer other.Close()

	if !left.Equal(right) {
		t.Error("equal buffers reported unequal")
	}
	if left.Equal(other) {
		t.Error("different buffers reported equal")
	}
	if !left.Equal(left) {
		t.Error("buffer not equal to itself")
	}
}

func TestWriteTo(t *testing.T) {
	buffer, err := NewFromBytes([]byte("streamed"))
	if err != nil {
		t.Fatalf("NewFromBytes failed: %v", err)
	}
	defer buffer.Close()

	var sink bytes.Buffer
	written, err := buffer.WriteTo(&sink)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if written != 8 || sink.String() != "streamed" {
		t.Errorf("WriteTo wrote %d bytes %q", written, sink.String())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	buffer, err := New(16)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := buffer.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestReadAfterClosePanics(t *testing.T) {
	buffer, err := New(16)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	buffer.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on Bytes after Close")
		}
	}()
	buffer.Bytes()
}

func TestZero(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	Zero(data)
	for index, value := range data {
		if value != 0 {
			t.Fatalf("byte %d not zeroed: %d", index, value)
		}
	}
}
