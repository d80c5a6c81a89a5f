// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// ReadFromPath reads a secret from a file, or from stdin when path is
// "-". Surrounding whitespace is trimmed before the bytes are moved
// into a guarded buffer; every transient heap copy is zeroed. Returns
// an error if the source is empty after trimming.
func ReadFromPath(path string) (*Buffer, error) {
	if path == "-" {
		return readLine(os.Stdin, "stdin")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return fromTrimmed(data, path)
}

// FromEnv reads a secret from an environment variable. The variable's
// value stays in the process environment (Go cannot scrub it); this
// helper only moves a trimmed copy into guarded memory. Returns an
// error if the variable is unset or blank.
func FromEnv(name string) (*Buffer, error) {
	value := os.Getenv(name)
	if value == "" {
		return nil, fmt.Errorf("environment variable %s is not set", name)
	}
	return fromTrimmed([]byte(value), name)
}

// readLine consumes a single line from r. Used for interactive stdin
// where the secret is one token on one line.
func readLine(r io.Reader, label string) (*Buffer, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", label, err)
		}
		return nil, fmt.Errorf("%s is empty", label)
	}
	return fromTrimmed(scanner.Bytes(), label)
}

func fromTrimmed(data []byte, label string) (*Buffer, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("%s holds no secret", label)
	}

	// NewFromBytes zeros trimmed; the whitespace margins still hold
	// nothing sensitive but are wiped with the rest of data anyway.
	buffer, err := NewFromBytes(trimmed)
	Zero(data)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}
