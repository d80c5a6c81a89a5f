// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/reliquary/lib/codec"
)

// A removal set is the hand-off file between whatever computed the
// set of objects to remove and the bundle builder: a single CBOR
// array of payload envelopes, in backup order.

// ReadRemovalSet decodes a removal set from r. Every entry is
// validated; the first invalid entry aborts the read with its index.
func ReadRemovalSet(r io.Reader) ([]Object, error) {
	var envelopes []payloadEnvelope
	if err := codec.NewDecoder(r).Decode(&envelopes); err != nil {
		return nil, fmt.Errorf("object: decoding removal set: %w", err)
	}

	objects := make([]Object, 0, len(envelopes))
	for index, envelope := range envelopes {
		o := Object{
			ID:         envelope.ID,
			Kind:       envelope.Kind,
			Properties: envelope.Properties,
		}
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("object: removal set entry %d: %w", index, err)
		}
		objects = append(objects, o)
	}
	return objects, nil
}

// ReadRemovalSetFile reads a removal set from a file path, or from
// stdin when path is "-".
func ReadRemovalSetFile(path string) ([]Object, error) {
	if path == "-" {
		return ReadRemovalSet(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("object: opening removal set: %w", err)
	}
	defer file.Close()

	objects, err := ReadRemovalSet(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return objects, nil
}

// WriteRemovalSet encodes objects to w as a removal set. Entries are
// validated before anything is written.
func WriteRemovalSet(w io.Writer, objects []Object) error {
	envelopes := make([]payloadEnvelope, 0, len(objects))
	for index, o := range objects {
		if err := o.Validate(); err != nil {
			return fmt.Errorf("object: removal set entry %d: %w", index, err)
		}
		envelopes = append(envelopes, payloadEnvelope{
			ID:         o.ID,
			Kind:       o.Kind,
			Properties: o.Properties,
		})
	}

	if err := codec.NewEncoder(w).Encode(envelopes); err != nil {
		return fmt.Errorf("object: encoding removal set: %w", err)
	}
	return nil
}
