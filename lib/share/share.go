// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package share splits a bundle's secret key into threshold shares
// and reassembles it from any quorum of them.
//
// The split is Shamir's secret sharing over GF(256): the secret is
// recoverable from any threshold-sized subset of shares, and fewer
// shares reveal nothing. The shared secret is the age identity
// string itself (AGE-SECRET-KEY-1…); its internal Bech32 checksum
// means a reconstruction from a wrong or mismatched quorum is
// detected when the identity is parsed.
//
// Shares travel as mnemonics: the share bytes plus framing and a
// BLAKE3 checksum, regrouped into 11-bit indexes of the BIP-39
// English wordlist. Mnemonics survive being read over the phone,
// printed on paper, or retyped from a safe, and the checksum catches
// transcription slips before a doomed reconstruction attempt.
package share

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"slices"

	"github.com/corvus-ch/shamir"

	"github.com/bureau-foundation/reliquary/lib/secret"
)

var (
	// ErrVerify reports a mnemonic that fails decoding: an unknown
	// word, a malformed bit stream, or a checksum mismatch.
	ErrVerify = errors.New("share: mnemonic verification failed")

	// ErrShareMismatch reports shares that cannot be combined with
	// each other: different splits, different thresholds, or a
	// duplicated share index.
	ErrShareMismatch = errors.New("share: shares are not from the same split")

	// ErrCombine reports a reconstruction failure, most commonly too
	// few shares for the threshold.
	ErrCombine = errors.New("share: combining shares failed")
)

// Share is one holder's fragment of a split secret.
//
// SplitID ties the share to one split operation; shares from
// different splits of even the same secret do not mix. Index is the
// share's x-coordinate in the GF(256) polynomial (1-based, unique
// within a split). Data is the y-coordinate bytes, the same length
// as the secret.
type Share struct {
	SplitID   [2]byte
	Threshold byte
	Index     byte
	Data      []byte
}

// Validate checks the share's framing fields.
func (share *Share) Validate() error {
	if share.Threshold < 1 {
		return fmt.Errorf("share: threshold %d is below 1", share.Threshold)
	}
	if share.Index < 1 {
		return fmt.Errorf("share: index 0 is reserved")
	}
	if len(share.Data) == 0 {
		return fmt.Errorf("share: empty share data")
	}
	return nil
}

// Zero scrubs the share's secret-derived bytes. The share is
// unusable afterwards.
func (share *Share) Zero() {
	secret.Zero(share.Data)
	share.Data = nil
}

// ZeroAll scrubs every share in the slice.
func ZeroAll(shares []Share) {
	for i := range shares {
		shares[i].Zero()
	}
}

// Split divides the guarded secret into parts shares, any threshold
// of which reconstruct it. The buffer is borrowed, not closed.
//
// A threshold of 1 is allowed: each share then carries the whole
// secret, wrapped and framed like any other share, for rosters where
// every holder may act alone.
func Split(guarded *secret.Buffer, parts, threshold int) ([]Share, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("share: threshold %d is below 1", threshold)
	}
	if parts < threshold {
		return nil, fmt.Errorf("share: %d shares cannot satisfy a threshold of %d", parts, threshold)
	}
	if parts > 255 {
		return nil, fmt.Errorf("share: %d shares exceed the GF(256) limit of 255", parts)
	}
	if guarded.Len() == 0 {
		return nil, fmt.Errorf("share: empty secret")
	}

	var splitID [2]byte
	if _, err := rand.Read(splitID[:]); err != nil {
		return nil, fmt.Errorf("share: generating split identifier: %w", err)
	}

	shares := make([]Share, 0, parts)

	if threshold == 1 {
		for index := 1; index <= parts; index++ {
			shares = append(shares, Share{
				SplitID:   splitID,
				Threshold: 1,
				Index:     byte(index),
				Data:      bytes.Clone(guarded.Bytes()),
			})
		}
		return shares, nil
	}

	table, err := shamir.Split(guarded.Bytes(), parts, threshold)
	if err != nil {
		return nil, fmt.Errorf("share: splitting secret: %w", err)
	}
	for index, data := range table {
		shares = append(shares, Share{
			SplitID:   splitID,
			Threshold: byte(threshold),
			Index:     index,
			Data:      data,
		})
	}
	slices.SortFunc(shares, func(a, b Share) int {
		return int(a.Index) - int(b.Index)
	})
	return shares, nil
}

// Combine reconstructs the secret from a quorum of shares into
// guarded memory. Extra shares beyond the threshold are fine; shares
// from different splits or with colliding indexes are not.
//
// GF(256) interpolation cannot itself tell a wrong quorum from a
// right one. Callers verify the reconstruction by parsing it as an
// age identity.
func Combine(shares []Share) (*secret.Buffer, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares provided", ErrCombine)
	}

	reference := shares[0]
	seen := make(map[byte]bool, len(shares))
	for i := range shares {
		if err := shares[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: share %d: %v", ErrShareMismatch, i, err)
		}
		if shares[i].SplitID != reference.SplitID {
			return nil, fmt.Errorf("%w: split identifiers differ", ErrShareMismatch)
		}
		if shares[i].Threshold != reference.Threshold {
			return nil, fmt.Errorf("%w: thresholds differ", ErrShareMismatch)
		}
		if seen[shares[i].Index] {
			return nil, fmt.Errorf("%w: share index %d appears twice", ErrShareMismatch, shares[i].Index)
		}
		seen[shares[i].Index] = true
	}

	if int(reference.Threshold) > len(shares) {
		return nil, fmt.Errorf("%w: have %d shares, threshold is %d",
			ErrCombine, len(shares), reference.Threshold)
	}

	var reconstructed []byte
	if reference.Threshold == 1 {
		reconstructed = bytes.Clone(reference.Data)
	} else {
		table := make(map[byte][]byte, len(shares))
		for i := range shares {
			table[shares[i].Index] = shares[i].Data
		}
		combined, err := shamir.Combine(table)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCombine, err)
		}
		reconstructed = combined
	}

	guarded, err := secret.NewFromBytes(reconstructed)
	if err != nil {
		secret.Zero(reconstructed)
		return nil, fmt.Errorf("share: protecting reconstructed secret: %w", err)
	}
	return guarded, nil
}
