// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tyler-smith/go-bip39/wordlists"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/reliquary/lib/secret"
)

// Mnemonic framing. A mnemonic encodes one frame:
//
//	[2B split id][1B threshold][1B index][1B data length][data][4B checksum]
//
// The checksum is the first four bytes of BLAKE3-256 over everything
// before it. The frame bytes are regrouped into 11-bit indexes into
// the BIP-39 English wordlist (2048 words), most significant bit
// first, with the final index zero-padded. The explicit data length
// disambiguates the up-to-one byte of regrouping padding.
const (
	checksumLength = 4
	frameOverhead  = 2 + 1 + 1 + 1 + checksumLength

	wordBits = 11
)

// wordIndex maps each wordlist word to its index. Built once.
var wordIndex = sync.OnceValue(func() map[string]int {
	index := make(map[string]int, len(wordlists.English))
	for i, word := range wordlists.English {
		index[word] = i
	}
	return index
})

// checksum computes the 4-byte frame checksum.
func checksum(frame []byte) [checksumLength]byte {
	digest := blake3.Sum256(frame)
	var sum [checksumLength]byte
	copy(sum[:], digest[:checksumLength])
	return sum
}

// Mnemonic encodes the share as space-separated English words. The
// returned string is heap memory holding secret-derived data; it is
// what gets sealed to a holder or read to an operator, and callers
// should not log it.
func (share *Share) Mnemonic() (string, error) {
	if err := share.Validate(); err != nil {
		return "", err
	}
	if len(share.Data) > 255 {
		return "", fmt.Errorf("share: %d data bytes exceed the frame limit of 255", len(share.Data))
	}

	frame := make([]byte, 0, frameOverhead+len(share.Data))
	frame = append(frame, share.SplitID[0], share.SplitID[1])
	frame = append(frame, share.Threshold, share.Index, byte(len(share.Data)))
	frame = append(frame, share.Data...)
	sum := checksum(frame)
	frame = append(frame, sum[:]...)
	defer secret.Zero(frame)

	var words []string
	accumulator := 0
	bits := 0
	for _, b := range frame {
		accumulator = accumulator<<8 | int(b)
		bits += 8
		for bits >= wordBits {
			bits -= wordBits
			words = append(words, wordlists.English[accumulator>>bits&0x7ff])
		}
	}
	if bits > 0 {
		words = append(words, wordlists.English[accumulator<<(wordBits-bits)&0x7ff])
	}
	return strings.Join(words, " "), nil
}

// ParseMnemonic decodes a mnemonic back into a Share. Word matching
// is case-insensitive; any amount of whitespace separates words. An
// unknown word is reported with its position; a frame that does not
// hash to its embedded checksum, or that is structurally impossible,
// fails with ErrVerify.
func ParseMnemonic(mnemonic string) (Share, error) {
	words := strings.Fields(strings.ToLower(mnemonic))
	if len(words) == 0 {
		return Share{}, fmt.Errorf("%w: empty mnemonic", ErrVerify)
	}

	index := wordIndex()
	accumulator := 0
	bits := 0
	frame := make([]byte, 0, len(words)*wordBits/8)
	for position, word := range words {
		value, ok := index[word]
		if !ok {
			return Share{}, fmt.Errorf("%w: word %d (%q) is not in the wordlist", ErrVerify, position+1, word)
		}
		accumulator = accumulator<<wordBits | value
		bits += wordBits
		for bits >= 8 {
			bits -= 8
			frame = append(frame, byte(accumulator>>bits))
		}
	}
	// Up to 10 residual padding bits remain in the accumulator; they
	// must be zero, or a word was mistyped into another valid word in
	// a way the regrouping can detect before the checksum.
	if accumulator&(1<<bits-1) != 0 {
		secret.Zero(frame)
		return Share{}, fmt.Errorf("%w: nonzero padding bits", ErrVerify)
	}
	defer secret.Zero(frame)

	if len(frame) < frameOverhead {
		return Share{}, fmt.Errorf("%w: mnemonic is too short", ErrVerify)
	}
	dataLength := int(frame[4])
	frameLength := frameOverhead + dataLength
	// Regrouping adds at most one padding byte, already checked zero.
	if len(frame) < frameLength || len(frame) > frameLength+1 {
		return Share{}, fmt.Errorf("%w: frame is %d bytes, expected %d", ErrVerify, len(frame), frameLength)
	}

	body := frame[:frameLength-checksumLength]
	sum := checksum(body)
	if [checksumLength]byte(frame[frameLength-checksumLength:frameLength]) != sum {
		return Share{}, fmt.Errorf("%w: checksum mismatch", ErrVerify)
	}

	share := Share{
		SplitID:   [2]byte{frame[0], frame[1]},
		Threshold: frame[2],
		Index:     frame[3],
		Data:      append([]byte(nil), frame[5:5+dataLength]...),
	}
	if err := share.Validate(); err != nil {
		share.Zero()
		return Share{}, fmt.Errorf("%w: %v", ErrVerify, err)
	}
	return share, nil
}
