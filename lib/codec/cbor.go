// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. The same logical object
// always encodes to identical bytes, which is what makes payload
// equality checks and content hashing meaningful.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown struct fields are ignored for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Types implementing encoding.TextMarshaler (swhid.SWHID) encode
	// as CBOR text strings via MarshalText. Without this, a SWHID's
	// unexported fields would encode as an empty CBOR map, losing the
	// identifier.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Object attribute maps are string-keyed. When the decode
		// target is any (attribute values, nested maps), the decoder
		// must pick a concrete map type; the CBOR default of
		// map[interface{}]interface{} is unusable by most Go code, so
		// force map[string]any. Struct field decoding is unaffected.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// Attribute values hold visit counters and byte lengths.
		// Decode every integer that fits into int64 as int64 so a
		// value written as int64 comes back as the same type instead
		// of uint64.
		IntDec: cbor.IntDecConvertSignedOrFail,
		// Mirror of TextMarshalerTextString above: SWHIDs decode from
		// CBOR text strings via UnmarshalText.
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder is a CBOR stream encoder. Type alias so consumers import
// only lib/codec, not fxamacker/cbor directly.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder. Type alias so consumers import
// only lib/codec, not fxamacker/cbor directly.
type Decoder = cbor.Decoder

// RawMessage is a raw encoded CBOR value, for delaying decoding or
// embedding pre-encoded output.
type RawMessage = cbor.RawMessage

// NewEncoder returns a CBOR encoder writing to w with the
// deterministic encoding configuration.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder reading from r with the standard
// decoding configuration.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for
// data. Used by inspection commands and test failure output.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
