// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package seal wraps filippo.io/age for the bundle's encryption
// surfaces: object payloads sealed to the bundle recipient, and key
// shares sealed to holder recipients.
//
// Two ciphertext forms are produced. Object payloads use the binary
// age format (they live as .age entries inside the bundle zip). Share
// wrappings use ASCII armor (they are embedded in the YAML manifest).
//
// Holder public keys may be native X25519 recipients (age1…), SSH
// public keys (ssh-ed25519/ssh-rsa, via filippo.io/age/agessh), or
// age plugin recipients such as YubiKeys (age1yubikey1…, via
// filippo.io/age/plugin). Identity strings and decrypted share
// plaintext are held in secret.Buffer guarded memory; object payload
// plaintext is ordinary heap memory (payloads are not key material).
package seal

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/reliquary/lib/secret"
)

// Encryption and decryption sentinels. A wrong or missing key
// surfaces as ErrDecrypt.
var (
	ErrEncrypt = errors.New("seal: encryption failed")
	ErrDecrypt = errors.New("seal: decryption failed")
)

// Identity is the bundle's asymmetric keypair. The secret half
// (AGE-SECRET-KEY-1…) lives in guarded memory; the recipient half
// (age1…) is public and is all the builder ever sees.
type Identity struct {
	Secret    *secret.Buffer
	Recipient string
}

// GenerateIdentity creates a fresh X25519 identity with the secret
// immediately moved into guarded memory. The caller must Close the
// identity when the secret is no longer needed.
func GenerateIdentity() (*Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("seal: generating identity: %w", err)
	}

	// identity.String() is a heap string the GC will reclaim; the
	// guarded buffer is the durable copy.
	guarded, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("seal: protecting identity: %w", err)
	}

	return &Identity{
		Secret:    guarded,
		Recipient: identity.Recipient().String(),
	}, nil
}

// Close zeroes and releases the secret half. Idempotent.
func (identity *Identity) Close() error {
	if identity.Secret != nil {
		return identity.Secret.Close()
	}
	return nil
}

// X25519Identity parses the guarded secret into an age identity for
// decryption. The buffer is borrowed, not closed.
func (identity *Identity) X25519Identity() (*age.X25519Identity, error) {
	return ParseX25519Identity(identity.Secret)
}

// ParseX25519Identity parses an AGE-SECRET-KEY-1… string held in a
// guarded buffer. The heap copy made for parsing is brief and
// request-scoped. The buffer is borrowed, not closed.
func ParseX25519Identity(guarded *secret.Buffer) (*age.X25519Identity, error) {
	identity, err := age.ParseX25519Identity(guarded.String())
	if err != nil {
		return nil, fmt.Errorf("seal: parsing identity: %w", err)
	}
	return identity, nil
}

// Encrypt seals plaintext to one or more recipients in the binary
// age format. At least one recipient is required.
func Encrypt(plaintext []byte, recipients ...age.Recipient) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrEncrypt)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}

	return ciphertext.Bytes(), nil
}

// EncryptArmored seals plaintext like Encrypt but wraps the output in
// ASCII armor (-----BEGIN AGE ENCRYPTED FILE-----) for embedding in
// text documents.
func EncryptArmored(plaintext []byte, recipients ...age.Recipient) (string, error) {
	if len(recipients) == 0 {
		return "", fmt.Errorf("%w: at least one recipient is required", ErrEncrypt)
	}

	var armored bytes.Buffer
	armorWriter := armor.NewWriter(&armored)
	writer, err := age.Encrypt(armorWriter, recipients...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	if err := armorWriter.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}

	return armored.String(), nil
}

// Decrypt opens a binary age ciphertext with any of the given
// identities and returns the plaintext on the ordinary heap. For
// payload-sized data; key material goes through DecryptToSecret
// instead.
func Decrypt(ciphertext []byte, identities ...age.Identity) ([]byte, error) {
	if len(identities) == 0 {
		return nil, fmt.Errorf("%w: at least one identity is required", ErrDecrypt)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identities...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading plaintext: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

// DecryptToSecret opens a binary age ciphertext and moves the
// plaintext straight into guarded memory, zeroing the transient heap
// copy. For key shares and identities.
func DecryptToSecret(ciphertext []byte, identities ...age.Identity) (*secret.Buffer, error) {
	plaintext, err := Decrypt(ciphertext, identities...)
	if err != nil {
		return nil, err
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: plaintext is empty", ErrDecrypt)
	}

	guarded, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("%w: protecting plaintext: %v", ErrDecrypt, err)
	}
	return guarded, nil
}

// DecryptArmored opens an ASCII-armored ciphertext into guarded
// memory. Used for the manifest's wrapped shares.
func DecryptArmored(armored string, identities ...age.Identity) (*secret.Buffer, error) {
	if len(identities) == 0 {
		return nil, fmt.Errorf("%w: at least one identity is required", ErrDecrypt)
	}

	reader, err := age.Decrypt(armor.NewReader(bytes.NewReader([]byte(armored))), identities...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading plaintext: %v", ErrDecrypt, err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: plaintext is empty", ErrDecrypt)
	}

	guarded, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("%w: protecting plaintext: %v", ErrDecrypt, err)
	}
	return guarded, nil
}

// IsNoIdentityMatch reports whether a decryption error means "none of
// the supplied identities can open this ciphertext" as opposed to a
// corrupt or truncated input. Callers trying holder identities one by
// one use this to keep iterating.
func IsNoIdentityMatch(err error) bool {
	var mismatch *age.NoIdentityMatchError
	return errors.As(err, &mismatch)
}
