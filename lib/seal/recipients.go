// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package seal

import (
	"fmt"
	"strings"

	"filippo.io/age"
	"filippo.io/age/agessh"
	"filippo.io/age/plugin"
)

// ParseRecipient turns a holder public key string into an age
// recipient. Three schemes are accepted:
//
//   - age1…             native X25519
//   - ssh-ed25519 AAAA… / ssh-rsa AAAA…   SSH public keys
//   - age1<plugin>1…    plugin recipients, e.g. age1yubikey1…
//
// Plugin recipients require the matching age-plugin-<name> binary on
// PATH when the ciphertext is produced.
func ParseRecipient(key string) (age.Recipient, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("seal: empty recipient")
	}

	if strings.HasPrefix(key, "ssh-") || strings.HasPrefix(key, "sk-ssh-") {
		recipient, err := agessh.ParseRecipient(key)
		if err != nil {
			return nil, fmt.Errorf("seal: parsing SSH recipient: %w", err)
		}
		return recipient, nil
	}

	// Native X25519 first; plugin recipients share the age1 prefix
	// but carry a plugin name before the second separator.
	if recipient, err := age.ParseX25519Recipient(key); err == nil {
		return recipient, nil
	}

	recipient, err := plugin.NewRecipient(key, pluginUI())
	if err != nil {
		return nil, fmt.Errorf("seal: parsing recipient %q: %w", abbreviate(key), err)
	}
	return recipient, nil
}

// ValidateRecipient parses and discards. Used when loading a holder
// roster so a typo fails before any key is split.
func ValidateRecipient(key string) error {
	_, err := ParseRecipient(key)
	return err
}

// ParseIdentities reads an identity file's content into age
// identities. The format follows the age CLI: one identity per line,
// blank lines and #-comments ignored. Native AGE-SECRET-KEY-1… and
// plugin AGE-PLUGIN-…-1… identities are accepted.
func ParseIdentities(content string) ([]age.Identity, error) {
	var identities []age.Identity
	for lineno, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "AGE-SECRET-KEY-1"):
			identity, err := age.ParseX25519Identity(line)
			if err != nil {
				return nil, fmt.Errorf("seal: identity at line %d: %w", lineno+1, err)
			}
			identities = append(identities, identity)
		case strings.HasPrefix(line, "AGE-PLUGIN-"):
			identity, err := plugin.NewIdentity(line, pluginUI())
			if err != nil {
				return nil, fmt.Errorf("seal: plugin identity at line %d: %w", lineno+1, err)
			}
			identities = append(identities, identity)
		default:
			return nil, fmt.Errorf("seal: unrecognized identity at line %d", lineno+1)
		}
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("seal: no identities found")
	}
	return identities, nil
}

// abbreviate shortens a key for error messages without reproducing
// the whole string.
func abbreviate(key string) string {
	if len(key) <= 16 {
		return key
	}
	return key[:12] + "…"
}
