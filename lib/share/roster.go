// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/reliquary/lib/seal"
)

// Roster names the secret holders for one bundle and the quorum size
// needed to reconstruct its key. The roster file is JSONC so that
// operators can annotate entries (who a key belongs to, where the
// YubiKey lives):
//
//	{
//	  "threshold": 2,
//	  "holders": {
//	    // legal department escrow key
//	    "legal": "age1ql3z7hjy54pw3hyww5ayyfg7zqgvc7w3j2elw8zmrj2kg5sfn9aqmcac8p",
//	    "YubiKey serial 4245067 slot 1": "age1yubikey1qwt50d05nh5vutpdzmlg5wn80xq5negm4uj9y5yu8ytrus0aaemag43x9t9",
//	    "backup operator": "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIPuh8oHRnH7nEh2sEzvNGH8z2SmcHWDS1d01CjfEWLSE"
//	  }
//	}
type Roster struct {
	// Threshold is how many distinct holders must contribute their
	// share to reconstruct the key.
	Threshold int `json:"threshold"`

	// Holders maps each holder identifier to their public key. The
	// identifier is free text; for hardware keys the convention
	// "YubiKey serial <serial> slot <slot>" lets operators match a
	// manifest entry to a plugged-in device.
	Holders map[string]string `json:"holders"`
}

// ParseRoster decodes a JSONC roster document and validates it.
func ParseRoster(data []byte) (Roster, error) {
	var roster Roster
	if err := json.Unmarshal(jsonc.ToJSON(data), &roster); err != nil {
		return Roster{}, fmt.Errorf("share: parsing roster: %w", err)
	}
	if err := roster.Validate(); err != nil {
		return Roster{}, err
	}
	return roster, nil
}

// LoadRoster reads and parses a roster file.
func LoadRoster(path string) (Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Roster{}, fmt.Errorf("share: reading roster: %w", err)
	}
	roster, err := ParseRoster(data)
	if err != nil {
		return Roster{}, fmt.Errorf("%s: %w", path, err)
	}
	return roster, nil
}

// Validate checks the roster's structural rules: a sensible threshold,
// at least one holder, every key parsable as an age recipient, and no
// public key assigned to two holders (a duplicated key would silently
// collapse two "independent" shares onto one keyholder).
func (roster Roster) Validate() error {
	if len(roster.Holders) == 0 {
		return fmt.Errorf("share: roster has no holders")
	}
	if roster.Threshold < 1 {
		return fmt.Errorf("share: roster threshold %d is below 1", roster.Threshold)
	}
	if roster.Threshold > len(roster.Holders) {
		return fmt.Errorf("share: roster threshold %d exceeds its %d holders", roster.Threshold, len(roster.Holders))
	}
	if len(roster.Holders) > 255 {
		return fmt.Errorf("share: %d holders exceed the share limit of 255", len(roster.Holders))
	}

	keyOwner := make(map[string]string, len(roster.Holders))
	for _, name := range roster.Names() {
		key := roster.Holders[name]
		if name == "" {
			return fmt.Errorf("share: roster has a holder with an empty name")
		}
		if _, err := seal.ParseRecipient(key); err != nil {
			return fmt.Errorf("share: holder %q: %w", name, err)
		}
		if owner, taken := keyOwner[key]; taken {
			return fmt.Errorf("share: holders %q and %q have the same public key", owner, name)
		}
		keyOwner[key] = name
	}
	return nil
}

// Names returns the holder identifiers in sorted order. Share
// assignment and manifest iteration both use this order so that a
// roster always produces the same holder→share pairing.
func (roster Roster) Names() []string {
	names := make([]string, 0, len(roster.Holders))
	for name := range roster.Holders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
