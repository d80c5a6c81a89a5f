// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package seal

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"filippo.io/age/plugin"
	"golang.org/x/term"
)

// pluginBinary is the age plugin consulted for hardware-backed
// identities. Only stubs of its listing format are parsed here; all
// cryptography goes through the age plugin protocol.
const pluginBinary = "age-plugin-yubikey"

// PluginIdentity is one hardware-backed identity as reported by the
// YubiKey plugin. The identity string is a key handle, not the key
// itself; the private scalar never leaves the device.
type PluginIdentity struct {
	Serial    uint32
	Slot      int
	Recipient string
	Identity  string
}

// Holder returns the manifest holder name for this device slot,
// following the "YubiKey serial <serial> slot <slot>" convention.
func (identity PluginIdentity) Holder() string {
	return fmt.Sprintf("YubiKey serial %d slot %d", identity.Serial, identity.Slot)
}

var yubiKeyHolderPattern = regexp.MustCompile(`^YubiKey serial (\d+) slot (\d+)$`)

// ParseYubiKeyHolder recognizes holder names that follow the YubiKey
// convention and extracts the device coordinates.
func ParseYubiKeyHolder(name string) (serial uint32, slot int, ok bool) {
	match := yubiKeyHolderPattern.FindStringSubmatch(name)
	if match == nil {
		return 0, 0, false
	}
	parsedSerial, err := strconv.ParseUint(match[1], 10, 32)
	if err != nil {
		return 0, 0, false
	}
	parsedSlot, err := strconv.Atoi(match[2])
	if err != nil {
		return 0, 0, false
	}
	return uint32(parsedSerial), parsedSlot, true
}

// ListYubiKeyIdentities enumerates the identities of all connected
// YubiKeys by running `age-plugin-yubikey --identity`. An empty slice
// with nil error means the plugin ran but found no devices.
func ListYubiKeyIdentities(ctx context.Context) ([]PluginIdentity, error) {
	command := exec.CommandContext(ctx, pluginBinary, "--identity")
	var stderr bytes.Buffer
	command.Stderr = &stderr

	output, err := command.Output()
	if err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("seal: running %s: %w: %s",
				pluginBinary, err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("seal: running %s: %w", pluginBinary, err)
	}

	return parseYubiKeyListing(output)
}

var (
	serialSlotPattern = regexp.MustCompile(`^#\s+Serial:\s+(\d+),\s+Slot:\s+(\d+)$`)
	recipientPattern  = regexp.MustCompile(`^#\s+Recipient:\s+(age1yubikey1\S+)$`)
)

// parseYubiKeyListing extracts identities from the plugin's
// --identity output. Each identity is a comment block (serial, slot,
// recipient among other attributes) followed by the AGE-PLUGIN-…
// identity line.
func parseYubiKeyListing(output []byte) ([]PluginIdentity, error) {
	var identities []PluginIdentity
	var current PluginIdentity

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if match := serialSlotPattern.FindStringSubmatch(line); match != nil {
			serial, err := strconv.ParseUint(match[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("seal: parsing YubiKey serial %q: %w", match[1], err)
			}
			slot, err := strconv.Atoi(match[2])
			if err != nil {
				return nil, fmt.Errorf("seal: parsing YubiKey slot %q: %w", match[2], err)
			}
			current.Serial = uint32(serial)
			current.Slot = slot
			continue
		}

		if match := recipientPattern.FindStringSubmatch(line); match != nil {
			current.Recipient = match[1]
			continue
		}

		if strings.HasPrefix(line, "AGE-PLUGIN-") {
			current.Identity = line
			if current.Serial == 0 || current.Recipient == "" {
				return nil, fmt.Errorf("seal: identity listing is missing serial or recipient")
			}
			identities = append(identities, current)
			current = PluginIdentity{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("seal: reading identity listing: %w", err)
	}

	return identities, nil
}

// pluginUI builds the terminal interaction callbacks age plugins use
// for PIN entry and touch prompts. Messages go to stderr so they
// never mix with piped output.
func pluginUI() *plugin.ClientUI {
	return &plugin.ClientUI{
		DisplayMessage: func(name, message string) error {
			fmt.Fprintf(os.Stderr, "%s: %s\n", name, message)
			return nil
		},
		RequestValue: func(name, message string, isSecret bool) (string, error) {
			fmt.Fprintf(os.Stderr, "%s: %s: ", name, message)
			if isSecret {
				value, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(os.Stderr)
				if err != nil {
					return "", fmt.Errorf("reading secret value: %w", err)
				}
				return string(value), nil
			}
			reader := bufio.NewReader(os.Stdin)
			value, err := reader.ReadString('\n')
			if err != nil {
				return "", fmt.Errorf("reading value: %w", err)
			}
			return strings.TrimSpace(value), nil
		},
		Confirm: func(name, message, yes, no string) (bool, error) {
			if no == "" {
				fmt.Fprintf(os.Stderr, "%s: %s [%s] ", name, message, yes)
			} else {
				fmt.Fprintf(os.Stderr, "%s: %s [%s/%s] ", name, message, yes, no)
			}
			reader := bufio.NewReader(os.Stdin)
			answer, err := reader.ReadString('\n')
			if err != nil {
				return false, fmt.Errorf("reading confirmation: %w", err)
			}
			answer = strings.ToLower(strings.TrimSpace(answer))
			if no != "" && (answer == "n" || answer == strings.ToLower(no)) {
				return false, nil
			}
			return true, nil
		},
		WaitTimer: func(name string) {
			fmt.Fprintf(os.Stderr, "%s: waiting on device…\n", name)
		},
	}
}
