// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recoverui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/bureau-foundation/reliquary/lib/bundle"
	"github.com/bureau-foundation/reliquary/lib/secret"
	"github.com/bureau-foundation/reliquary/lib/share"
)

// combine reconstructs the bundle identity from a quorum.
func combine(shares []share.Share) (*secret.Buffer, error) {
	return bundle.CombineToIdentity(shares)
}

// Wizard is the interactive mnemonic key source. On a terminal it
// runs the full-screen word-by-word wizard; otherwise it falls back
// to line prompts, with input hidden whenever stdin is a terminal.
type Wizard struct{}

var _ bundle.KeySource = Wizard{}

func (Wizard) RecoverIdentity(ctx context.Context, manifest bundle.Manifest) (*secret.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
		return RunWizard(manifest.RemovalIdentifier)
	}
	return promptMnemonics(os.Stdin, os.Stderr)
}

// promptMnemonics reads whole mnemonics line by line until a quorum
// combines. Input read from a terminal is hidden; piped input is read
// as plain lines.
func promptMnemonics(input *os.File, output io.Writer) (*secret.Buffer, error) {
	hidden := term.IsTerminal(int(input.Fd()))
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 4096), 4096)

	readLine := func() (string, error) {
		if hidden {
			line, err := term.ReadPassword(int(input.Fd()))
			fmt.Fprintln(output)
			return string(line), err
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return scanner.Text(), nil
	}

	var shares []share.Share
	defer func() { share.ZeroAll(shares) }()

	for {
		needed := "?"
		if len(shares) > 0 {
			needed = fmt.Sprintf("%d", shares[0].Threshold)
		}
		fmt.Fprintf(output, "mnemonic for share %d of %s: ", len(shares)+1, needed)

		line, err := readLine()
		if err != nil {
			return nil, fmt.Errorf("recoverui: reading mnemonic: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			return nil, ErrCancelled
		}

		parsed, err := share.ParseMnemonic(line)
		if err != nil {
			fmt.Fprintf(output, "rejected: %v\n", err)
			continue
		}
		shares = append(shares, parsed)

		if len(shares) >= int(parsed.Threshold) {
			identity, err := combine(shares)
			if err != nil {
				fmt.Fprintf(output, "quorum does not reconstruct: %v\n", err)
				share.ZeroAll(shares)
				shares = shares[:0]
				continue
			}
			return identity, nil
		}
	}
}
