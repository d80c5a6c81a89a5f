// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/lib/bundle"
	"github.com/bureau-foundation/reliquary/lib/export"
	"github.com/bureau-foundation/reliquary/lib/object"
	"github.com/bureau-foundation/reliquary/lib/secret"
)

type exportParams struct {
	KeySourceParams
	Output        string `flag:"output,o" desc:"path of the export archive to create"`
	Plaintext     bool   `flag:"plaintext" desc:"write the archive unencrypted"`
	EncryptKeyOut string `flag:"encrypt-key-out" desc:"write the generated export key (hex) to this file (0600) instead of stderr"`
}

func exportCommand() *cli.Command {
	var params exportParams
	return &cli.Command{
		Name:    "export",
		Summary: "Decrypt a bundle into a portable export archive",
		Description: `Export decrypts every object and repacks it into a single-file
archive for handoff outside the share-holder scheme: checksummed,
compressed, and encrypted under one fresh symmetric key.

The export key is generated here and printed in hex; it never touches
the bundle's roster. Pass --plaintext to skip archive encryption
entirely, for handoffs where the transport is already protected.`,
		Usage: "reliquary export <bundle> --output <file> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("export", &params) },
		Examples: []cli.Example{
			{
				Description: "Export for an external auditor, key to a separate file",
				Command:     "reliquary export case-0042.bundle -i alice.age -i bob.age -o case-0042.export --encrypt-key-out case-0042.key",
			},
		},
		Run: func(args []string) error { return runExport(&params, args) },
	}
}

func runExport(params *exportParams, args []string) error {
	if len(args) != 1 {
		return cli.Validation("usage: reliquary export <bundle>")
	}
	if params.Output == "" {
		return cli.Validation("--output is required")
	}
	if params.Plaintext && params.EncryptKeyOut != "" {
		return cli.Validation("--plaintext and --encrypt-key-out are mutually exclusive")
	}
	opened, err := openBundle(args[0])
	if err != nil {
		return err
	}
	defer opened.Close()

	ctx, cancel := interruptContext()
	defer cancel()

	source, err := params.keySource(ctx, nil)
	if err != nil {
		return err
	}
	identity, err := source.RecoverIdentity(ctx, opened.Manifest())
	if err != nil {
		return mapError(err)
	}
	defer identity.Close()

	var exportKey *secret.Buffer
	if !params.Plaintext {
		exportKey, err = export.NewKey()
		if err != nil {
			return cli.Internal("generating export key: %v", err)
		}
		defer exportKey.Close()
	}

	writer, err := export.NewWriter(params.Output, exportKey)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return cli.Conflict("%s already exists", params.Output)
		}
		return mapError(err)
	}
	defer writer.Abort()

	err = opened.ForEachObject(ctx, identity, func(entry bundle.Entry, decoded object.Object) error {
		payload, err := object.Serialize(decoded)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(entry.Name, ".age")
		return writer.Add(name, entry.ID, entry.Kind, payload)
	})
	if err != nil {
		return mapError(err)
	}
	if err := writer.Close(); err != nil {
		return mapError(err)
	}

	fmt.Fprintf(os.Stderr, "exported %d objects to %s\n", len(opened.Entries()), params.Output)
	if exportKey != nil {
		return emitExportKey(params.EncryptKeyOut, exportKey)
	}
	return nil
}

// emitExportKey prints the hex key to stderr, or writes it to a
// 0600 file when the operator asked for one.
func emitExportKey(path string, exportKey *secret.Buffer) error {
	encoded := hex.EncodeToString(exportKey.Bytes())
	if path == "" {
		fmt.Fprintf(os.Stderr, "export key: %s\n", encoded)
		return nil
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return cli.Conflict("%s already exists", path)
		}
		return cli.Internal("creating %s: %v", path, err)
	}
	if _, err := fmt.Fprintln(file, encoded); err != nil {
		file.Close()
		return cli.Internal("writing %s: %v", path, err)
	}
	if err := file.Close(); err != nil {
		return cli.Internal("closing %s: %v", path, err)
	}
	fmt.Fprintf(os.Stderr, "export key written to %s\n", path)
	return nil
}
