// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/lib/bundle"
	"github.com/bureau-foundation/reliquary/lib/clock"
	"github.com/bureau-foundation/reliquary/lib/object"
	"github.com/bureau-foundation/reliquary/lib/share"
)

type createParams struct {
	Identifier string `flag:"identifier" desc:"removal case identifier, e.g. a takedown-notice number"`
	Roster     string `flag:"roster" desc:"JSONC roster file naming holders and the reconstruction threshold"`
	Input      string `flag:"input" default:"-" desc:"removal-set CBOR file ('-' for stdin)"`
	Output     string `flag:"output,o" desc:"path of the bundle file to create"`
	Reason     string `flag:"reason" desc:"free-text removal justification recorded in the manifest"`
	Expire     string `flag:"expire" desc:"destruction date, RFC 3339 or YYYY-MM-DD"`
}

func createCommand() *cli.Command {
	var params createParams
	return &cli.Command{
		Name:    "create",
		Summary: "Seal a removal set into an encrypted bundle",
		Description: `Create builds a bundle from a removal-set file and a holder roster.

A fresh keypair is generated for the bundle; its secret half is split
into shares, each share is encrypted to one roster holder, and the
secret is discarded. After create returns, only a quorum of holders
can open the bundle.`,
		Usage: "reliquary create --identifier <id> --roster <file> --output <file> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("create", &params) },
		Examples: []cli.Example{
			{
				Description: "Seal a staged removal set",
				Command:     "reliquary create --identifier case-0042 --input removal-set.cbor --roster roster.jsonc --output case-0042.bundle",
			},
		},
		Run: func(args []string) error { return runCreate(&params, args) },
	}
}

func runCreate(params *createParams, args []string) error {
	if len(args) != 0 {
		return cli.Validation("create takes no positional arguments")
	}
	if params.Identifier == "" {
		return cli.Validation("--identifier is required")
	}
	if params.Roster == "" {
		return cli.Validation("--roster is required")
	}
	if params.Output == "" {
		return cli.Validation("--output is required")
	}
	if _, err := os.Stat(params.Output); err == nil {
		return cli.Conflict("%s already exists", params.Output)
	}

	roster, err := share.LoadRoster(params.Roster)
	if err != nil {
		return cli.Validation("roster %s: %v", params.Roster, err)
	}

	expire, err := parseExpire(params.Expire)
	if err != nil {
		return err
	}

	objects, err := object.ReadRemovalSetFile(params.Input)
	if err != nil {
		return mapError(err)
	}
	if len(objects) == 0 {
		return cli.Validation("removal set %s holds no objects", params.Input)
	}

	request := bundle.CreateRequest{
		Path:              params.Output,
		RemovalIdentifier: params.Identifier,
		Objects:           objects,
		Roster:            roster,
		Created:           clock.Real().Now().UTC(),
		Reason:            params.Reason,
		Expire:            expire,
	}
	ctx, cancel := interruptContext()
	defer cancel()
	if err := bundle.Create(ctx, request); err != nil {
		if errors.Is(err, os.ErrExist) {
			return cli.Conflict("%s already exists", params.Output)
		}
		return mapError(err)
	}

	fmt.Printf("sealed %s\n", params.Output)
	fmt.Printf("  identifier: %s\n", params.Identifier)
	fmt.Printf("  objects:    %d\n", len(objects))
	fmt.Printf("  holders:    %d (threshold %d)\n", len(roster.Holders), roster.Threshold)
	if !expire.IsZero() {
		fmt.Printf("  expire:     %s\n", expire.Format(time.RFC3339))
	}
	return nil
}

// parseExpire accepts a full RFC 3339 timestamp or a bare date, which
// expires the bundle at the start of that day UTC.
func parseExpire(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, cli.Validation("--expire %q is neither RFC 3339 nor YYYY-MM-DD", value)
}
