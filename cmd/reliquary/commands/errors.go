// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/lib/bundle"
	"github.com/bureau-foundation/reliquary/lib/object"
	"github.com/bureau-foundation/reliquary/lib/seal"
	"github.com/bureau-foundation/reliquary/lib/share"
)

// mapError categorizes library sentinels into ToolErrors so exit
// codes and hints stay consistent across commands. Errors that are
// already categorized pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var tool *cli.ToolError
	if errors.As(err, &tool) {
		return err
	}

	switch {
	case errors.Is(err, share.ErrVerify):
		return (&cli.ToolError{Category: cli.CategoryValidation, Err: err}).
			WithHint("one share was mistyped or corrupted; re-check it with its holder")

	case errors.Is(err, share.ErrShareMismatch):
		return (&cli.ToolError{Category: cli.CategoryValidation, Err: err}).
			WithHint("the shares come from different splits; all must come from this bundle's current roster")

	case errors.Is(err, share.ErrCombine), errors.Is(err, bundle.ErrReconstruct):
		return (&cli.ToolError{Category: cli.CategoryForbidden, Err: err}).
			WithHint("a full quorum of matching shares is required; see 'reliquary docs'")

	case errors.Is(err, bundle.ErrWrongBundle):
		return (&cli.ToolError{Category: cli.CategoryValidation, Err: err})

	case errors.Is(err, seal.ErrDecrypt):
		return (&cli.ToolError{Category: cli.CategoryForbidden, Err: err})

	case errors.Is(err, bundle.ErrSchemaVersion):
		return (&cli.ToolError{Category: cli.CategoryValidation, Err: err}).
			WithHint("the bundle was written by a newer release; upgrade reliquary")

	case errors.Is(err, bundle.ErrPathCollision):
		return (&cli.ToolError{Category: cli.CategoryConflict, Err: err})

	case errors.Is(err, object.ErrDeserialize):
		return (&cli.ToolError{Category: cli.CategoryInternal, Err: err}).
			WithHint("the bundle payload is corrupted; restore it from a replica")

	default:
		return (&cli.ToolError{Category: cli.CategoryInternal, Err: err})
	}
}
