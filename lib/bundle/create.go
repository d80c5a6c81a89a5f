// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"context"
	"fmt"
	"time"

	"github.com/bureau-foundation/reliquary/lib/object"
	"github.com/bureau-foundation/reliquary/lib/seal"
	"github.com/bureau-foundation/reliquary/lib/share"
)

// CreateRequest carries everything needed to seal one bundle.
type CreateRequest struct {
	// Path is where the sealed bundle file lands.
	Path string

	// RemovalIdentifier is the case identifier, immutable once
	// sealed.
	RemovalIdentifier string

	// Objects are the removed objects to back up, in staging order.
	Objects []object.Object

	// Roster names the share holders and the reconstruction
	// threshold.
	Roster share.Roster

	// Created is the manifest timestamp.
	Created time.Time

	// Reason is the optional removal justification.
	Reason string

	// Expire is the optional destruction date. Zero for none.
	Expire time.Time
}

// Create runs the full build: generate a fresh identity, wrap its
// shares to the roster, encrypt every object to the identity's
// recipient, and seal the container. The identity exists only inside
// this call; both halves of the keypair are gone when it returns, on
// success and on failure alike, and the only way back in is a quorum
// of the wrapped shares.
func Create(ctx context.Context, request CreateRequest) error {
	if len(request.Objects) == 0 {
		return fmt.Errorf("bundle: no objects to back up")
	}

	identity, err := seal.GenerateIdentity()
	if err != nil {
		return err
	}
	defer identity.Close()

	wrapped, err := WrapShares(request.RemovalIdentifier, identity.Secret, request.Roster)
	if err != nil {
		return err
	}

	recipient, err := seal.ParseRecipient(identity.Recipient)
	if err != nil {
		return err
	}

	builder, err := NewBuilder(request.Path, Manifest{
		RemovalIdentifier:   request.RemovalIdentifier,
		Created:             request.Created,
		DecryptionKeyShares: wrapped,
		Reason:              request.Reason,
		Expire:              request.Expire,
	}, recipient)
	if err != nil {
		return err
	}
	for _, o := range request.Objects {
		if err := builder.Add(o); err != nil {
			return err
		}
	}
	return builder.Seal(ctx)
}
