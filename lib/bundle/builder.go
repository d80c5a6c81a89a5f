// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"slices"
	"sync"

	"filippo.io/age"

	"github.com/bureau-foundation/reliquary/lib/object"
	"github.com/bureau-foundation/reliquary/lib/seal"
	"github.com/bureau-foundation/reliquary/lib/swhid"
)

// Builder assembles one bundle: objects are staged with Add, then
// Seal encrypts and writes everything in a single all-or-nothing
// pass. A Builder only ever holds the bundle's public recipient; the
// matching identity stays with the caller, who wraps it into shares
// before sealing.
type Builder struct {
	path      string
	recipient age.Recipient
	manifest  Manifest

	staged  []stagedObject
	names   map[string]struct{}
	skipped map[swhid.SWHID]int
}

type stagedObject struct {
	entry  Entry
	object object.Object
}

// NewBuilder prepares a build targeting path. The manifest draft must
// carry the removal identifier, creation time, and wrapped key
// shares; the builder fills in the object inventory at Seal time.
func NewBuilder(path string, manifest Manifest, recipient age.Recipient) (*Builder, error) {
	if path == "" {
		return nil, fmt.Errorf("bundle: empty target path")
	}
	if manifest.RemovalIdentifier == "" {
		return nil, fmt.Errorf("bundle: manifest draft has no removal identifier")
	}
	if manifest.Created.IsZero() {
		return nil, fmt.Errorf("bundle: manifest draft has no creation time")
	}
	if recipient == nil {
		return nil, fmt.Errorf("bundle: nil recipient")
	}
	return &Builder{
		path:      path,
		recipient: recipient,
		manifest:  manifest,
		names:     make(map[string]struct{}),
		skipped:   make(map[swhid.SWHID]int),
	}, nil
}

// Add stages one object. The object is validated and its entry name
// derived immediately, so a name collision fails here, before
// anything touches the filesystem. Skipped contents sharing a SWHID
// get consecutive ordinals in staging order.
func (builder *Builder) Add(o object.Object) error {
	if err := o.Validate(); err != nil {
		return err
	}

	ordinal := 0
	if o.Kind == object.KindSkippedContent {
		builder.skipped[o.ID]++
		ordinal = builder.skipped[o.ID]
	}
	entry, err := entryName(o, ordinal)
	if err != nil {
		return err
	}
	if _, taken := builder.names[entry.Name]; taken {
		return fmt.Errorf("%w: %s", ErrPathCollision, entry.Name)
	}

	builder.names[entry.Name] = struct{}{}
	builder.staged = append(builder.staged, stagedObject{entry: entry, object: o})
	return nil
}

// Seal encrypts every staged object and writes the container. The
// build is all-or-nothing: output goes to a temporary file that is
// fsynced and renamed into place only after the manifest (the final
// entry) is written; any failure or cancellation removes the
// temporary file and leaves nothing at the target path.
func (builder *Builder) Seal(ctx context.Context) (err error) {
	if len(builder.staged) == 0 {
		return fmt.Errorf("bundle: no objects staged")
	}

	manifest := builder.manifest
	manifest.SWHIDs = builder.inventory()
	if err := manifest.Validate(); err != nil {
		return err
	}

	ciphertexts, err := builder.encryptAll(ctx)
	if err != nil {
		return err
	}

	temporary := builder.path + ".tmp"
	file, err := os.OpenFile(temporary, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("bundle: creating %s: %w", temporary, err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(temporary)
		}
	}()

	writer := newContainerWriter(file)
	for index, staged := range builder.staged {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.writeEntry(staged.entry.Name, ciphertexts[index]); err != nil {
			return err
		}
	}
	if err := writer.writeManifest(manifest); err != nil {
		return err
	}
	if err := writer.close(); err != nil {
		return err
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("bundle: syncing %s: %w", temporary, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("bundle: closing %s: %w", temporary, err)
	}
	if err := os.Rename(temporary, builder.path); err != nil {
		os.Remove(temporary)
		return fmt.Errorf("bundle: publishing %s: %w", builder.path, err)
	}
	return nil
}

// inventory returns the sorted, de-duplicated SWHIDs of the staged
// objects.
func (builder *Builder) inventory() []swhid.SWHID {
	ids := make([]swhid.SWHID, 0, len(builder.staged))
	for _, staged := range builder.staged {
		ids = append(ids, staged.object.ID)
	}
	slices.SortFunc(ids, swhid.Compare)
	return slices.CompactFunc(ids, func(a, b swhid.SWHID) bool { return a == b })
}

// encryptAll serializes and encrypts every staged object, fanned out
// across GOMAXPROCS workers. Objects are independent, so order of
// work does not matter; results land in staging order.
func (builder *Builder) encryptAll(ctx context.Context) ([][]byte, error) {
	ciphertexts := make([][]byte, len(builder.staged))
	errs := make([]error, len(builder.staged))

	jobs := make(chan int)
	var group sync.WaitGroup
	for range min(runtime.GOMAXPROCS(0), len(builder.staged)) {
		group.Add(1)
		go func() {
			defer group.Done()
			for index := range jobs {
				ciphertexts[index], errs[index] = builder.encryptOne(index)
			}
		}()
	}

	cancelled := false
feed:
	for index := range builder.staged {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		select {
		case jobs <- index:
		case <-ctx.Done():
			cancelled = true
			break feed
		}
	}
	close(jobs)
	group.Wait()

	if cancelled {
		return nil, ctx.Err()
	}
	for index, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("bundle: %s: %w", builder.staged[index].entry.Name, err)
		}
	}
	return ciphertexts, nil
}

func (builder *Builder) encryptOne(index int) ([]byte, error) {
	payload, err := object.Serialize(builder.staged[index].object)
	if err != nil {
		return nil, err
	}
	return seal.Encrypt(payload, builder.recipient)
}
