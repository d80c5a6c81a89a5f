// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reliquary/cmd/reliquary/cli"
	"github.com/bureau-foundation/reliquary/lib/bundle/fuse"
)

type mountParams struct {
	KeySourceParams
	AllowOther bool `flag:"allow-other" desc:"let other users read the mount (needs user_allow_other in /etc/fuse.conf)"`
}

func mountCommand() *cli.Command {
	var params mountParams
	return &cli.Command{
		Name:    "mount",
		Summary: "Mount a bundle as a read-only filesystem",
		Description: `Mount exposes a bundle through FUSE: the manifest at the root, one
directory per object kind with the decoded payloads, and data/ with
the raw bytes of content objects. Objects are decrypted lazily on
first read.

The command stays in the foreground and unmounts on SIGINT or
SIGTERM. The recovered identity lives in guarded memory for the
lifetime of the mount.`,
		Usage: "reliquary mount <bundle> <mountpoint> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("mount", &params) },
		Examples: []cli.Example{
			{
				Description: "Browse a bundle with standard tools",
				Command:     "reliquary mount case-0042.bundle /mnt/case-0042 -i alice.age -i bob.age",
			},
		},
		Run: func(args []string) error { return runMount(&params, args) },
	}
}

func runMount(params *mountParams, args []string) error {
	if len(args) != 2 {
		return cli.Validation("usage: reliquary mount <bundle> <mountpoint>")
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

	logger := cli.NewCommandLogger()
	server, err := fuse.Mount(fuse.Options{
		Mountpoint: args[1],
		Bundle:     opened,
		Identity:   identity,
		AllowOther: params.AllowOther,
		Logger:     logger,
	})
	if err != nil {
		return cli.Internal("mounting %s: %v", args[1], err)
	}

	fmt.Fprintf(os.Stderr, "mounted %s at %s (interrupt to unmount)\n", opened.Path(), args[1])
	<-ctx.Done()

	if err := server.Unmount(); err != nil {
		logger.Error("unmount failed; try fusermount -u", "mountpoint", args[1], "error", err)
		server.Wait()
		return cli.Internal("unmounting %s: %v", args[1], err)
	}
	server.Wait()
	return nil
}
