// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/reliquary/lib/bundle"
	"github.com/bureau-foundation/reliquary/lib/object"
	"github.com/bureau-foundation/reliquary/lib/secret"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Bundle is the opened bundle to expose. The caller keeps it open
	// for the lifetime of the mount.
	Bundle *bundle.Bundle

	// Identity is the recovered bundle identity. Borrowed, not
	// closed; the caller keeps it alive for the lifetime of the
	// mount.
	Identity *secret.Buffer

	// AllowOther permits other users (including root) to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// Mount exposes an opened bundle as a read-only filesystem: the
// manifest at the root, one directory per object kind holding the
// decrypted payloads as `<entry>.cbor`, and a `data/` directory with
// the raw bytes of content objects named by SWHID. Entries are
// decrypted on first access and cached per node for the lifetime of
// the mount. The caller must call Unmount on the returned Server when
// done. The mountpoint directory is created if it does not exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Bundle == nil {
		return nil, fmt.Errorf("bundle is required")
	}
	if options.Identity == nil {
		return nil, fmt.Errorf("identity is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	manifest, err := options.Bundle.Manifest().Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	root := &rootNode{options: &options, manifest: manifest}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "reliquary-bundle",
			Name:       "reliquary",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("bundle FUSE filesystem mounted",
		"mountpoint", options.Mountpoint,
		"bundle", options.Bundle.Path(),
	)
	return server, nil
}

// rootNode is the filesystem root. The whole tree is known when the
// mount starts (a bundle is immutable), so OnAdd builds it eagerly
// from the container index; only payload decryption is deferred.
type rootNode struct {
	gofuse.Inode
	options  *Options
	manifest []byte
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeOnAdder = (*rootNode)(nil)

func (r *rootNode) OnAdd(ctx context.Context) {
	r.AddChild(bundle.ManifestName, r.NewPersistentInode(ctx, &gofuse.MemRegularFile{
		Data: r.manifest,
		Attr: fuse.Attr{Mode: 0o444},
	}, gofuse.StableAttr{Mode: syscall.S_IFREG}), true)

	directories := make(map[string]*gofuse.Inode)
	directory := func(name string) *gofuse.Inode {
		if node, ok := directories[name]; ok {
			return node
		}
		node := r.NewPersistentInode(ctx, &gofuse.Inode{}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
		r.AddChild(name, node, true)
		directories[name] = node
		return node
	}

	for _, entry := range r.options.Bundle.Entries() {
		kindDirectory, base := path.Split(entry.Name)
		kindDirectory = path.Clean(kindDirectory)

		payload := &payloadNode{options: r.options, name: entry.Name}
		directory(kindDirectory).AddChild(base+".cbor",
			r.NewPersistentInode(ctx, payload, gofuse.StableAttr{Mode: syscall.S_IFREG}), true)

		// Content bytes are additionally exposed raw under data/,
		// named by SWHID for direct hand-off to restore tooling.
		if entry.Kind == object.KindContent {
			raw := &payloadNode{options: r.options, name: entry.Name, raw: true}
			directory("data").AddChild(entry.ID.String(),
				r.NewPersistentInode(ctx, raw, gofuse.StableAttr{Mode: syscall.S_IFREG}), true)
		}
	}
}

// payloadNode is one decrypted entry as a regular file: the canonical
// CBOR payload, or the raw content bytes when raw is set. Decryption
// happens on first attribute or data access and the plaintext stays
// cached in the node.
type payloadNode struct {
	gofuse.Inode
	options *Options
	name    string
	raw     bool

	// mu protects data (lazy decryption).
	mu   sync.Mutex
	data []byte
}

var _ gofuse.InodeEmbedder = (*payloadNode)(nil)
var _ gofuse.NodeGetattrer = (*payloadNode)(nil)
var _ gofuse.NodeOpener = (*payloadNode)(nil)
var _ gofuse.NodeReader = (*payloadNode)(nil)

func (p *payloadNode) load(ctx context.Context) ([]byte, syscall.Errno) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.data != nil {
		return p.data, 0
	}

	decoded, err := p.options.Bundle.DecryptObject(ctx, p.options.Identity, p.name)
	if err != nil {
		p.options.Logger.Error("decrypting entry", "entry", p.name, "error", err)
		return nil, syscall.EIO
	}

	if p.raw {
		data, ok := decoded.Data()
		if !ok {
			p.options.Logger.Error("content entry carries no data", "entry", p.name)
			return nil, syscall.EIO
		}
		p.data = data
		return p.data, 0
	}

	payload, err := object.Serialize(decoded)
	if err != nil {
		p.options.Logger.Error("serializing entry", "entry", p.name, "error", err)
		return nil, syscall.EIO
	}
	p.data = payload
	return p.data, 0
}

func (p *payloadNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	data, errno := p.load(ctx)
	if errno != 0 {
		return errno
	}
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(len(data))
	return 0
}

func (p *payloadNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	if _, errno := p.load(ctx); errno != 0 {
		return nil, 0, errno
	}
	// Bundle content is immutable, so the kernel page cache is
	// always valid.
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (p *payloadNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, errno := p.load(ctx)
	if errno != 0 {
		return nil, errno
	}
	if off >= int64(len(data)) {
		return fuse.ReadResultData(nil), 0
	}
	end := min(off+int64(len(dest)), int64(len(data)))
	return fuse.ReadResultData(data[off:end]), 0
}
