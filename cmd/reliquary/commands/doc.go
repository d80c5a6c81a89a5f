// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the reliquary CLI command tree: bundle
// creation, inspection, recovery, custody rollover, verification,
// export, and the FUSE mount.
package commands
