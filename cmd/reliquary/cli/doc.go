// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the reliquary binary: a
// small command tree with pflag flag sets bound from tagged structs,
// typo suggestions, categorized errors with operator hints, and exit
// code plumbing.
package cli
