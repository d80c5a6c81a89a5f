// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package recoverui is the interactive share-entry front end for
// recovery: a word-by-word mnemonic wizard with wordlist completion
// on a terminal, and plain hidden-input prompts everywhere else. It
// plugs into the recovery flow as a key source.
package recoverui
