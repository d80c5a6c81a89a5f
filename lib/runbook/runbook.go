// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package runbook carries the embedded operator runbook and renders
// it to the terminal. The `docs` command is the only consumer: styled
// and paged on a TTY, plain text when piped.
package runbook

import (
	_ "embed"
)

//go:embed runbook.md
var source string

// DefaultWidth is the render width used when the terminal width is
// unknown.
const DefaultWidth = 80

// Render returns the runbook as terminal text wrapped to width.
// Plain output carries no ANSI styling.
func Render(width int, plain bool) string {
	if width <= 0 {
		width = DefaultWidth
	}
	return renderMarkdown(source, width, !plain)
}
