// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runbook

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// theme holds the ANSI256 palette for rendered runbook text.
type theme struct {
	heading lipgloss.Color
	normal  lipgloss.Color
	faint   lipgloss.Color
	border  lipgloss.Color
}

var defaultTheme = theme{
	heading: lipgloss.Color("110"), // soft blue
	normal:  lipgloss.Color("252"),
	faint:   lipgloss.Color("245"),
	border:  lipgloss.Color("240"),
}

// The goldmark parser configuration never changes and the parser is
// safe to share; parsing allocates per-call state.
var (
	parserInstance goldmark.Markdown
	parserOnce     sync.Once
)

func parser() goldmark.Markdown {
	parserOnce.Do(func() {
		parserInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return parserInstance
}

// renderMarkdown renders markdown source as terminal text wrapped to
// width. Soft line breaks become spaces so the hard-wrapped source
// reflows at any terminal width. With colored false every style is a
// no-op and code highlighting is skipped, for piping to a file.
func renderMarkdown(source string, width int, colored bool) string {
	if source == "" {
		return ""
	}
	input := []byte(source)
	document := parser().Parser().Parse(text.NewReader(input))

	// Force the profile instead of auto-detecting: detection sees no
	// TTY under a pager pipe or in tests and would strip all color.
	profile := termenv.Ascii
	if colored {
		profile = termenv.ANSI256
	}
	lipRenderer := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(profile))
	lipRenderer.SetColorProfile(profile)

	state := &renderState{
		source:      input,
		width:       width,
		colored:     colored,
		lipRenderer: lipRenderer,
	}
	ast.Walk(document, state.walk)
	return strings.TrimRight(state.output.String(), "\n") + "\n"
}

// renderState walks the goldmark AST directly. Inline content
// accumulates in a buffer and is word-wrapped as a unit when its
// block closes, which goldmark's streaming renderer interface does
// not accommodate.
type renderState struct {
	source      []byte
	width       int
	colored     bool
	lipRenderer *lipgloss.Renderer

	output strings.Builder
	inline strings.Builder

	// Prefix stack for nested containers (blockquotes, list items).
	prefixes    []string
	prefixWidth int

	// bullet replaces the prefix for the first emitted line of a
	// list item, then clears.
	bullet string

	bold   int
	italic int

	lists []listLevel

	trailingNewlines int
}

type listLevel struct {
	ordered bool
	counter int
	tight   bool
}

func (state *renderState) style() lipgloss.Style {
	return state.lipRenderer.NewStyle()
}

func (state *renderState) contentWidth() int {
	return max(state.width-state.prefixWidth, 16)
}

func (state *renderState) pushPrefix(prefix string) {
	state.prefixes = append(state.prefixes, prefix)
	state.prefixWidth += len(prefix)
}

func (state *renderState) popPrefix() {
	if len(state.prefixes) == 0 {
		return
	}
	state.prefixWidth -= len(state.prefixes[len(state.prefixes)-1])
	state.prefixes = state.prefixes[:len(state.prefixes)-1]
}

func (state *renderState) prefix() string {
	return strings.Join(state.prefixes, "")
}

// linePrefix returns the prefix for the next emitted line, consuming
// the pending list bullet if one is set.
func (state *renderState) linePrefix() string {
	if state.bullet != "" {
		bullet := state.bullet
		state.bullet = ""
		return bullet
	}
	return state.prefix()
}

func (state *renderState) write(s string) {
	if s == "" {
		return
	}
	state.output.WriteString(s)
	trailing := 0
	for index := len(s) - 1; index >= 0 && s[index] == '\n'; index-- {
		trailing++
	}
	if trailing == len(s) {
		state.trailingNewlines += trailing
	} else {
		state.trailingNewlines = trailing
	}
}

func (state *renderState) newline() {
	if state.trailingNewlines < 1 {
		state.write("\n")
	}
}

func (state *renderState) blankLine() {
	for state.trailingNewlines < 2 {
		state.write("\n")
	}
}

// emitLines writes pre-split lines with the line prefix applied, the
// pending bullet going to the first line only.
func (state *renderState) emitLines(content string) {
	for index, line := range strings.Split(content, "\n") {
		if index == 0 {
			state.write(state.linePrefix() + line)
		} else {
			state.write(state.prefix() + line)
		}
		state.newline()
	}
}

// flushInline word-wraps the accumulated inline content and emits it.
func (state *renderState) flushInline() bool {
	content := state.inline.String()
	state.inline.Reset()
	if content == "" {
		return false
	}
	state.emitLines(ansi.Wrap(content, state.contentWidth(), " ,.;-"))
	return true
}

func (state *renderState) styledText(content string) string {
	style := state.style().Foreground(defaultTheme.normal)
	if state.bold > 0 {
		style = style.Bold(true)
	}
	if state.italic > 0 {
		style = style.Italic(true)
	}
	return style.Render(content)
}

// inlineContent renders a node's children into a string without
// disturbing the surrounding inline accumulator.
func (state *renderState) inlineContent(node ast.Node) string {
	saved := state.inline.String()
	state.inline.Reset()
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		ast.Walk(child, state.walk)
	}
	content := state.inline.String()
	state.inline.Reset()
	state.inline.WriteString(saved)
	return content
}

func (state *renderState) inTightList() bool {
	return len(state.lists) > 0 && state.lists[len(state.lists)-1].tight
}

func (state *renderState) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {

	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			state.inline.Reset()
		} else if state.flushInline() && !state.inTightList() {
			state.blankLine()
		}

	case ast.KindHeading:
		if entering {
			state.inline.Reset()
		} else {
			state.leaveHeading(node.(*ast.Heading))
		}

	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		if entering {
			state.renderCode(node)
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			state.pushPrefix("│ ")
		} else {
			state.popPrefix()
			state.blankLine()
		}

	case ast.KindList:
		list := node.(*ast.List)
		if entering {
			counter := 0
			if list.IsOrdered() {
				counter = list.Start
			}
			state.lists = append(state.lists, listLevel{
				ordered: list.IsOrdered(),
				counter: counter,
				tight:   list.IsTight,
			})
		} else {
			state.lists = state.lists[:len(state.lists)-1]
			if !state.inTightList() {
				state.blankLine()
			}
		}

	case ast.KindListItem:
		if entering {
			state.enterListItem()
		} else {
			state.popPrefix()
			if state.inTightList() {
				state.newline()
			} else {
				state.blankLine()
			}
		}

	case ast.KindThematicBreak:
		if entering {
			rule := state.style().Foreground(defaultTheme.border).
				Render(strings.Repeat("─", state.contentWidth()))
			state.blankLine()
			state.emitLines(rule)
			state.blankLine()
		}

	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			state.inline.WriteString(state.styledText(string(textNode.Segment.Value(state.source))))
			if textNode.SoftLineBreak() {
				state.inline.WriteString(" ")
			}
			if textNode.HardLineBreak() {
				state.inline.WriteString("\n")
			}
		}

	case ast.KindString:
		if entering {
			state.inline.WriteString(state.styledText(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		state.handleEmphasis(node.(*ast.Emphasis), entering)

	case ast.KindCodeSpan:
		if entering {
			state.renderCodeSpan(node)
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if entering {
			state.renderLink(node.(*ast.Link))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(state.source))
			state.inline.WriteString(state.style().Foreground(defaultTheme.faint).Render(url))
		}

	case extast.KindTable:
		if entering {
			state.renderTable(node.(*extast.Table))
			return ast.WalkSkipChildren, nil
		}
	}

	return ast.WalkContinue, nil
}

func (state *renderState) leaveHeading(heading *ast.Heading) {
	// Headings carry their own style, so strip what styledText put on
	// the collected children.
	content := ansi.Strip(state.inline.String())
	state.inline.Reset()
	if content == "" {
		return
	}

	style := state.style().Bold(true).Foreground(defaultTheme.normal)
	if heading.Level <= 2 {
		style = style.Foreground(defaultTheme.heading)
	}
	state.blankLine()
	state.emitLines(ansi.Wrap(style.Render(content), state.contentWidth(), " ,.;-"))
	state.blankLine()
}

func (state *renderState) renderCode(node ast.Node) {
	language := ""
	if fenced, ok := node.(*ast.FencedCodeBlock); ok {
		language = string(fenced.Language(state.source))
	}

	var code strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		code.Write(segment.Value(state.source))
	}

	rendered := state.highlight(code.String(), language)
	state.blankLine()
	for _, line := range strings.Split(strings.TrimRight(rendered, "\n"), "\n") {
		state.write(state.linePrefix() + "  " + line)
		state.newline()
	}
	state.blankLine()
}

// highlight syntax-highlights code with chroma, falling back to faint
// plain text when the language is unknown or color is off.
func (state *renderState) highlight(code, language string) string {
	if state.colored && language != "" {
		var buffer strings.Builder
		if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err == nil {
			return buffer.String()
		}
	}
	return state.style().Foreground(defaultTheme.faint).Render(code)
}

func (state *renderState) enterListItem() {
	if len(state.lists) == 0 {
		return
	}
	level := &state.lists[len(state.lists)-1]

	bullet := "- "
	if level.ordered {
		bullet = fmt.Sprintf("%d. ", level.counter)
		level.counter++
	}
	state.bullet = state.prefix() + bullet
	state.pushPrefix(strings.Repeat(" ", len(bullet)))
}

func (state *renderState) handleEmphasis(node *ast.Emphasis, entering bool) {
	delta := 1
	if !entering {
		delta = -1
	}
	if node.Level >= 2 {
		state.bold += delta
	} else {
		state.italic += delta
	}
}

func (state *renderState) renderCodeSpan(node ast.Node) {
	var code strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch typed := child.(type) {
		case *ast.Text:
			code.Write(typed.Segment.Value(state.source))
		case *ast.String:
			code.Write(typed.Value)
		}
	}
	state.inline.WriteString(state.style().Foreground(defaultTheme.faint).Render(code.String()))
}

func (state *renderState) renderLink(node *ast.Link) {
	state.inline.WriteString(state.inlineContent(node))
	if url := string(node.Destination); url != "" {
		state.inline.WriteString(" " + state.style().Foreground(defaultTheme.faint).Render("("+url+")"))
	}
}

// renderTable lays a GFM table out with two-space column separators
// and a rule under the header. Columns wider than the terminal are
// truncated rather than wrapped; runbook tables are short.
func (state *renderState) renderTable(table *extast.Table) {
	var header []string
	var rows [][]string
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		var cells []string
		for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, state.inlineContent(cell))
		}
		if child.Kind() == extast.KindTableHeader {
			header = cells
		} else {
			rows = append(rows, cells)
		}
	}
	if len(header) == 0 {
		return
	}

	widths := make([]int, len(header))
	measure := func(cells []string) {
		for index, cell := range cells {
			if index < len(widths) {
				widths[index] = max(widths[index], lipgloss.Width(cell))
			}
		}
	}
	measure(header)
	for _, row := range rows {
		measure(row)
	}

	formatRow := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(widths))
		for index, width := range widths {
			cell := ""
			if index < len(cells) {
				cell = cells[index]
			}
			if lipgloss.Width(cell) > width {
				cell = ansi.Truncate(cell, width, "…")
			}
			parts[index] = cell + strings.Repeat(" ", max(width-lipgloss.Width(cell), 0))
		}
		return style.Render(strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	state.blankLine()
	state.emitLines(formatRow(header, state.style().Bold(true).Foreground(defaultTheme.normal)))
	separators := make([]string, len(widths))
	for index, width := range widths {
		separators[index] = strings.Repeat("─", width)
	}
	state.emitLines(state.style().Foreground(defaultTheme.border).Render(strings.Join(separators, "  ")))
	for _, row := range rows {
		state.emitLines(formatRow(row, state.style()))
	}
	state.blankLine()
}
