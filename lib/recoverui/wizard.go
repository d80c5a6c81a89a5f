// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recoverui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/reliquary/lib/secret"
	"github.com/bureau-foundation/reliquary/lib/share"
)

// suggestionLimit is how many wordlist completions the wizard shows
// under the input line.
const suggestionLimit = 5

// ErrCancelled reports that the operator quit the wizard before a
// quorum was assembled.
var ErrCancelled = fmt.Errorf("recoverui: recovery cancelled")

type wizardKeyMap struct {
	quit     key.Binding
	complete key.Binding
	accept   key.Binding
	undo     key.Binding
}

type wizardStyles struct {
	title      lipgloss.Style
	progress   lipgloss.Style
	word       lipgloss.Style
	suggestion lipgloss.Style
	problem    lipgloss.Style
	help       lipgloss.Style
}

func newWizardStyles() wizardStyles {
	return wizardStyles{
		title:      lipgloss.NewStyle().Bold(true),
		progress:   lipgloss.NewStyle().Foreground(lipgloss.Color("110")),
		word:       lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		suggestion: lipgloss.NewStyle().Faint(true),
		problem:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		help:       lipgloss.NewStyle().Faint(true),
	}
}

// wizardModel collects share mnemonics word by word. A share is
// submitted by pressing enter on an empty input once its words are
// in; the model combines automatically when the threshold embedded
// in the collected shares is met.
type wizardModel struct {
	removalIdentifier string

	input       textinput.Model
	words       []string
	suggestions []string
	shares      []share.Share
	problem     string

	keys   wizardKeyMap
	styles wizardStyles
	slab   *util.Slab

	// Set when the model quits.
	identity *secret.Buffer
	err      error
}

func newWizardModel(removalIdentifier string) wizardModel {
	input := textinput.New()
	input.Placeholder = "next word"
	input.Prompt = "> "
	input.CharLimit = 12
	input.Focus()

	return wizardModel{
		removalIdentifier: removalIdentifier,
		input:             input,
		keys: wizardKeyMap{
			quit:     key.NewBinding(key.WithKeys("ctrl+c", "esc")),
			complete: key.NewBinding(key.WithKeys("tab")),
			accept:   key.NewBinding(key.WithKeys("enter")),
			undo:     key.NewBinding(key.WithKeys("ctrl+w", "ctrl+u")),
		},
		styles: newWizardStyles(),
		slab:   newSlab(),
	}
}

func (m wizardModel) Init() tea.Cmd { return textinput.Blink }

func (m wizardModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	keyMessage, isKey := message.(tea.KeyMsg)
	if !isKey {
		return m.updateInput(message)
	}

	switch {
	case key.Matches(keyMessage, m.keys.quit):
		share.ZeroAll(m.shares)
		m.err = ErrCancelled
		return m, tea.Quit

	case key.Matches(keyMessage, m.keys.complete):
		if len(m.suggestions) > 0 {
			m.input.SetValue(m.suggestions[0])
			m.input.CursorEnd()
			m.suggestions = nil
		}
		return m, nil

	case key.Matches(keyMessage, m.keys.undo):
		if m.input.Value() == "" && len(m.words) > 0 {
			m.words = m.words[:len(m.words)-1]
		} else {
			m.input.SetValue("")
		}
		m.problem = ""
		m.suggestions = nil
		return m, nil

	case key.Matches(keyMessage, m.keys.accept):
		return m.accept()
	}

	return m.updateInput(message)
}

func (m wizardModel) updateInput(message tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(message)
	m.suggestions = suggest(m.input.Value(), suggestionLimit, m.slab)
	return m, cmd
}

// accept handles enter: a typed word joins the current mnemonic, an
// empty input submits the mnemonic as a share.
func (m wizardModel) accept() (tea.Model, tea.Cmd) {
	m.problem = ""
	word := strings.ToLower(strings.TrimSpace(m.input.Value()))

	if word != "" {
		if !isWord(word) {
			m.problem = fmt.Sprintf("%q is not in the wordlist", word)
			return m, nil
		}
		m.words = append(m.words, word)
		m.input.SetValue("")
		m.suggestions = nil
		return m, nil
	}

	if len(m.words) == 0 {
		return m, nil
	}

	parsed, err := share.ParseMnemonic(strings.Join(m.words, " "))
	if err != nil {
		m.problem = err.Error()
		return m, nil
	}
	m.words = nil
	m.shares = append(m.shares, parsed)

	if len(m.shares) < int(parsed.Threshold) {
		return m, nil
	}

	identity, err := combine(m.shares)
	share.ZeroAll(m.shares)
	if err != nil {
		// A quorum that does not reconstruct cannot be repaired by
		// adding shares; the operator starts over with the shares
		// re-verified.
		m.shares = nil
		m.problem = err.Error()
		return m, nil
	}
	m.identity = identity
	return m, tea.Quit
}

func (m wizardModel) View() string {
	var view strings.Builder

	view.WriteString(m.styles.title.Render("Share recovery — "+m.removalIdentifier) + "\n\n")

	needed := "?"
	if len(m.shares) > 0 {
		needed = fmt.Sprintf("%d", m.shares[0].Threshold)
	}
	view.WriteString(m.styles.progress.Render(
		fmt.Sprintf("shares accepted: %d of %s", len(m.shares), needed)) + "\n")

	if len(m.words) > 0 {
		view.WriteString(m.styles.word.Render(
			fmt.Sprintf("current share: %d words", len(m.words))) + "\n")
	}
	view.WriteString("\n" + m.input.View() + "\n")

	if len(m.suggestions) > 0 {
		view.WriteString(m.styles.suggestion.Render("  "+strings.Join(m.suggestions, "  ")) + "\n")
	}
	if m.problem != "" {
		view.WriteString(m.styles.problem.Render("  "+m.problem) + "\n")
	}

	view.WriteString("\n" + m.styles.help.Render(
		"enter word · tab complete · empty enter submits share · ctrl+w undo · esc quit"))
	return view.String()
}

// RunWizard collects mnemonics interactively until a quorum combines
// into the bundle identity. The caller owns the returned buffer.
func RunWizard(removalIdentifier string) (*secret.Buffer, error) {
	program := tea.NewProgram(newWizardModel(removalIdentifier))
	final, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("recoverui: wizard: %w", err)
	}
	model := final.(wizardModel)
	if model.err != nil {
		return nil, model.err
	}
	if model.identity == nil {
		return nil, ErrCancelled
	}
	return model.identity, nil
}
