// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runbook

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Page displays the rendered runbook in a full-screen scrollable
// viewport. It blocks until the operator quits the pager.
func Page() error {
	program := tea.NewProgram(newPagerModel(), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("runbook: pager: %w", err)
	}
	return nil
}

type pagerKeyMap struct {
	quit key.Binding
	top  key.Binding
	end  key.Binding
}

type pagerModel struct {
	viewport viewport.Model
	keys     pagerKeyMap
	ready    bool
}

func newPagerModel() pagerModel {
	return pagerModel{
		keys: pagerKeyMap{
			quit: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c")),
			top:  key.NewBinding(key.WithKeys("g", "home")),
			end:  key.NewBinding(key.WithKeys("G", "end")),
		},
	}
}

func (m pagerModel) Init() tea.Cmd { return nil }

func (m pagerModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(message, m.keys.quit):
			return m, tea.Quit
		case key.Matches(message, m.keys.top):
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(message, m.keys.end):
			m.viewport.GotoBottom()
			return m, nil
		}

	case tea.WindowSizeMsg:
		footer := 1
		if !m.ready {
			m.viewport = viewport.New(message.Width, message.Height-footer)
			m.ready = true
		} else {
			m.viewport.Width = message.Width
			m.viewport.Height = message.Height - footer
		}
		m.viewport.SetContent(Render(message.Width, false))
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(message)
	return m, cmd
}

func (m pagerModel) View() string {
	if !m.ready {
		return "loading…"
	}
	footer := lipgloss.NewStyle().Faint(true).
		Render(fmt.Sprintf(" %3.0f%%  ↑/↓ scroll · g/G top/end · q quit", m.viewport.ScrollPercent()*100))
	return m.viewport.View() + "\n" + footer
}
