package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		bodyHeight := msg.Height - headerHeight(m) - 1
		if bodyHeight < 3 {
			bodyHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, bodyHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = bodyHeight
		}
		m.viewport.SetContent(m.bodyContent())
		return m, nil

	case snapshotMsg:
		m.err = msg.err
		wasTerminal := m.terminal()
		m.snap = msg.snap
		if m.ready {
			atBottom := m.viewport.AtBottom()
			m.viewport.SetContent(m.bodyContent())
			// Follow the feed unless the user scrolled up, and jump
			// to the top once the summary replaces the feed.
			if m.terminal() && !wasTerminal {
				m.viewport.GotoTop()
			} else if atBottom {
				m.viewport.GotoBottom()
			}
		}
		return m, nil

	case tickMsg:
		if m.terminal() {
			// Nothing changes anymore; stop polling.
			return m, nil
		}
		return m, tea.Batch(m.refresh(), tick())

	case spinner.TickMsg:
		if m.terminal() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// terminal reports whether the watched task reached done or failed.
func (m Model) terminal() bool {
	return m.snap != nil && m.snap.Research != nil && m.snap.Research.Status.Terminal()
}
