// Package tui is the live dashboard for one research task: a step
// checklist, the rolling update feed, and the final summary. It reads
// through the snapshot gateway on a polling tick, so it works equally
// for tasks driven by this process, by the HTTP server, or already
// finished before the watcher connected.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"ferret/internal/research"
)

// pollEvery is how often the dashboard re-reads the snapshot.
const pollEvery = time.Second

// Model is the top-level bubbletea model.
type Model struct {
	gateway    *research.Gateway
	researchID string

	width  int
	height int

	spinner  spinner.Model
	viewport viewport.Model
	ready    bool

	snap *research.Snapshot
	err  error

	quitting bool
}

// New creates a dashboard model for one research task.
func New(g *research.Gateway, researchID string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		gateway:    g,
		researchID: researchID,
		spinner:    sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh(), tick())
}

type snapshotMsg struct {
	snap *research.Snapshot
	err  error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(pollEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh re-reads the snapshot off the UI loop.
func (m Model) refresh() tea.Cmd {
	g, id := m.gateway, m.researchID
	return func() tea.Msg {
		snap, err := g.Snapshot(id)
		return snapshotMsg{snap: snap, err: err}
	}
}
