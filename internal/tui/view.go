package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ferret/internal/store"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle     = lipgloss.NewStyle().Foreground(clrDim)
	subtleStyle  = lipgloss.NewStyle().Foreground(clrSubtle)
	spinnerStyle = lipgloss.NewStyle().Foreground(clrHighlight)

	doneStyle    = lipgloss.NewStyle().Foreground(clrGreen)
	failedStyle  = lipgloss.NewStyle().Foreground(clrRed).Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(clrBlue)
	pendingStyle = lipgloss.NewStyle().Foreground(clrYellow)

	summaryStyle = lipgloss.NewStyle().Padding(0, 1)

	footerKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	footerDescStyle = lipgloss.NewStyle().Foreground(clrSubtle)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return failedStyle.Render(fmt.Sprintf("error: %v", m.err)) + "\n"
	}
	if m.snap == nil {
		return dimStyle.Render("loading…") + "\n"
	}
	if m.snap.Research == nil {
		return failedStyle.Render("no research found with that ID") + "\n"
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	if m.ready {
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
	}
	b.WriteString(m.footerView())
	return b.String()
}

// headerHeight is how many rows the header occupies, needed to size
// the viewport before the first render.
func headerHeight(m Model) int {
	steps := 0
	if m.snap != nil {
		steps = len(m.snap.Steps)
	}
	// title + status + steps + blank separator
	return 2 + steps + 1
}

func (m Model) headerView() string {
	rec := m.snap.Research

	var b strings.Builder
	b.WriteString(titleStyle.Render("Research: "+rec.Query) + "\n")

	switch rec.Status {
	case store.StatusRunning:
		b.WriteString(m.spinner.View() + runningStyle.Render("running") + "\n")
	case store.StatusDone:
		b.WriteString(doneStyle.Render("✓ done") + "\n")
	case store.StatusFailed:
		b.WriteString(failedStyle.Render("✗ failed") + "\n")
	default:
		b.WriteString(pendingStyle.Render("pending") + "\n")
	}

	for _, st := range m.snap.Steps {
		b.WriteString("  " + stepLine(st) + "\n")
	}
	b.WriteString("\n")
	return b.String()
}

func stepLine(st store.ResearchStep) string {
	label := fmt.Sprintf("%d. %s", st.Order, st.Type)
	switch st.Status {
	case store.StatusDone:
		return doneStyle.Render("✓ " + label)
	case store.StatusFailed:
		return failedStyle.Render("✗ " + label)
	case store.StatusRunning:
		return runningStyle.Render("▸ " + label)
	default:
		return dimStyle.Render("· " + label)
	}
}

// bodyContent is what the viewport shows: the update feed while the
// task runs, the summary (or error) once it is terminal.
func (m Model) bodyContent() string {
	if m.snap == nil || m.snap.Research == nil {
		return ""
	}
	rec := m.snap.Research

	switch rec.Status {
	case store.StatusDone:
		var results store.ResearchResults
		if err := json.Unmarshal(rec.Results, &results); err != nil {
			return failedStyle.Render(fmt.Sprintf("decode results: %v", err))
		}
		var b strings.Builder
		b.WriteString(summaryStyle.Width(m.width).Render(results.Summary))
		b.WriteString("\n\n" + subtleStyle.Render("Sources:") + "\n")
		for _, src := range results.SearchResults {
			b.WriteString("  " + src.Title + " " + dimStyle.Render(src.URL) + "\n")
		}
		return b.String()

	case store.StatusFailed:
		return failedStyle.Render(rec.Error)

	default:
		var b strings.Builder
		for _, e := range m.snap.Events {
			line := e.Message
			if line == "" {
				line = string(e.Type) + " " + e.Status
			}
			b.WriteString(dimStyle.Render(e.Timestamp.Format("15:04:05")) + "  " + line + "\n")
		}
		if b.Len() == 0 {
			return dimStyle.Render("waiting for updates…")
		}
		return b.String()
	}
}

func (m Model) footerView() string {
	return footerKeyStyle.Render("q") + footerDescStyle.Render(" quit  ") +
		footerKeyStyle.Render("↑/↓") + footerDescStyle.Render(" scroll")
}
