package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ferret/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [research-id]",
	Short: "Watch a research task's progress in a live dashboard",
	Long:  "Opens an interactive view of one research task: step checklist, live\nupdate feed, and the final summary. Works for tasks started elsewhere\nand for tasks that already finished.",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	sys, err := openSystem()
	if err != nil {
		return err
	}

	model := tui.New(sys.gateway, args[0])
	p := tea.NewProgram(model, tea.WithAltScreen())

	_, err = p.Run()
	sys.Close()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}
