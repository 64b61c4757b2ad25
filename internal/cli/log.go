package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log [research-id]",
	Short: "Show the retained update history for a research task",
	Args:  cobra.ExactArgs(1),
	RunE:  runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	sys, err := openSystem()
	if err != nil {
		return err
	}
	defer sys.Close()

	events, err := sys.channel.History(args[0])
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Printf("No updates for research %s\n", args[0])
		return nil
	}

	fmt.Printf("Updates for research %s:\n\n", args[0])
	for _, e := range events {
		detail := e.Message
		if detail == "" {
			detail = e.Status
		}
		if e.StepType != "" {
			detail = fmt.Sprintf("[%d %s] %s", e.StepOrder, e.StepType, detail)
		}
		if e.Error != "" {
			detail += fmt.Sprintf(" (error: %s)", e.Error)
		}
		fmt.Printf("  %s  %-14s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, detail)
	}
	return nil
}
