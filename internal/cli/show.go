package cli

import (
	"encoding/json"
	"fmt"

	"ferret/internal/store"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [research-id]",
	Short: "Show a research task's current state",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	sys, err := openSystem()
	if err != nil {
		return err
	}
	defer sys.Close()

	snap, err := sys.gateway.Snapshot(args[0])
	if err != nil {
		return err
	}
	if snap == nil {
		fmt.Printf("No research found with ID %s\n", args[0])
		return nil
	}

	rec := snap.Research
	fmt.Printf("Research %s\n", rec.ID)
	fmt.Printf("  Query:    %s\n", rec.Query)
	fmt.Printf("  Status:   %s%s%s\n", statusColor(rec.Status), rec.Status, colorReset)
	fmt.Printf("  Chat:     %s\n", rec.ChatID)
	fmt.Printf("  Created:  %s\n", rec.CreatedAt.Format("2006-01-02 15:04"))
	if rec.StartedAt != nil {
		fmt.Printf("  Started:  %s\n", rec.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if rec.CompletedAt != nil {
		fmt.Printf("  Finished: %s\n", rec.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if rec.Error != "" {
		fmt.Printf("  Error:    %s%s%s\n", colorRed, rec.Error, colorReset)
	}

	if len(snap.Steps) > 0 {
		fmt.Println("\n  Steps:")
		for _, st := range snap.Steps {
			fmt.Printf("    %d. %-18s %s%s%s\n", st.Order, st.Type, statusColor(st.Status), st.Status, colorReset)
			if st.Error != "" {
				fmt.Printf("       %s%s%s\n", colorRed, st.Error, colorReset)
			}
		}
	}

	if rec.Status == store.StatusDone {
		var results store.ResearchResults
		if err := json.Unmarshal(rec.Results, &results); err == nil && results.Summary != "" {
			fmt.Printf("\n%sSummary%s\n\n%s\n", colorBold, colorReset, results.Summary)
		}
	}

	if len(snap.Events) > 0 {
		fmt.Printf("\n  Recent updates (%d):\n", len(snap.Events))
		for _, e := range snap.Events {
			fmt.Printf("    %s  %-14s %s\n", e.Timestamp.Format("15:04:05"), e.Type, e.Message)
		}
	}
	return nil
}

func statusColor(s store.Status) string {
	switch s {
	case store.StatusRunning:
		return colorBlue
	case store.StatusDone:
		return colorGreen
	case store.StatusFailed:
		return colorRed
	default:
		return colorWhite
	}
}
