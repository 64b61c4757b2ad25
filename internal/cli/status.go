package cli

import (
	"fmt"

	"ferret/internal/store"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Quick status overview",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	sys, err := openSystem()
	if err != nil {
		return err
	}
	defer sys.Close()

	counts, err := sys.store.CountResearchByStatus()
	if err != nil {
		return err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		fmt.Printf("No research yet. Run: %sferret run \"your question\"%s\n", colorCyan, colorReset)
		return nil
	}

	fmt.Printf("%sResearch: %d total%s\n", colorBold, total, colorReset)
	fmt.Printf("  %-10s %s%d%s\n", "pending:", colorWhite, counts[store.StatusPending], colorReset)
	fmt.Printf("  %-10s %s%d%s\n", "running:", colorBlue, counts[store.StatusRunning], colorReset)
	fmt.Printf("  %-10s %s%d%s\n", "done:", colorGreen, counts[store.StatusDone], colorReset)
	fmt.Printf("  %-10s %s%d%s\n", "failed:", colorRed, counts[store.StatusFailed], colorReset)

	if counts[store.StatusRunning] > 0 {
		running, err := sys.store.ListResearchByStatus(store.StatusRunning)
		if err != nil {
			return err
		}
		fmt.Printf("\n%sIn flight:%s\n", colorBold, colorReset)
		for _, r := range running {
			fmt.Printf("  %s%s%s: %s\n", colorYellow, r.ID, colorReset, r.Query)
		}
	}
	return nil
}
