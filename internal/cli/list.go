package cli

import (
	"fmt"

	"ferret/internal/store"

	"github.com/spf13/cobra"
)

var listChatID string

var listCmd = &cobra.Command{
	Use:   "list [status]",
	Short: "List research tasks, optionally filtered by status or chat",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listChatID, "chat", "", "Only research belonging to this chat")
}

func runList(cmd *cobra.Command, args []string) error {
	sys, err := openSystem()
	if err != nil {
		return err
	}
	defer sys.Close()

	var list []store.Research
	if listChatID != "" {
		list, err = sys.store.ListResearchByChat(listChatID)
	} else {
		status := store.Status("")
		if len(args) > 0 {
			status = store.Status(args[0])
		}
		list, err = sys.store.ListResearchByStatus(status)
	}
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No research found.")
		return nil
	}

	for _, r := range list {
		fmt.Printf("%s  %s%-8s%s  %s\n", r.ID, statusColor(r.Status), r.Status, colorReset, r.Query)
	}
	return nil
}
