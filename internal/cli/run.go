package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ferret/internal/store"
	"ferret/internal/updates"

	"github.com/spf13/cobra"
)

var (
	runChatID string
	runUserID string
)

var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Start a research task and follow it to completion",
	Long:  "Creates a research task for the query and drives the full pipeline\n(web search, content analysis, summary), printing progress as it goes.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runChatID, "chat", "", "Attach to an existing chat (default: create a new one)")
	runCmd.Flags().StringVarP(&runUserID, "user", "u", "local", "User the research belongs to")
}

func runRun(cmd *cobra.Command, args []string) error {
	sys, err := openSystem()
	if err != nil {
		return err
	}
	defer sys.Close()

	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	runner, err := buildRunner(sys, cfg)
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")

	chatID := runChatID
	if chatID == "" {
		chat, err := sys.store.CreateChat("Research: " + query)
		if err != nil {
			return err
		}
		chatID = chat.ID
		fmt.Printf("%sChat %s%s\n", colorDim, chat.ID, colorReset)
	}

	rec, err := sys.store.CreateResearch(chatID, runUserID, query)
	if err != nil {
		return err
	}
	fmt.Printf("%sResearch %s%s\n\n", colorDim, rec.ID, colorReset)

	// Follow the live event stream while the pipeline runs on this
	// goroutine. The subscription is drained fully before we print
	// the final result.
	events := sys.channel.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range events {
			if e.ResearchID != rec.ID {
				continue
			}
			printEvent(e)
		}
	}()

	runErr := runner.Run(context.Background(), rec.ID)
	sys.channel.Unsubscribe(events)
	<-done

	final, err := sys.store.GetResearch(rec.ID)
	if err != nil {
		return err
	}

	if runErr != nil || final.Status == store.StatusFailed {
		fmt.Printf("\n%sResearch failed:%s %s\n", colorRed+colorBold, colorReset, final.Error)
		return fmt.Errorf("research %s failed", rec.ID)
	}

	var results store.ResearchResults
	if err := json.Unmarshal(final.Results, &results); err != nil {
		return fmt.Errorf("decode results: %w", err)
	}

	fmt.Printf("\n%sSummary%s\n\n%s\n", colorGreen+colorBold, colorReset, results.Summary)
	fmt.Printf("\n%sSources:%s\n", colorBold, colorReset)
	for _, src := range results.SearchResults {
		fmt.Printf("  - %s %s(%s)%s\n", src.Title, colorDim, src.URL, colorReset)
	}
	return nil
}

// printEvent renders one live progress event.
func printEvent(e updates.Event) {
	switch e.Type {
	case updates.EventStatusUpdate:
		color := colorBlue
		switch e.Status {
		case string(store.StatusDone):
			color = colorGreen
		case string(store.StatusFailed):
			color = colorRed
		}
		msg := e.Message
		if msg == "" {
			msg = "Status: " + e.Status
		}
		fmt.Printf("%s●%s %s\n", color, colorReset, msg)
	case updates.EventStepCreated:
		fmt.Printf("%s▸%s [%d] %s\n", colorCyan, colorReset, e.StepOrder, e.StepType)
	case updates.EventStepUpdate:
		if e.Message == "" {
			return
		}
		marker := colorDim + "…"
		if e.Status == string(store.StatusDone) {
			marker = colorGreen + "✓"
		} else if e.Status == string(store.StatusFailed) {
			marker = colorRed + "✗"
		}
		fmt.Printf("  %s%s %s\n", marker, colorReset, e.Message)
	}
}
