package cli

import (
	"fmt"
	"net/http"

	"ferret/internal/api"
	"ferret/internal/research"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long:  "Starts the HTTP server: POST /api/research creates and starts a research\ntask in the background; GET /api/research?id=… is the snapshot read path.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
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

	pool := research.NewPool(runner, cfg.Server.Workers())
	srv := api.New(sys.store, sys.gateway, pool)

	addr := cfg.Server.Addr()
	fmt.Printf("Listening on %s%s%s\n", colorCyan, addr, colorReset)
	if err := http.ListenAndServe(addr, srv); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
