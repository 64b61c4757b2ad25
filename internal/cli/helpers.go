package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"ferret/internal/config"
	"ferret/internal/llm"
	"ferret/internal/research"
	"ferret/internal/search"
	"ferret/internal/store"
	"ferret/internal/updates"
)

const ferretDirName = ".ferret"

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

// ferretPath returns the path to a file inside .ferret/.
func ferretPath(parts ...string) string {
	elems := append([]string{ferretDirName}, parts...)
	return filepath.Join(elems...)
}

// system is everything the commands need, wired together once:
// the database, the update channel over it, the store, and the
// snapshot gateway.
type system struct {
	store   *store.Store
	channel *updates.Channel
	gateway *research.Gateway
}

func (sys *system) Close() {
	sys.store.Close()
}

// openSystem wires the store and update channel over the project
// database, returning an error if ferret is not initialized.
func openSystem() (*system, error) {
	dbPath := ferretPath("ferret.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("ferret not initialized. Run: ferret init")
	}
	return openSystemAt(dbPath)
}

// openSystemAt wires the system over the database at the given path,
// creating it if needed.
func openSystemAt(dbPath string) (*system, error) {
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	logStore, err := updates.NewLog(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	ch := updates.NewChannel(updates.NewBus(), logStore)
	s, err := store.New(db, ch)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &system{
		store:   s,
		channel: ch,
		gateway: research.NewGateway(s, ch),
	}, nil
}

// mustConfig loads the project config.
func mustConfig() (*config.Config, error) {
	cfg, err := config.Load(ferretPath("config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load config (run: ferret init): %w", err)
	}
	return cfg, nil
}

// buildRunner assembles the pipeline runner from the config: the
// search and generation backends plus the executor over them.
func buildRunner(sys *system, cfg *config.Config) (*research.Runner, error) {
	searcher := search.New(os.Getenv(cfg.Search.APIKeyEnv), cfg.Search.Timeout())
	gen, err := llm.New(llm.Config{
		Provider:  cfg.Generation.Provider,
		Model:     cfg.Generation.Model,
		APIKeyEnv: cfg.Generation.APIKeyEnv,
		Timeout:   cfg.Generation.Timeout(),
	})
	if err != nil {
		return nil, err
	}
	exec := research.NewExecutor(searcher, gen)
	return research.NewRunner(sys.store, sys.channel, exec), nil
}
