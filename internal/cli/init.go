package cli

import (
	"fmt"
	"os"

	"ferret/internal/config"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize ferret in the current directory",
	Long:  "Creates the .ferret/ directory with the research database and a starter config.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(ferretDirName, 0755); err != nil {
		return fmt.Errorf("create %s: %w", ferretDirName, err)
	}

	cfgPath := ferretPath("config.yaml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.Save(cfgPath, config.DefaultConfig()); err != nil {
			return err
		}
		fmt.Printf("Created %s\n", cfgPath)
	} else {
		fmt.Printf("%s already exists, keeping it\n", cfgPath)
	}

	sys, err := openSystemAt(ferretPath("ferret.db"))
	if err != nil {
		return err
	}
	sys.Close()

	fmt.Printf("Created %s\n", ferretPath("ferret.db"))
	fmt.Printf("\nNext: set %sTAVILY_API_KEY%s and your generation API key, then run:\n", colorCyan, colorReset)
	fmt.Printf("  ferret run \"your research question\"\n")
	return nil
}
