package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
)

var cfg *config.Config

// exitCode lets commands signal partial failure (crawl stopped early) while
// still unwinding normally.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "prospect-cli",
	Short: "Prospect discovery and signal scoring pipeline",
	Long:  "Pages through a professional-network search surface, normalizes results into prospect records, deduplicates them across runs, and ranks them with a weighted signal score for outreach tooling.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}
