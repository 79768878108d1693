package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the most recent crawl's progress",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(""); err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	state, err := st.GetCrawlState(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		fmt.Println("No crawl has run yet.")
		return nil
	}

	reason := string(state.TerminationReason)
	if reason == "" {
		reason = "in progress"
	}

	fmt.Printf("Run ID:               %s\n", state.RunID)
	fmt.Printf("Pages crawled:        %d\n", state.CurrentPage)
	fmt.Printf("Prospects extracted:  %d\n", state.TotalExtracted)
	fmt.Printf("Consecutive failures: %d\n", state.ConsecutiveFailures)
	fmt.Printf("Status:               %s\n", reason)
	fmt.Printf("Last updated:         %s\n", state.LastUpdated.Format("2006-01-02 15:04:05 MST"))

	total, err := st.CountProspects(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Stored prospects:     %d\n", total)
	return nil
}
