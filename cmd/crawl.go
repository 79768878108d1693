package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/crawler"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/render"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Page through the search surface and persist prospects",
	Long: `Fetches search result pages sequentially, extracts each row into a
prospect record, and upserts them into the store together with the crawl
state. Pages already persisted survive interruption; re-running the crawl
enriches existing records instead of duplicating them.

Exit codes: 0 on a normal finish, 1 on configuration errors before the
crawl starts, 2 when the crawl stopped early after too many consecutive
failures (partial results remain persisted).`,
	RunE: runCrawl,
}

func init() {
	f := crawlCmd.Flags()
	f.String("url", "", "search URL to crawl (overrides config)")
	f.Int("max-pages", 0, "page budget (overrides config)")

	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	crawlCfg := cfg.Crawl
	if v, _ := cmd.Flags().GetString("url"); v != "" {
		crawlCfg.SearchURL = v
	}
	if v, _ := cmd.Flags().GetInt("max-pages"); v > 0 {
		crawlCfg.MaxPages = v
	}
	cfg.Crawl = crawlCfg
	if err := cfg.Validate("crawl"); err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if prior, err := st.GetCrawlState(ctx); err == nil && prior != nil {
		zap.L().Info("previous crawl state found",
			zap.String("run_id", prior.RunID),
			zap.Int("pages", prior.CurrentPage),
			zap.Int("extracted", prior.TotalExtracted),
			zap.String("reason", string(prior.TerminationReason)))
	}

	renderer := render.NewHTTPRenderer(render.HTTPOptions{
		UserAgent:      crawlCfg.UserAgent,
		RequestsPerSec: crawlCfg.RequestsPerSec,
	})

	result, err := crawler.New(renderer, st, crawlCfg).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Crawl %s: %d prospects across %d pages\n",
		result.Reason, result.TotalExtracted, result.PagesVisited)

	if result.Reason == model.TerminationFailed {
		exitCode = 2
	}
	return nil
}
