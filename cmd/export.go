package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/export"
	"github.com/sells-group/prospect-cli/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored prospects to a file",
	Long: `Writes every stored prospect to a timestamped file for downstream
outreach tooling.

Examples:
  export --format csv
  export --format xlsx --output ./handoff
  export --format json --min-score 60`,
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.String("format", "csv", "export format: json, csv or xlsx")
	f.String("output", "", "output directory (default from config)")
	f.Float64("min-score", 0, "only export prospects scoring at least this")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(""); err != nil {
		return err
	}

	formatFlag, _ := cmd.Flags().GetString("format")
	format, err := export.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	dir := cfg.Export.Dir
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		dir = v
	}
	minScore, _ := cmd.Flags().GetFloat64("min-score")

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	prospects, err := st.ListProspects(ctx, store.Filter{
		MinScore: minScore,
		Limit:    -1,
	})
	if err != nil {
		return err
	}
	if len(prospects) == 0 {
		fmt.Println("No prospects to export. Run 'crawl' first.")
		return nil
	}

	path, err := export.NewFileSink(dir).WriteAll(ctx, prospects, format)
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d prospects to %s\n", len(prospects), path)
	return nil
}
