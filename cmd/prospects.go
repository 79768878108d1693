package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/store"
)

var prospectsCmd = &cobra.Command{
	Use:   "prospects",
	Short: "List stored prospects",
	RunE:  runProspects,
}

func init() {
	f := prospectsCmd.Flags()
	f.String("company", "", "filter by company name substring")
	f.String("country", "", "filter by contact country")
	f.Float64("min-score", 0, "only show prospects scoring at least this")
	f.Bool("scored", false, "only show scored prospects")
	f.Int("limit", 50, "maximum rows to show")
	f.Int("offset", 0, "rows to skip")

	rootCmd.AddCommand(prospectsCmd)
}

func runProspects(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(""); err != nil {
		return err
	}

	filter := store.Filter{}
	filter.Company, _ = cmd.Flags().GetString("company")
	filter.Country, _ = cmd.Flags().GetString("country")
	filter.MinScore, _ = cmd.Flags().GetFloat64("min-score")
	filter.ScoredOnly, _ = cmd.Flags().GetBool("scored")
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	filter.Offset, _ = cmd.Flags().GetInt("offset")

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	prospects, err := st.ListProspects(ctx, filter)
	if err != nil {
		return err
	}
	if len(prospects) == 0 {
		fmt.Println("No prospects found.")
		return nil
	}

	if err := writeProspectTable(os.Stdout, prospects); err != nil {
		return err
	}

	total, err := st.CountProspects(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nShowing %d of %d prospects\n", len(prospects), total)
	return nil
}
