package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score stored prospects against target keywords",
	Long: `Computes the seven-axis signal score for every stored prospect and
ranks them. Keywords come from --keywords, a --criteria file, or the config
file, in that order of precedence.

Examples:
  # Score against ad-hoc keywords and persist the breakdowns
  score --keywords "engineering,golang" --save

  # Use a criteria file with weight overrides
  score --criteria icp.yaml --save

  # Preview the top prospects above a cutoff without persisting
  score --keywords sales --min-score 60

  # Export ranked results to CSV
  score --keywords sales --format csv --output ranked.csv`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("keywords", "", "comma-separated keywords (overrides config)")
	f.String("criteria", "", "YAML criteria file with keywords and weight overrides")
	f.Float64("min-score", -1, "minimum score cutoff (overrides config)")
	f.String("format", "table", "output format: table or csv")
	f.String("output", "", "output file path (default: stdout)")
	f.Bool("save", false, "persist score breakdowns to the store")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(""); err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "csv" {
		return eris.Errorf("score: --format must be table or csv (got %q)", format)
	}

	keywords := cfg.Scorer.Keywords
	minScore := cfg.Scorer.MinScore
	weights := weightsFromConfig(cfg.Scorer)

	if path, _ := cmd.Flags().GetString("criteria"); path != "" {
		criteria, err := scorer.LoadCriteria(path)
		if err != nil {
			return err
		}
		keywords = criteria.Keywords
		weights = criteria.EffectiveWeights()
		if criteria.MinScore > 0 {
			minScore = criteria.MinScore
		}
	}
	if v, _ := cmd.Flags().GetString("keywords"); v != "" {
		keywords = splitAndTrim(v)
	}
	if v, _ := cmd.Flags().GetFloat64("min-score"); v >= 0 {
		minScore = v
	}
	save, _ := cmd.Flags().GetBool("save")

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	ranker, err := scorer.NewRanker(st, scorer.Options{
		Weights: &weights,
		DryRun:  !save,
	})
	if err != nil {
		return err
	}

	zap.L().Info("scoring prospects",
		zap.Strings("keywords", keywords),
		zap.Float64("min_score", minScore),
		zap.Bool("save", save))

	ranked, err := ranker.ScoreAll(ctx, keywords, minScore)
	if err != nil {
		return err
	}
	if len(ranked) == 0 {
		fmt.Println("No prospects above the cutoff. Run 'crawl' first or lower --min-score.")
		return nil
	}

	outputPath, _ := cmd.Flags().GetString("output")
	w, closeFn, err := outputWriter(outputPath)
	if err != nil {
		return err
	}
	defer closeFn()

	switch format {
	case "csv":
		if err := writeRankedCSV(w, ranked); err != nil {
			return err
		}
	default:
		if err := writeProspectTable(w, ranked); err != nil {
			return err
		}
	}

	if save {
		fmt.Printf("\nPersisted %d score breakdowns\n", len(ranked))
	}
	return nil
}

func writeRankedCSV(w *os.File, ranked []model.Prospect) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"profile_url", "full_name", "job_title", "company", "total",
		"keyword_presence", "title_relevance", "company_size",
		"activity_level", "industry_match", "skills_match", "experience_match",
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "score: write CSV header")
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	for _, p := range ranked {
		b := p.Score
		row := []string{
			p.ProfileURL, p.FullName, p.JobTitle, p.Company,
			strconv.FormatFloat(b.Total, 'f', 2, 64),
			f(b.KeywordPresence), f(b.TitleRelevance), f(b.CompanySize),
			f(b.ActivityLevel), f(b.IndustryMatch), f(b.SkillsMatch), f(b.ExperienceMatch),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "score: write CSV row")
		}
	}
	return nil
}
