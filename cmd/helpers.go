package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/scorer"
	"github.com/sells-group/prospect-cli/internal/store"
)

// openStore opens the configured backend and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		s, err = store.NewSQLite(cfg.Store.Path)
	case "postgres":
		s, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// weightsFromConfig maps the scorer config section onto scorer weights.
func weightsFromConfig(c config.ScorerConfig) scorer.Weights {
	return scorer.Weights{
		KeywordPresence: c.KeywordPresenceWeight,
		TitleRelevance:  c.TitleRelevanceWeight,
		CompanySize:     c.CompanySizeWeight,
		ActivityLevel:   c.ActivityLevelWeight,
		IndustryMatch:   c.IndustryMatchWeight,
		SkillsMatch:     c.SkillsMatchWeight,
		ExperienceMatch: c.ExperienceMatchWeight,
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// outputWriter opens the --output file, or stdout when the path is empty.
func outputWriter(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output file %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}

func writeProspectTable(w io.Writer, prospects []model.Prospect) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Name\tTitle\tCompany\tScore")

	for _, p := range prospects {
		score := "-"
		if p.Score != nil {
			score = fmt.Sprintf("%.2f", p.Score.Total)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			truncate(p.FullName, 30), truncate(p.JobTitle, 35), truncate(p.Company, 25), score)
	}

	return eris.Wrap(tw.Flush(), "write prospect table")
}

// truncate shortens s to at most max runes, ending in "..." when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
