// Package export writes stored prospects to disk for downstream outreach
// tooling.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Format selects the serialization for an export.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("export: unsupported format %q (want json, csv or xlsx)", s)
	}
}

// Sink writes an ordered prospect sequence somewhere and returns its
// location.
type Sink interface {
	WriteAll(ctx context.Context, prospects []model.Prospect, format Format) (string, error)
}

// FileSink writes timestamped export files into a directory.
type FileSink struct {
	Dir string
	log *zap.Logger

	// now is swappable so tests get stable filenames.
	now func() time.Time
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{
		Dir: dir,
		log: zap.L().With(zap.String("component", "export")),
		now: time.Now,
	}
}

// WriteAll serializes the prospects and returns the path of the written
// file.
func (s *FileSink) WriteAll(ctx context.Context, prospects []model.Prospect, format Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "export: aborted")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "export: create directory %s", s.Dir)
	}

	stamp := s.now().UTC().Format("2006-01-02T15-04-05")
	path := filepath.Join(s.Dir, fmt.Sprintf("prospects-%s.%s", stamp, format))

	var err error
	switch format {
	case FormatJSON:
		err = writeJSON(path, prospects)
	case FormatCSV:
		err = writeCSV(path, prospects)
	case FormatXLSX:
		err = writeXLSX(path, prospects)
	default:
		return "", eris.Errorf("export: unsupported format %q", format)
	}
	if err != nil {
		return "", err
	}

	s.log.Info("export written",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("prospects", len(prospects)))
	return path, nil
}

func writeJSON(path string, prospects []model.Prospect) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if prospects == nil {
		prospects = []model.Prospect{}
	}
	if err := enc.Encode(prospects); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return eris.Wrap(f.Close(), "export: close json file")
}

// columns is the flat tabular layout shared by the CSV and XLSX writers.
var columns = []string{
	"profile_url", "full_name", "first_name", "last_name",
	"job_title", "company", "company_url", "company_domain", "company_size",
	"company_description", "industry", "summary",
	"contact_city", "contact_region", "contact_country",
	"company_city", "company_region", "company_country",
	"years_in_position", "months_in_position",
	"years_at_company", "months_at_company",
	"started_year", "started_month",
	"is_premium", "open_to_contact", "has_posted",
	"profile_views", "mutual_connections",
	"skills", "score_total",
}

func row(p model.Prospect) []string {
	score := ""
	if p.Score != nil {
		score = strconv.FormatFloat(p.Score.Total, 'f', 2, 64)
	}
	return []string{
		p.ProfileURL, flatten(p.FullName), flatten(p.FirstName), flatten(p.LastName),
		flatten(p.JobTitle), flatten(p.Company), p.CompanyURL, p.CompanyDomain, flatten(p.CompanySize),
		flatten(p.CompanyDescription), flatten(p.Industry), flatten(p.Summary),
		flatten(p.ContactCity), flatten(p.ContactRegion), flatten(p.ContactCountry),
		flatten(p.CompanyCity), flatten(p.CompanyRegion), flatten(p.CompanyCountry),
		strconv.Itoa(p.YearsInPosition), strconv.Itoa(p.MonthsInPosition),
		strconv.Itoa(p.YearsAtCompany), strconv.Itoa(p.MonthsAtCompany),
		p.StartedYear, p.StartedMonth,
		strconv.FormatBool(p.IsPremium), strconv.FormatBool(p.OpenToContact), strconv.FormatBool(p.HasPosted),
		strconv.Itoa(p.ProfileViews), strconv.Itoa(p.MutualConnections),
		flatten(strings.Join(p.Skills, "; ")), score,
	}
}

// flatten collapses embedded newlines and tabs so spreadsheet tools see one
// row per prospect.
func flatten(s string) string {
	s = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(s)
	return strings.TrimSpace(s)
}

func writeCSV(path string, prospects []model.Prospect) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, p := range prospects {
		if err := w.Write(row(p)); err != nil {
			return eris.Wrapf(err, "export: write csv row for %s", p.ProfileURL)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return eris.Wrap(f.Close(), "export: close csv file")
}

func writeXLSX(path string, prospects []model.Prospect) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Prospects")
	if err != nil {
		return eris.Wrap(err, "export: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().SetString(col)
	}
	for _, p := range prospects {
		r := sheet.AddRow()
		for _, v := range row(p) {
			r.AddCell().SetString(v)
		}
	}

	return eris.Wrapf(file.Save(path), "export: save xlsx %s", path)
}
