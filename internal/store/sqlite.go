package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospect-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS prospects (
	profile_url         TEXT PRIMARY KEY,
	full_name           TEXT NOT NULL DEFAULT '',
	first_name          TEXT NOT NULL DEFAULT '',
	last_name           TEXT NOT NULL DEFAULT '',
	job_title           TEXT NOT NULL DEFAULT '',
	company             TEXT NOT NULL DEFAULT '',
	company_url         TEXT NOT NULL DEFAULT '',
	company_domain      TEXT NOT NULL DEFAULT '',
	company_size        TEXT NOT NULL DEFAULT '',
	company_description TEXT NOT NULL DEFAULT '',
	industry            TEXT NOT NULL DEFAULT '',
	summary             TEXT NOT NULL DEFAULT '',
	contact_city        TEXT NOT NULL DEFAULT '',
	contact_region      TEXT NOT NULL DEFAULT '',
	contact_country     TEXT NOT NULL DEFAULT '',
	company_city        TEXT NOT NULL DEFAULT '',
	company_region      TEXT NOT NULL DEFAULT '',
	company_country     TEXT NOT NULL DEFAULT '',
	years_in_position   INTEGER NOT NULL DEFAULT 0,
	months_in_position  INTEGER NOT NULL DEFAULT 0,
	years_at_company    INTEGER NOT NULL DEFAULT 0,
	months_at_company   INTEGER NOT NULL DEFAULT 0,
	started_year        TEXT NOT NULL DEFAULT '',
	started_month       TEXT NOT NULL DEFAULT '',
	is_premium          INTEGER NOT NULL DEFAULT 0,
	open_to_contact     INTEGER NOT NULL DEFAULT 0,
	has_posted          INTEGER NOT NULL DEFAULT 0,
	profile_views       INTEGER NOT NULL DEFAULT 0,
	mutual_connections  INTEGER NOT NULL DEFAULT 0,
	skills              TEXT NOT NULL DEFAULT '[]',
	experience          TEXT NOT NULL DEFAULT '[]',
	score_total         REAL,
	score_breakdown     TEXT,
	first_seen_at       DATETIME NOT NULL,
	last_seen_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_state (
	id                   INTEGER PRIMARY KEY CHECK (id = 1),
	run_id               TEXT NOT NULL,
	current_page         INTEGER NOT NULL,
	total_extracted      INTEGER NOT NULL,
	consecutive_failures INTEGER NOT NULL,
	termination_reason   TEXT NOT NULL DEFAULT '',
	last_updated         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prospects_company ON prospects(company);
CREATE INDEX IF NOT EXISTS idx_prospects_score ON prospects(score_total);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Merge rule: a new non-empty value replaces the old one, a new empty or
// zero value leaves the old one untouched. Booleans are sticky once true.
// first_seen_at is preserved; last_seen_at always advances.
const sqliteUpsert = `
INSERT INTO prospects (
	profile_url, full_name, first_name, last_name, job_title, company,
	company_url, company_domain, company_size, company_description, industry,
	summary, contact_city, contact_region, contact_country, company_city,
	company_region, company_country, years_in_position, months_in_position,
	years_at_company, months_at_company, started_year, started_month,
	is_premium, open_to_contact, has_posted, profile_views,
	mutual_connections, skills, experience, first_seen_at, last_seen_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(profile_url) DO UPDATE SET
	full_name           = CASE WHEN excluded.full_name <> ''           THEN excluded.full_name           ELSE prospects.full_name           END,
	first_name          = CASE WHEN excluded.first_name <> ''          THEN excluded.first_name          ELSE prospects.first_name          END,
	last_name           = CASE WHEN excluded.last_name <> ''           THEN excluded.last_name           ELSE prospects.last_name           END,
	job_title           = CASE WHEN excluded.job_title <> ''           THEN excluded.job_title           ELSE prospects.job_title           END,
	company             = CASE WHEN excluded.company <> ''             THEN excluded.company             ELSE prospects.company             END,
	company_url         = CASE WHEN excluded.company_url <> ''         THEN excluded.company_url         ELSE prospects.company_url         END,
	company_domain      = CASE WHEN excluded.company_domain <> ''      THEN excluded.company_domain      ELSE prospects.company_domain      END,
	company_size        = CASE WHEN excluded.company_size <> ''        THEN excluded.company_size        ELSE prospects.company_size        END,
	company_description = CASE WHEN excluded.company_description <> '' THEN excluded.company_description ELSE prospects.company_description END,
	industry            = CASE WHEN excluded.industry <> ''            THEN excluded.industry            ELSE prospects.industry            END,
	summary             = CASE WHEN excluded.summary <> ''             THEN excluded.summary             ELSE prospects.summary             END,
	contact_city        = CASE WHEN excluded.contact_city <> ''        THEN excluded.contact_city        ELSE prospects.contact_city        END,
	contact_region      = CASE WHEN excluded.contact_region <> ''      THEN excluded.contact_region      ELSE prospects.contact_region      END,
	contact_country     = CASE WHEN excluded.contact_country <> ''     THEN excluded.contact_country     ELSE prospects.contact_country     END,
	company_city        = CASE WHEN excluded.company_city <> ''        THEN excluded.company_city        ELSE prospects.company_city        END,
	company_region      = CASE WHEN excluded.company_region <> ''      THEN excluded.company_region      ELSE prospects.company_region      END,
	company_country     = CASE WHEN excluded.company_country <> ''     THEN excluded.company_country     ELSE prospects.company_country     END,
	years_in_position   = CASE WHEN excluded.years_in_position <> 0    THEN excluded.years_in_position   ELSE prospects.years_in_position   END,
	months_in_position  = CASE WHEN excluded.months_in_position <> 0   THEN excluded.months_in_position  ELSE prospects.months_in_position  END,
	years_at_company    = CASE WHEN excluded.years_at_company <> 0     THEN excluded.years_at_company    ELSE prospects.years_at_company    END,
	months_at_company   = CASE WHEN excluded.months_at_company <> 0    THEN excluded.months_at_company   ELSE prospects.months_at_company   END,
	started_year        = CASE WHEN excluded.started_year <> ''        THEN excluded.started_year        ELSE prospects.started_year        END,
	started_month       = CASE WHEN excluded.started_month <> ''       THEN excluded.started_month       ELSE prospects.started_month       END,
	is_premium          = MAX(prospects.is_premium, excluded.is_premium),
	open_to_contact     = MAX(prospects.open_to_contact, excluded.open_to_contact),
	has_posted          = MAX(prospects.has_posted, excluded.has_posted),
	profile_views       = CASE WHEN excluded.profile_views <> 0        THEN excluded.profile_views       ELSE prospects.profile_views       END,
	mutual_connections  = CASE WHEN excluded.mutual_connections <> 0   THEN excluded.mutual_connections  ELSE prospects.mutual_connections  END,
	skills              = CASE WHEN excluded.skills NOT IN ('', '[]', 'null')     THEN excluded.skills     ELSE prospects.skills     END,
	experience          = CASE WHEN excluded.experience NOT IN ('', '[]', 'null') THEN excluded.experience ELSE prospects.experience END,
	last_seen_at        = excluded.last_seen_at
`

func (s *SQLiteStore) UpsertProspect(ctx context.Context, p model.Prospect) error {
	return s.upsert(ctx, s.db, p)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) upsert(ctx context.Context, ex execer, p model.Prospect) error {
	if p.ProfileURL == "" {
		return eris.New("sqlite: prospect has no profile url")
	}

	skillsJSON, err := json.Marshal(p.Skills)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal skills")
	}
	expJSON, err := json.Marshal(p.Experience)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal experience")
	}

	now := time.Now().UTC()
	firstSeen := p.FirstSeenAt
	if firstSeen.IsZero() {
		firstSeen = now
	}
	lastSeen := p.LastSeenAt
	if lastSeen.IsZero() {
		lastSeen = now
	}

	_, err = ex.ExecContext(ctx, sqliteUpsert,
		p.ProfileURL, p.FullName, p.FirstName, p.LastName, p.JobTitle,
		p.Company, p.CompanyURL, p.CompanyDomain, p.CompanySize,
		p.CompanyDescription, p.Industry, p.Summary, p.ContactCity,
		p.ContactRegion, p.ContactCountry, p.CompanyCity, p.CompanyRegion,
		p.CompanyCountry, p.YearsInPosition, p.MonthsInPosition,
		p.YearsAtCompany, p.MonthsAtCompany, p.StartedYear, p.StartedMonth,
		p.IsPremium, p.OpenToContact, p.HasPosted, p.ProfileViews,
		p.MutualConnections, string(skillsJSON), string(expJSON),
		firstSeen, lastSeen,
	)
	return eris.Wrapf(err, "sqlite: upsert prospect %s", p.ProfileURL)
}

func (s *SQLiteStore) CommitPage(ctx context.Context, prospects []model.Prospect, state model.CrawlState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin page commit")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range prospects {
		if err := s.upsert(ctx, tx, p); err != nil {
			return err
		}
	}

	if err := saveCrawlState(ctx, tx, state); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit page")
}

const sqliteSaveState = `
INSERT INTO crawl_state (id, run_id, current_page, total_extracted, consecutive_failures, termination_reason, last_updated)
VALUES (1, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	run_id               = excluded.run_id,
	current_page         = excluded.current_page,
	total_extracted      = excluded.total_extracted,
	consecutive_failures = excluded.consecutive_failures,
	termination_reason   = excluded.termination_reason,
	last_updated         = excluded.last_updated
`

func saveCrawlState(ctx context.Context, ex execer, state model.CrawlState) error {
	_, err := ex.ExecContext(ctx, sqliteSaveState,
		state.RunID, state.CurrentPage, state.TotalExtracted,
		state.ConsecutiveFailures, string(state.TerminationReason),
		time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save crawl state")
}

const prospectColumns = `
	profile_url, full_name, first_name, last_name, job_title, company,
	company_url, company_domain, company_size, company_description, industry,
	summary, contact_city, contact_region, contact_country, company_city,
	company_region, company_country, years_in_position, months_in_position,
	years_at_company, months_at_company, started_year, started_month,
	is_premium, open_to_contact, has_posted, profile_views,
	mutual_connections, skills, experience, score_total, score_breakdown,
	first_seen_at, last_seen_at`

func (s *SQLiteStore) ListProspects(ctx context.Context, filter Filter) ([]model.Prospect, error) {
	query := `SELECT` + prospectColumns + ` FROM prospects WHERE 1=1`
	var args []any

	if filter.Company != "" {
		query += ` AND company LIKE ?`
		args = append(args, "%"+filter.Company+"%")
	}
	if filter.Country != "" {
		query += ` AND contact_country = ?`
		args = append(args, filter.Country)
	}
	if filter.MinScore > 0 {
		query += ` AND score_total >= ?`
		args = append(args, filter.MinScore)
	}
	if filter.ScoredOnly {
		query += ` AND score_total IS NOT NULL`
	}
	query += ` ORDER BY score_total DESC NULLS LAST, profile_url`

	limit := filter.Limit
	if limit == 0 {
		limit = 100
	}
	// Negative limit means unbounded in SQLite.
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prospects")
	}
	defer rows.Close()

	var out []model.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list prospects iterate")
}

func (s *SQLiteStore) CountProspects(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prospects`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count prospects")
}

func (s *SQLiteStore) SaveScore(ctx context.Context, profileURL string, score model.ScoreBreakdown) error {
	breakdown, err := json.Marshal(score)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal score")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE prospects SET score_total = ?, score_breakdown = ? WHERE profile_url = ?`,
		score.Total, string(breakdown), profileURL,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save score for %s", profileURL)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("prospect not found: %s", profileURL)
	}
	return nil
}

func (s *SQLiteStore) GetCrawlState(ctx context.Context) (*model.CrawlState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, current_page, total_extracted, consecutive_failures, termination_reason, last_updated
		 FROM crawl_state WHERE id = 1`,
	)

	var st model.CrawlState
	var reason string
	err := row.Scan(&st.RunID, &st.CurrentPage, &st.TotalExtracted, &st.ConsecutiveFailures, &reason, &st.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get crawl state")
	}
	st.TerminationReason = model.TerminationReason(reason)
	return &st, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanProspect(row scannable) (*model.Prospect, error) {
	var p model.Prospect
	var skillsJSON, expJSON string
	var scoreTotal sql.NullFloat64
	var breakdownJSON sql.NullString

	err := row.Scan(
		&p.ProfileURL, &p.FullName, &p.FirstName, &p.LastName, &p.JobTitle,
		&p.Company, &p.CompanyURL, &p.CompanyDomain, &p.CompanySize,
		&p.CompanyDescription, &p.Industry, &p.Summary, &p.ContactCity,
		&p.ContactRegion, &p.ContactCountry, &p.CompanyCity, &p.CompanyRegion,
		&p.CompanyCountry, &p.YearsInPosition, &p.MonthsInPosition,
		&p.YearsAtCompany, &p.MonthsAtCompany, &p.StartedYear, &p.StartedMonth,
		&p.IsPremium, &p.OpenToContact, &p.HasPosted, &p.ProfileViews,
		&p.MutualConnections, &skillsJSON, &expJSON, &scoreTotal,
		&breakdownJSON, &p.FirstSeenAt, &p.LastSeenAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: scan prospect")
	}

	if err := json.Unmarshal([]byte(skillsJSON), &p.Skills); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal skills")
	}
	if err := json.Unmarshal([]byte(expJSON), &p.Experience); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal experience")
	}
	if breakdownJSON.Valid && breakdownJSON.String != "" {
		p.Score = &model.ScoreBreakdown{}
		if err := json.Unmarshal([]byte(breakdownJSON.String), p.Score); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal score")
		}
	}
	return &p, nil
}
