package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it,
// which keeps the Postgres store unit-testable without a database.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
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
	is_premium          BOOLEAN NOT NULL DEFAULT FALSE,
	open_to_contact     BOOLEAN NOT NULL DEFAULT FALSE,
	has_posted          BOOLEAN NOT NULL DEFAULT FALSE,
	profile_views       INTEGER NOT NULL DEFAULT 0,
	mutual_connections  INTEGER NOT NULL DEFAULT 0,
	skills              JSONB NOT NULL DEFAULT '[]',
	experience          JSONB NOT NULL DEFAULT '[]',
	score_total         DOUBLE PRECISION,
	score_breakdown     JSONB,
	first_seen_at       TIMESTAMPTZ NOT NULL,
	last_seen_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_state (
	id                   INTEGER PRIMARY KEY CHECK (id = 1),
	run_id               TEXT NOT NULL,
	current_page         INTEGER NOT NULL,
	total_extracted      INTEGER NOT NULL,
	consecutive_failures INTEGER NOT NULL,
	termination_reason   TEXT NOT NULL DEFAULT '',
	last_updated         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prospects_company ON prospects(company);
CREATE INDEX IF NOT EXISTS idx_prospects_score ON prospects(score_total);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const postgresUpsert = `
INSERT INTO prospects (
	profile_url, full_name, first_name, last_name, job_title, company,
	company_url, company_domain, company_size, company_description, industry,
	summary, contact_city, contact_region, contact_country, company_city,
	company_region, company_country, years_in_position, months_in_position,
	years_at_company, months_at_company, started_year, started_month,
	is_premium, open_to_contact, has_posted, profile_views,
	mutual_connections, skills, experience, first_seen_at, last_seen_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
	$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29,
	$30, $31, $32, $33)
ON CONFLICT (profile_url) DO UPDATE SET
	full_name           = CASE WHEN EXCLUDED.full_name <> ''           THEN EXCLUDED.full_name           ELSE prospects.full_name           END,
	first_name          = CASE WHEN EXCLUDED.first_name <> ''          THEN EXCLUDED.first_name          ELSE prospects.first_name          END,
	last_name           = CASE WHEN EXCLUDED.last_name <> ''           THEN EXCLUDED.last_name           ELSE prospects.last_name           END,
	job_title           = CASE WHEN EXCLUDED.job_title <> ''           THEN EXCLUDED.job_title           ELSE prospects.job_title           END,
	company             = CASE WHEN EXCLUDED.company <> ''             THEN EXCLUDED.company             ELSE prospects.company             END,
	company_url         = CASE WHEN EXCLUDED.company_url <> ''         THEN EXCLUDED.company_url         ELSE prospects.company_url         END,
	company_domain      = CASE WHEN EXCLUDED.company_domain <> ''      THEN EXCLUDED.company_domain      ELSE prospects.company_domain      END,
	company_size        = CASE WHEN EXCLUDED.company_size <> ''        THEN EXCLUDED.company_size        ELSE prospects.company_size        END,
	company_description = CASE WHEN EXCLUDED.company_description <> '' THEN EXCLUDED.company_description ELSE prospects.company_description END,
	industry            = CASE WHEN EXCLUDED.industry <> ''            THEN EXCLUDED.industry            ELSE prospects.industry            END,
	summary             = CASE WHEN EXCLUDED.summary <> ''             THEN EXCLUDED.summary             ELSE prospects.summary             END,
	contact_city        = CASE WHEN EXCLUDED.contact_city <> ''        THEN EXCLUDED.contact_city        ELSE prospects.contact_city        END,
	contact_region      = CASE WHEN EXCLUDED.contact_region <> ''      THEN EXCLUDED.contact_region      ELSE prospects.contact_region      END,
	contact_country     = CASE WHEN EXCLUDED.contact_country <> ''     THEN EXCLUDED.contact_country     ELSE prospects.contact_country     END,
	company_city        = CASE WHEN EXCLUDED.company_city <> ''        THEN EXCLUDED.company_city        ELSE prospects.company_city        END,
	company_region      = CASE WHEN EXCLUDED.company_region <> ''      THEN EXCLUDED.company_region      ELSE prospects.company_region      END,
	company_country     = CASE WHEN EXCLUDED.company_country <> ''     THEN EXCLUDED.company_country     ELSE prospects.company_country     END,
	years_in_position   = CASE WHEN EXCLUDED.years_in_position <> 0    THEN EXCLUDED.years_in_position   ELSE prospects.years_in_position   END,
	months_in_position  = CASE WHEN EXCLUDED.months_in_position <> 0   THEN EXCLUDED.months_in_position  ELSE prospects.months_in_position  END,
	years_at_company    = CASE WHEN EXCLUDED.years_at_company <> 0     THEN EXCLUDED.years_at_company    ELSE prospects.years_at_company    END,
	months_at_company   = CASE WHEN EXCLUDED.months_at_company <> 0    THEN EXCLUDED.months_at_company   ELSE prospects.months_at_company   END,
	started_year        = CASE WHEN EXCLUDED.started_year <> ''        THEN EXCLUDED.started_year        ELSE prospects.started_year        END,
	started_month       = CASE WHEN EXCLUDED.started_month <> ''       THEN EXCLUDED.started_month       ELSE prospects.started_month       END,
	is_premium          = prospects.is_premium OR EXCLUDED.is_premium,
	open_to_contact     = prospects.open_to_contact OR EXCLUDED.open_to_contact,
	has_posted          = prospects.has_posted OR EXCLUDED.has_posted,
	profile_views       = CASE WHEN EXCLUDED.profile_views <> 0        THEN EXCLUDED.profile_views       ELSE prospects.profile_views       END,
	mutual_connections  = CASE WHEN EXCLUDED.mutual_connections <> 0   THEN EXCLUDED.mutual_connections  ELSE prospects.mutual_connections  END,
	skills              = CASE WHEN EXCLUDED.skills <> '[]'::jsonb     THEN EXCLUDED.skills     ELSE prospects.skills     END,
	experience          = CASE WHEN EXCLUDED.experience <> '[]'::jsonb THEN EXCLUDED.experience ELSE prospects.experience END,
	last_seen_at        = EXCLUDED.last_seen_at
`

// pgExecer is satisfied by both Pool and pgx.Tx.
type pgExecer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) UpsertProspect(ctx context.Context, p model.Prospect) error {
	return pgUpsert(ctx, s.pool, p)
}

func pgUpsert(ctx context.Context, ex pgExecer, p model.Prospect) error {
	if p.ProfileURL == "" {
		return eris.New("postgres: prospect has no profile url")
	}

	// Nil slices marshal to JSON null, which the conflict guard would
	// treat as data and clobber stored arrays with. Keep the empty shape
	// canonical: always send [].
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}
	experience := p.Experience
	if experience == nil {
		experience = []model.Experience{}
	}
	skillsJSON, err := json.Marshal(skills)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal skills")
	}
	expJSON, err := json.Marshal(experience)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal experience")
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

	_, err = ex.Exec(ctx, postgresUpsert,
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
	return eris.Wrapf(err, "postgres: upsert prospect %s", p.ProfileURL)
}

const postgresSaveState = `
INSERT INTO crawl_state (id, run_id, current_page, total_extracted, consecutive_failures, termination_reason, last_updated)
VALUES (1, $1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	run_id               = EXCLUDED.run_id,
	current_page         = EXCLUDED.current_page,
	total_extracted      = EXCLUDED.total_extracted,
	consecutive_failures = EXCLUDED.consecutive_failures,
	termination_reason   = EXCLUDED.termination_reason,
	last_updated         = EXCLUDED.last_updated
`

func (s *PostgresStore) CommitPage(ctx context.Context, prospects []model.Prospect, state model.CrawlState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin page commit")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, p := range prospects {
		if err := pgUpsert(ctx, tx, p); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, postgresSaveState,
		state.RunID, state.CurrentPage, state.TotalExtracted,
		state.ConsecutiveFailures, string(state.TerminationReason),
		time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: save crawl state")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit page")
}

func (s *PostgresStore) ListProspects(ctx context.Context, filter Filter) ([]model.Prospect, error) {
	query := `SELECT` + prospectColumns + ` FROM prospects WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Company != "" {
		query += ` AND company ILIKE ` + arg("%"+filter.Company+"%")
	}
	if filter.Country != "" {
		query += ` AND contact_country = ` + arg(filter.Country)
	}
	if filter.MinScore > 0 {
		query += ` AND score_total >= ` + arg(filter.MinScore)
	}
	if filter.ScoredOnly {
		query += ` AND score_total IS NOT NULL`
	}
	query += ` ORDER BY score_total DESC NULLS LAST, profile_url`

	// Negative limit means unbounded.
	if filter.Limit >= 0 {
		limit := filter.Limit
		if limit == 0 {
			limit = 100
		}
		query += ` LIMIT ` + arg(limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prospects")
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
	return out, eris.Wrap(rows.Err(), "postgres: list prospects iterate")
}

func (s *PostgresStore) CountProspects(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM prospects`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count prospects")
}

func (s *PostgresStore) SaveScore(ctx context.Context, profileURL string, score model.ScoreBreakdown) error {
	breakdown, err := json.Marshal(score)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal score")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE prospects SET score_total = $1, score_breakdown = $2 WHERE profile_url = $3`,
		score.Total, string(breakdown), profileURL,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save score for %s", profileURL)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("prospect not found: %s", profileURL)
	}
	return nil
}

func (s *PostgresStore) GetCrawlState(ctx context.Context) (*model.CrawlState, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT run_id, current_page, total_extracted, consecutive_failures, termination_reason, last_updated
		 FROM crawl_state WHERE id = 1`,
	)

	var st model.CrawlState
	var reason string
	err := row.Scan(&st.RunID, &st.CurrentPage, &st.TotalExtracted, &st.ConsecutiveFailures, &reason, &st.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get crawl state")
	}
	st.TerminationReason = model.TerminationReason(reason)
	return &st, nil
}
