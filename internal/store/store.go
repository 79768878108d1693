// Package store persists prospects and crawl progress. Upserts merge by
// profile URL with last-non-empty-wins semantics, so re-crawls enrich
// earlier records without regressing fields already known.
package store

import (
	"context"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Filter narrows ListProspects. Zero values mean "no constraint".
type Filter struct {
	Company    string  `json:"company,omitempty"`
	Country    string  `json:"country,omitempty"`
	MinScore   float64 `json:"min_score,omitempty"`
	ScoredOnly bool    `json:"scored_only,omitempty"`
	// Limit bounds the result set. Zero applies a default of 100; a
	// negative value removes the bound.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Store is the persistence interface for prospects and crawl state.
type Store interface {
	// UpsertProspect merges one prospect by profile URL.
	UpsertProspect(ctx context.Context, p model.Prospect) error

	// CommitPage persists one page's prospects together with the crawl
	// state in a single transaction, so progress is never recorded ahead
	// of the rows it claims.
	CommitPage(ctx context.Context, prospects []model.Prospect, state model.CrawlState) error

	// ListProspects returns stored prospects in a stable order: scored
	// records first by score descending, then by profile URL.
	ListProspects(ctx context.Context, filter Filter) ([]model.Prospect, error)

	// CountProspects returns the total number of stored prospects.
	CountProspects(ctx context.Context) (int, error)

	// SaveScore attaches a score breakdown to a stored prospect.
	SaveScore(ctx context.Context, profileURL string, score model.ScoreBreakdown) error

	// GetCrawlState returns the persisted crawl state, or nil when no
	// crawl has run yet.
	GetCrawlState(ctx context.Context) (*model.CrawlState, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
