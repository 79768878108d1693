package crawler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/render"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/store"
)

func testCrawlConfig() config.CrawlConfig {
	return config.CrawlConfig{
		SearchURL:              "https://example.com/search",
		MaxPages:               100,
		PerPageTimeoutSecs:     5,
		FetchRetries:           1,
		FetchRetryDelaySecs:    0,
		MaxConsecutiveFailures: 3,
		BatchPauseEvery:        10,
	}
}

func newTestController(t *testing.T, renderer render.Renderer, cfg config.CrawlConfig) (*Controller, store.Store) {
	t.Helper()

	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "crawl.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	c := New(renderer, s, cfg)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c, s
}

func rowsPage(hasNext bool, urls ...string) *render.Page {
	p := &render.Page{HasNext: hasNext}
	for _, u := range urls {
		p.Rows = append(p.Rows, model.RawRow{Name: "Jane Doe", ProfileHref: u})
	}
	return p
}

func TestRunCompletesWhenNoNextPage(t *testing.T) {
	renderer := render.NewReplayRenderer(
		render.ReplayStep{Page: rowsPage(true, "https://example.com/in/a", "https://example.com/in/b")},
		render.ReplayStep{Page: rowsPage(true, "https://example.com/in/c")},
		render.ReplayStep{Page: rowsPage(false, "https://example.com/in/d")},
	)
	c, s := newTestController(t, renderer, testCrawlConfig())

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.TerminationCompleted, res.Reason)
	assert.Equal(t, 3, res.PagesVisited)
	assert.Equal(t, 4, res.TotalExtracted)
	// The last page reported no next page, so no fourth fetch happened.
	assert.Equal(t, 3, renderer.Calls())

	n, err := s.CountProspects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	st, err := s.GetCrawlState(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, model.TerminationCompleted, st.TerminationReason)
	assert.Equal(t, 4, st.TotalExtracted)
}

func TestRunFailsAfterConsecutiveFailures(t *testing.T) {
	boom := resilience.NewTransientError(errors.New("upstream hiccup"), 503)
	renderer := render.NewReplayRenderer(
		render.ReplayStep{Page: rowsPage(true, "https://example.com/in/a")},
		render.ReplayStep{Err: boom},
		render.ReplayStep{Err: boom},
		render.ReplayStep{Err: boom},
	)
	cfg := testCrawlConfig()
	cfg.FetchRetries = 1 // one attempt per page, so each bad page counts once
	c, s := newTestController(t, renderer, cfg)

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.TerminationFailed, res.Reason)
	assert.Equal(t, 4, res.PagesVisited)
	assert.Equal(t, 1, res.TotalExtracted)

	// The successful first page stays persisted.
	n, err := s.CountProspects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err := s.GetCrawlState(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 3, st.ConsecutiveFailures)
	assert.Equal(t, model.TerminationFailed, st.TerminationReason)
}

func TestRunFailureCounterResetsOnSuccess(t *testing.T) {
	boom := resilience.NewTransientError(errors.New("upstream hiccup"), 429)
	renderer := render.NewReplayRenderer(
		render.ReplayStep{Err: boom},
		render.ReplayStep{Err: boom},
		render.ReplayStep{Page: rowsPage(true, "https://example.com/in/a")},
		render.ReplayStep{Err: boom},
		render.ReplayStep{Err: boom},
		render.ReplayStep{Page: rowsPage(false, "https://example.com/in/b")},
	)
	c, _ := newTestController(t, renderer, testCrawlConfig())

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	// Two failures, a success, two more failures, a success: the threshold
	// of three consecutive failures is never reached.
	assert.Equal(t, model.TerminationCompleted, res.Reason)
	assert.Equal(t, 6, res.PagesVisited)
	assert.Equal(t, 2, res.TotalExtracted)
}

func TestRunFailureThresholdBeatsNoNextPage(t *testing.T) {
	boom := resilience.NewTransientError(errors.New("upstream hiccup"), 503)
	renderer := render.NewReplayRenderer(
		render.ReplayStep{Err: boom},
		render.ReplayStep{Err: boom},
		render.ReplayStep{Err: boom},
	)
	c, _ := newTestController(t, renderer, testCrawlConfig())

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.TerminationFailed, res.Reason)
	assert.Equal(t, 3, renderer.Calls())
}

func TestRunStopsAtMaxPages(t *testing.T) {
	var steps []render.ReplayStep
	for i := 0; i < 5; i++ {
		steps = append(steps, render.ReplayStep{Page: rowsPage(true, "https://example.com/in/a")})
	}
	renderer := render.NewReplayRenderer(steps...)
	cfg := testCrawlConfig()
	cfg.MaxPages = 2
	c, _ := newTestController(t, renderer, cfg)

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.TerminationMaxPagesReached, res.Reason)
	assert.Equal(t, 2, res.PagesVisited)
	assert.Equal(t, 2, renderer.Calls())
}

func TestRunRetriesTransientFetchWithinPage(t *testing.T) {
	boom := resilience.NewTransientError(errors.New("upstream hiccup"), 503)
	renderer := render.NewReplayRenderer(
		render.ReplayStep{Err: boom},
		render.ReplayStep{Page: rowsPage(false, "https://example.com/in/a")},
	)
	cfg := testCrawlConfig()
	cfg.FetchRetries = 3
	c, _ := newTestController(t, renderer, cfg)

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	// Retry happened inside page 1; the page never counted as failed.
	assert.Equal(t, model.TerminationCompleted, res.Reason)
	assert.Equal(t, 1, res.PagesVisited)
	assert.Equal(t, 1, res.TotalExtracted)
	assert.Equal(t, 2, renderer.Calls())
}

func TestRunSkipsRowsWithoutProfileURL(t *testing.T) {
	page := &render.Page{
		Rows: []model.RawRow{
			{Name: "Jane Doe", ProfileHref: "https://example.com/in/jane"},
			{Name: "No Identity"},
		},
	}
	renderer := render.NewReplayRenderer(render.ReplayStep{Page: page})
	c, s := newTestController(t, renderer, testCrawlConfig())

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalExtracted)

	n, err := s.CountProspects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type failingStore struct {
	store.Store
	failed int
}

func (f *failingStore) CommitPage(ctx context.Context, prospects []model.Prospect, state model.CrawlState) error {
	if state.TerminationReason == "" {
		f.failed++
		return errors.New("disk full")
	}
	// Terminal-state write still succeeds so the run can be inspected.
	return f.Store.CommitPage(ctx, prospects, state)
}

func TestRunFailsWhenPersistenceKeepsFailing(t *testing.T) {
	renderer := render.NewReplayRenderer(
		render.ReplayStep{Page: rowsPage(true, "https://example.com/in/a")},
	)
	c, s := newTestController(t, renderer, testCrawlConfig())
	c.store = &failingStore{Store: s}

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.TerminationFailed, res.Reason)
	assert.Equal(t, 1, res.PagesVisited)
	// The page never made it to disk, so its rows do not count.
	assert.Equal(t, 0, res.TotalExtracted)
	assert.Equal(t, 2, c.store.(*failingStore).failed)
}

func TestRunHonorsCancellationAtPageBoundary(t *testing.T) {
	renderer := render.NewReplayRenderer(
		render.ReplayStep{Page: rowsPage(true, "https://example.com/in/a")},
		render.ReplayStep{Page: rowsPage(true, "https://example.com/in/b")},
	)
	c, s := newTestController(t, renderer, testCrawlConfig())

	ctx, cancel := context.WithCancel(context.Background())
	// Cancel during the first page's pause.
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	res, err := c.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.TerminationCancelled, res.Reason)
	assert.Equal(t, 1, res.PagesVisited)
	assert.Equal(t, 1, res.TotalExtracted)
	assert.Equal(t, 1, renderer.Calls())

	// The committed first page survives cancellation.
	n, err := s.CountProspects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunRejectsMissingSearchURL(t *testing.T) {
	cfg := testCrawlConfig()
	cfg.SearchURL = ""
	c, _ := newTestController(t, render.NewReplayRenderer(), cfg)

	_, err := c.Run(context.Background())
	require.Error(t, err)
}
