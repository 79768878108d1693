package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dir := t.TempDir()
	s, err := NewSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteUpsertInsertAndFetch(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	p := model.Prospect{
		ProfileURL: "https://example.com/in/jane-doe",
		FullName:   "Jane Doe",
		FirstName:  "Jane",
		LastName:   "Doe",
		JobTitle:   "VP of Engineering",
		Company:    "Acme",
		Skills:     []string{"go", "sql"},
		Experience: []model.Experience{{Title: "VP of Engineering", Company: "Acme"}},
	}
	require.NoError(t, s.UpsertProspect(ctx, p))

	got, err := s.ListProspects(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Doe", got[0].FullName)
	assert.Equal(t, []string{"go", "sql"}, got[0].Skills)
	require.Len(t, got[0].Experience, 1)
	assert.Equal(t, "Acme", got[0].Experience[0].Company)
	assert.Nil(t, got[0].Score)
	assert.False(t, got[0].FirstSeenAt.IsZero())
}

func TestSQLiteUpsertRejectsEmptyProfileURL(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.UpsertProspect(context.Background(), model.Prospect{FullName: "No URL"})
	require.Error(t, err)
}

func TestSQLiteMergeLastNonEmptyWins(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	const url = "https://example.com/in/jane-doe"

	first := model.Prospect{ProfileURL: url, JobTitle: "Eng", Company: ""}
	second := model.Prospect{ProfileURL: url, JobTitle: "", Company: "Acme"}

	require.NoError(t, s.UpsertProspect(ctx, first))
	require.NoError(t, s.UpsertProspect(ctx, second))

	got, err := s.ListProspects(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Empty fields on the later record never clobber earlier values.
	assert.Equal(t, "Eng", got[0].JobTitle)
	assert.Equal(t, "Acme", got[0].Company)
}

func TestSQLiteMergeBooleansAreSticky(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	const url = "https://example.com/in/jane-doe"

	require.NoError(t, s.UpsertProspect(ctx, model.Prospect{ProfileURL: url, IsPremium: true, HasPosted: true}))
	require.NoError(t, s.UpsertProspect(ctx, model.Prospect{ProfileURL: url, IsPremium: false, HasPosted: false}))

	got, err := s.ListProspects(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsPremium)
	assert.True(t, got[0].HasPosted)
}

func TestSQLiteMergePreservesFirstSeen(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	const url = "https://example.com/in/jane-doe"

	early := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.UpsertProspect(ctx, model.Prospect{
		ProfileURL: url, FirstSeenAt: early, LastSeenAt: early,
	}))
	require.NoError(t, s.UpsertProspect(ctx, model.Prospect{ProfileURL: url, FullName: "Jane Doe"}))

	got, err := s.ListProspects(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, early, got[0].FirstSeenAt.UTC())
	assert.True(t, got[0].LastSeenAt.After(early))
}

func TestSQLiteCommitPagePersistsProspectsAndState(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	prospects := []model.Prospect{
		{ProfileURL: "https://example.com/in/a", FullName: "A"},
		{ProfileURL: "https://example.com/in/b", FullName: "B"},
	}
	state := model.CrawlState{
		RunID:          "run-1",
		CurrentPage:    3,
		TotalExtracted: 42,
	}

	require.NoError(t, s.CommitPage(ctx, prospects, state))

	n, err := s.CountProspects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.GetCrawlState(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 3, got.CurrentPage)
	assert.Equal(t, 42, got.TotalExtracted)
	assert.False(t, got.LastUpdated.IsZero())
}

func TestSQLiteCommitPageRollsBackOnBadProspect(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	prospects := []model.Prospect{
		{ProfileURL: "https://example.com/in/a", FullName: "A"},
		{ProfileURL: ""}, // invalid, aborts the whole page
	}
	err := s.CommitPage(ctx, prospects, model.CrawlState{RunID: "run-1", CurrentPage: 1})
	require.Error(t, err)

	n, err := s.CountProspects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	st, err := s.GetCrawlState(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestSQLiteCrawlStateSingleton(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.CommitPage(ctx, nil, model.CrawlState{RunID: "run-1", CurrentPage: 1}))
	require.NoError(t, s.CommitPage(ctx, nil, model.CrawlState{
		RunID: "run-1", CurrentPage: 2, TerminationReason: model.TerminationCompleted,
	}))

	got, err := s.GetCrawlState(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.CurrentPage)
	assert.Equal(t, model.TerminationCompleted, got.TerminationReason)
}

func TestSQLiteGetCrawlStateEmpty(t *testing.T) {
	s := newTestSQLiteStore(t)

	got, err := s.GetCrawlState(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteSaveScore(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	const url = "https://example.com/in/jane-doe"
	require.NoError(t, s.UpsertProspect(ctx, model.Prospect{ProfileURL: url, FullName: "Jane Doe"}))

	score := model.ScoreBreakdown{TitleRelevance: 1.0, Total: 72.5}
	require.NoError(t, s.SaveScore(ctx, url, score))

	got, err := s.ListProspects(ctx, Filter{ScoredOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Score)
	assert.Equal(t, 72.5, got[0].Score.Total)
	assert.Equal(t, 1.0, got[0].Score.TitleRelevance)
}

func TestSQLiteSaveScoreUnknownProspect(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.SaveScore(context.Background(), "https://example.com/in/ghost", model.ScoreBreakdown{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteListFilters(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seed := []model.Prospect{
		{ProfileURL: "https://example.com/in/a", Company: "Acme Corp", ContactCountry: "USA"},
		{ProfileURL: "https://example.com/in/b", Company: "Beta Inc", ContactCountry: "Canada"},
		{ProfileURL: "https://example.com/in/c", Company: "Acme Labs", ContactCountry: "USA"},
	}
	for _, p := range seed {
		require.NoError(t, s.UpsertProspect(ctx, p))
	}
	require.NoError(t, s.SaveScore(ctx, "https://example.com/in/a", model.ScoreBreakdown{Total: 80}))
	require.NoError(t, s.SaveScore(ctx, "https://example.com/in/c", model.ScoreBreakdown{Total: 30}))

	byCompany, err := s.ListProspects(ctx, Filter{Company: "acme"})
	require.NoError(t, err)
	assert.Len(t, byCompany, 2)

	byCountry, err := s.ListProspects(ctx, Filter{Country: "Canada"})
	require.NoError(t, err)
	require.Len(t, byCountry, 1)
	assert.Equal(t, "Beta Inc", byCountry[0].Company)

	byScore, err := s.ListProspects(ctx, Filter{MinScore: 50})
	require.NoError(t, err)
	require.Len(t, byScore, 1)
	assert.Equal(t, "https://example.com/in/a", byScore[0].ProfileURL)

	// Scored prospects rank first, highest score on top.
	all, err := s.ListProspects(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "https://example.com/in/a", all[0].ProfileURL)
	assert.Equal(t, "https://example.com/in/c", all[1].ProfileURL)
}

func TestSQLiteListPagination(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, u := range []string{"a", "b", "c"} {
		require.NoError(t, s.UpsertProspect(ctx, model.Prospect{ProfileURL: "https://example.com/in/" + u}))
	}

	page, err := s.ListProspects(ctx, Filter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 2)
}
