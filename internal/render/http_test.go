package render

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/resilience"
)

const resultsPage = `<html><body>
<div class="search-results">
  <div class="search-results__result-item">
    <a class="name" href="https://example.com/in/jane-doe">Jane   Doe</a>
    <div class="title">VP of Engineering</div>
    <a class="company" href="https://www.acme.com">Acme Corp</a>
    <div class="company-size">51-200 employees</div>
    <div class="company-location">Austin, TX, USA</div>
    <div class="industry">Manufacturing</div>
    <div class="location">San Francisco, CA, USA</div>
    <div class="summary">
      Engineering leader
      who ships
    </div>
    <div class="position-duration">3 years 4 months</div>
    <div class="company-duration">5 years</div>
    <div class="start-date">Mar 2021</div>
    <div class="premium-badge">Premium</div>
  </div>
  <div class="search-results__result-item">
    <div class="name"><a href="https://example.com/in/sam-roe">Sam Roe</a></div>
    <div class="title">Data Analyst</div>
  </div>
</div>
<button aria-label="Next">Next</button>
</body></html>`

const lastPage = `<html><body>
<div class="search-results__result-item">
  <a class="name" href="https://example.com/in/jane-doe">Jane Doe</a>
</div>
<button aria-label="Next" disabled>Next</button>
</body></html>`

func newTestRenderer() *HTTPRenderer {
	return NewHTTPRenderer(HTTPOptions{
		RequestsPerSec: 1000, // no pacing in tests
		UserAgent:      "prospect-cli-test",
	})
}

func TestFetchPageParsesRows(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, resultsPage)
	}))
	defer srv.Close()

	r := newTestRenderer()
	page, err := r.FetchPage(context.Background(), Cursor{SearchURL: srv.URL + "/search?q=vp", Page: 3})
	require.NoError(t, err)

	assert.Contains(t, gotPath, "page=3")
	assert.Contains(t, gotPath, "q=vp")
	assert.Equal(t, "prospect-cli-test", gotUA)

	require.Len(t, page.Rows, 2)
	assert.True(t, page.HasNext)

	first := page.Rows[0]
	assert.Equal(t, "Jane Doe", first.Name) // whitespace collapsed
	assert.Equal(t, "https://example.com/in/jane-doe", first.ProfileHref)
	assert.Equal(t, "VP of Engineering", first.Title)
	assert.Equal(t, "Acme Corp", first.Company)
	assert.Equal(t, "https://www.acme.com", first.CompanyHref)
	assert.Equal(t, "51-200 employees", first.CompanySize)
	assert.Equal(t, "Engineering leader who ships", first.Summary)
	assert.Equal(t, "Premium", first.PremiumBadge)
	assert.Empty(t, first.InMailStatus)

	// Second row: href sits on the anchor inside the name element.
	second := page.Rows[1]
	assert.Equal(t, "Sam Roe", second.Name)
	assert.Equal(t, "https://example.com/in/sam-roe", second.ProfileHref)
}

func TestFetchPageDetectsLastPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, lastPage)
	}))
	defer srv.Close()

	r := newTestRenderer()
	page, err := r.FetchPage(context.Background(), Cursor{SearchURL: srv.URL, Page: 1})
	require.NoError(t, err)

	assert.Len(t, page.Rows, 1)
	assert.False(t, page.HasNext)
}

func TestFetchPageEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body></body></html>")
	}))
	defer srv.Close()

	r := newTestRenderer()
	page, err := r.FetchPage(context.Background(), Cursor{SearchURL: srv.URL, Page: 1})
	require.NoError(t, err)

	assert.Empty(t, page.Rows)
	// No pagination control at all means nothing further to fetch.
	assert.False(t, page.HasNext)
}

func TestFetchPageTransientStatuses(t *testing.T) {
	for _, status := range []int{429, 503} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		r := newTestRenderer()
		_, err := r.FetchPage(context.Background(), Cursor{SearchURL: srv.URL, Page: 1})
		require.Error(t, err, "status %d", status)
		assert.True(t, resilience.IsTransient(err), "status %d should be transient", status)

		srv.Close()
	}
}

func TestFetchPagePermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	r := newTestRenderer()
	_, err := r.FetchPage(context.Background(), Cursor{SearchURL: srv.URL, Page: 1})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestFetchPageConnectionErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	r := newTestRenderer()
	_, err := r.FetchPage(context.Background(), Cursor{SearchURL: srv.URL, Page: 1})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestFetchPageHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRenderer()
	_, err := r.FetchPage(ctx, Cursor{SearchURL: "http://unreachable.invalid", Page: 1})
	require.Error(t, err)
}
