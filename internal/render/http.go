package render

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

// RowSelectors maps the logical row fields to CSS selectors. Which selectors
// locate which field is a property of the rendered surface, not of the crawl
// contract, so the whole set is injectable.
type RowSelectors struct {
	Row             string
	Name            string
	Title           string
	Company         string
	CompanySize     string
	CompanyLocation string
	CompanyDesc     string
	Industry        string
	Location        string
	Summary         string
	PositionTenure  string
	CompanyTenure   string
	StartDate       string
	PremiumBadge    string
	InMailStatus    string
	NextControl     string
}

// DefaultSelectors matches the search-results surface the extension-era
// reader targeted.
func DefaultSelectors() RowSelectors {
	return RowSelectors{
		Row:             ".search-results__result-item",
		Name:            ".name",
		Title:           ".title",
		Company:         ".company",
		CompanySize:     ".company-size",
		CompanyLocation: ".company-location",
		CompanyDesc:     ".company-description",
		Industry:        ".industry",
		Location:        ".location",
		Summary:         ".summary",
		PositionTenure:  ".position-duration",
		CompanyTenure:   ".company-duration",
		StartDate:       ".start-date",
		PremiumBadge:    ".premium-badge",
		InMailStatus:    ".inmail-status",
		NextControl:     "button[aria-label=\"Next\"], .next-button",
	}
}

// HTTPRenderer fetches result pages over plain HTTP and parses rows with
// goquery. A rate limiter enforces a pacing floor underneath the
// controller's randomized delays.
type HTTPRenderer struct {
	client    *http.Client
	limiter   *rate.Limiter
	selectors RowSelectors
	userAgent string
}

// HTTPOptions configures an HTTPRenderer.
type HTTPOptions struct {
	Timeout        time.Duration
	RequestsPerSec float64
	UserAgent      string
	Selectors      *RowSelectors
}

// NewHTTPRenderer creates an HTTPRenderer.
func NewHTTPRenderer(opts HTTPOptions) *HTTPRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 0.5
	}
	sel := DefaultSelectors()
	if opts.Selectors != nil {
		sel = *opts.Selectors
	}
	return &HTTPRenderer{
		client:    &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		selectors: sel,
		userAgent: opts.UserAgent,
	}
}

// FetchPage fetches and parses one results page.
func (r *HTTPRenderer) FetchPage(ctx context.Context, cursor Cursor) (*Page, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "render: rate limit wait")
	}

	pageURL, err := pageURL(cursor)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "render: build request")
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "render: fetch page %d", cursor.Page), 0)
	}
	defer resp.Body.Close()

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("render: page %d returned status %d", cursor.Page, resp.StatusCode),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("render: page %d returned status %d", cursor.Page, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "render: parse page %d", cursor.Page)
	}

	page := r.parse(doc)
	zap.L().Debug("render: page fetched",
		zap.Int("page", cursor.Page),
		zap.Int("rows", len(page.Rows)),
		zap.Bool("has_next", page.HasNext),
	)
	return page, nil
}

func (r *HTTPRenderer) parse(doc *goquery.Document) *Page {
	sel := r.selectors
	page := &Page{}

	doc.Find(sel.Row).Each(func(_ int, s *goquery.Selection) {
		row := model.RawRow{
			Name:            text(s, sel.Name),
			ProfileHref:     href(s, sel.Name),
			Title:           text(s, sel.Title),
			Company:         text(s, sel.Company),
			CompanyHref:     href(s, sel.Company),
			CompanySize:     text(s, sel.CompanySize),
			CompanyLocation: text(s, sel.CompanyLocation),
			CompanyDesc:     text(s, sel.CompanyDesc),
			Industry:        text(s, sel.Industry),
			Location:        text(s, sel.Location),
			Summary:         text(s, sel.Summary),
			PositionTenure:  text(s, sel.PositionTenure),
			CompanyTenure:   text(s, sel.CompanyTenure),
			StartDate:       text(s, sel.StartDate),
			PremiumBadge:    text(s, sel.PremiumBadge),
			InMailStatus:    text(s, sel.InMailStatus),
		}
		page.Rows = append(page.Rows, row)
	})

	next := doc.Find(sel.NextControl).First()
	if next.Length() > 0 {
		_, disabled := next.Attr("disabled")
		page.HasNext = !disabled
	}

	return page
}

func pageURL(cursor Cursor) (string, error) {
	u, err := url.Parse(cursor.SearchURL)
	if err != nil {
		return "", eris.Wrap(err, "render: parse search url")
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(cursor.Page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func text(s *goquery.Selection, selector string) string {
	return trimAll(s.Find(selector).First().Text())
}

// trimAll collapses runs of whitespace, which rendered HTML is full of.
func trimAll(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func href(s *goquery.Selection, selector string) string {
	el := s.Find(selector).First()
	if v, ok := el.Attr("href"); ok {
		return v
	}
	// The name/company text often sits inside the anchor rather than on it.
	if v, ok := el.Find("a").First().Attr("href"); ok {
		return v
	}
	return ""
}
