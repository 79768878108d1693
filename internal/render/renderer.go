// Package render abstracts how search-result pages are fetched. The crawl
// controller only sees the Renderer contract; the transport (plain HTTP
// here, a driven browser elsewhere) stays behind it.
package render

import (
	"context"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Cursor identifies the page to fetch. Page numbering starts at 1.
type Cursor struct {
	SearchURL string
	Page      int
}

// Page is one fetched results page. HasNext reports whether the surface
// advertises a further page; the controller never probes beyond it.
type Page struct {
	Rows    []model.RawRow
	HasNext bool
}

// Renderer fetches one results page for a cursor. Failures that are safe to
// retry are reported as resilience.TransientError.
type Renderer interface {
	FetchPage(ctx context.Context, cursor Cursor) (*Page, error)
}
