package crawler

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/extract"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/render"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/store"
)

// Controller drives one crawl run page by page: fetch, extract, persist,
// paginate. Pages are strictly sequential; the next page is never fetched
// before the current one is committed.
type Controller struct {
	renderer render.Renderer
	store    store.Store
	cfg      config.CrawlConfig
	log      *zap.Logger

	// sleep is swappable so tests do not wait out the pacing delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(renderer render.Renderer, st store.Store, cfg config.CrawlConfig) *Controller {
	return &Controller{
		renderer: renderer,
		store:    st,
		cfg:      cfg,
		log:      zap.L().With(zap.String("component", "crawler")),
		sleep:    sleepCtx,
	}
}

// Run executes the crawl until a terminal condition is reached. Once the
// crawl has started it always returns a CrawlResult; the error return is
// reserved for misconfiguration detected before the first fetch.
func (c *Controller) Run(ctx context.Context) (*model.CrawlResult, error) {
	if c.cfg.SearchURL == "" {
		return nil, eris.New("crawler: search url is required")
	}
	maxPages := c.cfg.MaxPages
	if maxPages < 1 {
		return nil, eris.Errorf("crawler: max pages must be positive, got %d", maxPages)
	}

	runID := uuid.NewString()
	c.log.Info("crawl started",
		zap.String("run_id", runID),
		zap.String("search_url", c.cfg.SearchURL),
		zap.Int("max_pages", maxPages))

	var (
		total        int
		pagesVisited int
		failures     int
		reason       model.TerminationReason
	)

	for pageNum := 1; ; pageNum++ {
		if ctx.Err() != nil {
			reason = model.TerminationCancelled
			break
		}

		page, err := c.fetchPage(ctx, pageNum)
		pagesVisited++

		var prospects []model.Prospect
		hasNext := true
		if err != nil {
			failures++
			c.log.Warn("page fetch exhausted retries",
				zap.String("run_id", runID),
				zap.Int("page", pageNum),
				zap.Int("consecutive_failures", failures),
				zap.Error(err))
		} else {
			failures = 0
			hasNext = page.HasNext
			prospects = c.extractRows(pageNum, page.Rows)
		}

		total += len(prospects)
		state := model.CrawlState{
			RunID:               runID,
			CurrentPage:         pageNum,
			TotalExtracted:      total,
			ConsecutiveFailures: failures,
		}
		if err := c.commitPage(ctx, prospects, state); err != nil {
			total -= len(prospects)
			c.log.Error("page commit failed twice, stopping crawl",
				zap.String("run_id", runID),
				zap.Int("page", pageNum),
				zap.Error(err))
			reason = model.TerminationFailed
			break
		}
		c.log.Info("page committed",
			zap.String("run_id", runID),
			zap.Int("page", pageNum),
			zap.Int("rows", len(prospects)),
			zap.Int("total_extracted", total))

		// Failure threshold beats next-page availability.
		if failures >= c.cfg.MaxConsecutiveFailures {
			reason = model.TerminationFailed
			break
		}
		if !hasNext {
			reason = model.TerminationCompleted
			break
		}
		if pageNum >= maxPages {
			reason = model.TerminationMaxPagesReached
			break
		}

		if err := c.pause(ctx, pageNum); err != nil {
			reason = model.TerminationCancelled
			break
		}
	}

	c.finalize(ctx, model.CrawlState{
		RunID:               runID,
		CurrentPage:         pagesVisited,
		TotalExtracted:      total,
		ConsecutiveFailures: failures,
		TerminationReason:   reason,
	})

	c.log.Info("crawl finished",
		zap.String("run_id", runID),
		zap.String("reason", string(reason)),
		zap.Int("pages_visited", pagesVisited),
		zap.Int("total_extracted", total))

	return &model.CrawlResult{
		TotalExtracted: total,
		PagesVisited:   pagesVisited,
		Reason:         reason,
	}, nil
}

// fetchPage requests one page with the per-page timeout, retrying transient
// failures on a fixed delay.
func (c *Controller) fetchPage(ctx context.Context, pageNum int) (*render.Page, error) {
	policy := resilience.FixedPolicy(c.cfg.FetchRetries, time.Duration(c.cfg.FetchRetryDelaySecs)*time.Second)
	policy.Retryable = resilience.IsTransient
	policy.OnAttempt = resilience.AttemptLogger("crawler", "fetch page")

	return resilience.DoVal(ctx, policy, func(ctx context.Context) (*render.Page, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.PerPageTimeoutSecs)*time.Second)
		defer cancel()
		return c.renderer.FetchPage(fetchCtx, render.Cursor{SearchURL: c.cfg.SearchURL, Page: pageNum})
	})
}

// extractRows converts raw rows to prospects. Rows without a profile URL
// carry no identity and are skipped, never failing the page.
func (c *Controller) extractRows(pageNum int, rows []model.RawRow) []model.Prospect {
	prospects := make([]model.Prospect, 0, len(rows))
	for i, raw := range rows {
		p := extract.Extract(raw)
		if p.ProfileURL == "" {
			c.log.Warn("row has no profile url, skipping",
				zap.Int("page", pageNum),
				zap.Int("row", i))
			continue
		}
		prospects = append(prospects, p)
	}
	return prospects
}

// commitPage persists a page and its crawl state in one transaction,
// retrying once on failure.
func (c *Controller) commitPage(ctx context.Context, prospects []model.Prospect, state model.CrawlState) error {
	err := c.store.CommitPage(ctx, prospects, state)
	if err == nil {
		return nil
	}
	c.log.Warn("page commit failed, retrying once",
		zap.Int("page", state.CurrentPage),
		zap.Error(err))
	return c.store.CommitPage(ctx, prospects, state)
}

// pause applies the randomized inter-page delay, plus the longer batch
// pause after every BatchPauseEvery pages.
func (c *Controller) pause(ctx context.Context, pageNum int) error {
	if err := c.sleep(ctx, randDelay(c.cfg.PageDelayMinMs, c.cfg.PageDelayMaxMs)); err != nil {
		return err
	}
	if c.cfg.BatchPauseEvery > 0 && pageNum%c.cfg.BatchPauseEvery == 0 {
		d := randDelay(c.cfg.BatchPauseMinMs, c.cfg.BatchPauseMaxMs)
		c.log.Info("batch pause", zap.Int("page", pageNum), zap.Duration("delay", d))
		if err := c.sleep(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// finalize records the terminal state. Best effort: the crawl result stands
// even if this last write fails, and it must go through even when the run
// context was cancelled.
func (c *Controller) finalize(ctx context.Context, state model.CrawlState) {
	state.LastUpdated = time.Now().UTC()
	if err := c.store.CommitPage(context.WithoutCancel(ctx), nil, state); err != nil {
		c.log.Warn("failed to record terminal crawl state", zap.Error(err))
	}
}

func randDelay(minMs, maxMs int) time.Duration {
	if minMs < 0 {
		minMs = 0
	}
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	return time.Duration(minMs+rand.IntN(maxMs-minMs+1)) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
