package scorer

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/store"
)

// Ranker scores everything in the store and persists the breakdowns.
// Scoring itself is pure, so prospects are scored concurrently; only the
// store writes are bounded.
type Ranker struct {
	store   store.Store
	weights Weights
	workers int
	dryRun  bool
	log     *zap.Logger
}

// Options tunes a Ranker.
type Options struct {
	// Weights defaults to DefaultWeights.
	Weights *Weights
	// Workers bounds concurrent scoring. Default 8.
	Workers int
	// DryRun skips persisting breakdowns to the store.
	DryRun bool
}

func NewRanker(st store.Store, opts Options) (*Ranker, error) {
	w := DefaultWeights()
	if opts.Weights != nil {
		w = *opts.Weights
	}
	if err := ValidateWeights(w); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}

	return &Ranker{
		store:   st,
		weights: w,
		workers: workers,
		dryRun:  opts.DryRun,
		log:     zap.L().With(zap.String("component", "ranker")),
	}, nil
}

// ScoreAll scores every stored prospect against the keywords, saves each
// breakdown, and returns the prospects scoring at least minScore, highest
// first.
func (r *Ranker) ScoreAll(ctx context.Context, keywords []string, minScore float64) ([]model.Prospect, error) {
	prospects, err := r.store.ListProspects(ctx, store.Filter{Limit: -1})
	if err != nil {
		return nil, eris.Wrap(err, "ranker: list prospects")
	}
	if len(prospects) == 0 {
		return nil, nil
	}

	var (
		mu     sync.Mutex
		ranked []model.Prospect
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range prospects {
		p := prospects[i]
		g.Go(func() error {
			breakdown := ScoreWith(p, keywords, r.weights)
			if !r.dryRun {
				if err := r.store.SaveScore(gctx, p.ProfileURL, breakdown); err != nil {
					return err
				}
			}

			if breakdown.Total >= minScore {
				p.Score = &breakdown
				mu.Lock()
				ranked = append(ranked, p)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "ranker: score prospects")
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score.Total != ranked[j].Score.Total {
			return ranked[i].Score.Total > ranked[j].Score.Total
		}
		return ranked[i].ProfileURL < ranked[j].ProfileURL
	})

	r.log.Info("scoring complete",
		zap.Int("scored", len(prospects)),
		zap.Int("above_cutoff", len(ranked)),
		zap.Float64("min_score", minScore))

	return ranked, nil
}
