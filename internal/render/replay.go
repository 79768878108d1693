package render

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// ReplayStep is one scripted FetchPage response. Err, when set, is returned
// instead of the page.
type ReplayStep struct {
	Page *Page
	Err  error
}

// ReplayRenderer replays a fixed sequence of pages and errors. It stands in
// for a live renderer in tests and dry runs, one step per FetchPage call.
type ReplayRenderer struct {
	mu    sync.Mutex
	steps []ReplayStep
	calls int
}

// NewReplayRenderer creates a ReplayRenderer over the given steps.
func NewReplayRenderer(steps ...ReplayStep) *ReplayRenderer {
	return &ReplayRenderer{steps: steps}
}

// FetchPage returns the next scripted step. Running past the script is a
// hard error: it means the caller fetched a page the script said not to
// expect.
func (r *ReplayRenderer) FetchPage(ctx context.Context, cursor Cursor) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.calls >= len(r.steps) {
		return nil, eris.Errorf("replay: unexpected fetch of page %d (script has %d steps)", cursor.Page, len(r.steps))
	}
	step := r.steps[r.calls]
	r.calls++

	if step.Err != nil {
		return nil, step.Err
	}
	return step.Page, nil
}

// Calls reports how many times FetchPage was invoked.
func (r *ReplayRenderer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
