package crawler

import (
	"context"
	"sync"
)

// runContext is the state shared by every worker of one run.
type runContext struct {
	ctx context.Context

	mu   sync.Mutex
	seen map[string]struct{}
}

func newRunContext(ctx context.Context) *runContext {
	return &runContext{
		ctx:  ctx,
		seen: make(map[string]struct{}),
	}
}

// claim reports whether url has not been handed out earlier in this run and
// marks it as taken.
func (rc *runContext) claim(url string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if _, ok := rc.seen[url]; ok {
		return false
	}
	rc.seen[url] = struct{}{}
	return true
}

func (rc *runContext) cancelled() bool {
	return rc.ctx.Err() != nil
}
