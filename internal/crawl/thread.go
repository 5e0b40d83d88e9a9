package crawl

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runThread executes the crawl with n workers sharing process memory. The
// crawl mutex guards the combined queue/page-map critical sections (claim,
// applyResult with its admissions); the fetch and parse work in between
// runs unlocked.
func (c *Crawler) runThread(ctx context.Context, n int) error {
	g := &errgroup.Group{}

	for i := 0; i < n; i++ {
		g.Go(func() error {
			for {
				item, ok := c.queue.Pop()
				if !ok {
					return nil
				}

				c.mu.Lock()
				c.claim(item)
				c.mu.Unlock()

				out := c.proc.process(ctx, item)

				c.mu.Lock()
				c.applyResult(out)
				c.mu.Unlock()

				// ItemDone only after the outcome and its admissions are
				// recorded; the outstanding counter is the termination
				// condition.
				c.queue.ItemDone()
			}
		})
	}

	return g.Wait()
}
