package crawl

import (
	"context"
	"sync"
)

// runGreen executes the crawl cooperatively: a single event loop owns the
// site model and queue, so no lock is taken anywhere. The m tasks perform
// only the blocking work (HTTP and parsing) and communicate over channels;
// every mutation happens in the loop between I/O completions.
func (c *Crawler) runGreen(ctx context.Context, m int) error {
	work := make(chan WorkItem)
	results := make(chan itemOutcome)

	var wg sync.WaitGroup
	for i := 0; i < m; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				results <- c.proc.process(ctx, item)
			}
		}()
	}

	err := c.eventLoop(work, results)

	close(work)
	wg.Wait()
	return err
}

// eventLoop is the single-owner dispatcher shared by the green and process
// backends. It feeds items to send, applies outcomes from results, and
// returns when no item is queued or in flight. A fatal outcome aborts the
// loop after the remaining in-flight items drain.
func (c *Crawler) eventLoop(send chan<- WorkItem, results <-chan itemOutcome) error {
	inflight := 0
	var pending *WorkItem
	var fatal error

	for {
		// After a fatal outcome no new work is dispatched; the loop only
		// drains what is still in flight.
		if fatal != nil {
			if inflight == 0 {
				break
			}
			out := <-results
			inflight--
			fatal = c.applyOutcome(out, fatal)
			continue
		}

		if pending == nil {
			if item, ok := c.queue.TryPop(); ok {
				c.claim(item)
				pending = &item
			}
		}
		if pending == nil && inflight == 0 {
			break
		}

		if pending != nil {
			select {
			case send <- *pending:
				inflight++
				pending = nil
			case out := <-results:
				inflight--
				fatal = c.applyOutcome(out, fatal)
			}
		} else {
			out := <-results
			inflight--
			fatal = c.applyOutcome(out, fatal)
		}
	}

	if fatal != nil {
		c.queue.Close()
	}
	return fatal
}

// applyOutcome records one outcome and keeps the first fatal error.
func (c *Crawler) applyOutcome(out itemOutcome, fatal error) error {
	if out.fatal != nil {
		if fatal == nil {
			fatal = out.fatal
		}
		c.queue.ItemDone()
		return fatal
	}
	c.applyResult(out)
	c.queue.ItemDone()
	return fatal
}
