package progress

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/bartdag/linkvalidator/internal/model"
)

// Reporter observes the crawl. Implementations must tolerate concurrent
// PageDone calls: the thread backend reports from several workers.
type Reporter interface {
	// Start is called once before the first page is fetched.
	Start()

	// PageDone is called after a page reached a terminal status and its
	// references were admitted.
	PageDone(page *model.Page)

	// Finish is called once after the crawl terminated.
	Finish(site *model.SiteModel)
}

// nop discards all notifications.
type nop struct{}

func (nop) Start()                  {}
func (nop) PageDone(*model.Page)    {}
func (nop) Finish(*model.SiteModel) {}

// Nop returns a reporter that does nothing.
func Nop() Reporter { return nop{} }

// Console prints a progress line at a fixed interval while the crawl runs.
type Console struct {
	w        io.Writer
	interval time.Duration

	done    atomic.Int64
	errors  atomic.Int64
	skipped atomic.Int64

	stop chan struct{}

	// metrics, when non-nil, mirrors the counters into Prometheus.
	metrics *Metrics
}

// ConsoleOption configures a Console reporter.
type ConsoleOption func(*Console)

// WithInterval overrides the default one-second print interval.
func WithInterval(d time.Duration) ConsoleOption {
	return func(c *Console) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithMetrics mirrors the progress counters into the given Metrics.
func WithMetrics(m *Metrics) ConsoleOption {
	return func(c *Console) {
		c.metrics = m
	}
}

// NewConsole creates a Console reporter writing to w.
func NewConsole(w io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{
		w:        w,
		interval: time.Second,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start implements Reporter.
func (c *Console) Start() {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				fmt.Fprintf(c.w, "crawled: %d, errors: %d, skipped: %d\n",
					c.done.Load(), c.errors.Load(), c.skipped.Load())
			}
		}
	}()
}

// PageDone implements Reporter.
func (c *Console) PageDone(page *model.Page) {
	c.done.Add(1)
	if page.Erroneous() {
		c.errors.Add(1)
	}
	if page.Status.Kind == model.StatusSkippedByPolicy {
		c.skipped.Add(1)
	}
	if c.metrics != nil {
		c.metrics.observe(page)
	}
}

// Finish implements Reporter.
func (c *Console) Finish(site *model.SiteModel) {
	close(c.stop)
	fmt.Fprintf(c.w, "done: %d urls, %d error(s) in %s\n",
		site.Len(), site.ErrorCount(), site.EndTime.Sub(site.StartTime).Round(time.Millisecond))
}

// metricsOnly adapts a Metrics into a standalone Reporter for runs without
// console progress.
type metricsOnly struct {
	nop
	m *Metrics
}

func (r metricsOnly) PageDone(page *model.Page) { r.m.observe(page) }

// ForMetrics returns a reporter that only feeds the Prometheus counters.
func ForMetrics(m *Metrics) Reporter { return metricsOnly{m: m} }
