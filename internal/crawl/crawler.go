package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bartdag/linkvalidator/internal/config"
	"github.com/bartdag/linkvalidator/internal/extract"
	"github.com/bartdag/linkvalidator/internal/fetch"
	"github.com/bartdag/linkvalidator/internal/model"
	"github.com/bartdag/linkvalidator/internal/progress"
	"github.com/bartdag/linkvalidator/internal/urlutil"
)

// ErrNoValidStartURL is returned by New when none of the start URLs
// canonicalizes. This is fatal; a crawl with nothing to crawl is a
// configuration error.
var ErrNoValidStartURL = errors.New("no start url resolves to a valid canonical form")

// Crawler owns one crawl invocation: the site model, the policy, the queue
// and the configured backend.
//
// Mutations of the site model and queue admissions go through admit and
// applyResult. Those methods do not lock themselves: the thread backend
// serializes them with mu, while the green and process backends call them
// from their single event-loop goroutine.
type Crawler struct {
	cfg      *config.Config
	site     *model.SiteModel
	policy   *urlutil.Policy
	queue    *workQueue
	proc     *processor
	logger   *slog.Logger
	reporter progress.Reporter

	copts    urlutil.Options
	maxDepth int

	// mu serializes admit and applyResult in thread mode. It is never
	// held across I/O.
	mu sync.Mutex
}

// New builds a Crawler from an immutable configuration. It resolves the
// start URLs, derives the admission policy and constructs the fetcher and
// parser capabilities.
func New(cfg *config.Config, logger *slog.Logger, reporter progress.Reporter) (*Crawler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = progress.Nop()
	}

	var startURLs []urlutil.CanonicalURL
	for _, raw := range cfg.StartURLs {
		u, err := urlutil.ParseStart(raw)
		if err != nil {
			logger.Warn("ignoring invalid start url", "url", raw, "error", err)
			continue
		}
		startURLs = append(startURLs, u)
	}
	if len(startURLs) == 0 {
		return nil, ErrNoValidStartURL
	}

	var policy *urlutil.Policy
	if cfg.Multi {
		policy = urlutil.NewMultiPolicy(startURLs, cfg.AcceptedHosts, cfg.IgnoredPrefixes, cfg.TestOutside)
	} else {
		policy = urlutil.NewPolicy(startURLs, cfg.AcceptedHosts, cfg.IgnoredPrefixes, cfg.TestOutside)
	}

	parser, err := extract.New(cfg.Parser)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.CrawlDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.CrawlDelay), 1)
	}

	fetcher := fetch.New(fetch.Config{
		Timeout:       cfg.Timeout,
		UserAgent:     cfg.UserAgent,
		Username:      cfg.Username,
		Password:      cfg.Password,
		AuthInScope:   policy.InScope,
		Blocked:       blockedHop(policy),
		Headers:       cfg.Headers,
		AllowInsecure: cfg.AllowInsecure,
		MaxBodySize:   cfg.MaxBodySize,
		Limiter:       limiter,
	})

	return &Crawler{
		cfg:    cfg,
		site:   model.NewSiteModel(startURLs),
		policy: policy,
		queue:  newWorkQueue(),
		proc: &processor{
			fetcher:              fetcher,
			parser:               parser,
			types:                cfg.Types,
			preferServerEncoding: cfg.PreferServerEncoding,
		},
		logger:   logger,
		reporter: reporter,
		copts: urlutil.Options{
			Strict:           cfg.Strict,
			IgnoreBadTelURLs: cfg.IgnoreBadTelURLs,
		},
		maxDepth: cfg.MaxDepth(),
	}, nil
}

// blockedHop adapts the policy for the fetcher's redirect checks: a hop is
// blocked when the admission decision for it, within the fetching item's
// site, is Skip.
func blockedHop(policy *urlutil.Policy) func(urlutil.CanonicalURL, string) bool {
	return func(u urlutil.CanonicalURL, site string) bool {
		adm, _ := policy.Classify(u, site)
		return adm == urlutil.Skip
	}
}

// Site returns the site model. It is safe to read only after Run returns.
func (c *Crawler) Site() *model.SiteModel {
	return c.site
}

// Run seeds the start URLs, executes the configured backend until the
// termination condition holds (queue empty and no worker busy) and returns
// the finalized site model.
func (c *Crawler) Run(ctx context.Context) (*model.SiteModel, error) {
	c.site.StartTime = time.Now()
	c.reporter.Start()

	for _, u := range c.site.StartURLs {
		c.admit(u, 0, nil, u.HostPort())
	}

	// Every start URL may have been skipped at admission (an ignored
	// prefix can cover a start host); with nothing outstanding the queue
	// must close now or the workers would block forever.
	c.queue.CloseIfIdle()

	workers := c.cfg.EffectiveWorkers()
	c.logger.Info("starting crawl",
		"startURLs", len(c.site.StartURLs),
		"mode", c.cfg.Mode,
		"workers", workers,
		"maxDepth", c.maxDepth,
	)

	var err error
	switch c.cfg.Mode {
	case config.ModeThread:
		err = c.runThread(ctx, workers)
	case config.ModeGreen:
		err = c.runGreen(ctx, workers)
	case config.ModeProcess:
		err = c.runProcess(ctx, workers)
	default:
		err = fmt.Errorf("%w: %q", config.ErrUnknownMode, c.cfg.Mode)
	}

	c.site.EndTime = time.Now()
	c.reporter.Finish(c.site)

	c.logger.Info("crawl finished",
		"pages", c.site.Len(),
		"errors", c.site.ErrorCount(),
		"elapsed", c.site.EndTime.Sub(c.site.StartTime),
	)

	return c.site, err
}

// admit applies the admission pipeline to one canonical URL: dedup through
// GetOrCreate, depth cap, policy classification, then enqueue. site is the
// start host the URL descends from. The caller serializes (see Crawler
// doc).
func (c *Crawler) admit(u urlutil.CanonicalURL, depth int, origin *model.PageRef, site string) {
	_, wasNew := c.site.GetOrCreate(u, depth, origin)
	if !wasNew {
		return
	}

	if c.maxDepth >= 0 && depth > c.maxDepth {
		c.setStatus(u, model.SkippedByPolicy(urlutil.SkipDepthExceeded), nil)
		return
	}

	admission, reason := c.policy.Classify(u, site)
	if admission == urlutil.Skip {
		c.setStatus(u, model.SkippedByPolicy(reason), nil)
		return
	}

	tag := ""
	if origin != nil {
		tag = origin.Tag
	}
	c.queue.Push(WorkItem{
		URL:       u,
		Depth:     depth,
		Origin:    origin,
		Admission: admission,
		Tag:       tag,
		Site:      site,
	})
}

// claim marks an item in flight. Serialized like admit.
func (c *Crawler) claim(item WorkItem) {
	c.setStatus(item.URL, model.InFlight(), nil)
}

// applyResult records an item outcome into the site model and admits the
// work it discovered. Serialized like admit. It must run before the item's
// ItemDone so the outstanding counter cannot reach zero early.
func (c *Crawler) applyResult(out itemOutcome) {
	item := out.item
	u := item.URL

	switch {
	case out.redirected && out.status.Kind == model.StatusOK && out.meta != nil:
		// The original URL is recorded as redirected and the landing URL
		// is admitted as if linked from it, preserving scope rules. It
		// will be fetched (and parsed when eligible) as its own page.
		c.setStatus(u, model.Redirected(out.meta.FinalURL, out.meta.HTTPStatus), out.meta)
		if final, err := urlutil.Canonicalize(out.meta.FinalURL, nil, c.copts); err == nil && final != u {
			ref := model.PageRef{
				URL:       final,
				SourceURL: u,
				Tag:       "redirect",
				Attr:      "location",
				RawHref:   out.meta.FinalURL,
				Depth:     item.Depth,
			}
			c.admit(final, item.Depth, &ref, item.Site)
		}
	default:
		c.setStatus(u, out.status, out.meta)
	}

	page := c.site.Get(u)
	if page != nil {
		page.IsHTML = out.isHTML
		page.ParseDiagnostic = out.parseDiag
	}

	if out.refs != nil {
		c.admitRefs(item, out)
	}

	if page != nil {
		c.reporter.PageDone(page)
	}
}

// admitRefs canonicalizes and admits every extracted reference, then
// records the page's outgoing references in document order.
func (c *Crawler) admitRefs(item WorkItem, out itemOutcome) {
	depth := item.Depth + 1
	outgoing := make([]model.PageRef, 0, len(out.refs))

	for _, raw := range out.refs {
		target, err := urlutil.Canonicalize(raw.Raw, out.base, c.copts)
		if err != nil {
			ref := model.PageRef{
				SourceURL: item.URL,
				Line:      raw.Line,
				Col:       raw.Col,
				Tag:       raw.Tag,
				Attr:      raw.Attr,
				RawHref:   raw.Raw,
				Depth:     depth,
			}
			c.recordBadRef(raw.Raw, err, &ref)
			continue
		}

		ref := model.PageRef{
			URL:       target,
			SourceURL: item.URL,
			Line:      raw.Line,
			Col:       raw.Col,
			Tag:       raw.Tag,
			Attr:      raw.Attr,
			RawHref:   raw.Raw,
			Depth:     depth,
		}
		outgoing = append(outgoing, ref)
		c.admit(target, depth, &ref, item.Site)
	}

	if err := c.site.RecordRefs(item.URL, outgoing); err != nil {
		c.logger.Warn("record refs", "url", item.URL, "error", err)
	}
}

// recordBadRef handles a reference that did not canonicalize. Unsupported
// schemes and ignored tel: links are dropped silently; real syntax errors
// become invalid-link pages.
func (c *Crawler) recordBadRef(raw string, err error, origin *model.PageRef) {
	switch {
	case errors.Is(err, urlutil.ErrUnsupportedScheme),
		errors.Is(err, urlutil.ErrSkippedTelURL),
		errors.Is(err, urlutil.ErrEmptyURL):
		return
	default:
		c.site.RecordInvalid(raw, err.Error(), origin)
	}
}

// setStatus applies a transition, logging rather than failing on a
// violation; a bad transition is a crawler bug, not a crawl error.
func (c *Crawler) setStatus(u urlutil.CanonicalURL, status model.FetchStatus, meta *model.ResponseMeta) {
	if err := c.site.SetStatus(u, status, meta); err != nil {
		c.logger.Error("status transition rejected", "url", u, "error", err)
	}
}
