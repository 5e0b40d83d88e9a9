package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bartdag/linkvalidator/internal/config"
	"github.com/bartdag/linkvalidator/internal/model"
	"github.com/bartdag/linkvalidator/internal/urlutil"
)

var testModes = []string{config.ModeThread, config.ModeGreen}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func htmlPage(links ...string) string {
	body := "<html><body>"
	for _, l := range links {
		body += fmt.Sprintf("<a href=%q>link</a>", l)
	}
	return body + "</body></html>"
}

func serveHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, body)
}

func runCrawl(t *testing.T, cfg *config.Config) *model.SiteModel {
	t.Helper()

	c, err := New(cfg, discardLogger(), nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	site, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	return site
}

func pageByPath(t *testing.T, site *model.SiteModel, path string) *model.Page {
	t.Helper()
	for _, p := range site.Snapshot() {
		if p.URL.Path == path {
			return p
		}
	}
	return nil
}

// S1: a single page linking to two healthy pages yields three OK pages.
func TestCrawlSingleOKPage(t *testing.T) {
	t.Parallel()

	for _, mode := range testModes {
		t.Run(mode, func(t *testing.T) {
			t.Parallel()

			mux := http.NewServeMux()
			mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
				serveHTML(w, htmlPage("/a", "/b"))
			})
			mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) { serveHTML(w, "") })
			mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) { serveHTML(w, "") })
			srv := httptest.NewServer(mux)
			defer srv.Close()

			cfg := config.New()
			cfg.StartURLs = []string{srv.URL + "/"}
			cfg.Mode = mode

			site := runCrawl(t, cfg)

			if site.Len() != 3 {
				t.Fatalf("expected 3 pages, got %d", site.Len())
			}
			if site.ErrorCount() != 0 {
				t.Errorf("expected no errors, got %d", site.ErrorCount())
			}
			for _, p := range site.Snapshot() {
				if p.Status.Kind != model.StatusOK || p.Status.Code != 200 {
					t.Errorf("page %s status = %v, want ok (200)", p.URL, p.Status)
				}
			}
		})
	}
}

// S2: a 404 link is recorded as an HTTP error.
func TestCrawl404Link(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, htmlPage("/missing"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.New()
	cfg.StartURLs = []string{srv.URL + "/"}

	site := runCrawl(t, cfg)

	missing := pageByPath(t, site, "/missing")
	if missing == nil {
		t.Fatal("missing page not recorded")
	}
	if missing.Status.Kind != model.StatusHTTPError || missing.Status.Code != 404 {
		t.Errorf("status = %v, want error (status=404)", missing.Status)
	}
	if site.ErrorCount() != 1 {
		t.Errorf("expected 1 error, got %d", site.ErrorCount())
	}
}

// S3: the depth cap stops the chain; the page past the cap is present but
// never fetched.
func TestCrawlDepthCap(t *testing.T) {
	t.Parallel()

	var deepFetches atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, htmlPage("/1"))
	})
	mux.HandleFunc("/1", func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, htmlPage("/2"))
	})
	mux.HandleFunc("/2", func(w http.ResponseWriter, _ *http.Request) {
		deepFetches.Add(1)
		serveHTML(w, htmlPage("/3"))
	})
	mux.HandleFunc("/3", func(w http.ResponseWriter, _ *http.Request) {
		deepFetches.Add(1)
		serveHTML(w, "")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.New()
	cfg.StartURLs = []string{srv.URL + "/"}
	cfg.Depth = 1

	site := runCrawl(t, cfg)

	for path, wantDepth := range map[string]int{"/": 0, "/1": 1, "/2": 2} {
		p := pageByPath(t, site, path)
		if p == nil {
			t.Fatalf("page %s not recorded", path)
		}
		if p.Depth != wantDepth {
			t.Errorf("depth of %s = %d, want %d", path, p.Depth, wantDepth)
		}
	}

	deep := pageByPath(t, site, "/2")
	if deep.Status.Kind != model.StatusSkippedByPolicy || deep.Status.Reason != urlutil.SkipDepthExceeded {
		t.Errorf("status of /2 = %v, want skipped (depth exceeded)", deep.Status)
	}
	if p := pageByPath(t, site, "/3"); p != nil {
		t.Errorf("/3 must not be discovered, got %v", p.Status)
	}
	if n := deepFetches.Load(); n != 0 {
		t.Errorf("pages past the depth cap were fetched %d times", n)
	}
}

// S4: a URL referenced by every page is fetched exactly once even with
// eight concurrent workers, and keeps one incoming ref per linking page.
func TestCrawlDedupUnderConcurrency(t *testing.T) {
	t.Parallel()

	const linkers = 8

	var sharedFetches atomic.Int64

	mux := http.NewServeMux()
	var rootLinks []string
	for i := 0; i < linkers; i++ {
		path := fmt.Sprintf("/p%d", i)
		rootLinks = append(rootLinks, path)
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			serveHTML(w, htmlPage("/shared"))
		})
	}
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, htmlPage(rootLinks...))
	})
	mux.HandleFunc("/shared", func(w http.ResponseWriter, _ *http.Request) {
		sharedFetches.Add(1)
		serveHTML(w, "")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.New()
	cfg.StartURLs = []string{srv.URL + "/"}
	cfg.Mode = config.ModeThread
	cfg.SetWorkers(8)

	site := runCrawl(t, cfg)

	if n := sharedFetches.Load(); n != 1 {
		t.Errorf("/shared fetched %d times, want exactly 1", n)
	}
	shared := pageByPath(t, site, "/shared")
	if shared == nil {
		t.Fatal("/shared not recorded")
	}
	if len(shared.IncomingRefs) != linkers {
		t.Errorf("incoming refs = %d, want %d", len(shared.IncomingRefs), linkers)
	}
}

// S5: links to an outside host are skipped, or fetched once without being
// followed when --test-outside is set.
func TestCrawlOutsideHost(t *testing.T) {
	t.Parallel()

	t.Run("without test-outside", func(t *testing.T) {
		t.Parallel()

		var outsideFetches atomic.Int64
		outside := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			outsideFetches.Add(1)
			serveHTML(w, "")
		}))
		defer outside.Close()

		inside := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			serveHTML(w, htmlPage(outside.URL+"/elsewhere"))
		}))
		defer inside.Close()

		cfg := config.New()
		cfg.StartURLs = []string{inside.URL + "/"}

		site := runCrawl(t, cfg)

		p := pageByPath(t, site, "/elsewhere")
		if p == nil {
			t.Fatal("outside page not recorded")
		}
		if p.Status.Kind != model.StatusSkippedByPolicy || p.Status.Reason != urlutil.SkipOutsideScope {
			t.Errorf("status = %v, want skipped (outside scope)", p.Status)
		}
		if outsideFetches.Load() != 0 {
			t.Error("outside host must not be fetched")
		}
	})

	t.Run("with test-outside", func(t *testing.T) {
		t.Parallel()

		var outsideFetches atomic.Int64
		outside := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outsideFetches.Add(1)
			serveHTML(w, htmlPage("/not-followed"))
		}))
		defer outside.Close()

		inside := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			serveHTML(w, htmlPage(outside.URL+"/elsewhere"))
		}))
		defer inside.Close()

		cfg := config.New()
		cfg.StartURLs = []string{inside.URL + "/"}
		cfg.TestOutside = true

		site := runCrawl(t, cfg)

		p := pageByPath(t, site, "/elsewhere")
		if p == nil {
			t.Fatal("outside page not recorded")
		}
		if p.Status.Kind != model.StatusOK {
			t.Errorf("status = %v, want ok", p.Status)
		}
		if n := outsideFetches.Load(); n != 1 {
			t.Errorf("outside host fetched %d times, want 1", n)
		}
		if followed := pageByPath(t, site, "/not-followed"); followed != nil {
			t.Error("outside refs must not be followed")
		}
	})
}

// S6: a redirect landing outside the crawl scope is cut short, unless
// --test-outside admits the landing URL.
func TestCrawlRedirectOutOfScope(t *testing.T) {
	t.Parallel()

	t.Run("without test-outside", func(t *testing.T) {
		t.Parallel()

		var outsideFetches atomic.Int64
		outside := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			outsideFetches.Add(1)
			serveHTML(w, "")
		}))
		defer outside.Close()

		mux := http.NewServeMux()
		mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
			serveHTML(w, htmlPage("/leave"))
		})
		mux.HandleFunc("/leave", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, outside.URL+"/", http.StatusFound)
		})
		inside := httptest.NewServer(mux)
		defer inside.Close()

		cfg := config.New()
		cfg.StartURLs = []string{inside.URL + "/"}

		site := runCrawl(t, cfg)

		leave := pageByPath(t, site, "/leave")
		if leave == nil {
			t.Fatal("/leave not recorded")
		}
		if leave.Status.Kind != model.StatusSkippedByPolicy || leave.Status.Reason != urlutil.SkipRedirectedOutOfScope {
			t.Errorf("status = %v, want skipped (redirected out of scope)", leave.Status)
		}
		if outsideFetches.Load() != 0 {
			t.Error("redirect target must not be fetched")
		}
	})

	t.Run("with test-outside", func(t *testing.T) {
		t.Parallel()

		outside := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			serveHTML(w, "")
		}))
		defer outside.Close()

		mux := http.NewServeMux()
		mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
			serveHTML(w, htmlPage("/leave"))
		})
		mux.HandleFunc("/leave", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, outside.URL+"/", http.StatusFound)
		})
		inside := httptest.NewServer(mux)
		defer inside.Close()

		cfg := config.New()
		cfg.StartURLs = []string{inside.URL + "/"}
		cfg.TestOutside = true

		site := runCrawl(t, cfg)

		leave := pageByPath(t, site, "/leave")
		if leave == nil {
			t.Fatal("/leave not recorded")
		}
		if leave.Status.Kind != model.StatusRedirected {
			t.Errorf("status = %v, want redirected", leave.Status)
		}

		landing := site.Get(mustCanonical(t, outside.URL+"/"))
		if landing == nil {
			t.Fatal("redirect landing page not recorded")
		}
		if landing.Status.Kind != model.StatusOK {
			t.Errorf("landing status = %v, want ok", landing.Status)
		}
	})
}

// An in-scope redirect records both the original and the landing URL.
func TestCrawlInScopeRedirect(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, htmlPage("/old"))
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, "")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.New()
	cfg.StartURLs = []string{srv.URL + "/"}

	site := runCrawl(t, cfg)

	old := pageByPath(t, site, "/old")
	if old == nil || old.Status.Kind != model.StatusRedirected {
		t.Fatalf("/old status = %v, want redirected", old.Status)
	}
	landed := pageByPath(t, site, "/new")
	if landed == nil || landed.Status.Kind != model.StatusOK {
		t.Fatalf("/new missing or not ok")
	}
}

// S7: run-once processes only the start URLs; discovered refs are recorded
// but never fetched.
func TestCrawlRunOnce(t *testing.T) {
	t.Parallel()

	var linkFetches atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, htmlPage("/a", "/b"))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) {
		linkFetches.Add(1)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) {
		linkFetches.Add(1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.New()
	cfg.StartURLs = []string{srv.URL + "/"}
	cfg.RunOnce = true

	site := runCrawl(t, cfg)

	if linkFetches.Load() != 0 {
		t.Error("run-once must not fetch beyond the start urls")
	}
	root := pageByPath(t, site, "/")
	if root.Status.Kind != model.StatusOK {
		t.Errorf("start url status = %v, want ok", root.Status)
	}
	for _, path := range []string{"/a", "/b"} {
		p := pageByPath(t, site, path)
		if p == nil {
			continue // absent is acceptable
		}
		if p.Status.Kind != model.StatusSkippedByPolicy {
			t.Errorf("%s status = %v, want skipped", path, p.Status)
		}
	}
}

// A syntactically broken link becomes an invalid-link page and counts as
// an error.
func TestCrawlInvalidLink(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, htmlPage("http://["))
	}))
	defer srv.Close()

	cfg := config.New()
	cfg.StartURLs = []string{srv.URL + "/"}

	site := runCrawl(t, cfg)

	if site.ErrorCount() != 1 {
		t.Fatalf("expected 1 error, got %d", site.ErrorCount())
	}
	var invalid *model.Page
	for _, p := range site.Snapshot() {
		if p.Status.Kind == model.StatusInvalidURL {
			invalid = p
		}
	}
	if invalid == nil {
		t.Fatal("invalid-link page not recorded")
	}
	if invalid.RawURL != "http://[" {
		t.Errorf("raw url = %q, want the broken href", invalid.RawURL)
	}
}

// mailto:, javascript: and friends are dropped silently, not errors.
func TestCrawlNonCrawlableSchemes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, htmlPage("mailto:x@example.com", "javascript:void(0)", "tel:+15551234567", "/real"))
	}))
	defer srv.Close()

	cfg := config.New()
	cfg.StartURLs = []string{srv.URL + "/"}

	site := runCrawl(t, cfg)

	if site.ErrorCount() != 0 {
		t.Errorf("expected no errors, got %d", site.ErrorCount())
	}
	// Only the start page and /real (404 is not served by this handler,
	// the catch-all returns 200 for it).
	if site.Len() != 2 {
		t.Errorf("expected 2 pages, got %d", site.Len())
	}
}

// Admitting a URL twice leaves queue and page set unchanged.
func TestAdmissionIdempotence(t *testing.T) {
	t.Parallel()

	cfg := config.New()
	cfg.StartURLs = []string{"http://h/"}

	c, err := New(cfg, discardLogger(), nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	u := mustCanonical(t, "http://h/page")
	c.admit(u, 1, nil, "h")
	c.admit(u, 1, nil, "h")

	if got := c.queue.Len(); got != 1 {
		t.Errorf("queue length = %d, want 1", got)
	}
	if got := c.site.Len(); got != 1 {
		t.Errorf("page count = %d, want 1", got)
	}
}

// Outgoing refs preserve document order per page.
func TestCrawlOutgoingRefOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			serveHTML(w, htmlPage("/c", "/a", "/b", "/a"))
			return
		}
		serveHTML(w, "")
	}))
	defer srv.Close()

	cfg := config.New()
	cfg.StartURLs = []string{srv.URL + "/"}

	site := runCrawl(t, cfg)

	root := pageByPath(t, site, "/")
	want := []string{"/c", "/a", "/b", "/a"}
	if len(root.OutgoingRefs) != len(want) {
		t.Fatalf("outgoing refs = %d, want %d", len(root.OutgoingRefs), len(want))
	}
	for i, w := range want {
		if root.OutgoingRefs[i].URL.Path != w {
			t.Errorf("outgoing[%d] = %s, want %s", i, root.OutgoingRefs[i].URL.Path, w)
		}
	}
}

// A crawl whose every start URL is skipped at admission must still
// terminate: nothing is ever queued, so the queue has to close right after
// seeding in every backend.
func TestCrawlAllStartURLsSkipped(t *testing.T) {
	t.Parallel()

	for _, mode := range testModes {
		t.Run(mode, func(t *testing.T) {
			t.Parallel()

			var fetches atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fetches.Add(1)
				serveHTML(w, "")
			}))
			defer srv.Close()

			start := mustCanonical(t, srv.URL+"/")

			cfg := config.New()
			cfg.StartURLs = []string{srv.URL + "/"}
			cfg.Mode = mode
			// The ignored prefix covers the start host itself; the
			// prefix rule runs before the host rule, so the start URL is
			// skipped at admission.
			cfg.IgnoredPrefixes = []string{start.HostPort()}

			c, err := New(cfg, discardLogger(), nil)
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}

			done := make(chan *model.SiteModel, 1)
			go func() {
				site, err := c.Run(context.Background())
				if err != nil {
					t.Errorf("Run returned error: %v", err)
				}
				done <- site
			}()

			var site *model.SiteModel
			select {
			case site = <-done:
			case <-time.After(10 * time.Second):
				t.Fatal("crawl did not terminate with all start urls skipped")
			}

			if fetches.Load() != 0 {
				t.Error("ignored start url must not be fetched")
			}
			p := pageByPath(t, site, "/")
			if p == nil {
				t.Fatal("start url page not recorded")
			}
			if p.Status.Kind != model.StatusSkippedByPolicy || p.Status.Reason != urlutil.SkipIgnored {
				t.Errorf("status = %v, want skipped (ignored prefix)", p.Status)
			}
		})
	}
}

// In multi-site mode a link from one start site to another start site's
// host is outside the first site's scope, while each site still crawls
// itself.
func TestCrawlMultiSite(t *testing.T) {
	t.Parallel()

	var bDeepFetches atomic.Int64

	muxB := http.NewServeMux()
	muxB.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, htmlPage("/b-page"))
	})
	muxB.HandleFunc("/b-page", func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, "")
	})
	muxB.HandleFunc("/from-a", func(w http.ResponseWriter, _ *http.Request) {
		bDeepFetches.Add(1)
		serveHTML(w, "")
	})
	siteB := httptest.NewServer(muxB)
	defer siteB.Close()

	muxA := http.NewServeMux()
	muxA.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, htmlPage("/a-page", siteB.URL+"/from-a"))
	})
	muxA.HandleFunc("/a-page", func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, "")
	})
	siteA := httptest.NewServer(muxA)
	defer siteA.Close()

	cfg := config.New()
	cfg.StartURLs = []string{siteA.URL + "/", siteB.URL + "/"}
	cfg.Multi = true

	site := runCrawl(t, cfg)

	// Both sites crawl their own pages.
	for _, path := range []string{"/a-page", "/b-page"} {
		p := pageByPath(t, site, path)
		if p == nil || p.Status.Kind != model.StatusOK {
			t.Errorf("%s missing or not ok", path)
		}
	}

	// Site A's link into site B's host is outside A's scope.
	crossSite := pageByPath(t, site, "/from-a")
	if crossSite == nil {
		t.Fatal("cross-site link not recorded")
	}
	if crossSite.Status.Kind != model.StatusSkippedByPolicy || crossSite.Status.Reason != urlutil.SkipOutsideScope {
		t.Errorf("cross-site link status = %v, want skipped (outside scope)", crossSite.Status)
	}
	if bDeepFetches.Load() != 0 {
		t.Error("cross-site link must not be fetched in multi mode")
	}
}

func mustCanonical(t *testing.T, raw string) urlutil.CanonicalURL {
	t.Helper()
	u, err := urlutil.ParseStart(raw)
	if err != nil {
		t.Fatalf("ParseStart(%q) returned error: %v", raw, err)
	}
	return u
}
