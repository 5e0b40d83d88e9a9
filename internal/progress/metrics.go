package progress

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bartdag/linkvalidator/internal/model"
)

// Metrics holds the Prometheus instruments of one crawl. A private
// registry keeps the process free of global collector state so tests can
// create as many instances as they want.
type Metrics struct {
	registry *prometheus.Registry

	pagesTotal   *prometheus.CounterVec
	fetchSeconds prometheus.Histogram
}

// NewMetrics creates the crawl collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		pagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkvalidator",
			Name:      "pages_total",
			Help:      "Pages that reached a terminal status, by outcome.",
		}, []string{"outcome"}),
		fetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "linkvalidator",
			Name:      "fetch_seconds",
			Help:      "Wall time of page fetches including redirects.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(m.pagesTotal, m.fetchSeconds)
	return m
}

// observe records one finished page.
func (m *Metrics) observe(page *model.Page) {
	m.pagesTotal.WithLabelValues(outcomeLabel(page)).Inc()
	if page.Response != nil {
		m.fetchSeconds.Observe(page.Response.Elapsed.Seconds())
	}
}

// outcomeLabel buckets a page status for the pages_total counter.
func outcomeLabel(page *model.Page) string {
	switch page.Status.Kind {
	case model.StatusOK:
		return "ok"
	case model.StatusRedirected:
		return "redirected"
	case model.StatusHTTPError:
		return "http_error"
	case model.StatusTimeout:
		return "timeout"
	case model.StatusConnectionError:
		return "connection_error"
	case model.StatusInvalidURL:
		return "invalid_url"
	case model.StatusSkippedByPolicy:
		return "skipped"
	default:
		return "other"
	}
}

// Handler returns the scrape handler for the crawl registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr in a background goroutine. The listener
// lives for the remainder of the process; crawls are short-lived and the
// scrape endpoint dies with them.
func (m *Metrics) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux) //nolint:errcheck,gosec // Best effort metrics endpoint
	}()
}
