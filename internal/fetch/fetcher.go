package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bartdag/linkvalidator/internal/model"
	"github.com/bartdag/linkvalidator/internal/urlutil"
)

// Mode selects the HTTP method of a fetch.
type Mode int

const (
	// ModeGET fetches the full body, needed when the response may be
	// parsed for references.
	ModeGET Mode = iota

	// ModeHEAD verifies reachability only. Used for fetch-only admissions
	// and references known to be assets by their tag.
	ModeHEAD
)

// MaxRedirects caps the redirect chain of a single fetch.
const MaxRedirects = 20

// DefaultMaxBodySize caps the bytes read from a response body.
const DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

var (
	errRedirectBlocked  = errors.New("redirect target blocked by policy")
	errTooManyRedirects = errors.New("too many redirects")
)

// siteKey carries the fetch's site origin through the request context so
// the redirect check can apply per-site admission in multi-site mode.
type siteKey struct{}

// WithSite annotates a fetch context with the site the work item belongs
// to. The redirect hop check receives it alongside each hop.
func WithSite(ctx context.Context, site string) context.Context {
	return context.WithValue(ctx, siteKey{}, site)
}

func siteFrom(ctx context.Context) string {
	site, _ := ctx.Value(siteKey{}).(string)
	return site
}

// Config holds everything a Fetcher needs. It is built once per crawl from
// the immutable crawl configuration.
type Config struct {
	// Timeout bounds each request including redirects.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// Username and Password enable HTTP Basic authentication. Credentials
	// are only attached when AuthInScope accepts the target host.
	Username string
	Password string

	// AuthInScope reports whether credentials may be sent to a host:port.
	// Nil means never.
	AuthInScope func(hostPort string) bool

	// Blocked is consulted for every redirect hop, together with the site
	// the fetch belongs to (see WithSite). A blocked hop aborts the fetch
	// with SkippedByPolicy(RedirectedOutOfScope). Nil means no hop is
	// blocked.
	Blocked func(u urlutil.CanonicalURL, site string) bool

	// Headers are extra request headers.
	Headers map[string]string

	// AllowInsecure disables TLS certificate verification.
	AllowInsecure bool

	// MaxBodySize caps the bytes read from a body; 0 means the default.
	MaxBodySize int64

	// Limiter, when non-nil, paces requests across all workers.
	Limiter *rate.Limiter
}

// Result is the outcome of one fetch. Status is always set; Meta and Body
// are present only when a response arrived.
type Result struct {
	// Status is the model status the page should take, except that a
	// redirected success is reported as OK plus Redirected=true and the
	// caller decides how to record it.
	Status model.FetchStatus

	// Meta is the response metadata, nil on transport failures.
	Meta *model.ResponseMeta

	// Body is the response body for ModeGET, capped at MaxBodySize.
	Body []byte

	// Redirected reports whether at least one redirect hop was followed.
	Redirected bool
}

// Fetcher issues crawl requests. It is safe for concurrent use; all state
// is the shared connection pool of its http.Client.
type Fetcher struct {
	cfg    Config
	client *http.Client
}

// New builds a Fetcher from the crawl configuration.
func New(cfg Config) *Fetcher {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.AllowInsecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // --allow-insecure-content
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return errTooManyRedirects
			}
			if cfg.Blocked == nil {
				return nil
			}
			hop, err := urlutil.Canonicalize(req.URL.String(), nil, urlutil.Options{})
			if err != nil {
				return nil
			}
			if cfg.Blocked(hop, siteFrom(req.Context())) {
				return errRedirectBlocked
			}
			return nil
		},
	}

	return &Fetcher{cfg: cfg, client: client}
}

// Fetch performs one request. A HEAD rejected with 405 or 501 is retried as
// a GET whose body is discarded.
func (f *Fetcher) Fetch(ctx context.Context, u urlutil.CanonicalURL, mode Mode) Result {
	res := f.fetchOnce(ctx, u, mode, mode == ModeGET)
	if mode == ModeHEAD && res.Status.Kind == model.StatusHTTPError &&
		(res.Status.Code == http.StatusMethodNotAllowed || res.Status.Code == http.StatusNotImplemented) {
		return f.fetchOnce(ctx, u, ModeGET, false)
	}
	return res
}

func (f *Fetcher) fetchOnce(ctx context.Context, u urlutil.CanonicalURL, mode Mode, keepBody bool) Result {
	if f.cfg.Limiter != nil {
		if err := f.cfg.Limiter.Wait(ctx); err != nil {
			return Result{Status: model.ConnectionError(err.Error())}
		}
	}

	method := http.MethodGet
	if mode == ModeHEAD {
		method = http.MethodHead
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return Result{Status: model.ConnectionError(err.Error())}
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	for k, v := range f.cfg.Headers {
		req.Header.Set(k, v)
	}
	if f.cfg.Username != "" && f.cfg.AuthInScope != nil && f.cfg.AuthInScope(u.HostPort()) {
		req.SetBasicAuth(f.cfg.Username, f.cfg.Password)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return Result{Status: classifyTransportError(err)}
	}
	defer resp.Body.Close()

	var body []byte
	if method == http.MethodGet {
		limited := io.LimitReader(resp.Body, f.cfg.MaxBodySize)
		if keepBody {
			body, err = io.ReadAll(limited)
		} else {
			_, err = io.Copy(io.Discard, limited)
			body = nil
		}
		if err != nil {
			return Result{Status: classifyTransportError(err)}
		}
	}
	elapsed := time.Since(start)

	finalURL := resp.Request.URL.String()
	meta := &model.ResponseMeta{
		HTTPStatus:    resp.StatusCode,
		FinalURL:      finalURL,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Elapsed:       elapsed,
	}

	redirected := finalURL != u.String()

	status := model.OK(resp.StatusCode)
	if resp.StatusCode >= 400 {
		status = model.HTTPError(resp.StatusCode)
	}

	return Result{
		Status:     status,
		Meta:       meta,
		Body:       body,
		Redirected: redirected,
	}
}

// classifyTransportError maps a request error to a fetch status: policy
// skips for blocked redirects, Timeout for deadline overruns, and
// ConnectionError for everything else with TLS failures called out.
func classifyTransportError(err error) model.FetchStatus {
	if errors.Is(err, errRedirectBlocked) {
		return model.SkippedByPolicy(urlutil.SkipRedirectedOutOfScope)
	}
	if errors.Is(err, errTooManyRedirects) {
		return model.ConnectionError("too many redirects")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.Timeout()
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.Timeout()
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return model.ConnectionError(fmt.Sprintf("TLS: %v", certErr))
	}
	return model.ConnectionError(err.Error())
}
