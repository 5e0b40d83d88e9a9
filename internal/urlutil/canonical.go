package urlutil

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// Supported schemes for crawling. Everything else is either skipped by
// policy (mailto:, javascript:, ...) or reported as invalid.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// CanonicalURL is the normalized, comparable form of a URL. It is the
// deduplication key of the whole crawl: equality of two CanonicalURL values
// means the two raw strings address the same resource.
//
// The zero value is not a valid URL; IsZero reports it.
type CanonicalURL struct {
	// Scheme is "http" or "https", lowercased.
	Scheme string

	// Host is the lowercased, IDNA-normalized host without the port.
	Host string

	// Port is the explicit port, or empty when it equals the scheme default
	// (80 for http, 443 for https).
	Port string

	// Path is the percent-encoding normalized path with "." and ".."
	// segments resolved. An empty path canonicalizes to "/".
	Path string

	// RawQuery is the query string kept verbatim, without the leading "?".
	RawQuery string
}

// Options controls canonicalization behavior.
type Options struct {
	// Strict disables whitespace trimming of href/src attribute values.
	Strict bool

	// IgnoreBadTelURLs silently skips malformed tel: URIs instead of
	// reporting them as invalid.
	IgnoreBadTelURLs bool
}

// IsZero reports whether c is the zero CanonicalURL.
func (c CanonicalURL) IsZero() bool {
	return c.Scheme == "" && c.Host == ""
}

// HostPort returns the host, with the port appended when non-default.
func (c CanonicalURL) HostPort() string {
	if c.Port == "" {
		return c.Host
	}
	return c.Host + ":" + c.Port
}

// HostPath returns "host[:port]/path", the form matched against ignored
// prefixes such as "www.example.com/archive/".
func (c CanonicalURL) HostPath() string {
	return c.HostPort() + c.Path
}

// String reassembles the canonical form.
func (c CanonicalURL) String() string {
	var b strings.Builder
	b.WriteString(c.Scheme)
	b.WriteString("://")
	b.WriteString(c.HostPort())
	b.WriteString(c.Path)
	if c.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(c.RawQuery)
	}
	return b.String()
}

// URL converts the canonical form back to a *url.URL suitable for fetching.
func (c CanonicalURL) URL() *url.URL {
	return &url.URL{
		Scheme:   c.Scheme,
		Host:     c.HostPort(),
		Path:     c.Path,
		RawQuery: c.RawQuery,
	}
}

// defaultPort returns the default port for a scheme.
func defaultPort(scheme string) string {
	switch scheme {
	case SchemeHTTP:
		return "80"
	case SchemeHTTPS:
		return "443"
	default:
		return ""
	}
}

// Canonicalize resolves raw against base per RFC 3986 and normalizes the
// result. base may be nil for absolute URLs (start URLs).
//
// The error is one of the package sentinels for classification failures
// (ErrUnsupportedScheme, ErrInvalidTelURL, ...) or a wrapped parse error
// for syntactically broken links.
func Canonicalize(raw string, base *url.URL, opts Options) (CanonicalURL, error) {
	s := raw
	if !opts.Strict {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return CanonicalURL{}, ErrEmptyURL
	}

	if telRaw, ok := strings.CutPrefix(s, "tel:"); ok {
		if validTelNumber(telRaw) {
			return CanonicalURL{}, ErrUnsupportedScheme
		}
		if opts.IgnoreBadTelURLs {
			return CanonicalURL{}, ErrSkippedTelURL
		}
		return CanonicalURL{}, ErrInvalidTelURL
	}

	u, err := url.Parse(s)
	if err != nil {
		return CanonicalURL{}, fmt.Errorf("parse %q: %w", raw, err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	} else {
		// Resolving against an empty base still removes dot segments.
		u = (&url.URL{}).ResolveReference(u)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != SchemeHTTP && scheme != SchemeHTTPS {
		// mailto:, javascript:, data: and friends end up here. They are
		// policy skips, never broken links.
		return CanonicalURL{}, ErrUnsupportedScheme
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return CanonicalURL{}, ErrMissingHost
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}

	port := u.Port()
	if port == defaultPort(scheme) {
		port = ""
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	return CanonicalURL{
		Scheme:   scheme,
		Host:     host,
		Port:     port,
		Path:     path,
		RawQuery: u.RawQuery,
	}, nil
}

// ParseStart canonicalizes a start URL given on the command line. A missing
// scheme defaults to http, so "example.com/path" is accepted.
func ParseStart(raw string) (CanonicalURL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return CanonicalURL{}, ErrEmptyURL
	}
	if strings.HasPrefix(s, "//") {
		s = SchemeHTTP + ":" + s
	} else if !strings.Contains(s, "://") {
		s = SchemeHTTP + "://" + s
	}
	return Canonicalize(s, nil, Options{})
}

// telNumberRegexp is a pragmatic subset of the RFC 3966 grammar: a global
// number (+ followed by digits and visual separators) or a local number with
// a phone-context parameter. Parameters after the number are accepted
// unvalidated.
var telNumberRegexp = regexp.MustCompile(
	`^(?:\+[0-9().-]*[0-9][0-9().-]*(?:;[A-Za-z0-9-]+(?:=[^;]+)?)*` +
		`|[0-9*#().-]*[0-9*#][0-9*#().-]*(?:;[A-Za-z0-9-]+(?:=[^;]+)?)*;phone-context=[^;]+(?:;[A-Za-z0-9-]+(?:=[^;]+)?)*)$`)

// validTelNumber reports whether the part after "tel:" conforms to RFC 3966.
func validTelNumber(s string) bool {
	return telNumberRegexp.MatchString(s)
}
