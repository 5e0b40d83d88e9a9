package urlutil

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Admission is the decision made once per canonical URL.
type Admission int

const (
	// CrawlAndFollow fetches the URL and, when the response is HTML,
	// extracts and admits its references.
	CrawlAndFollow Admission = iota

	// FetchOnly fetches the URL once to verify reachability and never
	// extracts references from it.
	FetchOnly

	// Skip does not fetch the URL at all. The reason is recorded on the
	// page.
	Skip
)

// String returns the admission name for logging.
func (a Admission) String() string {
	switch a {
	case CrawlAndFollow:
		return "crawl"
	case FetchOnly:
		return "fetch-only"
	case Skip:
		return "skip"
	}
	return "unknown"
}

// SkipReason explains why a URL was not fetched or not followed.
type SkipReason string

// Skip reasons recorded in SkippedByPolicy statuses.
const (
	SkipIgnored              SkipReason = "ignored prefix"
	SkipOutsideScope         SkipReason = "outside crawl scope"
	SkipUnsupportedScheme    SkipReason = "unsupported scheme"
	SkipDepthExceeded        SkipReason = "depth exceeded"
	SkipRedirectedOutOfScope SkipReason = "redirected out of scope"
	SkipBadTelURL            SkipReason = "malformed tel: url"
)

// Policy holds the admission inputs: which hosts are crawled, which
// host/path prefixes are ignored, and whether outside hosts are fetched
// once instead of skipped.
//
// In multi-site mode every start URL is its own site: a URL is
// crawl-and-follow only when its host belongs to the host set of the site
// that discovered it (that site's start host plus the extra accepted
// hosts). In single-site mode one shared host set applies and the site
// argument of Classify is ignored.
//
// A Policy is immutable after construction and safe for concurrent use.
type Policy struct {
	// hosts is the union of every crawlable host. It is the whole
	// admission set in single-site mode and the auth scope in both modes.
	hosts mapset.Set[string]

	// siteHosts maps a start host to its allowed host set. Nil outside
	// multi-site mode.
	siteHosts map[string]mapset.Set[string]

	ignoredPrefixes []string
	testOutside     bool
}

// NewPolicy builds a single-site Policy. startURLs contribute their
// host:port to the crawl-and-follow set; acceptedHosts adds further hosts,
// accepted either as bare hosts or as URLs.
func NewPolicy(startURLs []CanonicalURL, acceptedHosts []string, ignoredPrefixes []string, testOutside bool) *Policy {
	hosts := mapset.NewSet[string]()
	for _, u := range startURLs {
		hosts.Add(u.HostPort())
	}
	for _, h := range normalizeHosts(acceptedHosts) {
		hosts.Add(h)
	}

	return &Policy{
		hosts:           hosts,
		ignoredPrefixes: normalizePrefixes(ignoredPrefixes),
		testOutside:     testOutside,
	}
}

// NewMultiPolicy builds a multi-site Policy: each start URL becomes a site
// whose allowed hosts are its own host plus the shared accepted hosts.
func NewMultiPolicy(startURLs []CanonicalURL, acceptedHosts []string, ignoredPrefixes []string, testOutside bool) *Policy {
	extra := normalizeHosts(acceptedHosts)

	union := mapset.NewSet[string]()
	siteHosts := make(map[string]mapset.Set[string], len(startURLs))
	for _, u := range startURLs {
		site := u.HostPort()
		allowed := mapset.NewSet[string](site)
		for _, h := range extra {
			allowed.Add(h)
		}
		siteHosts[site] = allowed
		union.Add(site)
	}
	for _, h := range extra {
		union.Add(h)
	}

	return &Policy{
		hosts:           union,
		siteHosts:       siteHosts,
		ignoredPrefixes: normalizePrefixes(ignoredPrefixes),
		testOutside:     testOutside,
	}
}

// RestorePolicy rebuilds a Policy from the raw sets produced by Hosts and
// SiteHosts. The process backend uses it to hand its workers an equivalent
// policy.
func RestorePolicy(hosts []string, siteHosts map[string][]string, ignoredPrefixes []string, testOutside bool) *Policy {
	p := &Policy{
		hosts:           mapset.NewSet[string](hosts...),
		ignoredPrefixes: normalizePrefixes(ignoredPrefixes),
		testOutside:     testOutside,
	}
	if len(siteHosts) > 0 {
		p.siteHosts = make(map[string]mapset.Set[string], len(siteHosts))
		for site, allowed := range siteHosts {
			p.siteHosts[site] = mapset.NewSet[string](allowed...)
		}
	}
	return p
}

// Classify applies the admission rules in order:
//
//  1. host/path starts with an ignored prefix -> Skip(Ignored)
//  2. host is in the site's host set (multi-site) or the shared host set
//     -> CrawlAndFollow
//  3. test-outside enabled -> FetchOnly
//  4. otherwise -> Skip(OutsideScope)
//
// site is the start host whose crawl discovered the URL; it only matters
// in multi-site mode.
func (p *Policy) Classify(u CanonicalURL, site string) (Admission, SkipReason) {
	if p.Ignored(u) {
		return Skip, SkipIgnored
	}
	if p.allowedFor(site).Contains(u.HostPort()) {
		return CrawlAndFollow, ""
	}
	if p.testOutside {
		return FetchOnly, ""
	}
	return Skip, SkipOutsideScope
}

// allowedFor returns the host set applying to one site. An unknown site in
// multi-site mode falls back to the union, which can only happen for URLs
// that did not descend from a start URL.
func (p *Policy) allowedFor(site string) mapset.Set[string] {
	if p.siteHosts == nil {
		return p.hosts
	}
	if allowed, ok := p.siteHosts[site]; ok {
		return allowed
	}
	return p.hosts
}

// Ignored reports whether the URL's host/path starts with one of the
// ignored prefixes. Redirect hops are checked with this as well.
func (p *Policy) Ignored(u CanonicalURL) bool {
	hostPath := u.HostPath()
	for _, prefix := range p.ignoredPrefixes {
		if strings.HasPrefix(hostPath, prefix) {
			return true
		}
	}
	return false
}

// InScope reports whether the host belongs to any crawl-and-follow set.
// Basic auth credentials are only sent to in-scope hosts.
func (p *Policy) InScope(hostPort string) bool {
	return p.hosts.Contains(strings.ToLower(hostPort))
}

// Hosts returns the union of all crawl-and-follow hosts. The process
// backend ships it to its workers.
func (p *Policy) Hosts() []string {
	return p.hosts.ToSlice()
}

// SiteHosts returns the per-site host sets, nil outside multi-site mode.
func (p *Policy) SiteHosts() map[string][]string {
	if p.siteHosts == nil {
		return nil
	}
	out := make(map[string][]string, len(p.siteHosts))
	for site, allowed := range p.siteHosts {
		out[site] = allowed.ToSlice()
	}
	return out
}

// normalizeHosts cleans an accepted-hosts list, resolving URL-shaped
// entries to their host:port.
func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if u, err := ParseStart(h); err == nil {
			out = append(out, u.HostPort())
		} else {
			out = append(out, strings.ToLower(h))
		}
	}
	return out
}

// normalizePrefixes drops empty entries from the ignore list.
func normalizePrefixes(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
