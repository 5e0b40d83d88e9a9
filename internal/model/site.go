package model

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bartdag/linkvalidator/internal/urlutil"
)

// ErrBadTransition is returned by SetStatus for a transition the lifecycle
// does not allow.
var ErrBadTransition = errors.New("invalid page status transition")

// SiteModel is the in-memory record of every URL seen during one crawl:
// a mapping from canonical URL to Page plus the graph edges between them.
//
// SiteModel methods do not synchronize. The crawl coordinator serializes
// mutations; once the crawl returns, the model is read-only.
type SiteModel struct {
	pages map[urlutil.CanonicalURL]*Page

	// invalid holds pages for links whose URL never canonicalized. They
	// have no usable key and live outside the main mapping.
	invalid []*Page

	// StartURLs are the seed URLs in the order they were given.
	StartURLs []urlutil.CanonicalURL

	// StartTime and EndTime bound the crawl run.
	StartTime time.Time
	EndTime   time.Time
}

// NewSiteModel creates an empty model for the given start URLs.
func NewSiteModel(startURLs []urlutil.CanonicalURL) *SiteModel {
	return &SiteModel{
		pages:     make(map[urlutil.CanonicalURL]*Page),
		StartURLs: startURLs,
	}
}

// GetOrCreate returns the page for u, creating it with status Pending when
// absent. On an existing page the depth is lowered to the minimum of both
// discoveries. When origin is non-nil it is appended to the page's incoming
// references in either case.
func (s *SiteModel) GetOrCreate(u urlutil.CanonicalURL, depth int, origin *PageRef) (*Page, bool) {
	page, ok := s.pages[u]
	if ok {
		if depth < page.Depth {
			page.Depth = depth
		}
		if origin != nil {
			page.IncomingRefs = append(page.IncomingRefs, *origin)
		}
		return page, false
	}

	page = &Page{
		URL:    u,
		Depth:  depth,
		Status: Pending(),
	}
	if origin != nil {
		page.IncomingRefs = append(page.IncomingRefs, *origin)
	}
	s.pages[u] = page
	return page, true
}

// Get returns the page for u, or nil.
func (s *SiteModel) Get(u urlutil.CanonicalURL) *Page {
	return s.pages[u]
}

// SetStatus transitions a page's status. Allowed transitions:
//
//	Pending  -> InFlight | SkippedByPolicy
//	InFlight -> OK | Redirected | HTTPError | Timeout | ConnectionError | SkippedByPolicy
//
// InvalidURL is never set here; it exists only at insertion time via
// RecordInvalid.
func (s *SiteModel) SetStatus(u urlutil.CanonicalURL, status FetchStatus, meta *ResponseMeta) error {
	page, ok := s.pages[u]
	if !ok {
		return fmt.Errorf("set status on unknown page %s", u)
	}

	allowed := false
	switch page.Status.Kind {
	case StatusPending:
		allowed = status.Kind == StatusInFlight || status.Kind == StatusSkippedByPolicy
	case StatusInFlight:
		allowed = status.Terminal() && status.Kind != StatusInvalidURL
	}
	if !allowed {
		return fmt.Errorf("%w: %v -> %v for %s", ErrBadTransition, page.Status.Kind, status.Kind, u)
	}

	page.Status = status
	if meta != nil {
		page.Response = meta
	}
	return nil
}

// RecordInvalid records a Page for a link whose URL could not be
// canonicalized. The page carries the raw link text and lives outside the
// canonical mapping.
func (s *SiteModel) RecordInvalid(rawURL, detail string, origin *PageRef) *Page {
	page := &Page{
		RawURL: rawURL,
		Status: InvalidURL(detail),
	}
	if origin != nil {
		page.IncomingRefs = append(page.IncomingRefs, *origin)
		page.Depth = origin.Depth
	}
	s.invalid = append(s.invalid, page)
	return page
}

// RecordRefs sets the outgoing references of a page, once, in document
// order. Incoming edges of the referenced pages are maintained by
// GetOrCreate during admission, not here.
func (s *SiteModel) RecordRefs(u urlutil.CanonicalURL, refs []PageRef) error {
	page, ok := s.pages[u]
	if !ok {
		return fmt.Errorf("record refs on unknown page %s", u)
	}
	if page.OutgoingRefs != nil {
		return fmt.Errorf("outgoing refs already recorded for %s", u)
	}
	page.OutgoingRefs = refs
	return nil
}

// Len returns the number of pages, including invalid-link pages.
func (s *SiteModel) Len() int {
	return len(s.pages) + len(s.invalid)
}

// ErrorCount returns the number of erroneous pages.
func (s *SiteModel) ErrorCount() int {
	n := 0
	for _, p := range s.pages {
		if p.Erroneous() {
			n++
		}
	}
	for _, p := range s.invalid {
		if p.Erroneous() {
			n++
		}
	}
	return n
}

// Snapshot returns all pages sorted by canonical URL, invalid-link pages
// last. Reporters read this after the crawl has finished.
func (s *SiteModel) Snapshot() []*Page {
	pages := make([]*Page, 0, len(s.pages))
	for _, p := range s.pages {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].URL.String() < pages[j].URL.String()
	})
	return append(pages, s.invalid...)
}
