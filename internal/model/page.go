package model

import (
	"time"

	"github.com/bartdag/linkvalidator/internal/urlutil"
)

// PageRef describes one edge in the site graph: a reference from a source
// page to a target URL, with the HTML context it was found in. PageRefs are
// immutable after creation.
type PageRef struct {
	// URL is the canonical target of the reference.
	URL urlutil.CanonicalURL

	// SourceURL is the canonical URL of the page the reference was found on.
	SourceURL urlutil.CanonicalURL

	// Line and Col locate the reference in the source document. Zero when
	// the parser does not expose positions.
	Line int
	Col  int

	// Tag is the HTML element the reference came from (a, img, link, script).
	Tag string

	// Attr is the attribute that held the reference (href or src).
	Attr string

	// RawHref is the attribute value exactly as it appeared in the document.
	RawHref string

	// Depth is the crawl depth of the target: one more than the source for
	// extracted references, equal to the source for a redirect's landing
	// URL.
	Depth int
}

// ResponseMeta captures the HTTP response of a fetched page.
type ResponseMeta struct {
	// HTTPStatus is the final status code after redirects.
	HTTPStatus int

	// FinalURL is the URL that produced the final response.
	FinalURL string

	// ContentType is the media type from the Content-Type header.
	ContentType string

	// ContentLength is the response length in bytes, -1 when unknown.
	ContentLength int64

	// Elapsed is the wall time of the fetch including redirects.
	Elapsed time.Duration
}

// Page is the crawl record for one canonical URL. A Page is created the
// first time its URL is admitted and is never removed; its status advances
// from Pending through InFlight to a terminal state.
type Page struct {
	// URL is the canonical URL, unique across the SiteModel. Zero for
	// invalid-link pages, which never canonicalized.
	URL urlutil.CanonicalURL

	// RawURL is the link text as written in the source document. Set only
	// for invalid-link pages.
	RawURL string

	// Depth is the minimum depth at which the URL was discovered.
	Depth int

	// Status is the current fetch status.
	Status FetchStatus

	// Response holds the HTTP response metadata, nil until a response
	// arrives.
	Response *ResponseMeta

	// OutgoingRefs are the references extracted from this page, in
	// document order. Populated only for HTML pages that were fetched
	// and parsed.
	OutgoingRefs []PageRef

	// IncomingRefs are the references that point at this page, in
	// discovery order.
	IncomingRefs []PageRef

	// IsHTML reports whether the response was an HTML document.
	IsHTML bool

	// ParseDiagnostic carries the HTML parser failure for pages whose
	// extraction failed. The page keeps its HTTP outcome.
	ParseDiagnostic string
}

// Erroneous reports whether this page's terminal status counts as a link
// error.
func (p *Page) Erroneous() bool {
	return p.Status.Erroneous()
}
