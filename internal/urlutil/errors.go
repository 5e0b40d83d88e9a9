package urlutil

import "errors"

// Canonicalization errors. Callers use errors.Is to distinguish links that
// are malformed from links that are merely outside the crawlable scheme set.
var (
	// ErrEmptyURL is returned when the raw link string is empty after
	// whitespace trimming.
	ErrEmptyURL = errors.New("url must not be empty")

	// ErrUnsupportedScheme is returned for syntactically valid URIs whose
	// scheme cannot be crawled (mailto:, javascript:, data:, valid tel:, ...).
	// This is a policy skip, not a broken link.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")

	// ErrMissingHost is returned when an http(s) URL has no host after
	// resolution against its base.
	ErrMissingHost = errors.New("url has no host")

	// ErrInvalidTelURL is returned for tel: URIs that do not conform to
	// RFC 3966. It is reported only when bad tel: URLs are not ignored.
	ErrInvalidTelURL = errors.New("malformed tel: url")

	// ErrSkippedTelURL is returned for malformed tel: URIs when the caller
	// asked for them to be silently skipped.
	ErrSkippedTelURL = errors.New("malformed tel: url (ignored)")
)
