package model

import (
	"fmt"

	"github.com/bartdag/linkvalidator/internal/urlutil"
)

// StatusKind enumerates the lifecycle and terminal states of a page.
type StatusKind int

const (
	// StatusPending means the URL is admitted but not yet claimed.
	StatusPending StatusKind = iota

	// StatusInFlight means a worker is currently fetching the URL.
	StatusInFlight

	// StatusOK means the final response status was below 400.
	StatusOK

	// StatusRedirected means the fetch was redirected; FinalURL holds the
	// landing URL, Code the final status.
	StatusRedirected

	// StatusHTTPError means the final response status was >= 400.
	StatusHTTPError

	// StatusTimeout means the request exceeded the configured timeout.
	StatusTimeout

	// StatusConnectionError means a transport-level failure (DNS, TCP,
	// TLS) prevented a response.
	StatusConnectionError

	// StatusInvalidURL means the link was syntactically broken. Only set
	// at insertion time.
	StatusInvalidURL

	// StatusSkippedByPolicy means the URL was never fetched because of the
	// admission policy. Not counted as an error.
	StatusSkippedByPolicy
)

// FetchStatus is the tagged outcome of one page. Exactly one variant is
// meaningful per kind; the helper constructors set the right fields.
type FetchStatus struct {
	// Kind selects the variant.
	Kind StatusKind

	// Code is the HTTP status code for OK, Redirected and HTTPError.
	Code int

	// FinalURL is the post-redirect URL for Redirected.
	FinalURL string

	// Detail carries the transport error text for ConnectionError, the
	// syntax error for InvalidURL.
	Detail string

	// Reason is set for SkippedByPolicy.
	Reason urlutil.SkipReason
}

// Pending returns the admission-time status.
func Pending() FetchStatus { return FetchStatus{Kind: StatusPending} }

// InFlight returns the claimed-by-worker status.
func InFlight() FetchStatus { return FetchStatus{Kind: StatusInFlight} }

// OK returns a successful terminal status.
func OK(code int) FetchStatus { return FetchStatus{Kind: StatusOK, Code: code} }

// Redirected returns the terminal status of a redirected fetch.
func Redirected(finalURL string, code int) FetchStatus {
	return FetchStatus{Kind: StatusRedirected, Code: code, FinalURL: finalURL}
}

// HTTPError returns the terminal status for a final response >= 400.
func HTTPError(code int) FetchStatus { return FetchStatus{Kind: StatusHTTPError, Code: code} }

// Timeout returns the terminal status for an exceeded request timeout.
func Timeout() FetchStatus { return FetchStatus{Kind: StatusTimeout} }

// ConnectionError returns the terminal status for a transport failure.
func ConnectionError(detail string) FetchStatus {
	return FetchStatus{Kind: StatusConnectionError, Detail: detail}
}

// InvalidURL returns the insertion-time status for a broken link.
func InvalidURL(detail string) FetchStatus {
	return FetchStatus{Kind: StatusInvalidURL, Detail: detail}
}

// SkippedByPolicy returns the status for a URL excluded by the admission
// policy.
func SkippedByPolicy(reason urlutil.SkipReason) FetchStatus {
	return FetchStatus{Kind: StatusSkippedByPolicy, Reason: reason}
}

// Terminal reports whether the status is final.
func (s FetchStatus) Terminal() bool {
	return s.Kind != StatusPending && s.Kind != StatusInFlight
}

// Erroneous reports whether the status counts as a link error. Policy skips
// and lifecycle states do not.
func (s FetchStatus) Erroneous() bool {
	switch s.Kind {
	case StatusHTTPError, StatusTimeout, StatusConnectionError, StatusInvalidURL:
		return true
	default:
		return false
	}
}

// String renders the status the way reports display it.
func (s FetchStatus) String() string {
	switch s.Kind {
	case StatusPending:
		return "pending"
	case StatusInFlight:
		return "in flight"
	case StatusOK:
		return fmt.Sprintf("ok (%d)", s.Code)
	case StatusRedirected:
		return fmt.Sprintf("redirected (%d) -> %s", s.Code, s.FinalURL)
	case StatusHTTPError:
		if s.Code == 404 {
			return "not found (404)"
		}
		return fmt.Sprintf("error (status=%d)", s.Code)
	case StatusTimeout:
		return "error (timeout)"
	case StatusConnectionError:
		return fmt.Sprintf("error (connection): %s", s.Detail)
	case StatusInvalidURL:
		return fmt.Sprintf("error (invalid url): %s", s.Detail)
	case StatusSkippedByPolicy:
		return fmt.Sprintf("skipped (%s)", s.Reason)
	}
	return "unknown"
}
