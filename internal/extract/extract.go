package extract

import (
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
)

// Parser names accepted by the --parser flag.
const (
	ParserNet     = "net"
	ParserGoquery = "goquery"
)

// ErrUnknownParser is returned by New for an unrecognized parser name.
var ErrUnknownParser = errors.New("unknown html parser")

// TypeAttributes maps the extractable HTML tags to the attribute that holds
// their reference.
var TypeAttributes = map[string]string{
	"a":      "href",
	"img":    "src",
	"link":   "href",
	"script": "src",
}

// DefaultTypes is the full extractable tag set, in the order used for flag
// defaults.
var DefaultTypes = []string{"a", "img", "link", "script"}

// RawRef is one reference as found in the document: the attribute value
// verbatim plus its HTML context.
type RawRef struct {
	// Raw is the attribute value exactly as written, untrimmed.
	Raw string

	// Tag and Attr identify the element and attribute.
	Tag  string
	Attr string

	// Line and Col are the 1-based position of the element's opening tag.
	// Zero when the parser does not track positions.
	Line int
	Col  int
}

// Result is the outcome of one extraction pass.
type Result struct {
	// Refs are the references in document order, duplicates retained.
	Refs []RawRef

	// Base is the URL references resolve against: the document URL, or
	// the first <base href> resolved against it.
	Base *url.URL
}

// Parser extracts references from an HTML document. Implementations must be
// safe for concurrent use.
type Parser interface {
	// Name returns the parser's flag value.
	Name() string

	// Extract yields the references of the configured types found in body,
	// in document order. docURL is the URL the document was served from.
	Extract(body []byte, docURL *url.URL, types []string) (*Result, error)
}

// New returns the parser registered under name.
func New(name string) (Parser, error) {
	switch name {
	case ParserNet, "":
		return &netParser{}, nil
	case ParserGoquery:
		return &goqueryParser{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownParser, name)
}

// IsHTML reports whether a Content-Type header value denotes an HTML or
// XHTML document. Anything else yields no references.
func IsHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// typeSet turns the configured tag list into a lookup set, silently
// dropping unknown tags.
func typeSet(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if _, ok := TypeAttributes[t]; ok {
			set[t] = true
		}
	}
	return set
}

// resolveBase applies a <base href> value to the document URL. An invalid
// or empty href leaves the document URL in place.
func resolveBase(docURL *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" {
		return docURL
	}
	ref, err := url.Parse(href)
	if err != nil {
		return docURL
	}
	return docURL.ResolveReference(ref)
}
