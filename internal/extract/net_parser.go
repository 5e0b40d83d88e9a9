package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"

	"golang.org/x/net/html"
)

// netParser extracts references with the x/net/html tokenizer. The
// tokenizer hands back the raw bytes of every token, which lets us keep a
// running line/column position for source reporting.
type netParser struct{}

// Name implements Parser.
func (p *netParser) Name() string { return ParserNet }

// Extract implements Parser. The stream is scanned once; the first
// <base href> encountered rebases every reference, matching how browsers
// treat a base element in the head.
func (p *netParser) Extract(body []byte, docURL *url.URL, types []string) (*Result, error) {
	wanted := typeSet(types)
	result := &Result{Base: docURL}

	z := html.NewTokenizer(bytes.NewReader(body))
	line, col := 1, 1
	baseSeen := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("tokenize html: %w", err)
			}
			return result, nil
		}

		tokLine, tokCol := line, col
		raw := z.Raw()
		for _, b := range raw {
			if b == '\n' {
				line++
				col = 1
			} else {
				col++
			}
		}

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		name, hasAttr := z.TagName()
		if !hasAttr {
			continue
		}
		tag := string(name)

		if tag == "base" && !baseSeen {
			if href, ok := tagAttr(z); ok {
				result.Base = resolveBase(docURL, href)
				baseSeen = true
			}
			continue
		}

		attr, ok := TypeAttributes[tag]
		if !ok || !wanted[tag] {
			continue
		}
		if val, ok := lookupAttr(z, attr); ok {
			result.Refs = append(result.Refs, RawRef{
				Raw:  val,
				Tag:  tag,
				Attr: attr,
				Line: tokLine,
				Col:  tokCol,
			})
		}
	}
}

// lookupAttr scans the current token's attributes for key.
func lookupAttr(z *html.Tokenizer, key string) (string, bool) {
	for {
		k, v, more := z.TagAttr()
		if string(k) == key {
			return string(v), true
		}
		if !more {
			return "", false
		}
	}
}

// tagAttr returns the href attribute of the current token.
func tagAttr(z *html.Tokenizer) (string, bool) {
	return lookupAttr(z, "href")
}
