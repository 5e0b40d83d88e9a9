package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// goqueryParser extracts references with goquery's CSS selectors over a
// fully parsed document. goquery does not expose source positions, so Line
// and Col stay zero.
type goqueryParser struct{}

// Name implements Parser.
func (p *goqueryParser) Name() string { return ParserGoquery }

// Extract implements Parser.
func (p *goqueryParser) Extract(body []byte, docURL *url.URL, types []string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	result := &Result{Base: docURL}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		result.Base = resolveBase(docURL, href)
	}

	wanted := typeSet(types)
	selectors := make([]string, 0, len(wanted))
	for tag := range TypeAttributes {
		if wanted[tag] {
			selectors = append(selectors, fmt.Sprintf("%s[%s]", tag, TypeAttributes[tag]))
		}
	}
	if len(selectors) == 0 {
		return result, nil
	}

	// A single combined selector keeps document order across tag types.
	doc.Find(strings.Join(selectors, ", ")).Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		tag := node.Data
		attr := TypeAttributes[tag]
		if val, ok := sel.Attr(attr); ok {
			result.Refs = append(result.Refs, RawRef{
				Raw:  val,
				Tag:  tag,
				Attr: attr,
			})
		}
	})

	return result, nil
}
