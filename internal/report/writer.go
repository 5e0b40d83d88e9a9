package report

import (
	"fmt"
	"io"

	"github.com/bartdag/linkvalidator/internal/config"
	"github.com/bartdag/linkvalidator/internal/model"
)

// Writer outputs a crawl report.
type Writer interface {
	// Write renders the site model to the configured destination and
	// returns the number of bytes written.
	Write(site *model.SiteModel) (int, error)
}

// MultiWriter fans a report out to several writers, for printing to the
// console in addition to a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer writing to all given writers, stopping
// on the first error.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write implements Writer.
func (m *MultiWriter) Write(site *model.SiteModel) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(site)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Options selects what the textual writers include.
type Options struct {
	// Type is errors (default), summary or all.
	Type string

	// ShowSource lists the referencing pages under each reported page.
	ShowSource bool
}

// baseWriter carries the output destination and the shared selection
// logic.
type baseWriter struct {
	output io.Writer
	opts   Options
}

func newBaseWriter(output io.Writer, opts Options) baseWriter {
	if opts.Type == "" {
		opts.Type = config.ReportErrors
	}
	return baseWriter{output: output, opts: opts}
}

// selectPages returns the pages the report type asks for.
func (b baseWriter) selectPages(site *model.SiteModel) []*model.Page {
	if b.opts.Type == config.ReportSummary {
		return nil
	}
	var pages []*model.Page
	for _, p := range site.Snapshot() {
		if b.opts.Type == config.ReportAll || p.Erroneous() {
			pages = append(pages, p)
		}
	}
	return pages
}

// pageURL renders a page's address, falling back to the raw link text for
// invalid-link pages.
func pageURL(p *model.Page) string {
	if p.URL.IsZero() {
		return p.RawURL
	}
	return p.URL.String()
}

// sourceLine renders one incoming reference the way the plain report lists
// it. Line and column are omitted when the parser did not provide them.
func sourceLine(ref model.PageRef) string {
	pos := ""
	if ref.Line > 0 {
		pos = fmt.Sprintf(" (line %d, col %d)", ref.Line, ref.Col)
	}
	return fmt.Sprintf("from %s%s <%s %s=%q>", ref.SourceURL, pos, ref.Tag, ref.Attr, ref.RawHref)
}

// summaryLine renders the one-line crawl summary.
func summaryLine(site *model.SiteModel) string {
	return fmt.Sprintf("Crawled %d urls with %d error(s) in %s",
		site.Len(), site.ErrorCount(), site.EndTime.Sub(site.StartTime).Round(roundTo))
}
