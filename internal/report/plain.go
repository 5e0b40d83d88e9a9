package report

import (
	"fmt"
	"io"
	"time"

	"github.com/bartdag/linkvalidator/internal/model"
)

// roundTo is the precision of elapsed times in reports.
const roundTo = 10 * time.Millisecond

// PlainWriter outputs the human-readable text report: a summary line, then
// one block per reported page with its status and, optionally, the pages
// that reference it.
type PlainWriter struct {
	baseWriter
}

// NewPlainWriter creates a PlainWriter.
func NewPlainWriter(output io.Writer, opts Options) *PlainWriter {
	return &PlainWriter{baseWriter: newBaseWriter(output, opts)}
}

// Write implements Writer.
func (w *PlainWriter) Write(site *model.SiteModel) (int, error) {
	total := 0

	n, err := fmt.Fprintf(w.output, "%s\n", summaryLine(site))
	total += n
	if err != nil {
		return total, err
	}

	for _, u := range site.StartURLs {
		n, err = fmt.Fprintf(w.output, "Start URL: %s\n", u)
		total += n
		if err != nil {
			return total, err
		}
	}

	pages := w.selectPages(site)
	if len(pages) == 0 {
		return total, nil
	}

	n, err = fmt.Fprintln(w.output)
	total += n
	if err != nil {
		return total, err
	}

	for _, p := range pages {
		n, err = w.writePage(p)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// writePage renders one page block.
func (w *PlainWriter) writePage(p *model.Page) (int, error) {
	label := "  ok"
	if p.Erroneous() {
		label = "  ERROR"
	}

	total, err := fmt.Fprintf(w.output, "%s: %s: %s\n", label, p.Status, pageURL(p))
	if err != nil {
		return total, err
	}

	if w.opts.ShowSource {
		for _, ref := range p.IncomingRefs {
			n, err := fmt.Fprintf(w.output, "    %s\n", sourceLine(ref))
			total += n
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}
