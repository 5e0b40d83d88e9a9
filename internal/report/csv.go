package report

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/bartdag/linkvalidator/internal/model"
)

// pageRow is the CSV projection of one page.
type pageRow struct {
	URL         string `csv:"url"`
	Status      string `csv:"status"`
	HTTPStatus  int    `csv:"http_status"`
	Depth       int    `csv:"depth"`
	ContentType string `csv:"content_type"`
	ElapsedMs   int64  `csv:"elapsed_ms"`
	Erroneous   bool   `csv:"erroneous"`
	Incoming    int    `csv:"incoming_refs"`
	FirstSource string `csv:"first_source"`
}

// CSVWriter exports the report as CSV for spreadsheets and scripts.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter.
func NewCSVWriter(output io.Writer, opts Options) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output, opts)}
}

// Write implements Writer. gocsv does not report a byte count, so the
// number of exported rows is returned instead.
func (w *CSVWriter) Write(site *model.SiteModel) (int, error) {
	pages := w.selectPages(site)

	rows := make([]pageRow, 0, len(pages))
	for _, p := range pages {
		row := pageRow{
			URL:       pageURL(p),
			Status:    p.Status.String(),
			Depth:     p.Depth,
			Erroneous: p.Erroneous(),
			Incoming:  len(p.IncomingRefs),
		}
		if p.Response != nil {
			row.HTTPStatus = p.Response.HTTPStatus
			row.ContentType = p.Response.ContentType
			row.ElapsedMs = p.Response.Elapsed.Milliseconds()
		}
		if len(p.IncomingRefs) > 0 {
			row.FirstSource = p.IncomingRefs[0].SourceURL.String()
		}
		rows = append(rows, row)
	}

	if err := gocsv.Marshal(rows, w.output); err != nil {
		return 0, fmt.Errorf("write csv report: %w", err)
	}
	return len(rows), nil
}
