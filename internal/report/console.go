package report

import (
	"fmt"
	"io"

	"github.com/rodaine/table"

	"github.com/bartdag/linkvalidator/internal/model"
)

// ConsoleWriter renders the report as an aligned table for terminal
// display.
type ConsoleWriter struct {
	baseWriter
}

// NewConsoleWriter creates a ConsoleWriter.
func NewConsoleWriter(output io.Writer, opts Options) *ConsoleWriter {
	return &ConsoleWriter{baseWriter: newBaseWriter(output, opts)}
}

// Write implements Writer. The returned count covers the summary line
// only; the table writer does not report the bytes it prints.
func (w *ConsoleWriter) Write(site *model.SiteModel) (int, error) {
	n, err := fmt.Fprintf(w.output, "%s\n\n", summaryLine(site))
	if err != nil {
		return n, err
	}

	pages := w.selectPages(site)
	if len(pages) == 0 {
		return n, nil
	}

	tbl := table.New("Status", "Depth", "URL", "Referenced by")
	tbl.WithWriter(w.output)

	for _, p := range pages {
		tbl.AddRow(p.Status.String(), p.Depth, pageURL(p), len(p.IncomingRefs))
	}
	tbl.Print()

	return n, nil
}
