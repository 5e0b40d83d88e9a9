package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/bartdag/linkvalidator/internal/model"
)

// MarkdownWriter outputs the report as GitHub-flavored Markdown, suited
// for CI artifacts and issue attachments.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter.
func NewMarkdownWriter(output io.Writer, opts Options) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output, opts)}
}

// Write implements Writer.
func (w *MarkdownWriter) Write(site *model.SiteModel) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Link Validation Report")
	md.PlainText("")

	starts := make([]string, 0, len(site.StartURLs))
	for _, u := range site.StartURLs {
		starts = append(starts, u.String())
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URLs", joinBackticked(starts)},
			{"Pages", strconv.Itoa(site.Len())},
			{"Errors", strconv.Itoa(site.ErrorCount())},
			{"Started", site.StartTime.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", site.EndTime.Sub(site.StartTime).Round(roundTo).String()},
		},
	})
	md.PlainText("")

	if site.ErrorCount() == 0 {
		md.Tip("No broken links detected.")
	} else {
		md.Cautionf("%d page(s) are broken or unreachable.", site.ErrorCount())
	}
	md.PlainText("")

	pages := w.selectPages(site)
	if len(pages) > 0 {
		md.H2("Pages")
		md.PlainText("")

		rows := make([][]string, 0, len(pages))
		for _, p := range pages {
			source := ""
			if len(p.IncomingRefs) > 0 {
				source = "`" + p.IncomingRefs[0].SourceURL.String() + "`"
			}
			rows = append(rows, []string{
				"`" + pageURL(p) + "`",
				p.Status.String(),
				strconv.Itoa(p.Depth),
				source,
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Status", "Depth", "First referenced by"},
			Rows:   rows,
		})
	}

	return len(md.String()), md.Build()
}

// joinBackticked renders a URL list as inline code, comma separated.
func joinBackticked(urls []string) string {
	out := ""
	for i, u := range urls {
		if i > 0 {
			out += ", "
		}
		out += "`" + u + "`"
	}
	return out
}
