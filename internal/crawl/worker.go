package crawl

import (
	"context"
	"net/url"

	"github.com/bartdag/linkvalidator/internal/extract"
	"github.com/bartdag/linkvalidator/internal/fetch"
	"github.com/bartdag/linkvalidator/internal/model"
	"github.com/bartdag/linkvalidator/internal/urlutil"
)

// itemOutcome is everything a worker learned about one item. Producing it
// involves only I/O and parsing; recording it into the SiteModel is the
// coordinator's serialized applyResult.
type itemOutcome struct {
	item WorkItem

	// status is the fetch outcome; a redirected success arrives as OK
	// with redirected set and applyResult turns it into Redirected.
	status     model.FetchStatus
	meta       *model.ResponseMeta
	redirected bool

	// isHTML reports whether the response declared an HTML content type.
	isHTML bool

	// refs are the extracted raw references, resolved against base by
	// applyResult. Empty unless the page was parsed.
	refs []extract.RawRef
	base *url.URL

	// parseDiag carries the HTML parser failure, if any.
	parseDiag string

	// fatal aborts the whole run (process-mode IPC failure).
	fatal error
}

// processor executes the per-item work shared by every backend: choose the
// method, fetch, and extract. It holds no crawl state beyond immutable
// configuration and is safe for concurrent use.
type processor struct {
	fetcher              *fetch.Fetcher
	parser               extract.Parser
	types                []string
	preferServerEncoding bool
}

// assetTag reports whether a reference tag denotes a non-HTML asset that
// only needs a HEAD to validate.
func assetTag(tag string) bool {
	return tag == "img" || tag == "script" || tag == "link"
}

// process performs the fetch-and-extract work for one item.
func (p *processor) process(ctx context.Context, item WorkItem) itemOutcome {
	mode := fetch.ModeGET
	if item.Admission == urlutil.FetchOnly || assetTag(item.Tag) {
		mode = fetch.ModeHEAD
	}

	res := p.fetcher.Fetch(fetch.WithSite(ctx, item.Site), item.URL, mode)
	out := itemOutcome{
		item:       item,
		status:     res.Status,
		meta:       res.Meta,
		redirected: res.Redirected,
	}

	if res.Meta != nil {
		out.isHTML = extract.IsHTML(res.Meta.ContentType)
	}

	// References are extracted only from a successfully fetched HTML body
	// on a crawl-and-follow admission. A redirected item is not parsed;
	// its landing URL is admitted separately and parsed on its own fetch.
	if res.Status.Kind != model.StatusOK || res.Redirected ||
		item.Admission != urlutil.CrawlAndFollow || !out.isHTML || len(res.Body) == 0 {
		return out
	}

	body, err := extract.DecodeBody(res.Body, res.Meta.ContentType, p.preferServerEncoding)
	if err != nil {
		out.parseDiag = err.Error()
		return out
	}

	result, err := p.parser.Extract(body, item.URL.URL(), p.types)
	if err != nil {
		out.parseDiag = err.Error()
		return out
	}

	out.refs = result.Refs
	out.base = result.Base
	return out
}
