package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/bartdag/linkvalidator/internal/config"
	"github.com/bartdag/linkvalidator/internal/extract"
	"github.com/bartdag/linkvalidator/internal/fetch"
	"github.com/bartdag/linkvalidator/internal/model"
	"github.com/bartdag/linkvalidator/internal/urlutil"
)

// WorkerCommand is the hidden subcommand the master passes to its own
// binary to start a process-mode worker.
const WorkerCommand = "worker"

// wireConfig is the first message on a worker's stdin: everything the
// child needs to fetch and parse on its own. The site model never crosses
// the pipe; children are stateless between items apart from their HTTP
// connection pool.
type wireConfig struct {
	TimeoutMillis        int64               `json:"timeout_millis"`
	UserAgent            string              `json:"user_agent"`
	Username             string              `json:"username,omitempty"`
	Password             string              `json:"password,omitempty"`
	Headers              map[string]string   `json:"headers,omitempty"`
	AllowInsecure        bool                `json:"allow_insecure,omitempty"`
	MaxBodySize          int64               `json:"max_body_size,omitempty"`
	Strict               bool                `json:"strict,omitempty"`
	IgnoreBadTelURLs     bool                `json:"ignore_bad_tel_urls,omitempty"`
	PreferServerEncoding bool                `json:"prefer_server_encoding,omitempty"`
	Parser               string              `json:"parser"`
	Types                []string            `json:"types"`
	ScopeHosts           []string            `json:"scope_hosts"`
	SiteHosts            map[string][]string `json:"site_hosts,omitempty"`
	IgnoredPrefixes      []string            `json:"ignored_prefixes,omitempty"`
	TestOutside          bool                `json:"test_outside,omitempty"`
	CrawlDelayMillis     int64               `json:"crawl_delay_millis,omitempty"`
}

// wireRequest is one work item sent to a child.
type wireRequest struct {
	URL       string `json:"url"`
	Depth     int    `json:"depth"`
	Admission int    `json:"admission"`
	Tag       string `json:"tag,omitempty"`
	Site      string `json:"site,omitempty"`
}

// wireStatus mirrors model.FetchStatus across the pipe.
type wireStatus struct {
	Kind     int    `json:"kind"`
	Code     int    `json:"code,omitempty"`
	FinalURL string `json:"final_url,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// wireMeta mirrors model.ResponseMeta across the pipe.
type wireMeta struct {
	HTTPStatus    int    `json:"http_status"`
	FinalURL      string `json:"final_url"`
	ContentType   string `json:"content_type,omitempty"`
	ContentLength int64  `json:"content_length"`
	ElapsedMillis int64  `json:"elapsed_millis"`
}

// wireRef mirrors extract.RawRef across the pipe.
type wireRef struct {
	Raw  string `json:"raw"`
	Tag  string `json:"tag"`
	Attr string `json:"attr"`
	Line int    `json:"line,omitempty"`
	Col  int    `json:"col,omitempty"`
}

// wireResponse is the child's answer for one item.
type wireResponse struct {
	URL        string     `json:"url"`
	Status     wireStatus `json:"status"`
	Meta       *wireMeta  `json:"meta,omitempty"`
	Redirected bool       `json:"redirected,omitempty"`
	IsHTML     bool       `json:"is_html,omitempty"`
	Refs       []wireRef  `json:"refs,omitempty"`
	Base       string     `json:"base,omitempty"`
	ParseDiag  string     `json:"parse_diag,omitempty"`
}

// RunProcessWorker is the child side of the process backend. It reads the
// configuration message and then serves work items from in, writing one
// response line per item to out, until in reaches EOF.
func RunProcessWorker(ctx context.Context, in io.Reader, out io.Writer) error {
	dec := json.NewDecoder(in)
	enc := json.NewEncoder(out)

	var wc wireConfig
	if err := dec.Decode(&wc); err != nil {
		return fmt.Errorf("read worker config: %w", err)
	}

	policy := urlutil.RestorePolicy(wc.ScopeHosts, wc.SiteHosts, wc.IgnoredPrefixes, wc.TestOutside)
	parser, err := extract.New(wc.Parser)
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if wc.CrawlDelayMillis > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(wc.CrawlDelayMillis)*time.Millisecond), 1)
	}

	proc := &processor{
		fetcher: fetch.New(fetch.Config{
			Timeout:       time.Duration(wc.TimeoutMillis) * time.Millisecond,
			UserAgent:     wc.UserAgent,
			Username:      wc.Username,
			Password:      wc.Password,
			AuthInScope:   policy.InScope,
			Blocked:       blockedHop(policy),
			Headers:       wc.Headers,
			AllowInsecure: wc.AllowInsecure,
			MaxBodySize:   wc.MaxBodySize,
			Limiter:       limiter,
		}),
		parser:               parser,
		types:                wc.Types,
		preferServerEncoding: wc.PreferServerEncoding,
	}

	copts := urlutil.Options{Strict: wc.Strict, IgnoreBadTelURLs: wc.IgnoreBadTelURLs}

	for {
		var req wireRequest
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read work item: %w", err)
		}

		u, err := urlutil.Canonicalize(req.URL, nil, copts)
		if err != nil {
			// The master only sends canonical URLs; a failure here means
			// the pipe is corrupt.
			return fmt.Errorf("canonicalize %q: %w", req.URL, err)
		}

		item := WorkItem{
			URL:       u,
			Depth:     req.Depth,
			Admission: urlutil.Admission(req.Admission),
			Tag:       req.Tag,
			Site:      req.Site,
		}
		res := proc.process(ctx, item)

		if err := enc.Encode(outcomeToWire(res)); err != nil {
			return fmt.Errorf("write work result: %w", err)
		}
	}
}

// outcomeToWire flattens an itemOutcome for the pipe.
func outcomeToWire(out itemOutcome) wireResponse {
	resp := wireResponse{
		URL: out.item.URL.String(),
		Status: wireStatus{
			Kind:     int(out.status.Kind),
			Code:     out.status.Code,
			FinalURL: out.status.FinalURL,
			Detail:   out.status.Detail,
			Reason:   string(out.status.Reason),
		},
		Redirected: out.redirected,
		IsHTML:     out.isHTML,
		ParseDiag:  out.parseDiag,
	}
	if out.meta != nil {
		resp.Meta = &wireMeta{
			HTTPStatus:    out.meta.HTTPStatus,
			FinalURL:      out.meta.FinalURL,
			ContentType:   out.meta.ContentType,
			ContentLength: out.meta.ContentLength,
			ElapsedMillis: out.meta.Elapsed.Milliseconds(),
		}
	}
	if out.base != nil {
		resp.Base = out.base.String()
	}
	for _, r := range out.refs {
		resp.Refs = append(resp.Refs, wireRef(r))
	}
	return resp
}

// wireToOutcome rebuilds an itemOutcome on the master side.
func wireToOutcome(item WorkItem, resp wireResponse) itemOutcome {
	out := itemOutcome{
		item: item,
		status: model.FetchStatus{
			Kind:     model.StatusKind(resp.Status.Kind),
			Code:     resp.Status.Code,
			FinalURL: resp.Status.FinalURL,
			Detail:   resp.Status.Detail,
			Reason:   urlutil.SkipReason(resp.Status.Reason),
		},
		redirected: resp.Redirected,
		isHTML:     resp.IsHTML,
		parseDiag:  resp.ParseDiag,
	}
	if resp.Meta != nil {
		out.meta = &model.ResponseMeta{
			HTTPStatus:    resp.Meta.HTTPStatus,
			FinalURL:      resp.Meta.FinalURL,
			ContentType:   resp.Meta.ContentType,
			ContentLength: resp.Meta.ContentLength,
			Elapsed:       time.Duration(resp.Meta.ElapsedMillis) * time.Millisecond,
		}
	}
	if resp.Base != "" {
		if base, err := url.Parse(resp.Base); err == nil {
			out.base = base
		}
	}
	if len(resp.Refs) > 0 {
		out.refs = make([]extract.RawRef, len(resp.Refs))
		for i, r := range resp.Refs {
			out.refs[i] = extract.RawRef(r)
		}
	}
	return out
}

// wireConfigFrom builds the child configuration from the crawl
// configuration and policy inputs.
func wireConfigFrom(cfg *config.Config, policy *urlutil.Policy) wireConfig {
	return wireConfig{
		TimeoutMillis:        cfg.Timeout.Milliseconds(),
		UserAgent:            cfg.UserAgent,
		Username:             cfg.Username,
		Password:             cfg.Password,
		Headers:              cfg.Headers,
		AllowInsecure:        cfg.AllowInsecure,
		MaxBodySize:          cfg.MaxBodySize,
		Strict:               cfg.Strict,
		IgnoreBadTelURLs:     cfg.IgnoreBadTelURLs,
		PreferServerEncoding: cfg.PreferServerEncoding,
		Parser:               cfg.Parser,
		Types:                cfg.Types,
		ScopeHosts:           policy.Hosts(),
		SiteHosts:            policy.SiteHosts(),
		IgnoredPrefixes:      cfg.IgnoredPrefixes,
		TestOutside:          cfg.TestOutside,
		CrawlDelayMillis:     cfg.CrawlDelay.Milliseconds(),
	}
}
