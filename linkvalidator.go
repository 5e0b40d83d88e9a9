// Package linkvalidator exposes the crawl engine programmatically. Crawl
// and CrawlWithOptions run one crawl invocation and return the finalized
// site model; rendering the result is left to the caller (or to the
// internal report writers via the CLI).
package linkvalidator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bartdag/linkvalidator/internal/config"
	"github.com/bartdag/linkvalidator/internal/crawl"
	"github.com/bartdag/linkvalidator/internal/model"
	"github.com/bartdag/linkvalidator/internal/progress"
)

// Options mirrors the long-form CLI flags. The zero value is a valid
// configuration: thread mode, one worker, unlimited depth, all tag types.
type Options struct {
	// TestOutside fetches outside hosts once instead of skipping them.
	TestOutside bool

	// Multi treats every start URL as a separate site with its own
	// crawl-and-follow scope.
	Multi bool

	// AcceptedHosts extends the crawl-and-follow host set.
	AcceptedHosts []string

	// Ignore is the host/path prefix skip list.
	Ignore []string

	// Username and Password enable HTTP Basic authentication.
	Username string
	Password string

	// Types restricts the extracted HTML tags; nil means all.
	Types []string

	// Timeout bounds each request; zero keeps the default.
	Timeout time.Duration

	// Strict disables whitespace trimming on href/src values.
	Strict bool

	// RunOnce caps the depth at zero.
	RunOnce bool

	// Depth is the maximum crawl depth; negative or zero-value semantics
	// follow the CLI: use -1 (or leave DepthSet false) for unlimited.
	Depth    int
	DepthSet bool

	// Workers is the worker count; zero applies the per-mode default.
	Workers int

	// Mode selects the backend: thread (default), process, or green.
	Mode string

	// Parser selects the HTML parser: net (default) or goquery.
	Parser string

	// IgnoreBadTelURLs silently drops malformed tel: links.
	IgnoreBadTelURLs bool

	// AllowInsecureContent disables TLS certificate verification.
	AllowInsecureContent bool

	// Headers are extra request headers.
	Headers map[string]string

	// PreferServerEncoding trusts the declared charset over detection.
	PreferServerEncoding bool

	// CrawlDelay paces requests globally.
	CrawlDelay time.Duration
}

// Crawl validates the site reachable from startURL with default options.
func Crawl(startURL string) (*model.SiteModel, error) {
	return CrawlWithOptions([]string{startURL}, Options{})
}

// CrawlWithOptions validates the site reachable from startURLs.
func CrawlWithOptions(startURLs []string, opts Options) (*model.SiteModel, error) {
	return CrawlContext(context.Background(), startURLs, opts)
}

// CrawlContext is CrawlWithOptions with caller-controlled cancellation.
func CrawlContext(ctx context.Context, startURLs []string, opts Options) (*model.SiteModel, error) {
	cfg := config.New()
	cfg.StartURLs = startURLs
	cfg.TestOutside = opts.TestOutside
	cfg.Multi = opts.Multi
	cfg.AcceptedHosts = opts.AcceptedHosts
	cfg.IgnoredPrefixes = opts.Ignore
	cfg.Username = opts.Username
	cfg.Password = opts.Password
	cfg.Strict = opts.Strict
	cfg.RunOnce = opts.RunOnce
	cfg.IgnoreBadTelURLs = opts.IgnoreBadTelURLs
	cfg.AllowInsecure = opts.AllowInsecureContent
	cfg.PreferServerEncoding = opts.PreferServerEncoding
	cfg.CrawlDelay = opts.CrawlDelay

	if len(opts.Types) > 0 {
		cfg.Types = opts.Types
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	if opts.DepthSet {
		cfg.Depth = opts.Depth
	}
	if opts.Workers > 0 {
		cfg.SetWorkers(opts.Workers)
	}
	if opts.Mode != "" {
		cfg.Mode = opts.Mode
	}
	if opts.Parser != "" {
		cfg.Parser = opts.Parser
	}
	for k, v := range opts.Headers {
		cfg.Headers[k] = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	crawler, err := crawl.New(cfg, nil, progress.Nop())
	if err != nil {
		return nil, err
	}
	return crawler.Run(ctx)
}

// OptionsFromMap builds Options from a loosely typed map whose keys are the
// long flag names, with hyphens or underscores accepted interchangeably.
// Values may be strings, bools, ints or string slices.
func OptionsFromMap(m map[string]any) (Options, error) {
	var opts Options
	for key, value := range m {
		key = strings.ReplaceAll(strings.ToLower(key), "_", "-")
		var err error
		switch key {
		case "test-outside":
			opts.TestOutside, err = toBool(value)
		case "multi":
			opts.Multi, err = toBool(value)
		case "accepted-hosts":
			opts.AcceptedHosts, err = toStrings(value)
		case "ignore":
			opts.Ignore, err = toStrings(value)
		case "username":
			opts.Username, err = toString(value)
		case "password":
			opts.Password, err = toString(value)
		case "types":
			opts.Types, err = toStrings(value)
		case "timeout":
			var secs int
			secs, err = toInt(value)
			opts.Timeout = time.Duration(secs) * time.Second
		case "strict":
			opts.Strict, err = toBool(value)
		case "run-once":
			opts.RunOnce, err = toBool(value)
		case "depth":
			opts.Depth, err = toInt(value)
			opts.DepthSet = err == nil
		case "workers":
			opts.Workers, err = toInt(value)
		case "mode":
			opts.Mode, err = toString(value)
		case "parser":
			opts.Parser, err = toString(value)
		case "ignore-bad-tel-urls":
			opts.IgnoreBadTelURLs, err = toBool(value)
		case "allow-insecure-content":
			opts.AllowInsecureContent, err = toBool(value)
		case "prefer-server-encoding":
			opts.PreferServerEncoding, err = toBool(value)
		default:
			return opts, fmt.Errorf("unknown option %q", key)
		}
		if err != nil {
			return opts, fmt.Errorf("option %q: %w", key, err)
		}
	}
	return opts, nil
}

func toString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	}
	return false, fmt.Errorf("expected bool, got %T", v)
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case string:
		return strconv.Atoi(t)
	}
	return 0, fmt.Errorf("expected int, got %T", v)
}

func toStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return t, nil
	case string:
		return strings.Split(t, ","), nil
	}
	return nil, fmt.Errorf("expected string list, got %T", v)
}
