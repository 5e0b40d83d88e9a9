package config

import (
	"slices"
	"time"

	"github.com/bartdag/linkvalidator/internal/extract"
)

// Concurrency modes selectable with --mode.
const (
	ModeThread  = "thread"
	ModeProcess = "process"
	ModeGreen   = "green"
)

// Report formats selectable with --format.
const (
	FormatPlain    = "plain"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// Report timing selectable with --when.
const (
	WhenAlways  = "always"
	WhenOnError = "error"
)

// Report types selectable with --report-type.
const (
	ReportErrors  = "errors"
	ReportSummary = "summary"
	ReportAll     = "all"
)

// Default configuration values.
const (
	// DefaultTimeout bounds each request. Ten seconds matches the
	// expectation of validating a live site that should answer promptly.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies the validator in server logs.
	DefaultUserAgent = "linkvalidator/1.0 (+https://github.com/bartdag/linkvalidator)"

	// DefaultMaxBodySize caps response bodies to keep memory bounded on
	// unexpectedly large pages.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// AppName is used for XDG paths and the config file name.
	AppName = "linkvalidator"
)

// defaultWorkers is the per-mode worker count applied when --workers is
// not given. Green tasks are cheap, so the default is three orders of
// magnitude higher.
var defaultWorkers = map[string]int{
	ModeThread:  1,
	ModeProcess: 1,
	ModeGreen:   1000,
}

// EmailConfig holds the SMTP delivery options of the report.
type EmailConfig struct {
	// Addresses are the recipient addresses; empty disables email.
	Addresses []string

	// FromAddress is the sender, optional.
	FromAddress string

	// SMTPHost and SMTPPort locate the SMTP server.
	SMTPHost string
	SMTPPort int

	// UseTLS upgrades the connection with STARTTLS.
	UseTLS bool

	// Subject overrides the default subject line.
	Subject string

	// Username and Password authenticate against the SMTP server.
	Username string
	Password string
}

// Config is the immutable crawl configuration. It is fully populated before
// run() starts and shared read-only by every component.
type Config struct {
	// StartURLs are the seed URLs, in command-line order.
	StartURLs []string

	// TestOutside fetches outside hosts once instead of skipping them.
	TestOutside bool

	// Multi treats every start URL as a separate site: a URL is followed
	// only within the site that discovered it, while accepted hosts stay
	// shared across all sites.
	Multi bool

	// AcceptedHosts extends the crawl-and-follow host set beyond the
	// start hosts.
	AcceptedHosts []string

	// IgnoredPrefixes is the host/path prefix skip list.
	IgnoredPrefixes []string

	// Username and Password enable HTTP Basic authentication for in-scope
	// hosts.
	Username string
	Password string

	// Types are the HTML tags whose references are extracted.
	Types []string

	// Timeout bounds each request.
	Timeout time.Duration

	// Strict disables whitespace trimming of href/src values.
	Strict bool

	// RunOnce caps the crawl depth at zero.
	RunOnce bool

	// Depth is the maximum crawl depth; negative means unlimited.
	Depth int

	// Workers is the worker count; zero applies the per-mode default.
	Workers int

	// workersSet records whether --workers was given explicitly, which
	// matters for validating a contradictory zero.
	workersSet bool

	// Mode selects the concurrency backend.
	Mode string

	// Parser selects the HTML parser capability.
	Parser string

	// IgnoreBadTelURLs silently drops malformed tel: links.
	IgnoreBadTelURLs bool

	// AllowInsecure disables TLS certificate verification.
	AllowInsecure bool

	// Headers are extra request headers from repeated --header flags.
	Headers map[string]string

	// URLFilePath reads start URLs from a whitespace-separated file.
	URLFilePath string

	// PreferServerEncoding trusts the Content-Type charset over content
	// detection.
	PreferServerEncoding bool

	// Progress enables the periodic console progress reporter.
	Progress bool

	// CrawlDelay paces requests globally; zero disables pacing.
	CrawlDelay time.Duration

	// MetricsAddr exposes Prometheus metrics when non-empty.
	MetricsAddr string

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize caps response bodies.
	MaxBodySize int64

	// Verbose lowers the log level to debug.
	Verbose bool

	// Report output options.
	Format     string
	Output     string
	OutputDB   string
	When       string
	ReportType string
	Console    bool
	ShowSource bool
	Email      EmailConfig

	// ConfigFilePath points at an explicit YAML config file.
	ConfigFilePath string
}

// New returns a Config with defaults applied.
func New() *Config {
	return &Config{
		Types:       slices.Clone(extract.DefaultTypes),
		Timeout:     DefaultTimeout,
		Depth:       -1,
		Mode:        ModeThread,
		Parser:      extract.ParserNet,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		Format:      FormatPlain,
		When:        WhenAlways,
		ReportType:  ReportErrors,
		Headers:     make(map[string]string),
	}
}

// SetWorkers records an explicit --workers value.
func (c *Config) SetWorkers(n int) {
	c.Workers = n
	c.workersSet = true
}

// EffectiveWorkers returns the worker count, applying the per-mode default
// when --workers was not given.
func (c *Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return defaultWorkers[c.Mode]
}

// MaxDepth returns the depth cap honoring --run-once; negative means
// unlimited.
func (c *Config) MaxDepth() int {
	if c.RunOnce {
		return 0
	}
	return c.Depth
}

// Validate checks the configuration and returns the first problem found.
// Contradictions detected here are fatal before any crawling begins.
func (c *Config) Validate() error {
	if len(c.StartURLs) == 0 && c.URLFilePath == "" {
		return ErrNoStartURL
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Mode != ModeThread && c.Mode != ModeProcess && c.Mode != ModeGreen {
		return ErrUnknownMode
	}
	if c.Workers < 0 || (c.workersSet && c.Workers == 0) {
		return ErrInvalidWorkers
	}
	if c.Parser != extract.ParserNet && c.Parser != extract.ParserGoquery {
		return ErrUnknownParser
	}
	for _, t := range c.Types {
		if _, ok := extract.TypeAttributes[t]; !ok {
			return ErrUnknownType
		}
	}
	if c.Format != FormatPlain && c.Format != FormatCSV && c.Format != FormatMarkdown {
		return ErrUnknownFormat
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if len(c.Email.Addresses) > 0 && c.Email.SMTPHost == "" {
		return ErrEmailWithoutSMTP
	}
	return nil
}
