package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bartdag/linkvalidator/internal/config"
	"github.com/bartdag/linkvalidator/internal/crawl"
	"github.com/bartdag/linkvalidator/internal/extract"
	logpkg "github.com/bartdag/linkvalidator/internal/log"
	"github.com/bartdag/linkvalidator/internal/model"
	"github.com/bartdag/linkvalidator/internal/progress"
	"github.com/bartdag/linkvalidator/internal/report"
)

// errBrokenLinks signals a completed crawl that found erroneous pages. It
// maps to exit code 1 rather than a printed error.
var errBrokenLinks = errors.New("broken links found")

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [flags] URL ...",
		Short: "Crawl a site and validate its links",
		Long: `Check crawls a site starting from the given URLs, follows the references
found in HTML documents, and reports every broken or unreachable link
together with the pages that reference it.

Examples:
  # Validate a site with defaults
  linkvalidator check http://example.com/

  # Crawl two levels deep with eight workers
  linkvalidator check --depth 2 --workers 8 http://example.com/

  # Also verify links to other hosts without crawling them
  linkvalidator check -O http://example.com/

  # Use worker processes instead of threads
  linkvalidator check -m process -w 4 http://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCheckCmd,
	}

	// Crawler flags
	cmd.Flags().BoolP("test-outside", "O", false,
		"Fetch resources from other hosts without crawling them")
	cmd.Flags().StringSliceP("accepted-hosts", "H", nil,
		"Additional hosts to crawl and follow")
	cmd.Flags().BoolP("multi", "M", false,
		"Treat every start URL as a separate site")
	cmd.Flags().StringSliceP("ignore", "i", nil,
		"host/path prefixes to ignore (e.g. www.example.com/archive/)")
	cmd.Flags().StringP("username", "u", "",
		"Username for HTTP Basic authentication")
	cmd.Flags().StringP("password", "p", "",
		"Password for HTTP Basic authentication")
	cmd.Flags().StringSliceP("types", "t", extract.DefaultTypes,
		"HTML tags to extract references from (a,img,link,script)")
	cmd.Flags().IntP("timeout", "T", int(config.DefaultTimeout/time.Second),
		"Seconds before a request is considered timed out")
	cmd.Flags().BoolP("strict", "C", false,
		"Do not strip whitespace from href and src attributes")
	cmd.Flags().BoolP("run-once", "N", false,
		"Only process the start URLs (equivalent to --depth 0)")
	cmd.Flags().IntP("depth", "d", -1,
		"Maximum crawl depth (negative = unlimited)")
	cmd.Flags().IntP("workers", "w", 0,
		"Number of workers (default depends on --mode)")
	cmd.Flags().StringP("mode", "m", config.ModeThread,
		"Concurrency backend: thread, process, or green")
	cmd.Flags().StringP("parser", "R", extract.ParserNet,
		"HTML parser: net or goquery")
	cmd.Flags().Bool("ignore-bad-tel-urls", false,
		"Silently skip malformed tel: links instead of reporting them")
	cmd.Flags().Bool("allow-insecure-content", false,
		"Disable TLS certificate verification")
	cmd.Flags().StringArrayP("header", "D", nil,
		"Custom header of the form 'Header: Value' (repeatable)")
	cmd.Flags().String("url-file-path", "",
		"Read start URLs from a whitespace-separated file")
	cmd.Flags().BoolP("prefer-server-encoding", "e", false,
		"Trust the Content-Type charset instead of detecting the encoding")
	cmd.Flags().BoolP("progress", "P", false,
		"Print crawl progress to the console")
	cmd.Flags().Duration("crawl-delay", 0,
		"Minimum delay between requests across all workers")
	cmd.Flags().String("metrics-addr", "",
		"Expose Prometheus metrics on this address while crawling")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkvalidator in current or home directory)")

	// Output flags
	cmd.Flags().StringP("format", "f", config.FormatPlain,
		"Report format: plain, csv, or markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to this file instead of stdout")
	cmd.Flags().String("output-db", "",
		"Also record the report in a SQLite database ('default' for the XDG location)")
	cmd.Flags().StringP("when", "W", config.WhenAlways,
		"When to print the report: always or error")
	cmd.Flags().StringP("report-type", "E", config.ReportErrors,
		"What to report: errors, summary, or all")
	cmd.Flags().Bool("console", false,
		"Print a console table (in addition to an --output file, otherwise instead of the stdout report)")
	cmd.Flags().BoolP("show-source", "S", false,
		"List the referencing pages under each reported link")

	// Email flags
	cmd.Flags().StringP("address", "a", "",
		"Comma-separated recipients for the report email")
	cmd.Flags().String("from", "", "Sender address of the report email")
	cmd.Flags().StringP("smtp", "s", "", "SMTP server host")
	cmd.Flags().Int("port", 25, "SMTP server port")
	cmd.Flags().Bool("tls", false, "Use STARTTLS with the SMTP server")
	cmd.Flags().String("subject", "", "Subject of the report email")
	cmd.Flags().String("smtp-username", "", "SMTP username")
	cmd.Flags().String("smtp-password", "", "SMTP password")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := logpkg.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Warn("received shutdown signal, cancelling")
		cancel()
	}()

	return runCheck(ctx, cfg, logger)
}

// buildConfig creates the crawl configuration from flags, the optional
// config file, and credential environment variables.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.New()
	flags := cmd.Flags()

	cfg.StartURLs = args
	cfg.TestOutside, _ = flags.GetBool("test-outside")
	cfg.Multi, _ = flags.GetBool("multi")
	cfg.AcceptedHosts, _ = flags.GetStringSlice("accepted-hosts")
	cfg.IgnoredPrefixes, _ = flags.GetStringSlice("ignore")
	cfg.Username, _ = flags.GetString("username")
	cfg.Password, _ = flags.GetString("password")
	cfg.Types, _ = flags.GetStringSlice("types")
	cfg.Strict, _ = flags.GetBool("strict")
	cfg.RunOnce, _ = flags.GetBool("run-once")
	cfg.Depth, _ = flags.GetInt("depth")
	cfg.Mode, _ = flags.GetString("mode")
	cfg.Parser, _ = flags.GetString("parser")
	cfg.IgnoreBadTelURLs, _ = flags.GetBool("ignore-bad-tel-urls")
	cfg.AllowInsecure, _ = flags.GetBool("allow-insecure-content")
	cfg.URLFilePath, _ = flags.GetString("url-file-path")
	cfg.PreferServerEncoding, _ = flags.GetBool("prefer-server-encoding")
	cfg.Progress, _ = flags.GetBool("progress")
	cfg.CrawlDelay, _ = flags.GetDuration("crawl-delay")
	cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	cfg.ConfigFilePath, _ = flags.GetString("config")
	cfg.Format, _ = flags.GetString("format")
	cfg.Output, _ = flags.GetString("output")
	cfg.OutputDB, _ = flags.GetString("output-db")
	cfg.When, _ = flags.GetString("when")
	cfg.ReportType, _ = flags.GetString("report-type")
	cfg.Console, _ = flags.GetBool("console")
	cfg.ShowSource, _ = flags.GetBool("show-source")
	cfg.Verbose = getVerboseFlag(cmd)

	if timeoutSec, err := flags.GetInt("timeout"); err == nil && timeoutSec > 0 {
		cfg.Timeout = time.Duration(timeoutSec) * time.Second
	}
	if flags.Changed("workers") {
		workers, _ := flags.GetInt("workers")
		cfg.SetWorkers(workers)
	}

	headerValues, _ := flags.GetStringArray("header")
	for _, h := range headerValues {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: Value'", h)
		}
		cfg.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	addresses, _ := flags.GetString("address")
	if addresses != "" {
		cfg.Email.Addresses = strings.Split(addresses, ",")
		cfg.Email.FromAddress, _ = flags.GetString("from")
		cfg.Email.SMTPHost, _ = flags.GetString("smtp")
		cfg.Email.SMTPPort, _ = flags.GetInt("port")
		cfg.Email.UseTLS, _ = flags.GetBool("tls")
		cfg.Email.Subject, _ = flags.GetString("subject")
		cfg.Email.Username, _ = flags.GetString("smtp-username")
		cfg.Email.Password, _ = flags.GetString("smtp-password")
	}

	if cfg.URLFilePath != "" {
		urls, err := config.ReadStartURLFile(cfg.URLFilePath)
		if err != nil {
			return nil, err
		}
		cfg.StartURLs = append(cfg.StartURLs, urls...)
	}

	explicitConfig := cfg.ConfigFilePath != ""
	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		file.Apply(cfg)
	} else if explicitConfig {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	config.LoadEnvCredentials(cfg)

	return cfg, nil
}

// getVerboseFlag retrieves the persistent verbose flag.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// runCheck executes the crawl and writes the report.
func runCheck(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reporter, metrics := buildReporter(cfg)

	crawler, err := crawl.New(cfg, logger, reporter)
	if err != nil {
		return err
	}

	if metrics != nil && cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr)
	}

	site, err := crawler.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	if err := outputReport(ctx, cfg, site, logger); err != nil {
		return err
	}

	if site.ErrorCount() > 0 {
		return fmt.Errorf("%w: %d erroneous page(s)", errBrokenLinks, site.ErrorCount())
	}
	return nil
}

// buildReporter assembles the progress observer from the flags.
func buildReporter(cfg *config.Config) (progress.Reporter, *progress.Metrics) {
	var metrics *progress.Metrics
	if cfg.MetricsAddr != "" {
		metrics = progress.NewMetrics()
	}

	switch {
	case cfg.Progress && metrics != nil:
		return progress.NewConsole(os.Stderr, progress.WithMetrics(metrics)), metrics
	case cfg.Progress:
		return progress.NewConsole(os.Stderr), nil
	case metrics != nil:
		return progress.ForMetrics(metrics), metrics
	default:
		return progress.Nop(), nil
	}
}

// outputReport renders the report to every configured destination.
func outputReport(ctx context.Context, cfg *config.Config, site *model.SiteModel, logger *slog.Logger) error {
	if cfg.When == config.WhenOnError && site.ErrorCount() == 0 {
		return nil
	}

	opts := report.Options{Type: cfg.ReportType, ShowSource: cfg.ShowSource}

	out := os.Stdout
	if cfg.Output != "" {
		if dir := filepath.Dir(cfg.Output); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
		}
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var writers []report.Writer
	switch cfg.Format {
	case config.FormatCSV:
		writers = append(writers, report.NewCSVWriter(out, opts))
	case config.FormatMarkdown:
		writers = append(writers, report.NewMarkdownWriter(out, opts))
	default:
		writers = append(writers, report.NewPlainWriter(out, opts))
	}
	if cfg.Console && cfg.Output != "" {
		writers = append(writers, report.NewConsoleWriter(os.Stdout, opts))
	} else if cfg.Console {
		writers = []report.Writer{report.NewConsoleWriter(out, opts)}
	}

	if _, err := report.NewMultiWriter(writers...).Write(site); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if cfg.OutputDB != "" {
		path := cfg.OutputDB
		if path == "default" {
			path = ""
		}
		store, err := report.OpenStore(path)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveRun(ctx, site); err != nil {
			return err
		}
		logger.Info("report saved", "db", store.Path())
	}

	if len(cfg.Email.Addresses) > 0 {
		if err := report.NewEmailSender(cfg.Email).Send(site, opts); err != nil {
			return fmt.Errorf("send report email: %w", err)
		}
	}

	return nil
}
