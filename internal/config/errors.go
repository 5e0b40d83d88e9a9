package config

import "errors"

// Configuration validation errors returned by Config.Validate. They are
// package-level sentinels so callers can match with errors.Is while still
// getting a readable message.
var (
	// ErrNoStartURL is returned when no start URL is given on the command
	// line or via --url-file-path.
	ErrNoStartURL = errors.New("no start url specified")

	// ErrInvalidTimeout is returned when the request timeout is not
	// positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is negative, or
	// explicitly zero in a mode that needs workers to make progress.
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrUnknownMode is returned for a --mode outside thread, process and
	// green.
	ErrUnknownMode = errors.New("unknown concurrency mode")

	// ErrUnknownParser is returned for a --parser outside net and goquery.
	ErrUnknownParser = errors.New("unknown html parser")

	// ErrUnknownType is returned when --types contains a tag outside
	// a, img, link and script.
	ErrUnknownType = errors.New("unsupported tag type")

	// ErrUnknownFormat is returned for an unsupported report format.
	ErrUnknownFormat = errors.New("unknown report format")

	// ErrInvalidCrawlDelay is returned when the politeness delay is
	// negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrEmailWithoutSMTP is returned when report addresses are configured
	// without an SMTP host.
	ErrEmailWithoutSMTP = errors.New("email report requires --smtp")
)
