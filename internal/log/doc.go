// Package log provides the structured logger used across the validator.
// A wrapping slog.Handler masks HTTP credentials (Basic auth values,
// passwords, Authorization headers) so crawl logs can be shared without
// leaking the site's protection.
package log
