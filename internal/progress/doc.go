// Package progress reports crawl progress. Reporters are pure sinks: the
// crawl engine notifies them and never reads anything back. A console
// reporter prints periodic counters and a Prometheus collector exposes the
// same counters for scraping.
package progress
