// Package report renders the finished SiteModel for humans and machines:
// plain text, console table, CSV, Markdown, a SQLite result store and SMTP
// delivery. Reporters only read the model; the crawl has finished by the
// time any writer runs.
package report
