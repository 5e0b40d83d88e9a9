// Package main provides the entry point for the linkvalidator CLI.
//
// linkvalidator crawls a web site from one or more start URLs, records the
// HTTP status of every referenced resource, and reports the broken ones.
//
// Usage:
//
//	linkvalidator check http://example.com/
//	linkvalidator check --depth 2 --workers 8 http://example.com/
//
// See --help for all available options.
package main

// main is the entry point for linkvalidator.
func main() {
	Execute()
}
