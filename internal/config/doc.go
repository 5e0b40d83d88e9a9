// Package config defines the immutable crawl configuration. It is built
// once from CLI flags (plus an optional YAML file and .env credentials)
// before run() and passed explicitly to every component; there is no
// process-wide mutable state.
package config
