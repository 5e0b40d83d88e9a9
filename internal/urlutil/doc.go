// Package urlutil provides URL canonicalization and the crawl admission
// policy.
//
// Canonicalization turns raw link strings into a stable, comparable form:
// two raw strings canonicalize to the same CanonicalURL iff they address the
// same resource for the purpose of deduplication. The admission policy
// decides, once per canonical URL, whether the crawler should skip it, fetch
// it once, or fetch it and follow its links.
package urlutil
