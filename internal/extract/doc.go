// Package extract pulls outgoing references out of HTML documents.
//
// The extractor is a capability: the Parser interface takes document bytes
// and yields the references in document order, and two implementations are
// provided. The default tokenizer parser (golang.org/x/net/html) reports the
// line and column of every reference; the goquery parser trades positions
// for CSS-selector based traversal. Both honor a <base href> element and the
// configured set of extracted tags.
package extract
