// Package normalisers provides Extractor implementations that turn the raw
// bytes of a document into plain text. Each extractor knows how to read a
// specific set of MIME types.
//
// Extractors are registered with a Registry at startup. Use NewDefaultRegistry
// for the full set.
package normalisers
