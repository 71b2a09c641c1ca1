// Package html provides an Extractor for HTML documents.
// It strips tags, scripts and styles, decodes entities, and keeps block
// elements as blank-line separated paragraphs.
package html
