// Package diff computes prioritised paragraph-level differences between
// two revisions of a document.
//
// Contents are split into paragraphs on blank lines, aligned with a
// longest common subsequence, and the resulting edit script is coalesced
// into added, removed and modified chunks. Chunks whose new text carries a
// high-risk phrase are moved ahead of the rest before the result is capped.
//
// # Import Rules
//
//   - Can Import: domain, standard library
//   - Cannot Import: adapters, services
package diff
