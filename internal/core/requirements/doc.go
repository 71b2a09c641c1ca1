// Package requirements derives new-obligation statements from diff chunks
// and decides whether a document reads as a procedure.
//
// Extraction works sentence by sentence over the already prioritised and
// capped chunk set, using the vocabulary lists in domain.Vocabulary.
package requirements
