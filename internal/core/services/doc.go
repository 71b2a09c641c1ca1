// Package services implements the driving port interfaces.
// Services contain the change-intelligence logic and orchestrate
// calls to driven ports (adapters).
//
// The classifier turns a file listing into change records, the
// explanation services turn change records into plain-language
// explanations, and the ingestion service drives one scan at a time.
package services
