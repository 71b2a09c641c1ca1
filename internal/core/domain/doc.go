// Package domain defines the core business entities for ChangeLens.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A tracked file and its current version pointer
//   - DocumentVersion: An immutable snapshot of extracted text
//   - ChangeRecord: A detected change and its explanation lifecycle
//   - IngestionRun: One execution of the change-detection pipeline
//   - DiffResult: The structured paragraph diff between two versions
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
