package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a MIME type no extractor handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrIngestionInProgress indicates an ingestion run is already executing.
	ErrIngestionInProgress = errors.New("ingestion in progress")

	// ErrExtractionFailed indicates text could not be extracted from a file.
	// The file is skipped for the current run.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Explanations fall back to the deterministic generator.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrInvalidLLMResponse indicates the model output could not be parsed
	// into a usable explanation.
	ErrInvalidLLMResponse = errors.New("invalid LLM response")

	// ErrExplanationDisabled indicates explanation generation is switched off.
	ErrExplanationDisabled = errors.New("explanation disabled")

	// Authentication Errors.

	// ErrAuthRequired indicates the storage source requires authentication but none is available.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthExpired indicates the authentication has expired and refresh failed.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrAuthInvalid indicates the authentication credentials are invalid.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
