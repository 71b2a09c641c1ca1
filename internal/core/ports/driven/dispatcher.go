package driven

import "context"

// ExplanationDispatcher launches the explanation of a change record as a
// background task. Dispatch must not wait for the explanation to finish.
type ExplanationDispatcher interface {
	// Dispatch schedules the explanation of the record with changeID.
	Dispatch(ctx context.Context, changeID string) error
}
