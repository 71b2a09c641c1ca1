package domain

import "time"

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

// Run statuses.
const (
	RunPending    RunStatus = "pending"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed
}

// IngestionRun records one execution of the detection pipeline.
type IngestionRun struct {
	// ID is the unique identifier for the run.
	ID string

	// Location is the storage location that was scanned.
	Location string

	// CreatedAt is when the run was created.
	CreatedAt time.Time

	// Status is the lifecycle state.
	Status RunStatus

	// DocumentsProcessed counts supported files handled without extraction failure.
	DocumentsProcessed int

	// ChangesDetected counts change records emitted.
	ChangesDetected int

	// Error is set when Status is failed.
	Error string

	// FinishedAt is when the run reached a terminal status.
	FinishedAt *time.Time
}

// NewIngestionRun returns a pending run.
func NewIngestionRun(id, location string, now time.Time) *IngestionRun {
	return &IngestionRun{
		ID:        id,
		Location:  location,
		CreatedAt: now,
		Status:    RunPending,
	}
}

// Start moves the run to in_progress.
func (r *IngestionRun) Start() {
	r.Status = RunInProgress
}

// Complete moves the run to completed with its final counters.
func (r *IngestionRun) Complete(processed, changes int, now time.Time) {
	r.Status = RunCompleted
	r.DocumentsProcessed = processed
	r.ChangesDetected = changes
	r.FinishedAt = &now
}

// Fail moves the run to failed, keeping whatever progress was made.
func (r *IngestionRun) Fail(err error, processed, changes int, now time.Time) {
	r.Status = RunFailed
	r.DocumentsProcessed = processed
	r.ChangesDetected = changes
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = &now
}
