package store

import (
	"fmt"

	"github.com/cwbudde/holefill/internal/frame"
	"github.com/cwbudde/holefill/internal/inpaint"
	"github.com/cwbudde/holefill/internal/synth"
)

// Store defines the interface for persisting finished fill jobs.
// Implementations must be thread-safe and handle concurrent access gracefully.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if the job doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRecord atomically saves the metadata of a finished job,
	// overwriting any previous record for jobID.
	SaveRecord(jobID string, record *Record) error

	// LoadRecord retrieves the record for the given job.
	// Returns ErrNotFound if no record exists for this jobID.
	LoadRecord(jobID string) (*Record, error)

	// ListRecords returns metadata for all stored jobs.
	// The returned slice may be empty.
	ListRecords() ([]RecordInfo, error)

	// DeleteRecord removes the record and all associated artifacts:
	//   - result.json
	//   - result.png
	//   - field.zst
	//   - trace.jsonl
	DeleteRecord(jobID string) error

	// SaveImage writes the filled image as result.png.
	SaveImage(jobID string, f *frame.Frame) error

	// ImagePath returns the location of result.png for jobID.
	ImagePath(jobID string) string

	// SaveField writes the correspondence field compressed with zstd.
	SaveField(jobID string, field *synth.Field) error

	// LoadField reads a field written by SaveField.
	// Returns ErrNotFound if the job has no stored field.
	LoadField(jobID string) (*synth.Field, error)
}

// ErrNotFound is returned when a requested job does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing job error.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	if e.JobID != "" {
		return "result not found: " + e.JobID
	}
	return "result not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// SaveResult stores the filled image, the field and the record of a
// finished fill. The record is written last so listings never see a job
// with missing artifacts.
func SaveResult(st Store, jobID string, cfg JobConfig, res *inpaint.Result) (*Record, error) {
	if err := st.SaveImage(jobID, res.Frame); err != nil {
		return nil, fmt.Errorf("failed to save result image: %w", err)
	}
	if err := st.SaveField(jobID, res.Field); err != nil {
		return nil, fmt.Errorf("failed to save field: %w", err)
	}
	record := NewRecord(jobID, cfg, res)
	if err := st.SaveRecord(jobID, record); err != nil {
		return nil, fmt.Errorf("failed to save record: %w", err)
	}
	return record, nil
}
