package store

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/cwbudde/holefill/internal/frame"
	"github.com/cwbudde/holefill/internal/imageio"
	"github.com/cwbudde/holefill/internal/synth"
)

var _ Store = (*FSStore)(nil)

// FSStore implements the Store interface using filesystem-based persistence.
// Jobs are stored in a directory structure: <baseDir>/jobs/<jobID>/
//
// Every artifact is written to a temporary file and renamed into place, so
// concurrent readers never observe a partial file and no locks are needed.
type FSStore struct {
	baseDir string // Root directory for all job data (e.g., "./data")
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

// BaseDir returns the root directory of the store.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

func (fs *FSStore) jobDir(jobID string) string {
	return filepath.Join(fs.baseDir, "jobs", jobID)
}

func (fs *FSStore) recordPath(jobID string) string {
	return filepath.Join(fs.jobDir(jobID), "result.json")
}

func (fs *FSStore) fieldPath(jobID string) string {
	return filepath.Join(fs.jobDir(jobID), "field.zst")
}

// ImagePath returns the path of result.png for a job.
func (fs *FSStore) ImagePath(jobID string) string {
	return filepath.Join(fs.jobDir(jobID), "result.png")
}

// ensureJobDir validates jobID and creates its directory.
func (fs *FSStore) ensureJobDir(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}
	if err := os.MkdirAll(fs.jobDir(jobID), 0755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}
	return nil
}

// writeAtomic writes through write into a temp file next to path and
// renames it into place.
func writeAtomic(path string, write func(w io.Writer) error) error {
	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tempPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// SaveRecord atomically saves the record for the given job.
func (fs *FSStore) SaveRecord(jobID string, record *Record) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if err := fs.ensureJobDir(jobID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}

	path := fs.recordPath(jobID)
	err = writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	slog.Debug("Record saved", "jobID", jobID, "path", path)
	return nil
}

// LoadRecord retrieves the record for the given job.
func (fs *FSStore) LoadRecord(jobID string) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID cannot be empty")
	}

	path := fs.recordPath(jobID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{JobID: jobID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to deserialize record: %w", err)
	}

	slog.Debug("Record loaded", "jobID", jobID, "path", path)
	return &record, nil
}

// ListRecords returns metadata for all stored jobs.
func (fs *FSStore) ListRecords() ([]RecordInfo, error) {
	jobsDir := filepath.Join(fs.baseDir, "jobs")

	entries, err := os.ReadDir(jobsDir)
	if os.IsNotExist(err) {
		return []RecordInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read jobs directory: %w", err)
	}

	infos := []RecordInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		jobID := entry.Name()
		if _, err := os.Stat(fs.recordPath(jobID)); os.IsNotExist(err) {
			continue // running job or foreign directory
		}

		record, err := fs.LoadRecord(jobID)
		if err != nil {
			slog.Warn("Failed to load record for listing", "jobID", jobID, "error", err)
			continue
		}

		infos = append(infos, record.ToInfo())
	}

	slog.Debug("Listed records", "count", len(infos))
	return infos, nil
}

// DeleteRecord removes the job directory and all contents.
func (fs *FSStore) DeleteRecord(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}

	jobDir := fs.jobDir(jobID)
	if _, err := os.Stat(jobDir); os.IsNotExist(err) {
		return &NotFoundError{JobID: jobID}
	} else if err != nil {
		return fmt.Errorf("failed to stat job directory: %w", err)
	}

	if err := os.RemoveAll(jobDir); err != nil {
		return fmt.Errorf("failed to remove job directory: %w", err)
	}

	slog.Debug("Record deleted", "jobID", jobID, "path", jobDir)
	return nil
}

// SaveImage writes result.png for the job.
func (fs *FSStore) SaveImage(jobID string, f *frame.Frame) error {
	if f == nil {
		return fmt.Errorf("frame cannot be nil")
	}
	if err := fs.ensureJobDir(jobID); err != nil {
		return err
	}

	// imageio picks the encoder from the extension, so the temp name keeps it.
	final := fs.ImagePath(jobID)
	temp := filepath.Join(fs.jobDir(jobID), "result.tmp.png")
	if err := imageio.SaveFrame(temp, f); err != nil {
		return fmt.Errorf("failed to write result image: %w", err)
	}
	if err := os.Rename(temp, final); err != nil {
		os.Remove(temp)
		return fmt.Errorf("failed to rename result image: %w", err)
	}

	slog.Debug("Result image saved", "jobID", jobID, "path", final)
	return nil
}

// SaveField writes the field as a zstd stream of the binary field encoding.
func (fs *FSStore) SaveField(jobID string, field *synth.Field) error {
	if field == nil {
		return fmt.Errorf("field cannot be nil")
	}
	if err := fs.ensureJobDir(jobID); err != nil {
		return err
	}

	path := fs.fieldPath(jobID)
	err := writeAtomic(path, func(w io.Writer) error {
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		if err := synth.EncodeField(enc, field); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return fmt.Errorf("failed to write field: %w", err)
	}

	slog.Debug("Field saved", "jobID", jobID, "path", path, "width", field.Width(), "height", field.Height())
	return nil
}

// LoadField reads the field stored for the job.
func (fs *FSStore) LoadField(jobID string) (*synth.Field, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID cannot be empty")
	}

	f, err := os.Open(fs.fieldPath(jobID))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{JobID: jobID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open field file: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	field, err := synth.DecodeField(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode field: %w", err)
	}
	return field, nil
}
