package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/holefill/internal/inpaint"
)

// TraceEntry represents one optimizer iteration in the cost history.
// Each entry is serialized as a JSON line in trace.jsonl.
type TraceEntry struct {
	// Step is the pyramid step, 0 being the coarsest level
	Step int `json:"step"`

	// Width and Height are the dimensions of the level
	Width  int `json:"width"`
	Height int `json:"height"`

	// Iteration counts optimizer passes within the step, starting at 1
	Iteration int `json:"iteration"`

	// MeanCost is the mean known patch cost over fillable cells
	MeanCost float64 `json:"meanCost"`

	// Unknown counts fillable cells without a valid correspondence
	Unknown int `json:"unknown,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// EntryFromProgress converts a fill progress report into a trace entry.
func EntryFromProgress(p inpaint.Progress) TraceEntry {
	return TraceEntry{
		Step:      p.Step,
		Width:     p.Width,
		Height:    p.Height,
		Iteration: p.Iteration,
		MeanCost:  p.Stats.MeanCost,
		Unknown:   p.Stats.Unknown,
		Timestamp: time.Now(),
	}
}

func tracePath(baseDir, jobID string) string {
	return filepath.Join(baseDir, "jobs", jobID, "trace.jsonl")
}

// TraceWriter appends trace entries to a JSONL file through a buffer.
// It is safe for concurrent use.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewTraceWriter creates <baseDir>/jobs/<jobID>/trace.jsonl. With
// appendMode set, entries are added to an existing trace.
func NewTraceWriter(baseDir, jobID string, appendMode bool) (*TraceWriter, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID cannot be empty")
	}
	path := tracePath(baseDir, jobID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create job directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &TraceWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write buffers one entry; it reaches the file on Flush or Close.
func (tw *TraceWriter) Write(entry TraceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()

	if _, err := tw.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	return nil
}

// Flush writes buffered entries and syncs the file.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return nil
}

// Close flushes buffered data and closes the trace file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the trace file.
func (tw *TraceWriter) Path() string {
	return tw.path
}

// TraceReader reads trace entries from a JSONL file.
type TraceReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewTraceReader opens the trace of a job.
func NewTraceReader(baseDir, jobID string) (*TraceReader, error) {
	file, err := os.Open(tracePath(baseDir, jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{JobID: jobID}
		}
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &TraceReader{
		file:    file,
		scanner: bufio.NewScanner(file),
	}, nil
}

// Read returns the next entry, or io.EOF after the last one.
func (tr *TraceReader) Read() (*TraceEntry, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan trace line: %w", err)
		}
		return nil, io.EOF
	}

	var entry TraceEntry
	if err := json.Unmarshal(tr.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads all remaining entries.
func (tr *TraceReader) ReadAll() ([]TraceEntry, error) {
	var entries []TraceEntry
	for {
		entry, err := tr.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
}

// Close closes the trace reader.
func (tr *TraceReader) Close() error {
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// ReadTrace loads the whole trace of a job.
func ReadTrace(baseDir, jobID string) ([]TraceEntry, error) {
	tr, err := NewTraceReader(baseDir, jobID)
	if err != nil {
		return nil, err
	}
	defer tr.Close()
	return tr.ReadAll()
}

// DeleteTrace removes the trace file for the given job.
// Returns nil if the file doesn't exist.
func DeleteTrace(baseDir, jobID string) error {
	err := os.Remove(tracePath(baseDir, jobID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete trace file: %w", err)
	}
	return nil
}
