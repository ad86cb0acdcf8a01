package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/holefill/internal/inpaint"
	"github.com/cwbudde/holefill/internal/metric"
	"github.com/cwbudde/holefill/internal/synth"
)

// JobConfig holds the inputs of a fill job. Zero solver fields mean
// "use the configured default".
type JobConfig struct {
	ImagePath string `json:"imagePath"`
	MaskPath  string `json:"maskPath"`

	// Channels selects grayscale (1) or color (3) matching; 0 means 3.
	Channels int `json:"channels,omitempty"`

	PatchSize     int    `json:"patchSize,omitempty"`
	Metric        string `json:"metric,omitempty"`
	SearchSteps   int    `json:"searchSteps,omitempty"`
	Iterations    int    `json:"iterations,omitempty"`
	Offset        int    `json:"offset,omitempty"`
	MaxLevels     int    `json:"maxLevels,omitempty"`
	ProtectRadius int    `json:"protectRadius,omitempty"`
	Seed          int64  `json:"seed,omitempty"`
}

// Apply overlays the non-zero solver fields of cfg on base and validates
// the result. A larger patch raises MinSize and more iterations raise
// CoarsestIterations so the overlay never yields a rejected pyramid.
func (cfg JobConfig) Apply(base inpaint.Options) (inpaint.Options, error) {
	opts := base
	opts.Progress = nil
	if cfg.PatchSize != 0 {
		opts.Params.PatchSize = cfg.PatchSize
		opts.MinSize = max(opts.MinSize, cfg.PatchSize)
	}
	if cfg.Metric != "" {
		kind, err := metric.ParseKind(cfg.Metric)
		if err != nil {
			return inpaint.Options{}, err
		}
		opts.Params.Metric = kind
	}
	if cfg.SearchSteps != 0 {
		opts.Params.SearchSteps = cfg.SearchSteps
	}
	if cfg.Iterations != 0 {
		opts.Iterations = cfg.Iterations
		opts.CoarsestIterations = max(opts.CoarsestIterations, cfg.Iterations)
	}
	if cfg.Offset != 0 {
		opts.Offset = cfg.Offset
	}
	if cfg.MaxLevels != 0 {
		opts.MaxLevels = cfg.MaxLevels
	}
	if cfg.ProtectRadius != 0 {
		opts.ProtectRadius = cfg.ProtectRadius
	}
	if cfg.Seed != 0 {
		opts.Seed = cfg.Seed
	}
	if err := opts.Validate(); err != nil {
		return inpaint.Options{}, err
	}
	return opts, nil
}

// Record is the persisted summary of a finished fill. The filled image and
// the correspondence field are stored next to it as separate artifacts.
//
// The field is kept so a job can be re-synthesised later with a different
// voting offset without running the optimizer again. Resynthesis needs the
// original image and mask, which are referenced by path, not copied.
type Record struct {
	// JobID is the unique identifier of the fill job
	JobID string `json:"jobId"`

	Config JobConfig `json:"config"`

	// Width and Height are the full-resolution image dimensions
	Width    int `json:"width"`
	Height   int `json:"height"`
	Channels int `json:"channels"`

	// PatchSize is the patch size the stored field was optimized with
	PatchSize int `json:"patchSize"`

	Levels []inpaint.LevelResult `json:"levels"`
	Stats  synth.FieldStats      `json:"stats"`

	// Elapsed is the wall time of the fill in seconds
	Elapsed float64 `json:"elapsed"`

	// Timestamp records when the fill finished
	Timestamp time.Time `json:"timestamp"`
}

// RecordInfo contains the listing subset of a Record.
type RecordInfo struct {
	JobID     string    `json:"jobId"`
	ImagePath string    `json:"imagePath"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Fillable  int       `json:"fillable"`
	MeanCost  float64   `json:"meanCost"`
	Elapsed   float64   `json:"elapsed"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecord creates a record from a finished fill.
func NewRecord(jobID string, config JobConfig, res *inpaint.Result) *Record {
	return &Record{
		JobID:     jobID,
		Config:    config,
		Width:     res.Frame.Width,
		Height:    res.Frame.Height,
		Channels:  res.Frame.Channels,
		PatchSize: res.Field.PatchSize(),
		Levels:    res.Levels,
		Stats:     res.Stats,
		Elapsed:   res.Duration.Seconds(),
		Timestamp: time.Now(),
	}
}

// ToInfo converts a full Record to RecordInfo.
func (r *Record) ToInfo() RecordInfo {
	return RecordInfo{
		JobID:     r.JobID,
		ImagePath: r.Config.ImagePath,
		Width:     r.Width,
		Height:    r.Height,
		Fillable:  r.Stats.Fillable,
		MeanCost:  r.Stats.MeanCost,
		Elapsed:   r.Elapsed,
		Timestamp: r.Timestamp,
	}
}

// Validate checks if the record has valid data.
func (r *Record) Validate() error {
	if r.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if r.Width <= 0 || r.Height <= 0 {
		return &ValidationError{Field: "Width/Height", Reason: "must be positive"}
	}
	if r.Channels != 1 && r.Channels != 3 {
		return &ValidationError{Field: "Channels", Reason: fmt.Sprintf("unsupported channel count %d", r.Channels)}
	}
	if r.PatchSize < 1 || r.PatchSize%2 == 0 {
		return &ValidationError{Field: "PatchSize", Reason: "must be odd and positive"}
	}
	if r.Elapsed < 0 {
		return &ValidationError{Field: "Elapsed", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.ImagePath == "" {
		return &ValidationError{Field: "Config.ImagePath", Reason: "cannot be empty"}
	}
	if r.Config.MaskPath == "" {
		return &ValidationError{Field: "Config.MaskPath", Reason: "cannot be empty"}
	}
	return nil
}

// ValidationError represents a record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks whether the stored field can be re-synthesised onto an
// image of the given size with the given voting offset.
func (r *Record) IsCompatible(width, height, offset int) error {
	if r.Width != width || r.Height != height {
		return &CompatibilityError{
			Field:    "Size",
			Expected: fmt.Sprintf("%dx%d", r.Width, r.Height),
			Actual:   fmt.Sprintf("%dx%d", width, height),
		}
	}
	if offset < 1 || r.PatchSize%offset != 0 {
		return &CompatibilityError{
			Field:    "Offset",
			Expected: fmt.Sprintf("divisor of %d", r.PatchSize),
			Actual:   fmt.Sprintf("%d", offset),
		}
	}
	return nil
}

// CompatibilityError represents a resynthesis compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
