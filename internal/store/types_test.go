package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cwbudde/holefill/internal/frame"
	"github.com/cwbudde/holefill/internal/inpaint"
	"github.com/cwbudde/holefill/internal/metric"
	"github.com/cwbudde/holefill/internal/synth"
)

func TestRecord_JSONFieldNames(t *testing.T) {
	record := createTestRecord("job-7")
	record.Timestamp = time.Date(2025, 10, 23, 10, 30, 0, 0, time.UTC)

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("Failed to marshal record: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal record: %v", err)
	}
	for _, key := range []string{"jobId", "config", "width", "height", "channels", "patchSize", "levels", "stats", "elapsed", "timestamp"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Missing JSON key %q", key)
		}
	}
	cfg := raw["config"].(map[string]any)
	if cfg["imagePath"] != "assets/photo.png" || cfg["maskPath"] != "assets/photo-mask.png" {
		t.Errorf("Config paths not serialized: %v", cfg)
	}
	if _, ok := cfg["metric"]; ok {
		t.Error("Empty metric should be omitted")
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Record)
		field  string
	}{
		{"valid", func(*Record) {}, ""},
		{"empty job id", func(r *Record) { r.JobID = "" }, "JobID"},
		{"zero width", func(r *Record) { r.Width = 0 }, "Width/Height"},
		{"negative height", func(r *Record) { r.Height = -1 }, "Width/Height"},
		{"two channels", func(r *Record) { r.Channels = 2 }, "Channels"},
		{"even patch", func(r *Record) { r.PatchSize = 4 }, "PatchSize"},
		{"negative elapsed", func(r *Record) { r.Elapsed = -1 }, "Elapsed"},
		{"zero timestamp", func(r *Record) { r.Timestamp = time.Time{} }, "Timestamp"},
		{"no image", func(r *Record) { r.Config.ImagePath = "" }, "Config.ImagePath"},
		{"no mask", func(r *Record) { r.Config.MaskPath = "" }, "Config.MaskPath"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := createTestRecord("job")
			tt.modify(r)
			err := r.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Expected valid record, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func TestRecord_IsCompatible(t *testing.T) {
	r := createTestRecord("job")

	if err := r.IsCompatible(64, 48, 1); err != nil {
		t.Errorf("Expected compatible, got %v", err)
	}
	if err := r.IsCompatible(64, 48, 5); err != nil {
		t.Errorf("Offset equal to patch size should be compatible, got %v", err)
	}

	var cerr *CompatibilityError
	if err := r.IsCompatible(32, 48, 1); !errors.As(err, &cerr) || cerr.Field != "Size" {
		t.Errorf("Expected size CompatibilityError, got %v", err)
	}
	if err := r.IsCompatible(64, 48, 2); !errors.As(err, &cerr) || cerr.Field != "Offset" {
		t.Errorf("Expected offset CompatibilityError, got %v", err)
	}
	if err := r.IsCompatible(64, 48, 0); !errors.As(err, &cerr) {
		t.Errorf("Expected CompatibilityError for zero offset, got %v", err)
	}
}

func TestRecord_ToInfo(t *testing.T) {
	r := createTestRecord("job")
	info := r.ToInfo()

	if info.JobID != "job" || info.ImagePath != r.Config.ImagePath {
		t.Errorf("Identity fields mismatch: %+v", info)
	}
	if info.Width != 64 || info.Height != 48 {
		t.Errorf("Size mismatch: %+v", info)
	}
	if info.Fillable != r.Stats.Fillable || info.MeanCost != r.Stats.MeanCost || info.Elapsed != r.Elapsed {
		t.Errorf("Stats mismatch: %+v", info)
	}
	if !info.Timestamp.Equal(r.Timestamp) {
		t.Errorf("Timestamp mismatch")
	}
}

func TestNewRecord(t *testing.T) {
	field := createTestField(t)
	res := &inpaint.Result{
		Frame:    frame.NewFrame(16, 12, 1),
		Field:    field,
		Levels:   []inpaint.LevelResult{{Width: 16, Height: 12, Iterations: 3}},
		Stats:    synth.FieldStats{Fillable: 16, Known: 2},
		Duration: 1500 * time.Millisecond,
	}
	cfg := JobConfig{ImagePath: "in.png", MaskPath: "mask.png"}

	before := time.Now()
	r := NewRecord("job", cfg, res)

	if r.Width != 16 || r.Height != 12 || r.Channels != 1 || r.PatchSize != 5 {
		t.Errorf("Geometry mismatch: %+v", r)
	}
	if r.Elapsed != 1.5 {
		t.Errorf("Expected elapsed 1.5, got %f", r.Elapsed)
	}
	if r.Timestamp.Before(before) {
		t.Error("Timestamp should be set to now")
	}
	if err := r.Validate(); err != nil {
		t.Errorf("NewRecord should produce a valid record: %v", err)
	}
}

func TestJobConfig_Apply(t *testing.T) {
	base := inpaint.DefaultOptions()

	opts, err := JobConfig{}.Apply(base)
	if err != nil {
		t.Fatalf("Empty config should use defaults: %v", err)
	}
	if opts.Params != base.Params || opts.Iterations != base.Iterations {
		t.Error("Empty config should not change options")
	}

	opts, err = JobConfig{
		PatchSize:     21,
		Metric:        "sad",
		SearchSteps:   4,
		Iterations:    7,
		Offset:        3,
		MaxLevels:     2,
		ProtectRadius: 5,
		Seed:          99,
	}.Apply(base)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if opts.Params.PatchSize != 21 || opts.MinSize < 21 {
		t.Errorf("Patch size override not applied: %d (min size %d)", opts.Params.PatchSize, opts.MinSize)
	}
	if opts.Params.Metric != metric.SAD || opts.Params.SearchSteps != 4 {
		t.Errorf("Solver overrides not applied: %+v", opts.Params)
	}
	if opts.Iterations != 7 || opts.CoarsestIterations < 7 {
		t.Errorf("Iteration override not applied: %d/%d", opts.Iterations, opts.CoarsestIterations)
	}
	if opts.Offset != 3 || opts.MaxLevels != 2 || opts.ProtectRadius != 5 || opts.Seed != 99 {
		t.Errorf("Driver overrides not applied: %+v", opts)
	}

	bad := []JobConfig{
		{PatchSize: 4},
		{Metric: "cosine"},
		{SearchSteps: 13},
		{Offset: 2},
	}
	for _, cfg := range bad {
		if _, err := cfg.Apply(base); err == nil {
			t.Errorf("Expected error for %+v", cfg)
		}
	}
}
