package main

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/holefill/internal/config"
	"github.com/cwbudde/holefill/internal/imageio"
	"github.com/cwbudde/holefill/internal/inpaint"
	"github.com/cwbudde/holefill/internal/parallel"
	"github.com/cwbudde/holefill/internal/server"
	"github.com/cwbudde/holefill/internal/store"
	"github.com/cwbudde/holefill/internal/tune"
)

// writeInputs writes a 40x40 striped image and a mask with an 8x8 hole.
func writeInputs(t *testing.T, dir, name string) (imgPath, maskPath string) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			c := color.NRGBA{30, 120, 210, 255}
			if (x/5)%2 == 0 {
				c = color.NRGBA{220, 180, 40, 255}
			}
			img.Set(x, y, c)
		}
	}
	mask := image.NewGray(image.Rect(0, 0, 40, 40))
	for y := 16; y < 24; y++ {
		for x := 16; x < 24; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	imgPath = filepath.Join(dir, name+".png")
	maskPath = filepath.Join(dir, name+"_mask.png")
	for path, m := range map[string]image.Image{imgPath: img, maskPath: mask} {
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("Failed to create %s: %v", path, err)
		}
		if err := png.Encode(f, m); err != nil {
			t.Fatalf("Failed to encode %s: %v", path, err)
		}
		f.Close()
	}
	return imgPath, maskPath
}

func quickOptions() inpaint.Options {
	opts := inpaint.DefaultOptions()
	opts.Iterations = 2
	opts.CoarsestIterations = 3
	opts.Convergence.Enabled = false
	return opts
}

func TestMaskPathFor(t *testing.T) {
	tests := []struct{ in, suffix, want string }{
		{"photo.png", "_mask", "photo_mask.png"},
		{"dir/a.b.jpg", "-m", "dir/a.b-m.jpg"},
		{"noext", "_mask", "noext_mask"},
	}
	for _, tt := range tests {
		if got := maskPathFor(tt.in, tt.suffix); got != tt.want {
			t.Errorf("maskPathFor(%q, %q) = %q, want %q", tt.in, tt.suffix, got, tt.want)
		}
	}
}

func TestParseHole(t *testing.T) {
	r, err := parseHole("")
	if err != nil || !r.Empty() {
		t.Errorf("Empty hole should give the zero rectangle, got %v, %v", r, err)
	}
	r, err = parseHole("4,5,20,30")
	if err != nil || r != image.Rect(4, 5, 20, 30) {
		t.Errorf("parseHole = %v, %v", r, err)
	}
	for _, bad := range []string{"1,2,3", "a,b,c,d", "5,5,5,9"} {
		if _, err := parseHole(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestApplyTuned(t *testing.T) {
	cfg := config.DefaultConfig()
	applyTuned(cfg, tune.Settings{Iterations: 40, SearchSteps: 3, ProtectRadius: 1})

	if cfg.Pyramid.Iterations != 40 || cfg.Pyramid.CoarsestIterations != 40 {
		t.Errorf("Iterations not applied: %+v", cfg.Pyramid)
	}
	if cfg.Solver.SearchSteps != 3 || cfg.Pyramid.ProtectRadius != 1 {
		t.Errorf("Settings not applied: %+v %+v", cfg.Solver, cfg.Pyramid)
	}
	if _, err := cfg.Options(); err != nil {
		t.Errorf("Tuned config should validate: %v", err)
	}
}

func TestSolverFlags_Options(t *testing.T) {
	cfg := config.DefaultConfig()

	f := solverFlags{patchSize: 9, offset: 3, noRefine: true}
	opts, err := f.options(cfg, f.jobConfig("a.png", "m.png"))
	if err != nil {
		t.Fatalf("options failed: %v", err)
	}
	if opts.Params.PatchSize != 9 || opts.Offset != 3 || opts.Refine {
		t.Errorf("Overrides not applied: %+v", opts)
	}
	if opts.MinSize < 9 {
		t.Errorf("MinSize %d below patch size", opts.MinSize)
	}

	f = solverFlags{metric: "cosine"}
	if _, err := f.options(cfg, f.jobConfig("a.png", "m.png")); err == nil {
		t.Error("Expected error for unknown metric")
	}
}

func TestFillOne_StoreAndResynth(t *testing.T) {
	dir := t.TempDir()
	imgPath, maskPath := writeInputs(t, dir, "stripes")
	st, err := store.NewFSStore(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatal(err)
	}

	jc := store.JobConfig{ImagePath: imgPath, MaskPath: maskPath, Channels: 3}
	res, err := fillOne(context.Background(), jc, quickOptions(), parallel.Serial{}, st, "job-1")
	if err != nil {
		t.Fatalf("fillOne failed: %v", err)
	}
	if res.Stats.Fillable != 64 {
		t.Errorf("Expected 64 fillable pixels, got %d", res.Stats.Fillable)
	}

	record, err := st.LoadRecord("job-1")
	if err != nil {
		t.Fatalf("Result not stored: %v", err)
	}
	if record.PatchSize != 5 {
		t.Errorf("Unexpected patch size %d", record.PatchSize)
	}
	entries, err := store.ReadTrace(st.BaseDir(), "job-1")
	if err != nil || len(entries) == 0 {
		t.Errorf("Expected a trace, got %d entries, %v", len(entries), err)
	}

	resynthDataDir = st.BaseDir()
	resynthOut = filepath.Join(dir, "resynth.png")
	resynthOffset = 5
	resynthUpdate = true
	t.Cleanup(func() { resynthOffset, resynthUpdate = 1, false })

	cmd, out := testCommand("")
	if err := runResynth(cmd, []string{"job-1"}); err != nil {
		t.Fatalf("resynth failed: %v", err)
	}
	if !strings.Contains(out.String(), "offset 5") {
		t.Errorf("Unexpected output: %s", out.String())
	}
	if _, err := imageio.LoadFrame(resynthOut, 3); err != nil {
		t.Errorf("Resynthesised image unreadable: %v", err)
	}
	record, err = st.LoadRecord("job-1")
	if err != nil || record.Config.Offset != 5 {
		t.Errorf("Record not updated: %+v, %v", record, err)
	}

	resynthOffset = 2
	var compat *store.CompatibilityError
	if err := runResynth(cmd, []string{"job-1"}); !errors.As(err, &compat) {
		t.Errorf("Expected compatibility error for offset 2, got %v", err)
	}
	if err := runResynth(cmd, []string{"missing"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFillOne_MissingMask(t *testing.T) {
	dir := t.TempDir()
	imgPath, _ := writeInputs(t, dir, "stripes")

	jc := store.JobConfig{ImagePath: imgPath, MaskPath: filepath.Join(dir, "nope.png"), Channels: 3}
	if _, err := fillOne(context.Background(), jc, quickOptions(), nil, nil, ""); err == nil {
		t.Error("Expected error for missing mask")
	}
}

func TestSubmitAndStatus(t *testing.T) {
	dir := t.TempDir()
	imgPath, maskPath := writeInputs(t, dir, "stripes")

	srv := server.NewServer("", nil, quickOptions(), nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Shutdown(context.Background())

	job, err := submitJob(ts.URL, store.JobConfig{ImagePath: imgPath, MaskPath: maskPath})
	if err != nil {
		t.Fatalf("submitJob failed: %v", err)
	}

	var text string
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var out strings.Builder
		if err := getJobStatus(&out, ts.URL+"/api/v1/jobs/"+job.ID, job.ID); err != nil {
			t.Fatalf("getJobStatus failed: %v", err)
		}
		text = out.String()
		if strings.Contains(text, "State: completed") {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(text, "State: completed") || !strings.Contains(text, "Image: "+imgPath) {
		t.Fatalf("Job did not complete:\n%s", text)
	}

	var list strings.Builder
	if err := listJobs(&list, ts.URL+"/api/v1/jobs"); err != nil {
		t.Fatalf("listJobs failed: %v", err)
	}
	if !strings.Contains(list.String(), job.ID) {
		t.Errorf("Job missing from list:\n%s", list.String())
	}

	if err := getJobStatus(&list, ts.URL+"/api/v1/jobs/unknown", "unknown"); err == nil ||
		!strings.Contains(err.Error(), "job not found") {
		t.Errorf("Expected not found error, got %v", err)
	}
	if _, err := submitJob(ts.URL, store.JobConfig{ImagePath: imgPath}); err == nil {
		t.Error("Expected rejection without a mask path")
	}
}
