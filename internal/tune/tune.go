// Package tune searches fill settings that best reconstruct known content.
//
// A hole is punched into an image whose true content is known, the hole is
// filled, and the mean squared error inside the hole is the objective. The
// search space is the per-level iteration count, the random search depth
// and the protective radius of the refinement pass.
package tune

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/holefill/internal/frame"
	"github.com/cwbudde/holefill/internal/inpaint"
	"github.com/cwbudde/holefill/internal/opt"
	"github.com/cwbudde/holefill/internal/parallel"
	"github.com/cwbudde/holefill/internal/synth"
)

// ErrEmptyHole is returned when the hole does not overlap the image.
var ErrEmptyHole = errors.New("tune: hole does not overlap the image")

// Bounds of the searched settings, inclusive.
const (
	minIterations    = 1
	maxIterations    = 10
	minRadius        = 0
	maxRadius        = 6
	searchDimensions = 3
)

// Config controls a tuning run.
type Config struct {
	// Base supplies every setting that is not searched.
	Base inpaint.Options

	// Hole is the region punched out of the image. The zero rectangle
	// selects DefaultHole.
	Hole image.Rectangle

	Executor parallel.Executor
}

// Settings is one point of the search space.
type Settings struct {
	Iterations    int `json:"iterations"`
	SearchSteps   int `json:"searchSteps"`
	ProtectRadius int `json:"protectRadius"`
}

// Apply returns base with s applied.
func (s Settings) Apply(base inpaint.Options) inpaint.Options {
	o := base
	o.Iterations = s.Iterations
	o.CoarsestIterations = max(o.CoarsestIterations, s.Iterations)
	o.Params.SearchSteps = s.SearchSteps
	o.ProtectRadius = s.ProtectRadius
	return o
}

// decode rounds a search point to settings inside the bounds.
func decode(x []float64) Settings {
	round := func(v float64, lo, hi int) int {
		return min(max(int(math.Round(v)), lo), hi)
	}
	return Settings{
		Iterations:    round(x[0], minIterations, maxIterations),
		SearchSteps:   round(x[1], 1, synth.MaxSearchSteps),
		ProtectRadius: round(x[2], minRadius, maxRadius),
	}
}

// Result is the outcome of Run.
type Result struct {
	Best    Settings `json:"best"`
	BestMSE float64  `json:"bestMse"`

	// BaseMSE is the error of the untuned base settings
	BaseMSE float64 `json:"baseMse"`

	// Evaluations counts distinct settings that were filled
	Evaluations int           `json:"evaluations"`
	Duration    time.Duration `json:"duration"`
}

// DefaultHole returns a centred rectangle of a quarter of each dimension.
func DefaultHole(width, height int) image.Rectangle {
	w, h := max(width/4, 1), max(height/4, 1)
	x0, y0 := (width-w)/2, (height-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}

// MaskedMSE is the mean squared difference of a and b over the fill
// pixels of mask, averaged over channels. It is 0 for an empty mask.
func MaskedMSE(a, b *frame.Frame, mask *frame.Mask) float64 {
	var sq []float64
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if !mask.Fillable(x, y) {
				continue
			}
			pa, pb := a.Pixel(x, y), b.Pixel(x, y)
			for c := range pa {
				d := float64(pa[c]) - float64(pb[c])
				sq = append(sq, d*d)
			}
		}
	}
	if len(sq) == 0 {
		return 0
	}
	return stat.Mean(sq, nil)
}

// evaluator fills the punched image once per distinct setting.
type evaluator struct {
	ctx   context.Context
	truth *frame.Frame
	input *frame.Frame
	mask  *frame.Mask
	base  inpaint.Options
	exec  parallel.Executor
	cache map[Settings]float64
	err   error
}

func (e *evaluator) mse(s Settings) float64 {
	if v, ok := e.cache[s]; ok {
		return v
	}
	if e.err != nil {
		return math.Inf(1)
	}

	p, err := inpaint.New(s.Apply(e.base), e.exec)
	if err != nil {
		e.err = err
		return math.Inf(1)
	}
	res, err := p.Fill(e.ctx, e.input, e.mask)
	if err != nil {
		e.err = err
		return math.Inf(1)
	}

	v := MaskedMSE(res.Frame, e.truth, e.mask)
	e.cache[s] = v
	slog.Debug("Evaluated settings",
		"iterations", s.Iterations, "search_steps", s.SearchSteps,
		"protect_radius", s.ProtectRadius, "mse", v)
	return v
}

// Run punches cfg.Hole into img and minimises the reconstruction error
// with optimizer. img is not modified.
func Run(ctx context.Context, img *frame.Frame, cfg Config, optimizer opt.Optimizer) (*Result, error) {
	start := time.Now()
	if img == nil || optimizer == nil {
		return nil, fmt.Errorf("%w: image or optimizer", synth.ErrNilInput)
	}
	if err := cfg.Base.Validate(); err != nil {
		return nil, err
	}

	hole := cfg.Hole
	if hole.Empty() {
		hole = DefaultHole(img.Width, img.Height)
	}
	mask := frame.NewMask(img.Width, img.Height)
	mask.FillRect(hole)
	if mask.CountFill() == 0 {
		return nil, ErrEmptyHole
	}

	// The fill must not see the true hole content.
	input := img.Clone()
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if mask.Fillable(x, y) {
				clear(input.Pixel(x, y))
			}
		}
	}

	base := cfg.Base
	base.Progress = nil
	e := &evaluator{
		ctx:   ctx,
		truth: img,
		input: input,
		mask:  mask,
		base:  base,
		exec:  cfg.Executor,
		cache: make(map[Settings]float64),
	}

	baseSettings := Settings{
		Iterations:    base.Iterations,
		SearchSteps:   base.Params.SearchSteps,
		ProtectRadius: base.ProtectRadius,
	}
	baseMSE := e.mse(baseSettings)
	if e.err != nil {
		return nil, e.err
	}
	slog.Info("Tuning started", "hole", hole.String(), "base_mse", baseMSE)

	lower := []float64{minIterations, 1, minRadius}
	upper := []float64{maxIterations, synth.MaxSearchSteps, maxRadius}
	x, _ := optimizer.Run(func(x []float64) float64 {
		return e.mse(decode(x))
	}, lower, upper, searchDimensions)
	if e.err != nil {
		return nil, e.err
	}

	best := decode(x)
	bestMSE := e.mse(best)
	if baseMSE <= bestMSE {
		best, bestMSE = baseSettings, baseMSE
	}

	res := &Result{
		Best:        best,
		BestMSE:     bestMSE,
		BaseMSE:     baseMSE,
		Evaluations: len(e.cache),
		Duration:    time.Since(start),
	}
	slog.Info("Tuning complete",
		"iterations", best.Iterations, "search_steps", best.SearchSteps,
		"protect_radius", best.ProtectRadius, "mse", bestMSE,
		"base_mse", baseMSE, "evaluations", res.Evaluations, "duration", res.Duration)
	return res, nil
}
