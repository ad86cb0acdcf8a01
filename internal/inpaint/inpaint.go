// Package inpaint drives the correspondence solver over an image pyramid to
// fill masked regions.
package inpaint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/holefill/internal/frame"
	"github.com/cwbudde/holefill/internal/parallel"
	"github.com/cwbudde/holefill/internal/synth"
)

// ErrInvalidOptions is returned by New for out-of-range options.
var ErrInvalidOptions = errors.New("invalid inpaint options")

// Options configures a fill.
type Options struct {
	Params synth.Params

	// Iterations is the number of optimize/synthesize rounds per level.
	Iterations int
	// CoarsestIterations replaces Iterations at the coarsest level, where
	// the field starts from random guesses.
	CoarsestIterations int
	// Offset sub-samples the voting grid during synthesis.
	Offset int

	// MinSize stops the pyramid before either dimension drops below it.
	MinSize int
	// MaxLevels bounds the pyramid depth, including the full resolution.
	MaxLevels int

	// Refine adds a final pass at full resolution whose sources also avoid
	// a band of ProtectRadius pixels around the hole.
	Refine        bool
	ProtectRadius int

	Seed        int64
	Convergence ConvergenceConfig

	// Progress, when set, is called after every iteration.
	Progress func(Progress)
}

// DefaultOptions returns the settings used by the CLI when no config file
// is given.
func DefaultOptions() Options {
	return Options{
		Params:             synth.DefaultParams(),
		Iterations:         5,
		CoarsestIterations: 10,
		Offset:             1,
		MinSize:            16,
		MaxLevels:          6,
		Refine:             true,
		ProtectRadius:      2,
		Seed:               1,
		Convergence:        DefaultConvergenceConfig(),
	}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if err := o.Params.Validate(); err != nil {
		return err
	}
	switch {
	case o.Iterations < 1:
		return fmt.Errorf("%w: iterations %d", ErrInvalidOptions, o.Iterations)
	case o.CoarsestIterations < 1:
		return fmt.Errorf("%w: coarsest iterations %d", ErrInvalidOptions, o.CoarsestIterations)
	case o.Offset < 1 || o.Params.PatchSize%o.Offset != 0:
		return fmt.Errorf("%w: offset %d for patch size %d", synth.ErrInvalidOffset, o.Offset, o.Params.PatchSize)
	case o.MinSize < o.Params.PatchSize:
		return fmt.Errorf("%w: min size %d below patch size", ErrInvalidOptions, o.MinSize)
	case o.MaxLevels < 1:
		return fmt.Errorf("%w: max levels %d", ErrInvalidOptions, o.MaxLevels)
	case o.ProtectRadius < 0:
		return fmt.Errorf("%w: protect radius %d", ErrInvalidOptions, o.ProtectRadius)
	}
	return nil
}

// Progress reports the state after one iteration.
type Progress struct {
	Step      int // pyramid step, 0 = coarsest
	Steps     int
	Width     int
	Height    int
	Iteration int
	Stats     synth.FieldStats
}

// LevelResult summarises one pyramid step.
type LevelResult struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Iterations int     `json:"iterations"`
	MeanCost   float64 `json:"mean_cost"`
	Converged  bool    `json:"converged"`
	Refinement bool    `json:"refinement,omitempty"`
}

// Result is the outcome of Fill.
type Result struct {
	// Frame is the input with the hole replaced; valid pixels are unchanged.
	Frame *frame.Frame
	// Field is the full-resolution correspondence field.
	Field    *synth.Field
	Levels   []LevelResult
	Stats    synth.FieldStats
	Duration time.Duration
}

// Inpainter fills holes with a fixed configuration.
type Inpainter struct {
	opts Options
	exec parallel.Executor
}

// New validates opts. A nil executor runs serially.
func New(opts Options, exec parallel.Executor) (*Inpainter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		exec = parallel.Serial{}
	}
	return &Inpainter{opts: opts, exec: exec}, nil
}

// Options returns the configuration.
func (p *Inpainter) Options() Options {
	return p.opts
}

// Fill synthesises the fill region of mask in img. ctx is checked between
// iterations; a cancelled fill returns ctx.Err().
func (p *Inpainter) Fill(ctx context.Context, img *frame.Frame, mask *frame.Mask) (*Result, error) {
	start := time.Now()
	if img == nil || mask == nil {
		return nil, fmt.Errorf("%w: frame or mask", synth.ErrNilInput)
	}
	if img.Width != mask.Width || img.Height != mask.Height {
		return nil, fmt.Errorf("%w: frame %dx%d, mask %dx%d", synth.ErrSizeMismatch, img.Width, img.Height, mask.Width, mask.Height)
	}

	holes := mask.CountFill()
	if holes == 0 {
		field, err := synth.InitializeUnknown(mask, p.opts.Params.PatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize field: %w", err)
		}
		return &Result{Frame: img.Clone(), Field: field, Duration: time.Since(start)}, nil
	}

	levels := BuildPyramid(img, mask, p.opts.MinSize, p.opts.MaxLevels)
	steps := len(levels)
	if p.opts.Refine {
		steps++
	}
	slog.Info("Starting fill",
		"width", img.Width, "height", img.Height,
		"hole_pixels", holes, "hole", mask.Bounds().String(),
		"levels", len(levels), "patch_size", p.opts.Params.PatchSize)

	res := &Result{}
	coarsest := levels[len(levels)-1]
	work := coarsest.Frame.Clone()
	fillWithMean(work, coarsest.Mask)

	policy, err := synth.NewFootprintPolicy(coarsest.Mask, p.opts.Params.PatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build source policy: %w", err)
	}
	rng := rand.New(rand.NewSource(p.opts.Seed))
	field, err := synth.InitializeRandom(work, policy, p.opts.Params, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize field: %w", err)
	}

	step := 0
	lr, err := p.runLevel(ctx, work, coarsest.Mask, policy, field, p.opts.CoarsestIterations, step, steps)
	if err != nil {
		return nil, err
	}
	res.Levels = append(res.Levels, lr)

	for i := len(levels) - 2; i >= 0; i-- {
		step++
		lvl := levels[i]
		next := lvl.Frame.Clone()
		next.UpsampleInto(work, lvl.Mask)
		work = next

		policy, err = synth.NewFootprintPolicy(lvl.Mask, p.opts.Params.PatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to build source policy: %w", err)
		}
		field, err = synth.Adopt(field, policy, p.exec)
		if err != nil {
			return nil, fmt.Errorf("failed to adopt field at %dx%d: %w", lvl.Frame.Width, lvl.Frame.Height, err)
		}
		lr, err = p.runLevel(ctx, work, lvl.Mask, policy, field, p.opts.Iterations, step, steps)
		if err != nil {
			return nil, err
		}
		res.Levels = append(res.Levels, lr)
	}

	if p.opts.Refine {
		step++
		search := mask.Dilate(p.opts.ProtectRadius)
		refine, err := synth.NewPatchMaskPolicy(mask, search, p.opts.Params.PatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to build refinement policy: %w", err)
		}
		field, err = synth.Adopt(field, refine, p.exec)
		if err != nil {
			return nil, fmt.Errorf("failed to adopt refinement field: %w", err)
		}
		lr, err = p.runLevel(ctx, work, mask, refine, field, p.opts.Iterations, step, steps)
		if err != nil {
			return nil, err
		}
		lr.Refinement = true
		res.Levels = append(res.Levels, lr)
	}

	out := img.Clone()
	out.CopyMasked(work, mask)
	res.Frame = out
	res.Field = field
	res.Stats = synth.Stats(field, mask)
	res.Duration = time.Since(start)

	slog.Info("Fill complete",
		"duration", res.Duration,
		"known", res.Stats.Known,
		"unknown", res.Stats.Unknown,
		"mean_cost", res.Stats.MeanCost)
	return res, nil
}

// runLevel alternates one optimizer iteration with synthesis, writing the
// synthesised hole back into work so later matches see the current
// estimate.
func (p *Inpainter) runLevel(ctx context.Context, work *frame.Frame, mask *frame.Mask, policy synth.SourcePolicy, field *synth.Field, iterations, step, steps int) (LevelResult, error) {
	lr := LevelResult{Width: work.Width, Height: work.Height}
	o, err := synth.NewOptimizer(work, policy, p.opts.Params, p.exec, p.opts.Seed+int64(step)*7919)
	if err != nil {
		return lr, fmt.Errorf("failed to create optimizer: %w", err)
	}
	tracker := NewConvergenceTracker(p.opts.Convergence)

	for it := 0; it < iterations; it++ {
		if err := ctx.Err(); err != nil {
			return lr, err
		}
		if err := o.Optimize(field, 1); err != nil {
			return lr, fmt.Errorf("failed to optimize field: %w", err)
		}
		synthesized, err := synth.Synthesize(field, work, mask, p.opts.Params.PatchSize, p.opts.Offset)
		if err != nil {
			return lr, fmt.Errorf("failed to synthesize: %w", err)
		}
		work.CopyMasked(synthesized, mask)

		stats := synth.Stats(field, mask)
		lr.Iterations = it + 1
		lr.MeanCost = stats.MeanCost
		if p.opts.Progress != nil {
			p.opts.Progress(Progress{
				Step: step, Steps: steps,
				Width: work.Width, Height: work.Height,
				Iteration: it + 1, Stats: stats,
			})
		}
		if tracker.Update(stats.MeanCost) {
			lr.Converged = true
			break
		}
	}

	slog.Debug("Level complete",
		"step", step, "width", work.Width, "height", work.Height,
		"iterations", lr.Iterations, "mean_cost", lr.MeanCost, "converged", lr.Converged)
	return lr, nil
}

// fillWithMean replaces the fill region with the mean colour of the valid
// pixels.
func fillWithMean(f *frame.Frame, mask *frame.Mask) {
	channels := make([][]float64, f.Channels)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			if mask.Fillable(x, y) {
				continue
			}
			for c, v := range f.Pixel(x, y) {
				channels[c] = append(channels[c], float64(v))
			}
		}
	}
	if len(channels[0]) == 0 {
		return
	}
	mean := make([]uint8, f.Channels)
	for c := range channels {
		mean[c] = uint8(stat.Mean(channels[c], nil) + 0.5)
	}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			if mask.Fillable(x, y) {
				copy(f.Pixel(x, y), mean)
			}
		}
	}
}

// Recompose synthesises img's hole from a stored full-resolution field,
// possibly with a different voting offset, and returns the composite.
func Recompose(img *frame.Frame, mask *frame.Mask, field *synth.Field, offset int) (*frame.Frame, error) {
	if img == nil || mask == nil || field == nil {
		return nil, fmt.Errorf("%w: frame, mask or field", synth.ErrNilInput)
	}
	if img.Width != mask.Width || img.Height != mask.Height {
		return nil, fmt.Errorf("%w: frame %dx%d, mask %dx%d", synth.ErrSizeMismatch, img.Width, img.Height, mask.Width, mask.Height)
	}
	work := img.Clone()
	fillWithMean(work, mask)
	synthesized, err := synth.Synthesize(field, work, mask, field.PatchSize(), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize: %w", err)
	}
	out := img.Clone()
	out.CopyMasked(synthesized, mask)
	return out, nil
}
