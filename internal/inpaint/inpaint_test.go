package inpaint

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/holefill/internal/frame"
	"github.com/cwbudde/holefill/internal/parallel"
	"github.com/cwbudde/holefill/internal/synth"
)

// stripes returns an RGB frame of vertical colour bands, 8 pixels wide.
func stripes(w, h int) *frame.Frame {
	f := frame.NewFrame(w, h, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/8)%2 == 0 {
				copy(f.Pixel(x, y), []uint8{200, 40, 40})
			} else {
				copy(f.Pixel(x, y), []uint8{30, 60, 180})
			}
		}
	}
	return f
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.Iterations = 3
	opts.CoarsestIterations = 4
	opts.Convergence.Enabled = false
	return opts
}

func TestBuildPyramid(t *testing.T) {
	img := stripes(128, 96)
	mask := frame.NewMask(128, 96)
	mask.FillRect(image.Rect(50, 40, 70, 56))

	levels := BuildPyramid(img, mask, 16, 6)
	require.Len(t, levels, 3, "96 -> 48 -> 24, then 12 is below the minimum")
	assert.Same(t, img, levels[0].Frame)
	assert.Equal(t, 32, levels[2].Frame.Width)
	assert.Equal(t, 24, levels[2].Mask.Height)
	assert.Positive(t, levels[2].Mask.CountFill())

	assert.Len(t, BuildPyramid(img, mask, 16, 1), 1)
	assert.Len(t, BuildPyramid(stripes(127, 96), frame.NewMask(127, 96), 16, 6), 1, "odd width cannot halve")
}

func TestFill_PreservesValidPixels(t *testing.T) {
	img := stripes(96, 64)
	mask := frame.NewMask(96, 64)
	hole := image.Rect(40, 24, 52, 36)
	mask.FillRect(hole)

	corrupted := img.Clone()
	for y := hole.Min.Y; y < hole.Max.Y; y++ {
		for x := hole.Min.X; x < hole.Max.X; x++ {
			copy(corrupted.Pixel(x, y), []uint8{0, 0, 0})
		}
	}

	var updates int
	opts := fastOptions()
	opts.Progress = func(Progress) { updates++ }

	pool := parallel.NewPool(3)
	defer pool.Close()
	p, err := New(opts, pool)
	require.NoError(t, err)

	res, err := p.Fill(context.Background(), corrupted, mask)
	require.NoError(t, err)
	require.NotNil(t, res.Field)
	assert.Positive(t, updates)
	assert.NotEmpty(t, res.Levels)
	assert.True(t, res.Levels[len(res.Levels)-1].Refinement)

	var sqErr float64
	for y := 0; y < 64; y++ {
		for x := 0; x < 96; x++ {
			got, want := res.Frame.Pixel(x, y), img.Pixel(x, y)
			if !mask.Fillable(x, y) {
				require.Equal(t, corrupted.Pixel(x, y), got, "valid pixel (%d, %d) changed", x, y)
				continue
			}
			for c := range got {
				d := float64(got[c]) - float64(want[c])
				sqErr += d * d
			}
		}
	}
	rmse := math.Sqrt(sqErr / float64(hole.Dx()*hole.Dy()*3))
	// Leaving the hole black gives an RMSE above 100.
	assert.Less(t, rmse, 90.0)
}

func TestFill_EmptyMask(t *testing.T) {
	img := stripes(32, 32)
	p, err := New(fastOptions(), nil)
	require.NoError(t, err)

	res, err := p.Fill(context.Background(), img, frame.NewMask(32, 32))
	require.NoError(t, err)
	assert.Equal(t, img.Pix, res.Frame.Pix)
	assert.Empty(t, res.Levels)
}

func TestFill_Cancelled(t *testing.T) {
	img := stripes(64, 64)
	mask := frame.NewMask(64, 64)
	mask.FillRect(image.Rect(20, 20, 30, 30))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := New(fastOptions(), nil)
	require.NoError(t, err)
	_, err = p.Fill(ctx, img, mask)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFill_LogsHoleBounds(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	img := stripes(64, 64)
	mask := frame.NewMask(64, 64)
	mask.FillRect(image.Rect(20, 22, 30, 27))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err := New(fastOptions(), nil)
	require.NoError(t, err)
	_, err = p.Fill(ctx, img, mask)
	require.ErrorIs(t, err, context.Canceled)

	assert.Contains(t, buf.String(), "hole=(20,22)-(30,27)")
}

func TestFill_SizeMismatch(t *testing.T) {
	p, err := New(fastOptions(), nil)
	require.NoError(t, err)
	_, err = p.Fill(context.Background(), stripes(32, 32), frame.NewMask(16, 32))
	assert.ErrorIs(t, err, synth.ErrSizeMismatch)
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		want   error
	}{
		{"iterations", func(o *Options) { o.Iterations = 0 }, ErrInvalidOptions},
		{"offset", func(o *Options) { o.Offset = 2 }, synth.ErrInvalidOffset},
		{"min size", func(o *Options) { o.MinSize = 3 }, ErrInvalidOptions},
		{"patch", func(o *Options) { o.Params.PatchSize = 6 }, synth.ErrInvalidPatchSize},
		{"radius", func(o *Options) { o.ProtectRadius = -1 }, ErrInvalidOptions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			err := opts.Validate()
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	assert.NoError(t, DefaultOptions().Validate())
}

func TestRecompose(t *testing.T) {
	img := stripes(64, 48)
	mask := frame.NewMask(64, 48)
	mask.FillRect(image.Rect(28, 20, 36, 28))

	p, err := New(fastOptions(), nil)
	require.NoError(t, err)
	res, err := p.Fill(context.Background(), img, mask)
	require.NoError(t, err)

	out, err := Recompose(img, mask, res.Field, 5)
	require.NoError(t, err)
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			if !mask.Fillable(x, y) {
				require.Equal(t, img.Pixel(x, y), out.Pixel(x, y))
			}
		}
	}

	_, err = Recompose(img, mask, res.Field, 2)
	assert.ErrorIs(t, err, synth.ErrInvalidOffset)
}

func TestConvergenceTracker(t *testing.T) {
	c := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 2, Threshold: 0.1})
	assert.False(t, c.Update(100))
	assert.False(t, c.Update(50))
	assert.False(t, c.Update(48))
	assert.True(t, c.Update(47))
	assert.Equal(t, 47.0, c.BestCost())
	assert.Equal(t, []float64{100, 50, 48, 47}, c.History())

	off := NewConvergenceTracker(ConvergenceConfig{})
	for i := 0; i < 5; i++ {
		assert.False(t, off.Update(1))
	}

	zero := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 1, Threshold: 0.01})
	assert.False(t, zero.Update(0))
	assert.True(t, zero.Update(0))
}
