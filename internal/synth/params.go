package synth

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/holefill/internal/frame"
	"github.com/cwbudde/holefill/internal/metric"
)

// Configuration errors. Every entry point checks its inputs before touching
// any output and returns one of these, wrapped with context.
var (
	ErrNilInput           = errors.New("nil input")
	ErrInvalidPatchSize   = errors.New("patch size must be odd and at most 63")
	ErrInvalidFrame       = errors.New("malformed frame")
	ErrSizeMismatch       = errors.New("dimension mismatch")
	ErrImageTooLarge      = errors.New("image dimension exceeds 65535")
	ErrInvalidOffset      = errors.New("offset must be positive and divide the patch size")
	ErrInvalidIterations  = errors.New("iteration count must not be negative")
	ErrInvalidSearchSteps = errors.New("search steps must be between 1 and 12")
	ErrInvalidMetric      = errors.New("unknown metric kind")
)

// MaxSearchSteps is the length of the random search radius schedule.
const MaxSearchSteps = 12

// searchAreaFactors scales the image extent for each random search step.
var searchAreaFactors = func() [MaxSearchSteps]float64 {
	var f [MaxSearchSteps]float64
	for k := range f {
		f[k] = math.Ldexp(1, -k)
	}
	return f
}()

// Params configures the solver.
type Params struct {
	// PatchSize is the odd side length of compared patches.
	PatchSize int
	// Metric selects the patch dissimilarity.
	Metric metric.Kind
	// SpatialTiebreak adds the squared source distance to every comparison.
	SpatialTiebreak bool
	// SearchSteps is the number of random search candidates per cell visit,
	// each at half the radius of the previous one.
	SearchSteps int
}

// DefaultParams returns 5x5 SSD matching with the spatial tiebreak and eight
// search steps.
func DefaultParams() Params {
	return Params{
		PatchSize:       5,
		Metric:          metric.SSD,
		SpatialTiebreak: true,
		SearchSteps:     8,
	}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if err := checkPatchSize(p.PatchSize); err != nil {
		return err
	}
	if !p.Metric.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMetric, int(p.Metric))
	}
	if p.SearchSteps < 1 || p.SearchSteps > MaxSearchSteps {
		return fmt.Errorf("%w: got %d", ErrInvalidSearchSteps, p.SearchSteps)
	}
	return nil
}

func checkPatchSize(size int) error {
	if size <= 0 || size%2 == 0 || size > metric.MaxPatchSize {
		return fmt.Errorf("%w: got %d", ErrInvalidPatchSize, size)
	}
	return nil
}

func checkDimensions(width, height int) error {
	if width > math.MaxUint16 || height > math.MaxUint16 {
		return fmt.Errorf("%w: %dx%d", ErrImageTooLarge, width, height)
	}
	return nil
}

func checkFrame(f *frame.Frame) error {
	if f == nil {
		return fmt.Errorf("%w: frame", ErrNilInput)
	}
	if f.Channels != 1 && f.Channels != 3 {
		return fmt.Errorf("%w: %d channels", ErrInvalidFrame, f.Channels)
	}
	if f.Width <= 0 || f.Height <= 0 || f.Stride < f.Width*f.Channels ||
		len(f.Pix) < (f.Height-1)*f.Stride+f.Width*f.Channels {
		return fmt.Errorf("%w: %dx%d stride %d with %d bytes", ErrInvalidFrame, f.Width, f.Height, f.Stride, len(f.Pix))
	}
	return checkDimensions(f.Width, f.Height)
}

func checkMask(m *frame.Mask) error {
	if m == nil {
		return fmt.Errorf("%w: mask", ErrNilInput)
	}
	if m.Width <= 0 || m.Height <= 0 || m.Stride < m.Width ||
		len(m.Data) < (m.Height-1)*m.Stride+m.Width {
		return fmt.Errorf("%w: mask %dx%d stride %d", ErrInvalidFrame, m.Width, m.Height, m.Stride)
	}
	return checkDimensions(m.Width, m.Height)
}

func checkSameSize(w1, h1, w2, h2 int, what string) error {
	if w1 != w2 || h1 != h2 {
		return fmt.Errorf("%w: %s %dx%d vs %dx%d", ErrSizeMismatch, what, w1, h1, w2, h2)
	}
	return nil
}
