package synth

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/holefill/internal/frame"
	"github.com/cwbudde/holefill/internal/metric"
)

// randomTrials is the number of validated random draws per cell before
// InitializeRandom falls back to an unchecked one.
const randomTrials = 20

// matcher evaluates the metric between patches of one frame given centres.
type matcher struct {
	pix      []uint8
	stride   int
	channels int
	size     int
	half     int
	kernel   metric.Func
}

func newMatcher(img *frame.Frame, params Params) matcher {
	return matcher{
		pix:      img.Pix,
		stride:   img.Stride,
		channels: img.Channels,
		size:     params.PatchSize,
		half:     params.PatchSize / 2,
		kernel:   metric.Kernel(params.Metric),
	}
}

func (m *matcher) cost(tx, ty, sx, sy int) uint32 {
	a := m.pix[(ty-m.half)*m.stride+(tx-m.half)*m.channels:]
	b := m.pix[(sy-m.half)*m.stride+(sx-m.half)*m.channels:]
	return m.kernel(a, m.stride, b, m.stride, m.channels, m.size)
}

func (m *matcher) patch(tx, ty, sx, sy int) Patch {
	return NewPatch(sx, sy, CostOf(m.cost(tx, ty, sx, sy)), tx, ty)
}

// InitializeUnknown returns a field in which every fillable cell whose patch
// fits inside the image holds an Unknown-cost patch pointing at itself. All
// other cells are empty.
func InitializeUnknown(mask *frame.Mask, patchSize int) (*Field, error) {
	if err := checkMask(mask); err != nil {
		return nil, err
	}
	if err := checkPatchSize(patchSize); err != nil {
		return nil, err
	}

	f := newField(mask.Width, mask.Height, patchSize)
	in := newInset(mask.Width, mask.Height, patchSize)
	for y := in.minY; y <= in.maxY; y++ {
		for x := in.minX; x <= in.maxX; x++ {
			if mask.Fillable(x, y) {
				f.Set(x, y, NewPatch(x, y, Unknown, x, y))
			}
		}
	}
	return f, nil
}

// InitializeRandom assigns every fillable cell a random source centre drawn
// uniformly from the inset. Up to 20 draws are checked against the policy;
// if none is valid, one further draw is accepted unchecked so every
// fillable cell leaves with a source and a cost.
func InitializeRandom(img *frame.Frame, policy SourcePolicy, params Params, rng *rand.Rand) (*Field, error) {
	if err := checkFrame(img); err != nil {
		return nil, err
	}
	if err := checkPolicy(policy); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source", ErrNilInput)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if policy.PatchSize() != params.PatchSize {
		return nil, fmt.Errorf("%w: policy patch size %d, params %d", ErrSizeMismatch, policy.PatchSize(), params.PatchSize)
	}
	pw, ph := policy.Size()
	if err := checkSameSize(img.Width, img.Height, pw, ph, "frame and policy"); err != nil {
		return nil, err
	}

	f := newField(img.Width, img.Height, params.PatchSize)
	in := newInset(img.Width, img.Height, params.PatchSize)
	if in.empty() {
		return f, nil
	}

	m := newMatcher(img, params)
	spanX := in.maxX - in.minX + 1
	spanY := in.maxY - in.minY + 1
	draw := func() (int, int) {
		return in.minX + rng.Intn(spanX), in.minY + rng.Intn(spanY)
	}

	for y := in.minY; y <= in.maxY; y++ {
		for x := in.minX; x <= in.maxX; x++ {
			if !policy.Fillable(x, y) {
				continue
			}
			assigned := false
			for t := 0; t < randomTrials; t++ {
				sx, sy := draw()
				if policy.ValidSource(sx, sy) {
					f.Set(x, y, m.patch(x, y, sx, sy))
					assigned = true
					break
				}
			}
			if !assigned {
				sx, sy := draw()
				f.Set(x, y, m.patch(x, y, sx, sy))
			}
		}
	}
	return f, nil
}
