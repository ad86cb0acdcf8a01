package synth

import (
	"fmt"

	"github.com/cwbudde/holefill/internal/frame"
)

// SourcePolicy decides which cells need a correspondence and which patch
// centres may serve as sources. Implementations are read-only and safe for
// concurrent use.
type SourcePolicy interface {
	Size() (width, height int)
	PatchSize() int
	// Fillable reports whether (x, y) is marked for filling and its patch
	// fits inside the image.
	Fillable(x, y int) bool
	// ValidSource reports whether the patch centred at (x, y) fits inside
	// the image and contains no excluded pixel.
	ValidSource(x, y int) bool
}

// inset is the inclusive range of patch centres whose footprint fits the
// image.
type inset struct {
	minX, minY, maxX, maxY int
}

func newInset(width, height, patchSize int) inset {
	h := patchSize / 2
	return inset{minX: h, minY: h, maxX: width - 1 - h, maxY: height - 1 - h}
}

func (r inset) empty() bool {
	return r.maxX < r.minX || r.maxY < r.minY
}

func (r inset) contains(x, y int) bool {
	return x >= r.minX && x <= r.maxX && y >= r.minY && y <= r.maxY
}

func (r inset) clamp(x, y int) (int, int) {
	return max(r.minX, min(x, r.maxX)), max(r.minY, min(y, r.maxY))
}

// FootprintPolicy scans the whole patch footprint in the mask for every
// source candidate.
type FootprintPolicy struct {
	mask      *frame.Mask
	patchSize int
	in        inset
}

// NewFootprintPolicy returns a policy that accepts a source only when every
// mask pixel under its footprint is valid.
func NewFootprintPolicy(mask *frame.Mask, patchSize int) (*FootprintPolicy, error) {
	if err := checkMask(mask); err != nil {
		return nil, err
	}
	if err := checkPatchSize(patchSize); err != nil {
		return nil, err
	}
	return &FootprintPolicy{
		mask:      mask,
		patchSize: patchSize,
		in:        newInset(mask.Width, mask.Height, patchSize),
	}, nil
}

func (p *FootprintPolicy) Size() (int, int) { return p.mask.Width, p.mask.Height }
func (p *FootprintPolicy) PatchSize() int   { return p.patchSize }

func (p *FootprintPolicy) Fillable(x, y int) bool {
	return p.in.contains(x, y) && p.mask.Fillable(x, y)
}

func (p *FootprintPolicy) ValidSource(x, y int) bool {
	if !p.in.contains(x, y) {
		return false
	}
	h := p.patchSize / 2
	for yy := y - h; yy <= y+h; yy++ {
		for xx := x - h; xx <= x+h; xx++ {
			if !p.mask.ValidAt(xx, yy) {
				return false
			}
		}
	}
	return true
}

// PatchMaskPolicy precomputes source validity for every centre from a
// summed-area table, so each candidate check is a single lookup. An optional
// search mask excludes additional pixels from sources without making them
// targets.
type PatchMaskPolicy struct {
	mask      *frame.Mask
	patchSize int
	in        inset
	valid     *frame.Grid[bool]
}

// NewPatchMaskPolicy builds the per-centre validity table. search may be
// nil; otherwise it must match mask in size and its fill pixels are excluded
// from sources.
func NewPatchMaskPolicy(mask, search *frame.Mask, patchSize int) (*PatchMaskPolicy, error) {
	if err := checkMask(mask); err != nil {
		return nil, err
	}
	if err := checkPatchSize(patchSize); err != nil {
		return nil, err
	}
	if search != nil {
		if err := checkMask(search); err != nil {
			return nil, fmt.Errorf("search mask: %w", err)
		}
		if err := checkSameSize(mask.Width, mask.Height, search.Width, search.Height, "search mask"); err != nil {
			return nil, err
		}
	}

	w, h := mask.Width, mask.Height
	// sat(x, y) counts excluded pixels in [0, x) x [0, y).
	sat := frame.NewGrid[int32](w+1, h+1)
	for y := 0; y < h; y++ {
		var rowSum int32
		for x := 0; x < w; x++ {
			if mask.Fillable(x, y) || (search != nil && search.Fillable(x, y)) {
				rowSum++
			}
			sat.Set(x+1, y+1, sat.At(x+1, y)+rowSum)
		}
	}

	in := newInset(w, h, patchSize)
	valid := frame.NewGrid[bool](w, h)
	half := patchSize / 2
	if !in.empty() {
		for y := in.minY; y <= in.maxY; y++ {
			y0, y1 := y-half, y+half+1
			for x := in.minX; x <= in.maxX; x++ {
				x0, x1 := x-half, x+half+1
				blocked := sat.At(x1, y1) - sat.At(x0, y1) - sat.At(x1, y0) + sat.At(x0, y0)
				valid.Set(x, y, blocked == 0)
			}
		}
	}

	return &PatchMaskPolicy{mask: mask, patchSize: patchSize, in: in, valid: valid}, nil
}

func (p *PatchMaskPolicy) Size() (int, int) { return p.mask.Width, p.mask.Height }
func (p *PatchMaskPolicy) PatchSize() int   { return p.patchSize }

func (p *PatchMaskPolicy) Fillable(x, y int) bool {
	return p.in.contains(x, y) && p.mask.Fillable(x, y)
}

func (p *PatchMaskPolicy) ValidSource(x, y int) bool {
	return p.valid.Contains(x, y) && p.valid.At(x, y)
}

func checkPolicy(policy SourcePolicy) error {
	if policy == nil {
		return fmt.Errorf("%w: source policy", ErrNilInput)
	}
	return checkPatchSize(policy.PatchSize())
}
