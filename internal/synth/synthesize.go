package synth

import (
	"fmt"
	"math"

	"github.com/cwbudde/holefill/internal/frame"
)

// Synthesize reconstructs the image from a field by weighted voting. Every
// fillable cell on the offset grid with a known patch votes its source
// patch's colours onto its own footprint, weighted by
// exp(-sqrt(cost / (channels*255^2))). A pixel with votes becomes
//
//	(count*weightedMean + (area-count)*original) / area
//
// where area = (patchSize/offset)^2; pixels without votes keep their
// original value. img is not modified.
func Synthesize(field *Field, img *frame.Frame, mask *frame.Mask, patchSize, offset int) (*frame.Frame, error) {
	if field == nil {
		return nil, fmt.Errorf("%w: field", ErrNilInput)
	}
	if err := checkFrame(img); err != nil {
		return nil, err
	}
	if err := checkMask(mask); err != nil {
		return nil, err
	}
	if err := checkPatchSize(patchSize); err != nil {
		return nil, err
	}
	if offset <= 0 || patchSize%offset != 0 {
		return nil, fmt.Errorf("%w: offset %d, patch size %d", ErrInvalidOffset, offset, patchSize)
	}
	if err := checkSameSize(img.Width, img.Height, mask.Width, mask.Height, "frame and mask"); err != nil {
		return nil, err
	}
	if err := checkSameSize(img.Width, img.Height, field.width, field.height, "frame and field"); err != nil {
		return nil, err
	}

	w, h, ch := img.Width, img.Height, img.Channels
	half := patchSize / 2
	in := newInset(w, h, patchSize)
	out := img.Clone()
	if in.empty() {
		return out, nil
	}

	values := frame.NewGrid[float64](w*ch, h)
	weights := frame.NewGrid[float64](w, h)
	counts := frame.NewGrid[uint32](w, h)
	norm := float64(ch) * 255 * 255

	for y := in.minY; y <= in.maxY; y += offset {
		for x := in.minX; x <= in.maxX; x += offset {
			if !mask.Fillable(x, y) {
				continue
			}
			p := field.At(x, y)
			if !p.Known() {
				continue
			}
			sx, sy := p.Source()
			if !in.contains(sx, sy) {
				continue
			}
			cost, _ := p.Cost().Value()
			weight := math.Exp(-math.Sqrt(float64(cost) / norm))

			for dy := -half; dy <= half; dy++ {
				src := img.Pix[(sy+dy)*img.Stride+(sx-half)*ch:]
				vrow := values.Row(y + dy)[(x-half)*ch:]
				wrow := weights.Row(y + dy)[x-half:]
				nrow := counts.Row(y + dy)[x-half:]
				for i := 0; i < patchSize; i++ {
					for c := 0; c < ch; c++ {
						vrow[i*ch+c] += weight * float64(src[i*ch+c])
					}
					wrow[i] += weight
					nrow[i]++
				}
			}
		}
	}

	area := float64(patchSize * patchSize / (offset * offset))
	for y := 0; y < h; y++ {
		vrow, wrow, nrow := values.Row(y), weights.Row(y), counts.Row(y)
		for x := 0; x < w; x++ {
			n := float64(nrow[x])
			// A zero weight sum with votes is underflow; treat as no votes.
			if n == 0 || wrow[x] == 0 {
				continue
			}
			keep := max(area-n, 0)
			px := out.Pixel(x, y)
			for c := 0; c < ch; c++ {
				v := (n*vrow[x*ch+c]/wrow[x] + keep*float64(px[c])) / (n + keep)
				px[c] = clampUint8(v)
			}
		}
	}
	return out, nil
}

func clampUint8(v float64) uint8 {
	v = math.Round(v)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
