package synth

import (
	"image"
	"math/rand"
	"testing"

	"github.com/cwbudde/holefill/internal/frame"
)

// gradientFrame returns a gray frame whose value rises from 0 to 255 left to
// right.
func gradientFrame(w, h int) *frame.Frame {
	f := frame.NewFrame(w, h, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Set(x, y, 0, uint8((x*255+(w-1)/2)/(w-1)))
		}
	}
	return f
}

func uniformFrame(w, h, channels int, v uint8) *frame.Frame {
	f := frame.NewFrame(w, h, channels)
	for i := range f.Pix {
		f.Pix[i] = v
	}
	return f
}

func noiseFrame(w, h, channels int, seed int64) *frame.Frame {
	rng := rand.New(rand.NewSource(seed))
	f := frame.NewFrame(w, h, channels)
	for i := range f.Pix {
		f.Pix[i] = uint8(rng.Intn(256))
	}
	return f
}

func holeMask(w, h int, hole image.Rectangle) *frame.Mask {
	m := frame.NewMask(w, h)
	m.FillRect(hole)
	return m
}

func centeredHole(w, h, size int) image.Rectangle {
	x0, y0 := (w-size)/2, (h-size)/2
	return image.Rect(x0, y0, x0+size, y0+size)
}

// footprintValid scans the mask directly, independent of any policy.
func footprintValid(m *frame.Mask, x, y, patchSize int) bool {
	h := patchSize / 2
	for yy := y - h; yy <= y+h; yy++ {
		for xx := x - h; xx <= x+h; xx++ {
			if !m.ValidAt(xx, yy) {
				return false
			}
		}
	}
	return true
}

func mustFootprint(t *testing.T, m *frame.Mask, patchSize int) *FootprintPolicy {
	t.Helper()
	p, err := NewFootprintPolicy(m, patchSize)
	if err != nil {
		t.Fatalf("NewFootprintPolicy: %v", err)
	}
	return p
}

func fieldsEqual(t *testing.T, a, b *Field) {
	t.Helper()
	if a.Width() != b.Width() || a.Height() != b.Height() {
		t.Fatalf("size %dx%d vs %dx%d", a.Width(), a.Height(), b.Width(), b.Height())
	}
	for y := 0; y < a.Height(); y++ {
		for x := 0; x < a.Width(); x++ {
			if pa, pb := a.At(x, y), b.At(x, y); pa != pb {
				t.Fatalf("cell (%d, %d): %+v vs %+v", x, y, pa, pb)
			}
		}
	}
}
