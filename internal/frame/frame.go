package frame

import (
	"fmt"
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Frame is an 8-bit image with interleaved channels. Stride is in bytes and
// may exceed Width*Channels.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Stride   int
	Pix      []uint8
}

// NewFrame allocates a zeroed frame without row padding.
func NewFrame(width, height, channels int) *Frame {
	return &Frame{
		Width:    width,
		Height:   height,
		Channels: channels,
		Stride:   width * channels,
		Pix:      make([]uint8, width*height*channels),
	}
}

// Offset returns the index of the first channel of pixel (x, y).
func (f *Frame) Offset(x, y int) int {
	return y*f.Stride + x*f.Channels
}

// Contains reports whether (x, y) lies inside the frame.
func (f *Frame) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.Width && y < f.Height
}

// At returns channel c of pixel (x, y). It panics outside the frame.
func (f *Frame) At(x, y, c int) uint8 {
	if !f.Contains(x, y) || c < 0 || c >= f.Channels {
		panic(fmt.Sprintf("frame: At(%d, %d, %d) outside %dx%dx%d frame", x, y, c, f.Width, f.Height, f.Channels))
	}
	return f.Pix[f.Offset(x, y)+c]
}

// Set stores v in channel c of pixel (x, y). It panics outside the frame.
func (f *Frame) Set(x, y, c int, v uint8) {
	if !f.Contains(x, y) || c < 0 || c >= f.Channels {
		panic(fmt.Sprintf("frame: Set(%d, %d, %d) outside %dx%dx%d frame", x, y, c, f.Width, f.Height, f.Channels))
	}
	f.Pix[f.Offset(x, y)+c] = v
}

// Pixel returns the channel values of (x, y) as a slice into Pix.
func (f *Frame) Pixel(x, y int) []uint8 {
	o := f.Offset(x, y)
	return f.Pix[o : o+f.Channels]
}

// Clone returns a deep copy with the same stride.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Pix = append([]uint8(nil), f.Pix...)
	return &c
}

// FromImage converts img into a frame with the given channel count (1 or 3).
func FromImage(img image.Image, channels int) (*Frame, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	switch channels {
	case 1:
		gray := image.NewGray(image.Rect(0, 0, w, h))
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
		f := NewFrame(w, h, 1)
		for y := 0; y < h; y++ {
			copy(f.Pix[y*f.Stride:y*f.Stride+w], gray.Pix[y*gray.Stride:])
		}
		return f, nil
	case 3:
		rgba := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
		f := NewFrame(w, h, 3)
		for y := 0; y < h; y++ {
			src := rgba.Pix[y*rgba.Stride:]
			dst := f.Pix[y*f.Stride:]
			for x := 0; x < w; x++ {
				dst[x*3+0] = src[x*4+0]
				dst[x*3+1] = src[x*4+1]
				dst[x*3+2] = src[x*4+2]
			}
		}
		return f, nil
	default:
		return nil, fmt.Errorf("frame: unsupported channel count %d", channels)
	}
}

// ToImage converts the frame to an *image.Gray or an opaque *image.NRGBA.
func (f *Frame) ToImage() image.Image {
	r := image.Rect(0, 0, f.Width, f.Height)
	if f.Channels == 1 {
		gray := image.NewGray(r)
		for y := 0; y < f.Height; y++ {
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+f.Width], f.Pix[y*f.Stride:])
		}
		return gray
	}
	out := image.NewNRGBA(r)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			p := f.Pixel(x, y)
			out.SetNRGBA(x, y, color.NRGBA{R: p[0], G: p[1], B: p[2], A: 0xFF})
		}
	}
	return out
}

// Resize returns a resampled copy at the given size using bilinear filtering.
func (f *Frame) Resize(width, height int) *Frame {
	scaled := resize.Resize(uint(width), uint(height), f.ToImage(), resize.Bilinear)
	out, err := FromImage(scaled, f.Channels)
	if err != nil {
		// Channels were already valid for f.
		panic(err)
	}
	return out
}

// Half returns the frame downsampled by two in each dimension.
func (f *Frame) Half() *Frame {
	return f.Resize(f.Width/2, f.Height/2)
}

// UpsampleInto copies pixels of coarse into f for every fill cell of mask,
// using nearest-neighbor lookup. Pixels outside the fill region keep their
// values.
func (f *Frame) UpsampleInto(coarse *Frame, mask *Mask) {
	for y := 0; y < f.Height; y++ {
		cy := min(y*coarse.Height/f.Height, coarse.Height-1)
		for x := 0; x < f.Width; x++ {
			if !mask.Fillable(x, y) {
				continue
			}
			cx := min(x*coarse.Width/f.Width, coarse.Width-1)
			copy(f.Pixel(x, y), coarse.Pixel(cx, cy))
		}
	}
}

// CopyMasked copies pixels of src into f for every fill cell of mask.
func (f *Frame) CopyMasked(src *Frame, mask *Mask) {
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			if mask.Fillable(x, y) {
				copy(f.Pixel(x, y), src.Pixel(x, y))
			}
		}
	}
}
