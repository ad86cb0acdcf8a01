package frame

import (
	"image"

	"golang.org/x/image/draw"
)

// Mask flag values. Any nonzero byte marks a valid source pixel.
const (
	Fill  uint8 = 0x00
	Valid uint8 = 0xFF
)

// Mask marks pixels to synthesize (0) and pixels usable as source (nonzero).
type Mask struct {
	Grid[uint8]
}

// NewMask returns a mask of the given size with every pixel valid.
func NewMask(width, height int) *Mask {
	m := &Mask{Grid: *NewGrid[uint8](width, height)}
	m.SetAll(Valid)
	return m
}

// Fillable reports whether (x, y) is inside the mask and marked for filling.
func (m *Mask) Fillable(x, y int) bool {
	return m.Contains(x, y) && m.Data[y*m.Stride+x] == Fill
}

// ValidAt reports whether (x, y) is inside the mask and usable as source.
func (m *Mask) ValidAt(x, y int) bool {
	return m.Contains(x, y) && m.Data[y*m.Stride+x] != Fill
}

// SetFill marks (x, y) for filling.
func (m *Mask) SetFill(x, y int) {
	m.Set(x, y, Fill)
}

// FillRect marks every pixel of r (clipped to the mask) for filling.
func (m *Mask) FillRect(r image.Rectangle) {
	r = r.Intersect(image.Rect(0, 0, m.Width, m.Height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Data[y*m.Stride+x] = Fill
		}
	}
}

// CountFill returns the number of pixels marked for filling.
func (m *Mask) CountFill() int {
	n := 0
	for y := 0; y < m.Height; y++ {
		for _, v := range m.Row(y) {
			if v == Fill {
				n++
			}
		}
	}
	return n
}

// Bounds returns the smallest rectangle containing every fill pixel, or an
// empty rectangle when nothing is marked.
func (m *Mask) Bounds() image.Rectangle {
	var r image.Rectangle
	for y := 0; y < m.Height; y++ {
		for x, v := range m.Row(y) {
			if v == Fill {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	c := &Mask{Grid: m.Grid}
	c.Data = append([]uint8(nil), m.Data...)
	return c
}

// Half returns the mask downsampled by two. A coarse pixel is marked for
// filling when any of the fine pixels it covers is.
func (m *Mask) Half() *Mask {
	out := NewMask(m.Width/2, m.Height/2)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					if m.Fillable(2*x+dx, 2*y+dy) {
						out.Data[y*out.Stride+x] = Fill
					}
				}
			}
		}
	}
	return out
}

// Dilate returns a copy whose fill region is grown by radius pixels using a
// square structuring element.
func (m *Mask) Dilate(radius int) *Mask {
	out := m.Clone()
	if radius <= 0 {
		return out
	}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !m.Fillable(x, y) {
				continue
			}
			for yy := max(0, y-radius); yy <= min(m.Height-1, y+radius); yy++ {
				row := out.Data[yy*out.Stride:]
				for xx := max(0, x-radius); xx <= min(m.Width-1, x+radius); xx++ {
					row[xx] = Fill
				}
			}
		}
	}
	return out
}

// MaskFromImage builds a mask from an image where bright pixels (luminance at
// or above threshold) mark the region to fill.
func MaskFromImage(img image.Image, threshold uint8) *Mask {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)

	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		src := gray.Pix[y*gray.Stride:]
		row := m.Row(y)
		for x := range row {
			if src[x] >= threshold {
				row[x] = Fill
			}
		}
	}
	return m
}

// ToImage renders the mask as a grayscale image with the fill region white.
func (m *Mask) ToImage() *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		dst := gray.Pix[y*gray.Stride:]
		for x, v := range m.Row(y) {
			if v == Fill {
				dst[x] = 0xFF
			}
		}
	}
	return gray
}
