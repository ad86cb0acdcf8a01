package synth

import (
	"fmt"
	"sync/atomic"
)

// Packed cell layout:
//
//	bits  0..15  source x
//	bits 16..31  source y
//	bits 32..63  cost word: 0 empty, unknownWord Unknown, otherwise cost+1
const unknownWord = 0xFFFFFFFF

func encodePatch(p Patch) uint64 {
	if !p.present {
		return 0
	}
	cw := uint64(unknownWord)
	if p.cost.known {
		cw = uint64(p.cost.value) + 1
	}
	return uint64(p.sx) | uint64(p.sy)<<16 | cw<<32
}

func decodePatch(w uint64, tx, ty int) Patch {
	cw := w >> 32
	if cw == 0 {
		return Patch{}
	}
	cost := Unknown
	if cw != unknownWord {
		cost = CostOf(uint32(cw - 1))
	}
	return NewPatch(int(w&0xFFFF), int(w>>16&0xFFFF), cost, tx, ty)
}

// Field is the per-pixel correspondence grid of one pyramid level.
type Field struct {
	width     int
	height    int
	patchSize int
	cells     []atomic.Uint64
}

func newField(width, height, patchSize int) *Field {
	return &Field{
		width:     width,
		height:    height,
		patchSize: patchSize,
		cells:     make([]atomic.Uint64, width*height),
	}
}

func (f *Field) Width() int     { return f.width }
func (f *Field) Height() int    { return f.height }
func (f *Field) PatchSize() int { return f.patchSize }

// Contains reports whether (x, y) is a cell of the field.
func (f *Field) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.width && y < f.height
}

func (f *Field) index(x, y int) int {
	if !f.Contains(x, y) {
		panic(fmt.Sprintf("synth: cell (%d, %d) outside %dx%d field", x, y, f.width, f.height))
	}
	return y*f.width + x
}

// At returns the patch of cell (x, y).
func (f *Field) At(x, y int) Patch {
	return decodePatch(f.cells[f.index(x, y)].Load(), x, y)
}

// Set replaces the patch of cell (x, y). It must not be called while an
// Optimizer or Adopt call is writing the same field.
func (f *Field) Set(x, y int, p Patch) {
	f.cells[f.index(x, y)].Store(encodePatch(p))
}

// Clone returns a snapshot copy of the field.
func (f *Field) Clone() *Field {
	c := newField(f.width, f.height, f.patchSize)
	for i := range f.cells {
		c.cells[i].Store(f.cells[i].Load())
	}
	return c
}

// Band returns a write view restricted to rows [first, first+count).
func (f *Field) Band(first, count int) Band {
	if first < 0 || count < 0 || first+count > f.height {
		panic(fmt.Sprintf("synth: band [%d, %d) outside field of height %d", first, first+count, f.height))
	}
	return Band{field: f, first: first, end: first + count}
}

// Band is the write handle given to one concurrent task. Reads may touch any
// row; writes are confined to the band's rows.
type Band struct {
	field *Field
	first int
	end   int
}

// Rows returns the first row and row count of the band.
func (b Band) Rows() (first, count int) {
	return b.first, b.end - b.first
}

// At reads any cell of the underlying field.
func (b Band) At(x, y int) Patch {
	return b.field.At(x, y)
}

// Store writes a cell inside the band. It panics for rows outside the band.
func (b Band) Store(x, y int, p Patch) {
	if y < b.first || y >= b.end {
		panic(fmt.Sprintf("synth: row %d outside band [%d, %d)", y, b.first, b.end))
	}
	b.field.Set(x, y, p)
}
