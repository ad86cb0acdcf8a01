// Package frame holds the raster types the solver works on: a generic
// strided grid, 8-bit interleaved frames and fill masks.
package frame

import "fmt"

// Grid is a row-major 2D buffer with an explicit row stride. Stride is
// measured in elements and may exceed Width.
type Grid[T any] struct {
	Width  int
	Height int
	Stride int
	Data   []T
}

// NewGrid allocates a zeroed grid with Stride == Width.
func NewGrid[T any](width, height int) *Grid[T] {
	return &Grid[T]{
		Width:  width,
		Height: height,
		Stride: width,
		Data:   make([]T, width*height),
	}
}

// Contains reports whether (x, y) lies inside the grid.
func (g *Grid[T]) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

// At returns the element at (x, y). It panics outside the grid.
func (g *Grid[T]) At(x, y int) T {
	if !g.Contains(x, y) {
		panic(fmt.Sprintf("frame: At(%d, %d) outside %dx%d grid", x, y, g.Width, g.Height))
	}
	return g.Data[y*g.Stride+x]
}

// Set stores v at (x, y). It panics outside the grid.
func (g *Grid[T]) Set(x, y int, v T) {
	if !g.Contains(x, y) {
		panic(fmt.Sprintf("frame: Set(%d, %d) outside %dx%d grid", x, y, g.Width, g.Height))
	}
	g.Data[y*g.Stride+x] = v
}

// Row returns the Width elements of row y without padding.
func (g *Grid[T]) Row(y int) []T {
	start := y * g.Stride
	return g.Data[start : start+g.Width]
}

// SetAll sets every element inside the grid to v.
func (g *Grid[T]) SetAll(v T) {
	for y := 0; y < g.Height; y++ {
		row := g.Row(y)
		for x := range row {
			row[x] = v
		}
	}
}
