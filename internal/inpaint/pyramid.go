package inpaint

import (
	"github.com/cwbudde/holefill/internal/frame"
)

// Level pairs one resolution's frame and mask.
type Level struct {
	Frame *frame.Frame
	Mask  *frame.Mask
}

// BuildPyramid returns levels from finest (index 0) to coarsest. A level is
// halved while both dimensions are even, the halves are at least minSize,
// fewer than maxLevels levels exist and the halved mask keeps some valid
// pixels. Coarse masks mark a pixel for filling if any pixel it covers is.
func BuildPyramid(img *frame.Frame, mask *frame.Mask, minSize, maxLevels int) []Level {
	levels := []Level{{Frame: img, Mask: mask}}
	for len(levels) < maxLevels {
		cur := levels[len(levels)-1]
		w, h := cur.Frame.Width, cur.Frame.Height
		if w%2 != 0 || h%2 != 0 || w/2 < minSize || h/2 < minSize {
			break
		}
		m := cur.Mask.Half()
		if m.CountFill() == m.Width*m.Height {
			break
		}
		levels = append(levels, Level{Frame: cur.Frame.Half(), Mask: m})
	}
	return levels
}
