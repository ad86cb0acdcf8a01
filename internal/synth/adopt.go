package synth

import (
	"fmt"

	"github.com/cwbudde/holefill/internal/parallel"
)

// adoptAmplification scales costs carried over from a coarser level when
// the resolution changes.
const adoptAmplification = 2

// adoptOffsets lists the coarse cells consulted per target: the
// corresponding cell, then its top, left, right and bottom neighbours.
var adoptOffsets = [5][2]int{{0, 0}, {0, -1}, {-1, 0}, {1, 0}, {0, 1}}

// Adopt seeds a field for the policy's resolution from a coarser field. The
// policy's size must be an integer multiple k of the coarse size; k = 1
// carries a field over unchanged apart from the new mask.
func Adopt(coarse *Field, policy SourcePolicy, exec parallel.Executor) (*Field, error) {
	k, err := checkAdopt(coarse, policy)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		exec = parallel.Serial{}
	}
	w, h := policy.Size()
	fine := newField(w, h, policy.PatchSize())
	exec.RunRows(0, h, max(1, policy.PatchSize()/2), func(first, count int) {
		adoptBand(fine.Band(first, count), coarse, policy, k)
	})
	return fine, nil
}

// AdoptRows clears rows [first, first+count) of fine and adopts them from
// coarse. Rows outside the field are ignored.
func AdoptRows(fine, coarse *Field, policy SourcePolicy, first, count int) error {
	k, err := checkAdopt(coarse, policy)
	if err != nil {
		return err
	}
	if fine == nil {
		return fmt.Errorf("%w: fine field", ErrNilInput)
	}
	w, h := policy.Size()
	if err := checkSameSize(fine.width, fine.height, w, h, "fine field and policy"); err != nil {
		return err
	}
	if fine.patchSize != policy.PatchSize() {
		return fmt.Errorf("%w: fine field patch size %d, policy %d", ErrSizeMismatch, fine.patchSize, policy.PatchSize())
	}
	lo, hi := max(first, 0), min(first+count, h)
	if hi > lo {
		adoptBand(fine.Band(lo, hi-lo), coarse, policy, k)
	}
	return nil
}

func checkAdopt(coarse *Field, policy SourcePolicy) (int, error) {
	if coarse == nil {
		return 0, fmt.Errorf("%w: coarse field", ErrNilInput)
	}
	if err := checkPolicy(policy); err != nil {
		return 0, err
	}
	w, h := policy.Size()
	if err := checkDimensions(w, h); err != nil {
		return 0, err
	}
	if coarse.width == 0 || coarse.height == 0 || w%coarse.width != 0 || h%coarse.height != 0 ||
		w/coarse.width != h/coarse.height || w < coarse.width {
		return 0, fmt.Errorf("%w: %dx%d is not an integer upscale of %dx%d", ErrSizeMismatch, w, h, coarse.width, coarse.height)
	}
	return w / coarse.width, nil
}

func adoptBand(b Band, coarse *Field, policy SourcePolicy, k int) {
	first, count := b.Rows()
	w, h := policy.Size()
	in := newInset(w, h, policy.PatchSize())

	for y := first; y < first+count; y++ {
		cy, oy := y/k, y%k
		for x := 0; x < w; x++ {
			cx, ox := x/k, x%k

			target := policy.Fillable(x, y) ||
				(k == 1 && in.contains(x, y) && !coarse.At(cx, cy).Empty())
			if !target {
				b.Store(x, y, Patch{})
				continue
			}

			b.Store(x, y, adoptCell(coarse, policy, in, x, y, cx, cy, ox, oy, k))
		}
	}
}

func adoptCell(coarse *Field, policy SourcePolicy, in inset, x, y, cx, cy, ox, oy, k int) Patch {
	for _, d := range adoptOffsets {
		nx, ny := cx+d[0], cy+d[1]
		if !coarse.Contains(nx, ny) {
			continue
		}
		q := coarse.At(nx, ny)
		if !q.Known() {
			continue
		}
		// The neighbour's source, moved back by the neighbour's offset,
		// predicts the source of the corresponding coarse cell.
		sx := (q.SourceX()-d[0])*k + ox
		sy := (q.SourceY()-d[1])*k + oy
		if !policy.ValidSource(sx, sy) {
			continue
		}
		cost := q.Cost()
		if k > 1 {
			cost = cost.Scale(adoptAmplification)
		}
		return NewPatch(sx, sy, cost, x, y)
	}

	sx, sy := in.clamp(x, y)
	return NewPatch(sx, sy, Unknown, x, y)
}
