package synth

import "math"

// Patch is one correspondence: the centre of a source patch, its cost with
// respect to the target cell, and the squared distance between source and
// target used as a tiebreak. Patches are values; replace a cell by storing a
// new one.
type Patch struct {
	sx, sy  uint16
	cost    Cost
	spatial uint64
	present bool
}

// NewPatch returns the correspondence from target (tx, ty) to source
// (sx, sy). Coordinates must fit in 16 bits.
func NewPatch(sx, sy int, cost Cost, tx, ty int) Patch {
	dx := int64(sx - tx)
	dy := int64(sy - ty)
	return Patch{
		sx:      uint16(sx),
		sy:      uint16(sy),
		cost:    cost,
		spatial: uint64(dx*dx + dy*dy),
		present: true,
	}
}

// Empty reports whether the cell holds no correspondence at all.
func (p Patch) Empty() bool { return !p.present }

// Known reports whether the patch holds a source with an evaluated cost.
func (p Patch) Known() bool { return p.present && p.cost.known }

func (p Patch) SourceX() int { return int(p.sx) }
func (p Patch) SourceY() int { return int(p.sy) }

// Source returns the source patch centre.
func (p Patch) Source() (x, y int) { return int(p.sx), int(p.sy) }

func (p Patch) Cost() Cost { return p.cost }

// SpatialCost is the squared Euclidean distance from target to source.
func (p Patch) SpatialCost() uint64 { return p.spatial }

// Score is the quantity minimised by the solver: cost, plus the spatial
// cost when spatial is set. Empty and Unknown patches score MaxUint64.
func (p Patch) Score(spatial bool) uint64 {
	if !p.Known() {
		return math.MaxUint64
	}
	s := uint64(p.cost.value)
	if spatial {
		s += p.spatial
	}
	return s
}

// BetterThan reports whether p scores strictly lower than q.
func (p Patch) BetterThan(q Patch, spatial bool) bool {
	return p.Score(spatial) < q.Score(spatial)
}
