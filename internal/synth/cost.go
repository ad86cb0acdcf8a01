package synth

import (
	"math"
	"strconv"
)

// MaxCost is the largest storable dissimilarity. Larger values saturate.
const MaxCost = math.MaxUint32 - 2

// Cost is a dissimilarity score that may not have been evaluated yet. The
// zero value is Unknown.
type Cost struct {
	value uint32
	known bool
}

// Unknown marks a cost that was never evaluated. It loses every comparison
// against a known cost.
var Unknown = Cost{}

// CostOf returns a known cost, saturating at MaxCost.
func CostOf(v uint32) Cost {
	return Cost{value: min(v, MaxCost), known: true}
}

// Value returns the score and whether it is known.
func (c Cost) Value() (uint32, bool) {
	return c.value, c.known
}

// IsKnown reports whether the cost was evaluated.
func (c Cost) IsKnown() bool {
	return c.known
}

// Scale multiplies a known cost by f, saturating at MaxCost.
func (c Cost) Scale(f uint32) Cost {
	if !c.known {
		return c
	}
	return CostOf(uint32(min(uint64(c.value)*uint64(f), MaxCost)))
}

func (c Cost) String() string {
	if !c.known {
		return "unknown"
	}
	return strconv.FormatUint(uint64(c.value), 10)
}
