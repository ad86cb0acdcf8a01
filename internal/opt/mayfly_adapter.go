package opt

import (
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the Mayfly library to conform to the Optimizer interface.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter. Mayfly needs a
// population of at least 20.
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  max(popSize, 20),
		seed:     seed,
	}
}

// Run executes the Mayfly optimization. The library takes one scalar bound
// for all dimensions, so the search runs in the unit cube and each point is
// mapped onto [lower[i], upper[i]] before evaluation.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	denorm := func(u []float64) []float64 {
		x := make([]float64, dim)
		for i := range x {
			t := min(max(u[i], 0), 1)
			x[i] = lower[i] + t*(upper[i]-lower[i])
		}
		return x
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(u []float64) float64 { return eval(denorm(u)) }
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		slog.Warn("Mayfly optimization failed, returning box centre", "error", err)
		centre := make([]float64, dim)
		for i := range centre {
			centre[i] = 0.5
		}
		x := denorm(centre)
		return x, eval(x)
	}

	return denorm(result.GlobalBest.Position), result.GlobalBest.Cost
}
