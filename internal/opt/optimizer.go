// Package opt provides black-box minimisers used to tune solver settings.
package opt

// Optimizer defines an optimization algorithm interface
type Optimizer interface {
	// Run minimises eval over the box [lower, upper] of the given
	// dimensionality and returns the best point and its cost.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}
