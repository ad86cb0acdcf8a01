package inpaint

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines when a level stops iterating early.
type ConvergenceConfig struct {
	// Enabled controls whether early stopping is active
	Enabled bool

	// Patience is the number of iterations without significant improvement
	// tolerated before the level stops
	Patience int

	// Threshold is the minimum relative decrease of the mean field cost that
	// counts as progress, e.g. 0.01 = 1%
	Threshold float64
}

// DefaultConvergenceConfig returns patience 2 at a 1% threshold.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  2,
		Threshold: 0.01,
	}
}

// ConvergenceTracker watches the mean field cost of one pyramid level.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	history         []float64
	best            float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a tracker with the given config.
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		best:            math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records the mean cost after an iteration and reports whether the
// level has converged.
func (c *ConvergenceTracker) Update(cost float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.history = append(c.history, cost)
	c.best = min(c.best, cost)

	if len(c.history) == 1 {
		c.lastSignificant = cost
		return false
	}

	// A zero cost cannot improve further; the NaN from 0/0 counts as stale.
	improvement := (c.lastSignificant - cost) / c.lastSignificant
	if improvement >= c.config.Threshold {
		c.lastSignificant = cost
		c.staleCount = 0
		return false
	}

	c.staleCount++
	slog.Debug("No significant cost improvement",
		"cost", cost,
		"last_significant", c.lastSignificant,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)
	return c.staleCount >= c.config.Patience
}

// BestCost returns the lowest cost seen so far.
func (c *ConvergenceTracker) BestCost() float64 {
	return c.best
}

// History returns a copy of all recorded costs.
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.history...)
}
