package interfaces

import (
	"stream-manager/src/history"
	"stream-manager/src/models"
)

// -----------------------------------------------------------------------------

// IStrategyConstructor defines the function signature for creating a new
// IStrategy instance from its configured parameters.
type IStrategyConstructor func(params map[string]float64) (IStrategy, error)

// -----------------------------------------------------------------------------

// IStrategy is the single execution contract for strategy algorithms.
// Concrete algorithms (technical indicators, forecasters) live behind it.
type IStrategy interface {
	// GetName returns the registered strategy name
	GetName() string

	// Execute produces one signal per instrument for the current cycle.
	// idx is the index of the latest accumulated row, position the combined
	// per-instrument position of all registered portfolios.
	//
	// Execute must be pure with respect to its inputs: neither the position
	// view nor the history may be mutated.
	Execute(idx string, position map[string]float64, hist *history.History) map[string]models.MSignal
}
