package models

import (
	"encoding/json"
	"fmt"
)

// -----------------------------------------------------------------------------

// MSide defines the direction of a trading signal
type MSide string

const (
	SideBuy  MSide = "BUY"
	SideSell MSide = "SELL"
	SideHold MSide = "HOLD" // Keep the current position untouched
	SideWait MSide = "WAIT" // No position yet, keep waiting for an entry
)

// -----------------------------------------------------------------------------

// MSignal represents one trading instruction for one instrument, produced
// fresh each execution cycle. Signals are immutable once produced and are
// never persisted.
type MSignal struct {
	Instrument string  `json:"instrument"`
	Side       MSide   `json:"side"`
	Quantity   float64 `json:"quantity,omitempty"`
	Price      float64 `json:"price,omitempty"`
}

// -----------------------------------------------------------------------------

// NewSignal creates a signal for a single instrument
func NewSignal(instrument string, side MSide, quantity, price float64) MSignal {
	return MSignal{
		Instrument: instrument,
		Side:       side,
		Quantity:   quantity,
		Price:      price,
	}
}

// -----------------------------------------------------------------------------

// IsActionable reports whether the signal changes a position when applied
func (s MSignal) IsActionable() bool {
	return (s.Side == SideBuy || s.Side == SideSell) && s.Quantity > 0
}

// -----------------------------------------------------------------------------

// ToJSON serializes the signal into its wire form
func (s MSignal) ToJSON() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize signal for %s: %w", s.Instrument, err)
	}
	return data, nil
}

// -----------------------------------------------------------------------------

// MSignalBatch is the push payload for one execution cycle: the full mapping
// of instrument to signal, possibly filtered per subscriber.
type MSignalBatch struct {
	Signals map[string]MSignal `json:"signals"`
}
