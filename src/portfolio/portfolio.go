package portfolio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"stream-manager/src/models"
)

// -----------------------------------------------------------------------------

var (
	// ErrInvalidPortfolio is the typed construction error for malformed
	// portfolio descriptions.
	ErrInvalidPortfolio = errors.New("message does not contain a valid portfolio")

	// ErrInsufficientPosition is the domain error for selling more than held
	ErrInsufficientPosition = errors.New("insufficient position for sell signal")

	// ErrInsufficientCash is the domain error for buying beyond available cash
	ErrInsufficientCash = errors.New("insufficient cash for buy signal")
)

// -----------------------------------------------------------------------------

// Portfolio is the position-accounting object signals are applied to.
// Mutations go through Trade; everything else returns copies.
type Portfolio struct {
	mu        sync.RWMutex
	cash      float64
	positions map[string]float64
}

// -----------------------------------------------------------------------------

// New creates an empty portfolio
func New() *Portfolio {
	return &Portfolio{positions: make(map[string]float64)}
}

// -----------------------------------------------------------------------------

// FromDescription builds a portfolio from a decoded wire description of the
// shape {"cash": 10000, "positions": {"AAPL": 10}}. Unknown keys make the
// description malformed. A nil/empty description yields an empty portfolio.
func FromDescription(description json.RawMessage) (*Portfolio, error) {
	if len(description) == 0 || string(description) == "null" {
		return New(), nil
	}

	var wire struct {
		Cash      float64            `json:"cash"`
		Positions map[string]float64 `json:"positions"`
	}
	decoder := json.NewDecoder(bytes.NewReader(description))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPortfolio, err)
	}
	if wire.Cash < 0 {
		return nil, fmt.Errorf("%w: negative cash", ErrInvalidPortfolio)
	}

	p := New()
	p.cash = wire.Cash
	for instrument, quantity := range wire.Positions {
		p.positions[instrument] = quantity
	}
	return p, nil
}

// -----------------------------------------------------------------------------

// AddCash credits the cash balance and returns the portfolio for chaining
func (p *Portfolio) AddCash(amount float64) *Portfolio {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash += amount
	return p
}

// -----------------------------------------------------------------------------

// Cash returns the current cash balance
func (p *Portfolio) Cash() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cash
}

// -----------------------------------------------------------------------------

// Position returns a copy of the per-instrument holdings
func (p *Portfolio) Position() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	position := make(map[string]float64, len(p.positions))
	for instrument, quantity := range p.positions {
		position[instrument] = quantity
	}
	return position
}

// -----------------------------------------------------------------------------

// Holds reports whether the portfolio currently has a non-zero position in
// the instrument.
func (p *Portfolio) Holds(instrument string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.positions[instrument] != 0
}

// -----------------------------------------------------------------------------

// Trade applies one signal. Success updates the position; violations of the
// accounting invariants come back as domain errors and leave the portfolio
// untouched. Non-actionable signals (hold, wait, zero quantity) are no-ops.
func (p *Portfolio) Trade(instrument string, signal models.MSignal) error {
	if !signal.IsActionable() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	notional := signal.Quantity * signal.Price
	switch signal.Side {
	case models.SideBuy:
		if notional > p.cash {
			return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCash, notional, p.cash)
		}
		p.cash -= notional
		p.positions[instrument] += signal.Quantity
	case models.SideSell:
		if p.positions[instrument] < signal.Quantity {
			return fmt.Errorf("%w: %s sell %.2f, held %.2f",
				ErrInsufficientPosition, instrument, signal.Quantity, p.positions[instrument])
		}
		p.positions[instrument] -= signal.Quantity
		p.cash += notional
		if p.positions[instrument] == 0 {
			delete(p.positions, instrument)
		}
	}
	return nil
}
