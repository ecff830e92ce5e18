package strategies

import (
	"fmt"

	"stream-manager/src/history"
	"stream-manager/src/interfaces"
	"stream-manager/src/models"
)

// -----------------------------------------------------------------------------

const (
	defaultRSIWindow = 14
	defaultRSIUpper  = 70
	defaultRSILower  = 30
)

// -----------------------------------------------------------------------------

// RSIStrategy emits contrarian signals from the relative strength index of
// each instrument's close series: buy one unit when the index drops below
// the lower band, sell one unit when it rises above the upper band.
//
// Execute reads only its arguments and the configured parameters, so a
// single instance is safe to share across concurrent cycles.
type RSIStrategy struct {
	window int
	upper  float64
	lower  float64
}

// -----------------------------------------------------------------------------

func init() {
	_ = Register("rsi", NewRSI)
}

// -----------------------------------------------------------------------------

// NewRSI builds the strategy from its parameter map. Recognized parameters
// are window, upper and lower; omitted ones fall back to 14/70/30.
func NewRSI(params map[string]float64) (interfaces.IStrategy, error) {
	s := &RSIStrategy{
		window: defaultRSIWindow,
		upper:  defaultRSIUpper,
		lower:  defaultRSILower,
	}
	if v, ok := params["window"]; ok {
		if v < 2 {
			return nil, fmt.Errorf("rsi window must be at least 2, got %v", v)
		}
		s.window = int(v)
	}
	if v, ok := params["upper"]; ok {
		s.upper = v
	}
	if v, ok := params["lower"]; ok {
		s.lower = v
	}
	if s.lower >= s.upper {
		return nil, fmt.Errorf("rsi lower band %v must be below upper band %v", s.lower, s.upper)
	}
	return s, nil
}

// -----------------------------------------------------------------------------

// GetName returns the registered strategy name
func (s *RSIStrategy) GetName() string {
	return "rsi"
}

// -----------------------------------------------------------------------------

// Execute produces one signal per instrument present in the history. An
// instrument with fewer than window+1 closes gets a wait signal.
func (s *RSIStrategy) Execute(idx string, position map[string]float64, hist *history.History) map[string]models.MSignal {
	signals := make(map[string]models.MSignal)

	for _, instrument := range hist.Instruments() {
		closes := hist.Field(instrument, "close")
		if len(closes) < s.window+1 {
			signals[instrument] = models.NewSignal(instrument, models.SideWait, 0, 0)
			continue
		}

		rsi := s.index(closes)
		last := closes[len(closes)-1]
		held := position[instrument] > 0

		switch {
		case rsi >= s.upper && held:
			signals[instrument] = models.NewSignal(instrument, models.SideSell, 1, last)
		case rsi <= s.lower:
			signals[instrument] = models.NewSignal(instrument, models.SideBuy, 1, last)
		case held:
			signals[instrument] = models.NewSignal(instrument, models.SideHold, 0, last)
		default:
			signals[instrument] = models.NewSignal(instrument, models.SideWait, 0, last)
		}
	}
	return signals
}

// -----------------------------------------------------------------------------

// index computes the RSI over the last window price changes using simple
// averages of gains and losses.
func (s *RSIStrategy) index(closes []float64) float64 {
	start := len(closes) - s.window - 1
	var gains, losses float64
	for i := start + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}
