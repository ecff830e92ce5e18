package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// -----------------------------------------------------------------------------

// ErrInvalidHistory is returned when a history description cannot be turned
// into a table. It surfaces through the connection protocol as an error
// payload, never as a crash.
var ErrInvalidHistory = errors.New("message does not contain a valid history")

// -----------------------------------------------------------------------------

// Row is one market data update: a (time, instrument) key plus its bar
// fields (open, close, volume, ...).
type Row struct {
	Time       string             `json:"time"`
	Instrument string             `json:"instrument"`
	Fields     map[string]float64 `json:"fields,omitempty"`
}

// -----------------------------------------------------------------------------

// Key returns the compound table key of the row
func (r Row) Key() string {
	return r.Time + "|" + r.Instrument
}

// -----------------------------------------------------------------------------

// History is the append-only ordered table of market data updates keyed by
// (time, instrument). It only ever grows during a run; concatenation skips
// rows whose key the table already holds.
//
// All methods are safe for concurrent use: the consumption loop appends
// while listeners read and serialize.
type History struct {
	mu   sync.RWMutex
	rows []Row
	keys map[string]struct{}
}

// -----------------------------------------------------------------------------

// New creates a history holding the given rows, deduplicated in order
func New(rows ...Row) *History {
	h := &History{keys: make(map[string]struct{})}
	h.Append(rows)
	return h
}

// -----------------------------------------------------------------------------

// FromDescription builds a history from a decoded wire description. Two
// shapes are accepted: {"rows": [...]} for a full table, or a single bare
// row object for snapshots. A nil/empty description yields an empty table.
func FromDescription(description json.RawMessage) (*History, error) {
	if len(description) == 0 || string(description) == "null" || string(description) == "{}" {
		return New(), nil
	}

	var table struct {
		Rows []wireRow `json:"rows"`
	}
	if err := json.Unmarshal(description, &table); err == nil && table.Rows != nil {
		rows := make([]Row, 0, len(table.Rows))
		for _, wr := range table.Rows {
			row, err := wr.toRow()
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return New(rows...), nil
	}

	var wr wireRow
	if err := json.Unmarshal(description, &wr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHistory, err)
	}
	row, err := wr.toRow()
	if err != nil {
		return nil, err
	}
	return New(row), nil
}

// -----------------------------------------------------------------------------

// Append concatenates a batch onto the table, keeping submission order.
// Rows whose (time, instrument) key is already present, from this batch or
// any earlier one, are skipped. Returns the number of rows appended.
func (h *History) Append(batch []Row) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	appended := 0
	for _, row := range batch {
		key := row.Key()
		if _, exists := h.keys[key]; exists {
			continue
		}
		h.keys[key] = struct{}{}
		h.rows = append(h.rows, row)
		appended++
	}
	return appended
}

// -----------------------------------------------------------------------------

// Rows returns a copy of the full table in insertion order
func (h *History) Rows() []Row {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rows := make([]Row, len(h.rows))
	copy(rows, h.rows)
	return rows
}

// -----------------------------------------------------------------------------

// Len returns the current number of rows
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rows)
}

// -----------------------------------------------------------------------------

// Empty reports whether the table holds no rows yet
func (h *History) Empty() bool {
	return h.Len() == 0
}

// -----------------------------------------------------------------------------

// LastIndex returns the time key of the most recently appended row, or an
// empty string for an empty table.
func (h *History) LastIndex() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.rows) == 0 {
		return ""
	}
	return h.rows[len(h.rows)-1].Time
}

// -----------------------------------------------------------------------------

// Instruments returns the distinct instruments seen so far, in first-seen order
func (h *History) Instruments() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	var instruments []string
	for _, row := range h.rows {
		if _, ok := seen[row.Instrument]; ok {
			continue
		}
		seen[row.Instrument] = struct{}{}
		instruments = append(instruments, row.Instrument)
	}
	return instruments
}

// -----------------------------------------------------------------------------

// HasInstrument reports whether the instrument appears anywhere in the table
func (h *History) HasInstrument(instrument string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, row := range h.rows {
		if row.Instrument == instrument {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// Field extracts one column for one instrument in insertion order. Rows
// missing the field are skipped.
func (h *History) Field(instrument, field string) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var values []float64
	for _, row := range h.rows {
		if row.Instrument != instrument {
			continue
		}
		if value, ok := row.Fields[field]; ok {
			values = append(values, value)
		}
	}
	return values
}

// -----------------------------------------------------------------------------

// ToJSON serializes the table into its wire-safe form
func (h *History) ToJSON() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	wireRows := make([]map[string]any, 0, len(h.rows))
	for _, row := range h.rows {
		wireRows = append(wireRows, row.toWire())
	}
	data, err := json.Marshal(map[string]any{"rows": wireRows})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize history: %w", err)
	}
	return data, nil
}

// -----------------------------------------------------------------------------
// Wire format
// -----------------------------------------------------------------------------

// wireRow is the flat on-the-wire shape of a row: time and instrument beside
// the bar fields, e.g. {"time": "2024-01-03", "instrument": "AAPL", "close": 165}.
type wireRow map[string]any

// -----------------------------------------------------------------------------

func (wr wireRow) toRow() (Row, error) {
	timeVal, timeOK := wr["time"].(string)
	instrument, instOK := wr["instrument"].(string)
	if !timeOK || !instOK || timeVal == "" || instrument == "" {
		return Row{}, fmt.Errorf("%w: row requires time and instrument", ErrInvalidHistory)
	}

	fields := make(map[string]float64)
	for name, raw := range wr {
		if name == "time" || name == "instrument" {
			continue
		}
		value, ok := raw.(float64)
		if !ok {
			return Row{}, fmt.Errorf("%w: field %s is not numeric", ErrInvalidHistory, name)
		}
		fields[name] = value
	}
	return Row{Time: timeVal, Instrument: instrument, Fields: fields}, nil
}

// -----------------------------------------------------------------------------

func (r Row) toWire() map[string]any {
	wire := make(map[string]any, len(r.Fields)+2)
	wire["time"] = r.Time
	wire["instrument"] = r.Instrument
	for name, value := range r.Fields {
		wire[name] = value
	}
	return wire
}
