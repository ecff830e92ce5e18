package models

import "encoding/json"

// -----------------------------------------------------------------------------

// MStreamMessage is the single inbound message type of the connection command
// protocol. Exactly one of the three keys must be present:
//   - portfolio: a portfolio description to register against the connection
//   - history:   a full history description replacing the accumulated history
//   - snapshot:  a single incremental update folded into the accumulated history
type MStreamMessage struct {
	Portfolio json.RawMessage `json:"portfolio,omitempty"`
	History   json.RawMessage `json:"history,omitempty"`
	Snapshot  json.RawMessage `json:"snapshot,omitempty"`
}

// -----------------------------------------------------------------------------

// Empty reports whether none of the protocol keys is present
func (m *MStreamMessage) Empty() bool {
	return m.Portfolio == nil && m.History == nil && m.Snapshot == nil
}

// -----------------------------------------------------------------------------

// MErrorPayload is the error response sent back on the originating
// connection. Protocol errors never close the connection and never propagate
// to other connections.
type MErrorPayload struct {
	Error string `json:"error"`
}

// -----------------------------------------------------------------------------

// MConfirmation is the plain confirmation response for successful
// registrations and connects.
type MConfirmation struct {
	Message string `json:"message"`
}
