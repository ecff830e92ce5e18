package serializers

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"stream-manager/src/interfaces"
)

// -----------------------------------------------------------------------------

// BinSerializer implements interfaces.ISerializer using gob, for consumers
// that prefer a compact binary form over the bus.
type BinSerializer struct{}

// -----------------------------------------------------------------------------

// NewBinSerializer creates a new instance of the gob serializer.
func NewBinSerializer() interfaces.ISerializer {
	return &BinSerializer{}
}

// -----------------------------------------------------------------------------

func (g *BinSerializer) Marshal(obj any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(obj); err != nil {
		return nil, fmt.Errorf("gob marshal error: %w", err)
	}

	return buf.Bytes(), nil
}

// -----------------------------------------------------------------------------

// Unmarshal converts a gob byte array back into the target object.
func (g *BinSerializer) Unmarshal(data []byte, obj any) error {
	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)

	if err := dec.Decode(obj); err != nil {
		return fmt.Errorf("gob unmarshal error: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// NewSerializer selects a serializer implementation by configured name.
// Unknown or empty names fall back to JSON.
func NewSerializer(kind string) interfaces.ISerializer {
	switch kind {
	case "bin", "gob":
		return NewBinSerializer()
	default:
		return NewJSONSerializer()
	}
}
