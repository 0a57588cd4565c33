package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RequestID holds a JSON-RPC id, which may be a string, a number, or null.
// The raw form is preserved so responses echo exactly what the peer sent.
type RequestID struct {
	raw json.RawMessage
}

var nullLiteral = []byte("null")

func (id *RequestID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		return fmt.Errorf("invalid request id: must be a string, number, or null")
	}
	id.raw = append(id.raw[:0], data...)
	return nil
}

func (id *RequestID) MarshalJSON() ([]byte, error) {
	if id == nil || len(id.raw) == 0 {
		return nullLiteral, nil
	}
	return id.raw, nil
}

// IsNil reports whether the id is absent or the JSON null literal.
func (id *RequestID) IsNil() bool {
	return id == nil || len(id.raw) == 0 || bytes.Equal(id.raw, nullLiteral)
}

func (id *RequestID) String() string {
	if id.IsNil() {
		return ""
	}
	var s string
	if err := json.Unmarshal(id.raw, &s); err == nil {
		return s
	}
	return string(id.raw)
}
