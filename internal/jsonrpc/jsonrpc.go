// Package jsonrpc implements the JSON-RPC 2.0 envelopes used by the
// streaming session front end.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

const Version = "2.0"

type ErrorCode int

const (
	ErrorCodeParseError     ErrorCode = -32700
	ErrorCodeInvalidRequest ErrorCode = -32600
	ErrorCodeMethodNotFound ErrorCode = -32601
	ErrorCodeInvalidParams  ErrorCode = -32602
	ErrorCodeInternalError  ErrorCode = -32603
)

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Request is an inbound request (ID set) or notification (ID absent).
type Request struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      *RequestID      `json:"id,omitempty"`
}

// IsNotification reports whether the request carries no id and therefore
// expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == nil || r.ID.IsNil()
}

// Response is an outbound result or error.
type Response struct {
	Version string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      *RequestID      `json:"id"`
}

// NewResultResponse marshals result into a success response for id.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &Response{Version: Version, Result: raw, ID: id}, nil
}

// NewErrorResponse builds an error response. A nil id marshals as null, the
// shape required for protocol errors that could not be tied to a request.
func NewErrorResponse(id *RequestID, code ErrorCode, message string) *Response {
	return &Response{
		Version: Version,
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}

// DecodeRequest parses and validates a single JSON-RPC request envelope.
// Batch arrays are not supported on this transport.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if req.Version != Version {
		return nil, fmt.Errorf("invalid JSON-RPC version %q", req.Version)
	}
	if req.Method == "" {
		return nil, fmt.Errorf("missing method")
	}
	return &req, nil
}
