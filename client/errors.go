package client

import (
	"encoding/json"
	"fmt"
)

// Error codes for transport-level failures.
const (
	ErrCodeNetwork         = 1000
	ErrCodeTimeout         = 1001
	ErrCodeInvalidResponse = 1002
	ErrCodeRPC             = 1003
)

// Error wraps a transport failure with a stable code.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("client error [%d]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("client error [%d]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RPCError is a JSON-RPC error object returned by the node. It is surfaced
// verbatim so callers can classify chain-level conditions (stale nonce,
// underpriced replacement, execution reverted) by code and message.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (data: %s)", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
