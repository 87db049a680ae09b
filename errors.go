package langclient

import (
	"context"
	"errors"
	"fmt"
)

// Standard errors returned by the client runtime.
var (
	// ErrDisposed indicates the component has been disposed.
	ErrDisposed = errors.New("component disposed")

	// ErrNoProvider indicates no registered provider matches the document.
	ErrNoProvider = errors.New("no provider for document")

	// ErrShutdown indicates the connection has been shut down.
	ErrShutdown = errors.New("connection shut down")
)

// RPCError represents a JSON-RPC error from the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	// JSON-RPC standard errors
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// LSP-specific errors
	CodeServerNotInitialized = -32002
	CodeUnknownErrorCode     = -32001
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
	CodeServerCancelled      = -32802
	CodeRequestFailed        = -32803
)

// IsCancellation reports whether err represents a cancelled request,
// either locally (context) or by the server.
func IsCancellation(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == CodeRequestCancelled || rpcErr.Code == CodeServerCancelled
	}
	return false
}

// RetriggerAllowed reports whether a cancellation error permits the client
// to retrigger the request. A server may attach cancellation data with
// retriggerRequest=false to mark the pull terminal.
func RetriggerAllowed(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return true
	}
	switch data := rpcErr.Data.(type) {
	case DiagnosticServerCancellationData:
		return data.RetriggerRequest
	case *DiagnosticServerCancellationData:
		return data.RetriggerRequest
	case map[string]any:
		if v, ok := data["retriggerRequest"].(bool); ok {
			return v
		}
	}
	return true
}
