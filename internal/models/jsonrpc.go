package models

import "encoding/json"

// JSONRPCRequest is a JSON-RPC 2.0 request read from the stdio transport.
type JSONRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	// ID is echoed back unchanged; omitted for notifications.
	ID interface{} `json:"id"`
	// Method is "patch_file" or "read_file".
	Method string `json:"method"`
	// Params is decoded once the method is known.
	Params json.RawMessage `json:"params"`
}

// JSONRPCErrorData is the "data" member of a JSON-RPC error.
type JSONRPCErrorData struct {
	Filename  string `json:"filename,omitempty"`
	Operation string `json:"operation,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Details   string `json:"details,omitempty"`
	// Report carries per-directive outcomes when a strict patch is rejected.
	Report []DirectiveOutcome `json:"report,omitempty"`
}

// JSONRPCError is a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    *JSONRPCErrorData `json:"data,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response. Exactly one of Result and
// Error is set.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}
