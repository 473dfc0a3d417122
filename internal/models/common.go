package models

// ErrorDetail is the structured error returned by the patch service and
// carried by both transports.
type ErrorDetail struct {
	// Code is a JSON-RPC or application-specific error code.
	Code int `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Data holds additional context such as filename, operation or a patch report.
	Data interface{} `json:"data,omitempty"`
}

// Error makes ErrorDetail usable where a Go error is expected (CLI exits).
func (e *ErrorDetail) Error() string {
	return e.Message
}

// ErrorResponse wraps an ErrorDetail for HTTP responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
