package errors

import (
	"fmt"
	"net/http"
	"time"

	"line-patcher/internal/models"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Application error codes, in the JSON-RPC server error range.
const (
	// CodeFileSystemError covers not found, permission denied and other I/O
	// failures; Data["type"] tells them apart.
	CodeFileSystemError = -32001
	// CodeOperationLockFailed means the target file lock could not be acquired.
	CodeOperationLockFailed = -32002
	// CodeFileTooLarge means the file exceeds the configured size limit.
	CodeFileTooLarge = -32003
	// CodeInvalidEncoding means the file is not valid UTF-8.
	CodeInvalidEncoding = -32004
	// CodePatchRejected means a strict patch had failing directives and
	// nothing was written.
	CodePatchRejected = -32005
)

// NewErrorDetail creates a new ErrorDetail.
func NewErrorDetail(code int, message string, data interface{}) *models.ErrorDetail {
	return &models.ErrorDetail{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// NewParseError creates an ErrorDetail for JSON parsing errors.
func NewParseError(details string) *models.ErrorDetail {
	return NewErrorDetail(CodeParseError, "Parse error", map[string]interface{}{"details": details})
}

// NewInvalidRequestError creates an ErrorDetail for malformed requests.
func NewInvalidRequestError(details string) *models.ErrorDetail {
	return NewErrorDetail(CodeInvalidRequest, "Invalid Request", map[string]interface{}{"details": details})
}

// NewMethodNotFoundError creates an ErrorDetail for unknown JSON-RPC methods.
func NewMethodNotFoundError(methodName string) *models.ErrorDetail {
	return NewErrorDetail(CodeMethodNotFound, "Method not found", map[string]interface{}{"method": methodName})
}

// NewInvalidParamsError creates an ErrorDetail for invalid request parameters.
// paramIssues may be nil.
func NewInvalidParamsError(summary string, paramIssues map[string]interface{}, filename, operation string) *models.ErrorDetail {
	message := "Invalid params"
	if summary != "" {
		message = summary
	}
	data := map[string]interface{}{"details": message}
	if paramIssues != nil {
		data["param_issues"] = paramIssues
	}
	if filename != "" {
		data["filename"] = filename
	}
	if operation != "" {
		data["operation"] = operation
	}
	return NewErrorDetail(CodeInvalidParams, message, data)
}

// NewInternalError creates an ErrorDetail for unexpected server errors.
func NewInternalError(details string) *models.ErrorDetail {
	return NewErrorDetail(CodeInternalError, "Internal error", map[string]interface{}{"details": details})
}

// NewFileSystemError creates a generic file system ErrorDetail.
func NewFileSystemError(filename, operation, details string) *models.ErrorDetail {
	return NewErrorDetail(CodeFileSystemError, "File system error", map[string]interface{}{
		"filename":  filename,
		"operation": operation,
		"details":   details,
	})
}

// NewFileNotFoundError creates an ErrorDetail for missing files. HTTP 404.
func NewFileNotFoundError(filename, operation string) *models.ErrorDetail {
	return NewErrorDetail(CodeFileSystemError, fmt.Sprintf("File '%s' not found", filename), map[string]interface{}{
		"filename":  filename,
		"operation": operation,
		"type":      "file_not_found",
	})
}

// NewPermissionDeniedError creates an ErrorDetail for permission errors. HTTP 403.
func NewPermissionDeniedError(filename, operation string) *models.ErrorDetail {
	return NewErrorDetail(CodeFileSystemError, fmt.Sprintf("Permission denied for file '%s'", filename), map[string]interface{}{
		"filename":  filename,
		"operation": operation,
		"type":      "permission_denied",
	})
}

// NewFileTooLargeError creates an ErrorDetail for files over the size limit. HTTP 413.
func NewFileTooLargeError(filename, operation string, size int64, maxSizeMB int) *models.ErrorDetail {
	return NewErrorDetail(CodeFileTooLarge,
		fmt.Sprintf("File '%s' exceeds maximum allowed size of %d MB", filename, maxSizeMB),
		map[string]interface{}{
			"filename":    filename,
			"operation":   operation,
			"size":        size,
			"max_size_mb": maxSizeMB,
			"type":        "file_too_large",
		})
}

// NewInvalidEncodingError creates an ErrorDetail for non UTF-8 content. HTTP 422.
func NewInvalidEncodingError(filename, operation, details string) *models.ErrorDetail {
	return NewErrorDetail(CodeInvalidEncoding, fmt.Sprintf("File '%s' is not valid UTF-8", filename), map[string]interface{}{
		"filename":  filename,
		"operation": operation,
		"details":   details,
		"type":      "invalid_encoding",
	})
}

// NewOperationLockFailedError creates an ErrorDetail for lock acquisition failures. HTTP 409.
func NewOperationLockFailedError(filename, operation, details string) *models.ErrorDetail {
	return NewErrorDetail(CodeOperationLockFailed,
		fmt.Sprintf("Could not acquire lock for operation '%s' on file '%s'", operation, filename),
		map[string]interface{}{
			"filename":  filename,
			"operation": operation,
			"details":   details,
		})
}

// NewPatchRejectedError creates an ErrorDetail for a strict patch that was
// not written because some directives failed. HTTP 409.
func NewPatchRejectedError(filename string, failed int, report []models.DirectiveOutcome) *models.ErrorDetail {
	return NewErrorDetail(CodePatchRejected,
		fmt.Sprintf("Patch for '%s' rejected: %d directive(s) failed", filename, failed),
		map[string]interface{}{
			"filename":  filename,
			"operation": "patch",
			"details":   fmt.Sprintf("%d directive(s) failed in strict mode; file left unchanged", failed),
			"report":    report,
		})
}

// ToErrorResponse converts an ErrorDetail to an HTTP models.ErrorResponse.
func ToErrorResponse(errDetail *models.ErrorDetail) *models.ErrorResponse {
	if errDetail == nil {
		return nil
	}
	return &models.ErrorResponse{Error: *errDetail}
}

// ToJSONRPCError converts an ErrorDetail to a models.JSONRPCError, lifting
// the well-known Data keys into JSONRPCErrorData.
func ToJSONRPCError(errDetail *models.ErrorDetail) *models.JSONRPCError {
	if errDetail == nil {
		return nil
	}
	rpcErr := &models.JSONRPCError{
		Code:    errDetail.Code,
		Message: errDetail.Message,
	}
	if errDetail.Data == nil {
		return rpcErr
	}

	data := &models.JSONRPCErrorData{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	switch d := errDetail.Data.(type) {
	case map[string]interface{}:
		data.Filename, _ = d["filename"].(string)
		data.Operation, _ = d["operation"].(string)
		if pi, ok := d["param_issues"]; ok {
			data.Details = fmt.Sprintf("Parameter issues: %v. Summary: %v", pi, d["details"])
		} else {
			data.Details, _ = d["details"].(string)
		}
		data.Report, _ = d["report"].([]models.DirectiveOutcome)
	case map[string]string:
		data.Filename = d["filename"]
		data.Operation = d["operation"]
		data.Details = d["details"]
	default:
		data.Details = fmt.Sprintf("%v", errDetail.Data)
	}
	rpcErr.Data = data
	return rpcErr
}

// MapErrorToHTTPStatus maps an ErrorDetail to an HTTP status code.
func MapErrorToHTTPStatus(errDetail *models.ErrorDetail) int {
	if errDetail == nil {
		return http.StatusInternalServerError
	}
	switch errDetail.Code {
	case CodeParseError, CodeInvalidRequest, CodeInvalidParams:
		return http.StatusBadRequest
	case CodeMethodNotFound:
		return http.StatusNotFound
	case CodeFileSystemError:
		if d, ok := errDetail.Data.(map[string]interface{}); ok {
			switch d["type"] {
			case "file_not_found":
				return http.StatusNotFound
			case "permission_denied":
				return http.StatusForbidden
			}
		}
		return http.StatusInternalServerError
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeInvalidEncoding:
		return http.StatusUnprocessableEntity
	case CodeOperationLockFailed, CodePatchRejected:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
