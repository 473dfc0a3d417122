package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"line-patcher/internal/errors"
	"line-patcher/internal/models"
	"line-patcher/internal/service"
)

// maxStdioLineBytes bounds one JSON-RPC request line.
const maxStdioLineBytes = defaultMaxRequestSizeMB * 1024 * 1024

// StdioHandler handles newline-delimited JSON-RPC 2.0 over standard input/output.
type StdioHandler struct {
	service service.PatchService
	logger  *zap.Logger
}

// NewStdioHandler creates a new StdioHandler.
func NewStdioHandler(svc service.PatchService, logger *zap.Logger) *StdioHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StdioHandler{service: svc, logger: logger}
}

func (h *StdioHandler) writeJSONRPCResponse(writer io.Writer, response models.JSONRPCResponse) {
	responseBytes, err := json.Marshal(response)
	if err != nil {
		h.logger.Error("Failed to marshal JSON-RPC response", zap.Any("id", response.ID), zap.Error(err))
		responseBytes, _ = json.Marshal(models.JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      response.ID,
			Error:   errors.ToJSONRPCError(errors.NewInternalError("Server error: failed to marshal response.")),
		})
	}
	if _, err := fmt.Fprintln(writer, string(responseBytes)); err != nil {
		h.logger.Error("Failed to write JSON-RPC response", zap.Error(err))
	}
}

// Start processes requests from input until it is exhausted or ctx is
// cancelled. Requests without an id are notifications and get no response.
func (h *StdioHandler) Start(ctx context.Context, input io.Reader, output io.Writer) error {
	h.logger.Info("Starting stdio JSON-RPC handler")
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 64*1024), maxStdioLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		resp, notify := h.handle(ctx, line)
		if notify {
			continue
		}
		h.writeJSONRPCResponse(output, resp)
	}

	if err := scanner.Err(); err != nil {
		h.logger.Error("Error reading from stdio", zap.Error(err))
		return err
	}
	h.logger.Info("Stdio JSON-RPC handler finished")
	return nil
}

// handle dispatches one request line. notify is true when no response must be sent.
func (h *StdioHandler) handle(ctx context.Context, line []byte) (resp models.JSONRPCResponse, notify bool) {
	resp.JSONRPC = "2.0"

	var req models.JSONRPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		resp.Error = errors.ToJSONRPCError(errors.NewParseError(fmt.Sprintf("Invalid JSON received: %v", err)))
		return resp, false
	}
	resp.ID = req.ID

	if req.JSONRPC != "2.0" {
		resp.Error = errors.ToJSONRPCError(errors.NewInvalidRequestError("Invalid JSON-RPC version. Must be '2.0'."))
		return resp, false
	}
	if req.Method == "" {
		resp.Error = errors.ToJSONRPCError(errors.NewInvalidRequestError("Method not specified."))
		return resp, false
	}

	h.logger.Debug("JSON-RPC request", zap.String("method", req.Method), zap.Any("id", req.ID))

	var result interface{}
	var serviceErr *models.ErrorDetail
	switch req.Method {
	case "read_file":
		var params models.ReadFileRequest
		if err := decodeParams(req.Params, &params); err != nil {
			serviceErr = errors.NewInvalidParamsError(fmt.Sprintf("Invalid params for read_file: %v", err), nil, "", req.Method)
		} else {
			result, serviceErr = h.service.ReadFile(params)
		}
	case "patch_file":
		var params models.PatchFileRequest
		if err := decodeParams(req.Params, &params); err != nil {
			serviceErr = errors.NewInvalidParamsError(fmt.Sprintf("Invalid params for patch_file: %v", err), nil, "", req.Method)
		} else {
			result, serviceErr = h.service.PatchFile(ctx, params)
		}
	default:
		serviceErr = errors.NewMethodNotFoundError(req.Method)
	}

	if req.ID == nil {
		return resp, true
	}
	if serviceErr != nil {
		rpcErr := errors.ToJSONRPCError(serviceErr)
		if rpcErr.Data != nil && rpcErr.Data.Operation == "" {
			rpcErr.Data.Operation = req.Method
		}
		resp.Error = rpcErr
		return resp, false
	}
	resp.Result = result
	return resp, false
}

func decodeParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("params are required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
