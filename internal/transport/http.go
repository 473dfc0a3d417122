// Package transport exposes the patch service over stdio JSON-RPC and HTTP.
package transport

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"line-patcher/internal/errors"
	"line-patcher/internal/models"
	"line-patcher/internal/service"
)

const (
	defaultReadTimeout      = 60 * time.Second
	defaultWriteTimeout     = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultMaxRequestSizeMB = 50
)

// HTTPHandler serves the patch service as JSON over HTTP.
type HTTPHandler struct {
	service    service.PatchService
	logger     *zap.Logger
	maxReqSize int64
	server     *http.Server
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(svc service.PatchService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		service:    svc,
		logger:     logger,
		maxReqSize: int64(defaultMaxRequestSizeMB) * 1024 * 1024,
	}
}

// RegisterRoutes sets up the HTTP routes for the handler.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/patch_file", h.handlePatchFile)
	mux.HandleFunc("/read_file", h.handleReadFile)
	mux.HandleFunc("/health", h.handleHealthCheck)
}

func (h *HTTPHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.Error("Failed to encode JSON response", zap.Error(err))
		}
	}
}

func (h *HTTPHandler) writeJSONErrorResponse(w http.ResponseWriter, httpStatusCode int, errorDetail *models.ErrorDetail) {
	if errorDetail == nil {
		errorDetail = errors.NewInternalError("An unexpected error occurred and error details were lost.")
		httpStatusCode = http.StatusInternalServerError
	}
	h.writeJSONResponse(w, httpStatusCode, errors.ToErrorResponse(errorDetail))
}

func (h *HTTPHandler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSONBody enforces method, content type and size and decodes the body
// into v. On failure it has already written the error response.
func (h *HTTPHandler) decodeJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		h.writeJSONErrorResponse(w, http.StatusMethodNotAllowed,
			errors.NewInvalidRequestError(fmt.Sprintf("Method %s not allowed for %s. Use POST.", r.Method, r.URL.Path)))
		return false
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		h.writeJSONErrorResponse(w, http.StatusUnsupportedMediaType,
			errors.NewInvalidRequestError("Invalid Content-Type header. Must be 'application/json' or 'application/json; charset=utf-8'."))
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxReqSize)
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(v)
	if err == nil {
		return true
	}

	var maxBytesErr *http.MaxBytesError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stdErrors.As(err, &maxBytesErr):
		h.writeJSONErrorResponse(w, http.StatusRequestEntityTooLarge,
			errors.NewInvalidRequestError(fmt.Sprintf("Request body exceeds maximum size of %dMB.", defaultMaxRequestSizeMB)))
	case stdErrors.As(err, &syntaxErr):
		h.writeJSONErrorResponse(w, http.StatusBadRequest,
			errors.NewParseError(fmt.Sprintf("Invalid JSON syntax at offset %d: %s", syntaxErr.Offset, syntaxErr.Error())))
	case stdErrors.As(err, &typeErr):
		h.writeJSONErrorResponse(w, http.StatusBadRequest,
			errors.NewParseError(fmt.Sprintf("Invalid JSON type for field '%s'. Expected '%s' but got '%s' at offset %d.", typeErr.Field, typeErr.Type, typeErr.Value, typeErr.Offset)))
	default:
		h.writeJSONErrorResponse(w, http.StatusBadRequest,
			errors.NewParseError(fmt.Sprintf("Failed to decode request body: %v", err)))
	}
	return false
}

func (h *HTTPHandler) handleReadFile(w http.ResponseWriter, r *http.Request) {
	var req models.ReadFileRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}
	resp, serviceErr := h.service.ReadFile(req)
	if serviceErr != nil {
		h.writeJSONErrorResponse(w, errors.MapErrorToHTTPStatus(serviceErr), serviceErr)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handlePatchFile(w http.ResponseWriter, r *http.Request) {
	var req models.PatchFileRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}
	resp, serviceErr := h.service.PatchFile(r.Context(), req)
	if serviceErr != nil {
		h.logger.Debug("Patch request failed", zap.String("file", req.Name), zap.Int("code", serviceErr.Code), zap.String("message", serviceErr.Message))
		h.writeJSONErrorResponse(w, errors.MapErrorToHTTPStatus(serviceErr), serviceErr)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// StartServer listens on port until ctx is cancelled, then shuts down gracefully.
func (h *HTTPHandler) StartServer(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}
	return h.Serve(ctx, ln)
}

// Serve runs the server on an existing listener until ctx is cancelled.
func (h *HTTPHandler) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	h.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("HTTP server starting", zap.String("addr", ln.Addr().String()))
		errCh <- h.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := h.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	h.logger.Info("HTTP server shut down")
	return nil
}
