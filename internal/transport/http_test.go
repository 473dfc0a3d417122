package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-patcher/internal/errors"
	"line-patcher/internal/models"
)

// --- Mock PatchService ---
type mockPatchService struct {
	ReadFileFunc  func(req models.ReadFileRequest) (*models.ReadFileResponse, *models.ErrorDetail)
	PatchFileFunc func(ctx context.Context, req models.PatchFileRequest) (*models.PatchFileResponse, *models.ErrorDetail)
}

func (m *mockPatchService) ReadFile(req models.ReadFileRequest) (*models.ReadFileResponse, *models.ErrorDetail) {
	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(req)
	}
	return nil, errors.NewInternalError("ReadFileFunc not implemented in mock")
}

func (m *mockPatchService) PatchFile(ctx context.Context, req models.PatchFileRequest) (*models.PatchFileResponse, *models.ErrorDetail) {
	if m.PatchFileFunc != nil {
		return m.PatchFileFunc(ctx, req)
	}
	return nil, errors.NewInternalError("PatchFileFunc not implemented in mock")
}

func newTestMux(svc *mockPatchService) *http.ServeMux {
	mux := http.NewServeMux()
	NewHTTPHandler(svc, nil).RegisterRoutes(mux)
	return mux
}

func postJSON(t *testing.T, mux http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestHTTPHandler_handlePatchFile_Success(t *testing.T) {
	var got models.PatchFileRequest
	mux := newTestMux(&mockPatchService{
		PatchFileFunc: func(_ context.Context, req models.PatchFileRequest) (*models.PatchFileResponse, *models.ErrorDetail) {
			got = req
			return &models.PatchFileResponse{Name: req.Name, Success: true, Written: true, Applied: 1}, nil
		},
	})

	rr := postJSON(t, mux, "/patch_file", `{"name":"checkout.tsx","strict":true,"directives":[{"line":3,"action":"replace","content":"<>","expect":"// state"}]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var resp models.PatchFileResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Written)
	assert.Equal(t, 1, resp.Applied)

	assert.True(t, got.Strict)
	require.Len(t, got.Directives, 1)
	require.NotNil(t, got.Directives[0].Expect)
	assert.Equal(t, "// state", *got.Directives[0].Expect)
}

func TestHTTPHandler_handlePatchFile_Rejected(t *testing.T) {
	mux := newTestMux(&mockPatchService{
		PatchFileFunc: func(_ context.Context, req models.PatchFileRequest) (*models.PatchFileResponse, *models.ErrorDetail) {
			return nil, errors.NewPatchRejectedError(req.Name, 2, nil)
		},
	})

	rr := postJSON(t, mux, "/patch_file", `{"name":"a.tsx","directives":[]}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, errors.CodePatchRejected, resp.Error.Code)
}

func TestHTTPHandler_handleReadFile_Success(t *testing.T) {
	mux := newTestMux(&mockPatchService{
		ReadFileFunc: func(req models.ReadFileRequest) (*models.ReadFileResponse, *models.ErrorDetail) {
			if req.Name != "test.txt" {
				return nil, errors.NewFileNotFoundError(req.Name, "read")
			}
			return &models.ReadFileResponse{Name: req.Name, TotalLines: 1, Lines: []models.NumberedLine{{Number: 1, Content: "hello"}}}, nil
		},
	})

	rr := postJSON(t, mux, "/read_file", `{"name":"test.txt","around":1}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp models.ReadFileResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "hello", resp.Lines[0].Content)

	rr = postJSON(t, mux, "/read_file", `{"name":"other.txt"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHTTPHandler_RequestValidation(t *testing.T) {
	mux := newTestMux(&mockPatchService{})

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
		wantCode    int
	}{
		{"wrong method", http.MethodGet, "application/json", "", http.StatusMethodNotAllowed, errors.CodeInvalidRequest},
		{"wrong content type", http.MethodPost, "text/plain", "{}", http.StatusUnsupportedMediaType, errors.CodeInvalidRequest},
		{"invalid json", http.MethodPost, "application/json", `{"name":`, http.StatusBadRequest, errors.CodeParseError},
		{"wrong type", http.MethodPost, "application/json", `{"name":1}`, http.StatusBadRequest, errors.CodeParseError},
		{"unknown field", http.MethodPost, "application/json", `{"name":"a","bogus":1}`, http.StatusBadRequest, errors.CodeParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/patch_file", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestHTTPHandler_BodyTooLarge(t *testing.T) {
	h := NewHTTPHandler(&mockPatchService{}, nil)
	h.maxReqSize = 16
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body := `{"name":"` + strings.Repeat("a", 64) + `"}`
	rr := postJSON(t, mux, "/read_file", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestHTTPHandler_HealthCheck(t *testing.T) {
	mux := newTestMux(&mockPatchService{})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHTTPHandler_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	h := NewHTTPHandler(&mockPatchService{}, nil)
	go func() { done <- h.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Post("http://"+ln.Addr().String()+"/read_file", "application/json", bytes.NewBufferString(`{"name":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
