package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/devadigapratham/printquote/api/models"
	"github.com/devadigapratham/printquote/quote"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuoter struct {
	mu    sync.Mutex
	price float64
	err   error
	calls []quote.Input
	body  []string
}

func (f *fakeQuoter) Quote(_ context.Context, in quote.Input) (float64, error) {
	data, _ := io.ReadAll(in.File)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	f.body = append(f.body, string(data))
	return f.price, f.err
}

func (f *fakeQuoter) InFlight() int64 { return 0 }

func newTestRouter(q Quoter, opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(q, opts)
	r := gin.New()
	r.Use(LoggerMiddleware(zerolog.Nop()))
	r.Use(CORSMiddleware([]string{"*"}))
	r.POST("/analyse-stl", h.AnalyseSTL)
	r.OPTIONS("/analyse-stl", func(c *gin.Context) {})
	r.GET("/status", h.GetStatus)
	return r
}

type formFile struct {
	field    string
	filename string
	content  string
}

func multipartBody(t *testing.T, file *formFile, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.filename+`"`)
		h.Set("Content-Type", "application/octet-stream")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(file.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func doUpload(t *testing.T, r http.Handler, file *formFile, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, file, fields)
	req := httptest.NewRequest(http.MethodPost, "/analyse-stl", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAnalyseSTL_Success(t *testing.T) {
	q := &fakeQuoter{price: 15.99}
	r := newTestRouter(q, Options{})

	w := doUpload(t, r, &formFile{field: "stlFile", filename: "part.stl", content: "solid part"}, map[string]string{
		"material": "petg",
		"infill":   "35",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"price": 15.99}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	require.Len(t, q.calls, 1)
	assert.Equal(t, "part.stl", q.calls[0].Filename)
	assert.Equal(t, "PETG", q.calls[0].Material)
	assert.Equal(t, 35, q.calls[0].Infill)
	assert.Equal(t, "solid part", q.body[0])
}

func TestAnalyseSTL_Defaults(t *testing.T) {
	q := &fakeQuoter{price: 2}
	r := newTestRouter(q, Options{})

	w := doUpload(t, r, &formFile{field: "stlFile", filename: "part.stl", content: "x"}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"price": 2}`, w.Body.String())
	require.Len(t, q.calls, 1)
	assert.Equal(t, "PLA", q.calls[0].Material)
	assert.Equal(t, 20, q.calls[0].Infill)
}

func TestAnalyseSTL_UnknownMaterialPricedAsPLA(t *testing.T) {
	q := &fakeQuoter{price: 3}
	r := newTestRouter(q, Options{})

	w := doUpload(t, r, &formFile{field: "stlFile", filename: "part.stl", content: "x"}, map[string]string{"material": "wood"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PLA", q.calls[0].Material)
}

func TestAnalyseSTL_ClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    *formFile
		fields  map[string]string
		message string
	}{
		{name: "missing file field", fields: map[string]string{"material": "PLA"}, message: models.MsgNoFile},
		{name: "file under another field", file: &formFile{field: "mesh", filename: "a.stl", content: "x"}, message: models.MsgNoFile},
		{name: "empty filename", file: &formFile{field: "stlFile", filename: "", content: "x"}, message: models.MsgInvalidFile},
		{name: "text field named stlFile", fields: map[string]string{"stlFile": "x"}, message: models.MsgInvalidFile},
		{name: "non numeric infill", file: &formFile{field: "stlFile", filename: "a.stl", content: "x"}, fields: map[string]string{"infill": "abc"}, message: models.MsgInvalidInfill},
		{name: "infill above 100", file: &formFile{field: "stlFile", filename: "a.stl", content: "x"}, fields: map[string]string{"infill": "150"}, message: models.MsgInvalidInfill},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuoter{price: 10}
			r := newTestRouter(q, Options{})

			w := doUpload(t, r, tt.file, tt.fields)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, decodeError(t, w).Error)
			assert.Empty(t, q.calls, "no analysis should be attempted")
		})
	}
}

func TestAnalyseSTL_NotMultipart(t *testing.T) {
	q := &fakeQuoter{}
	r := newTestRouter(q, Options{})

	req := httptest.NewRequest(http.MethodPost, "/analyse-stl", strings.NewReader(`{"stlFile":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.MsgNoFile, decodeError(t, w).Error)
}

func TestAnalyseSTL_TooLarge(t *testing.T) {
	q := &fakeQuoter{}
	r := newTestRouter(q, Options{MaxUploadBytes: 1024})

	w := doUpload(t, r, &formFile{field: "stlFile", filename: "big.stl", content: strings.Repeat("x", 4096)}, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, models.MsgFileTooLarge, decodeError(t, w).Error)
	assert.Empty(t, q.calls)
}

func TestAnalyseSTL_AnalysisFailure(t *testing.T) {
	q := &fakeQuoter{err: &quote.AnalysisError{Err: errors.New("mesh file is truncated")}}
	r := newTestRouter(q, Options{})

	w := doUpload(t, r, &formFile{field: "stlFile", filename: "broken.stl", content: "garbage"}, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, models.MsgAnalysisFailure, resp.Error)
	assert.Equal(t, "mesh file is truncated", resp.Details)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(&fakeQuoter{}, Options{})

	req := httptest.NewRequest(http.MethodOptions, "/analyse-stl", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORSMiddleware_AllowList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://shop.example.com/"}))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for origin, want := range map[string]string{
		"https://shop.example.com": "https://shop.example.com",
		"https://evil.example.com": "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, w.Header().Get("Access-Control-Allow-Origin"), "origin %s", origin)
	}
}

func TestLoggerMiddleware_KeepsRequestID(t *testing.T) {
	r := newTestRouter(&fakeQuoter{}, Options{})

	for _, id := range []string{"req-42", "a1b2.c3_d4", strings.Repeat("a", MaxRequestIDLength)} {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.Header.Set(RequestIDHeader, id)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, id, w.Header().Get(RequestIDHeader))
	}
}

func TestLoggerMiddleware_ReplacesUnusableRequestID(t *testing.T) {
	r := newTestRouter(&fakeQuoter{}, Options{})

	for _, id := range []string{
		strings.Repeat("a", MaxRequestIDLength+1),
		strings.Repeat("x", 1<<16),
		"req 42",
		"<script>alert(1)</script>",
		"id\twith\ttabs",
		"é-unicode",
	} {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.Header.Set(RequestIDHeader, id)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		got := w.Header().Get(RequestIDHeader)
		assert.NotEqual(t, id, got)
		_, err := uuid.Parse(got)
		assert.NoError(t, err, "request id %q should be regenerated", got)
	}
}

func TestGetStatus(t *testing.T) {
	r := newTestRouter(&fakeQuoter{}, Options{ServiceName: "printquote"})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"printquote","in_flight":0}`, w.Body.String())
}
