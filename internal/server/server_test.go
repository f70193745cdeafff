package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lepinkainen/link-forge/internal/imageproc"
	"github.com/lepinkainen/link-forge/pkg/fetch"
	"github.com/lepinkainen/link-forge/pkg/preview"
)

// stubFetcher serves a canned response or error without touching the network.
type stubFetcher struct {
	response *fetch.Response
	err      error
}

func (s *stubFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Response, error) {
	return s.response, s.err
}

func newTestRouter(t *testing.T, fetcher preview.Fetcher) http.Handler {
	t.Helper()
	svc := preview.NewService(fetcher, nil)
	h := NewHandler(svc, imageproc.DefaultOptions())
	return NewRouter(h, nil)
}

func htmlResponse(body string) *fetch.Response {
	header := http.Header{}
	header.Set("Content-Type", "text/html; charset=utf-8")
	return &fetch.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       []byte(body),
	}
}

func postPreview(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/preview", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPreview_ValidationErrors(t *testing.T) {
	router := newTestRouter(t, &stubFetcher{response: htmlResponse("<html></html>")})

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{
			name:      "missing url field",
			body:      `{}`,
			wantError: "URL is required",
		},
		{
			name:      "empty url",
			body:      `{"url": ""}`,
			wantError: "URL is required",
		},
		{
			name:      "relative url",
			body:      `{"url": "/just/a/path"}`,
			wantError: "invalid URL",
		},
		{
			name:      "malformed body",
			body:      `{"url":`,
			wantError: "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postPreview(t, router, tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if body["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestPreview_Success(t *testing.T) {
	router := newTestRouter(t, &stubFetcher{response: htmlResponse(
		`<html><head>
			<meta property="og:title" content="Release Notes">
			<meta name="description" content="What changed.">
		</head></html>`,
	)})

	rec := postPreview(t, router, `{"url": "https://example.com/notes"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var result preview.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Title != "Release Notes" {
		t.Errorf("title = %q, want %q", result.Title, "Release Notes")
	}
	if result.Description != "What changed." {
		t.Errorf("description = %q, want %q", result.Description, "What changed.")
	}
	if result.Fallback {
		t.Error("fallback = true, want false")
	}
}

func TestPreview_FetchFailureIsStill200(t *testing.T) {
	router := newTestRouter(t, &stubFetcher{err: &fetch.Error{
		Kind: fetch.KindTimeout,
		URL:  "https://slow.example.com",
		Err:  context.DeadlineExceeded,
	}})

	rec := postPreview(t, router, `{"url": "https://slow.example.com"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (fallbacks are not errors)", rec.Code, http.StatusOK)
	}

	var result preview.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Fallback {
		t.Error("fallback = false, want true")
	}
	if result.Error != "timeout" {
		t.Errorf("error kind = %q, want %q", result.Error, "timeout")
	}
	if result.Title != "slow.example.com" {
		t.Errorf("title = %q, want authority", result.Title)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &stubFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := map[string]string{
		"status":  "ok",
		"service": "link-forge",
		"version": "1.0.0",
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s = %q, want %q", k, body[k], v)
		}
	}
}

func TestNotFound(t *testing.T) {
	router := newTestRouter(t, &stubFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("404 response is not JSON: %v", err)
	}
	if body["error"] != "endpoint not found" {
		t.Errorf("error = %q, want %q", body["error"], "endpoint not found")
	}
}

// multipartUpload builds a multipart body with a single file field.
func multipartUpload(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 90, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestCompress_RoundTrip(t *testing.T) {
	router := newTestRouter(t, &stubFetcher{})

	body, contentType := multipartUpload(t, "image", "photo.jpg", testJPEG(t, 320, 240))
	req := httptest.NewRequest(http.MethodPost, "/api/compress", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var result imageproc.Compressed
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Format != "jpeg" {
		t.Errorf("format = %q, want %q", result.Format, "jpeg")
	}
	if result.Base64 == "" {
		t.Error("base64 payload is empty")
	}
	if result.Width != 320 || result.Height != 240 {
		t.Errorf("dimensions = %dx%d, want 320x240", result.Width, result.Height)
	}
}

func TestCompress_RejectsBadUploads(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		filename   string
		data       []byte
		wantStatus int
	}{
		{
			name:       "wrong field name",
			field:      "file",
			filename:   "photo.jpg",
			data:       []byte("irrelevant"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "disallowed extension",
			field:      "image",
			filename:   "vector.svg",
			data:       []byte("<svg/>"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "valid extension but not an image",
			field:      "image",
			filename:   "photo.png",
			data:       []byte("definitely not a png"),
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	router := newTestRouter(t, &stubFetcher{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tt.field, tt.filename, tt.data)
			req := httptest.NewRequest(http.MethodPost, "/api/compress", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}

			var errBody map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil {
				t.Fatalf("error response is not JSON: %v", err)
			}
			if errBody["error"] == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestCompress_OversizeUpload(t *testing.T) {
	svc := preview.NewService(&stubFetcher{}, nil)
	opts := imageproc.DefaultOptions()
	opts.MaxBytes = 64
	h := NewHandler(svc, opts)
	router := NewRouter(h, nil)

	body, contentType := multipartUpload(t, "image", "photo.jpg", testJPEG(t, 320, 240))
	req := httptest.NewRequest(http.MethodPost, "/api/compress", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCORSHeaders(t *testing.T) {
	svc := preview.NewService(&stubFetcher{}, nil)
	h := NewHandler(svc, imageproc.DefaultOptions())
	router := NewRouter(h, []string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/preview", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the requesting origin", got)
	}
}

func TestServerLifecycle(t *testing.T) {
	s := New(":0", http.NewServeMux())

	if s.Addr() != ":0" {
		t.Errorf("Addr() = %q, want %q", s.Addr(), ":0")
	}

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Start() returned error after shutdown: %v", err)
	}
}
