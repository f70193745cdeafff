package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lepinkainen/link-forge/internal/imageproc"
	"github.com/lepinkainen/link-forge/pkg/preview"
)

const (
	serviceName    = "link-forge"
	serviceVersion = "1.0.0"
)

// Handler holds the services the HTTP API exposes.
type Handler struct {
	previews  *preview.Service
	imageOpts imageproc.Options
}

// NewHandler creates the API handler.
func NewHandler(previews *preview.Service, imageOpts imageproc.Options) *Handler {
	return &Handler{
		previews:  previews,
		imageOpts: imageOpts,
	}
}

// NewRouter creates the HTTP router with all routes registered. CORS is
// enabled only when allowedOrigins is non-empty.
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         86400,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/preview", h.Preview)
		r.Post("/compress", h.Compress)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})

	return r
}

type previewRequest struct {
	URL string `json:"url"`
}

// Preview handles POST /api/preview. Only validation failures produce an
// error status; fetch and extraction failures come back as 200 responses
// with a fallback-marked body.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.previews.GetPreview(r.Context(), req.URL)
	if err != nil {
		switch {
		case errors.Is(err, preview.ErrMissingURL):
			writeError(w, http.StatusBadRequest, "URL is required")
		case errors.Is(err, preview.ErrInvalidURL):
			writeError(w, http.StatusBadRequest, "invalid URL")
		default:
			slog.Error("Preview request failed", "url", req.URL, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// Compress handles POST /api/compress: a multipart upload under the "image"
// field, returned downsampled and base64-encoded. Disallowed extensions and
// oversize payloads are 400; a payload that passes those checks but cannot
// be decoded is 422.
func (h *Handler) Compress(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	if !imageproc.AllowedExtension(header.Filename) {
		writeError(w, http.StatusBadRequest, "unsupported image format")
		return
	}

	// Read one byte past the limit so oversize uploads are detected without
	// buffering the whole payload.
	data, err := io.ReadAll(io.LimitReader(file, h.imageOpts.MaxBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if int64(len(data)) > h.imageOpts.MaxBytes {
		writeError(w, http.StatusBadRequest, "image exceeds size limit")
		return
	}

	compressed, err := imageproc.Compress(data, header.Filename, h.imageOpts)
	if err != nil {
		switch {
		case errors.Is(err, imageproc.ErrUnsupportedFormat), errors.Is(err, imageproc.ErrTooLarge):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusUnprocessableEntity, "could not process image")
		}
		return
	}

	writeJSON(w, http.StatusOK, compressed)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
