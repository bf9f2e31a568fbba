package transport

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"minimarket/internal/middleware"
	"minimarket/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes caps an upload when no limit is configured
const DefaultMaxUploadBytes = 10 << 20

// UploadResponse carries the public URL of a stored file
type UploadResponse struct {
	URL string `json:"url"`
}

// UploadHandler proxies product images to the object store
type UploadHandler struct {
	store    storage.ObjectStore
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(store storage.ObjectStore, maxBytes int64, logger *zap.Logger) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadHandler{
		store:    store,
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterRoutes registers the upload route behind admin
func (h *UploadHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware, adminMiddleware).Post("/upload", h.Upload)
}

// Upload stores the multipart field "file" and returns its public URL
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		h.logger.Debug("Upload without file", zap.Error(err))
		middleware.RespondWithFieldError(w, "file", "No file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read upload", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}

	name := storage.ObjectName(header.Filename, h.now())
	url, err := h.store.Put(r.Context(), name, contentType, bytes.NewReader(data))
	if err != nil {
		h.logger.Error("Upload failed", zap.String("object", name), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	h.logger.Info("File uploaded",
		zap.String("object", name),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(data)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, UploadResponse{URL: url})
}
