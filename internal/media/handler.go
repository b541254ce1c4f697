package media

import (
	"context"
	"io"
	"net/http"
	"strings"

	"quiz-classroom/internal/apperr"
	"quiz-classroom/internal/models"
	"quiz-classroom/internal/respond"
)

type Uploader interface {
	Upload(ctx context.Context, name, mimeType string, content io.Reader) (*models.MediaFile, error)
}

type Handler struct {
	uploader Uploader
	maxBytes int64
}

// NewHandler returns the upload handler. A nil uploader answers every
// upload with 503.
func NewHandler(uploader Uploader, maxBytes int64) *Handler {
	return &Handler{uploader: uploader, maxBytes: maxBytes}
}

// Upload accepts a multipart form with an image or video in "file".
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Media uploads are not configured."})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		respond.Error(w, r, apperr.Validation("The file is too large or the upload is malformed.",
			apperr.FieldError{Field: "file", Message: "Please choose a smaller file."}))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, r, apperr.Validation("Please choose a file to upload.",
			apperr.FieldError{Field: "file", Message: "this field is required"}))
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") && !strings.HasPrefix(mimeType, "video/") {
		respond.Error(w, r, apperr.Validation("Only images and videos can be uploaded.",
			apperr.FieldError{Field: "file", Message: "Unsupported file type."}))
		return
	}

	media, err := h.uploader.Upload(r.Context(), header.Filename, mimeType, file)
	if err != nil {
		respond.Error(w, r, apperr.Write(err, "upload media"))
		return
	}
	respond.JSON(w, http.StatusCreated, media)
}
