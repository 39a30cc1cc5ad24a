package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"buildcore/internal/media"
	"buildcore/pkg/domain"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		writeError(w, http.StatusNotFound, "media storage not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxForm+formOverhead)
	if err := r.ParseMultipartForm(formOverhead); err != nil {
		h.fail(w, r, formError(err))
		return
	}
	up, err := formImage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if up == nil {
		h.fail(w, r, domain.ValidationError{Missing: []string{"image"}})
		return
	}
	defer closeUpload(up)
	var md media.Metadata
	if raw := r.FormValue("kind"); raw != "" {
		kind, err := domain.ParseKind(raw)
		if err != nil || !kind.IsResource() {
			h.fail(w, r, domain.ValidationError{Invalid: map[string]string{"kind": "is not a managed resource"}})
			return
		}
		md.Kind = kind
	}
	stored, err := h.media.Store(r.Context(), *up, md)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": stored.URL})
}

// handleMedia streams a stored object for drivers without their own public
// endpoint. Keys are never reused, so responses are cached indefinitely.
func (h *Handler) handleMedia(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		writeError(w, http.StatusNotFound, "media storage not configured")
		return
	}
	info, body, err := h.media.Open(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer body.Close()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", `"`+info.ETag+`"`)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("media stream interrupted", zap.String("key", info.Key), zap.Error(err))
	}
}
