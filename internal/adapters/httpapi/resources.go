package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"buildcore/internal/core"
	"buildcore/internal/media"
	"buildcore/pkg/domain"

	"github.com/gorilla/mux"
)

// formOverhead is the allowance for multipart headers and text fields on
// top of the image limit.
const formOverhead = 1 << 20

// resourceKind resolves the {kind} route variable; contact messages are not
// served under /resources.
func resourceKind(r *http.Request) (domain.Kind, bool) {
	kind, err := domain.ParseKind(mux.Vars(r)["kind"])
	if err != nil || !kind.IsResource() {
		return "", false
	}
	return kind, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := resourceKind(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown resource kind")
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.List(r.Context(), kind, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Resource{}
	}
	writeJSON(w, http.StatusOK, map[string]any{kind.Plural(): items})
}

func listOptions(r *http.Request) (core.ListOptions, error) {
	q := r.URL.Query()
	var opts core.ListOptions
	switch strings.ToLower(q.Get("sort")) {
	case "", "created":
	case "recent":
		opts.Recent = true
	default:
		return opts, fmt.Errorf("unsupported sort %q", q.Get("sort"))
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("limit must be a non-negative integer")
		}
		opts.Limit = n
	}
	return opts, nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	kind, ok := resourceKind(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown resource kind")
		return
	}
	res, err := h.svc.Get(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	kind, ok := resourceKind(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown resource kind")
		return
	}
	fields, image, err := h.readResourceForm(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer closeUpload(image)
	res, err := h.svc.Create(r.Context(), kind, fields, image)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	kind, ok := resourceKind(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown resource kind")
		return
	}
	fields, image, err := h.readResourceForm(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer closeUpload(image)
	res, err := h.svc.Update(r.Context(), kind, mux.Vars(r)["id"], fields, image)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind, ok := resourceKind(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown resource kind")
		return
	}
	if err := h.svc.Delete(r.Context(), kind, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// readResourceForm accepts multipart/form-data (text fields plus an optional
// "image" file), urlencoded forms, or a flat JSON object.
func (h *Handler) readResourceForm(w http.ResponseWriter, r *http.Request) (core.Fields, *media.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxForm+formOverhead)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		fields, err := decodeJSONFields(r)
		return fields, nil, err
	case "multipart/form-data":
		if err := r.ParseMultipartForm(formOverhead); err != nil {
			return nil, nil, formError(err)
		}
		fields := make(core.Fields, len(r.MultipartForm.Value))
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
		up, err := formImage(r)
		return fields, up, err
	default:
		if err := r.ParseForm(); err != nil {
			return nil, nil, formError(err)
		}
		fields := make(core.Fields, len(r.PostForm))
		for k := range r.PostForm {
			fields[k] = r.PostForm.Get(k)
		}
		return fields, nil, nil
	}
}

func formImage(r *http.Request) (*media.Upload, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, formError(err)
	}
	return &media.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, nil
}

// closeUpload releases the multipart file behind up, if any.
func closeUpload(up *media.Upload) {
	if up == nil {
		return
	}
	if c, ok := up.Body.(io.Closer); ok {
		_ = c.Close()
	}
}

func formError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return domain.UploadError{Reason: domain.UploadTooLarge, Err: err}
	}
	return domain.ValidationError{Invalid: map[string]string{"body": "must be a valid form: " + err.Error()}}
}

func decodeJSONFields(r *http.Request) (core.Fields, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, formError(err)
	}
	fields := make(core.Fields, len(raw))
	invalid := map[string]string{}
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			fields[k] = s
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			fields[k] = n.String()
			continue
		}
		if string(v) == "null" {
			fields[k] = ""
			continue
		}
		invalid[k] = "must be a string or number"
	}
	if len(invalid) > 0 {
		return nil, domain.ValidationError{Invalid: invalid}
	}
	return fields, nil
}
