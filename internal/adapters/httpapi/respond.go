package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"buildcore/pkg/domain"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// fail maps a service error onto a status code and JSON body. Unclassified
// errors are logged and reported as 500 without detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr domain.ValidationError
		uerr domain.UploadError
		nf   domain.NotFoundError
		agg  domain.AggregateFetchError
	)
	switch {
	case errors.As(err, &verr):
		body := map[string]any{"error": verr.Error()}
		if len(verr.Missing) > 0 {
			body["missing"] = verr.Missing
		}
		if len(verr.Invalid) > 0 {
			body["invalid"] = verr.Invalid
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &uerr):
		status := http.StatusBadGateway
		switch uerr.Reason {
		case domain.UploadTooLarge:
			status = http.StatusRequestEntityTooLarge
		case domain.UploadUnsupported:
			status = http.StatusUnsupportedMediaType
		}
		if status == http.StatusBadGateway {
			h.logger.Error("upload storage failed", zap.String("path", r.URL.Path), zap.Error(err))
		}
		writeJSON(w, status, map[string]any{"error": uerr.Error(), "reason": uerr.Reason})
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &agg):
		failed := make([]string, 0, len(agg.Failures))
		for _, k := range agg.Kinds() {
			failed = append(failed, k.Plural())
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": agg.Error(), "failed": failed})
	default:
		h.logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
