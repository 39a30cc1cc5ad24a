package httpapi

import (
	"encoding/json"
	"net/http"

	"buildcore/pkg/domain"
)

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type contactResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) handleSubmitContact(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxContact)
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid contact payload")
		return
	}
	_, delivery, err := h.svc.SubmitContactMessage(r.Context(), domain.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := contactResponse{Success: true}
	if delivery.Err != nil {
		resp.Message = "Message received, but the notification could not be sent"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListContact(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.ListContactMessages(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []domain.ContactMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{domain.KindContact.Plural(): msgs})
}
