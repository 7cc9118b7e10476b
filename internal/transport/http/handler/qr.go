package handler

import (
	"encoding/json"
	"net/http"

	"github.com/migrant-health-api/internal/application/qr"
	"github.com/migrant-health-api/internal/domain"
	"github.com/migrant-health-api/internal/pkg/validate"
)

// QRHandler handles health-card QR endpoints.
type QRHandler struct {
	svc qr.Service
}

func NewQRHandler(svc qr.Service) *QRHandler { return &QRHandler{svc: svc} }

func (h *QRHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req domain.GenerateQRRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	card, err := h.svc.Generate(r.Context(), userID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *QRHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	card, err := h.svc.GetCard(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// Scan is the public endpoint emergency responders hit after scanning a card.
func (h *QRHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req domain.ScanQRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Scan(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
