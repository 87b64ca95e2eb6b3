package handlers

import (
	"net/http"

	"github.com/finledger/recon-backend/internal/api/dto"
	"github.com/finledger/recon-backend/internal/application/recon"
)

// MatchesHandler handles manual match creation.
type MatchesHandler struct {
	service *recon.Service
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(service *recon.Service) *MatchesHandler {
	return &MatchesHandler{service: service}
}

// Create records a manual match.
// POST /api/matches
//
// Manual matches bypass scoring entirely and do not displace an
// existing automatic match on the same line.
func (h *MatchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ManualMatchRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.StatementID == "" || req.TransactionID == "" || req.MatchedBy == "" {
		WriteError(w, http.StatusBadRequest,
			dto.ValidationError("statement_id, transaction_id, and matched_by are required"))
		return
	}

	match, err := h.service.CreateManualMatch(r.Context(),
		req.StatementID, req.LineIndex, req.TransactionID, req.MatchedBy, req.Notes)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, toMatchResponse(*match))
}
