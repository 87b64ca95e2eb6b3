package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finledger/recon-backend/internal/api/dto"
	"github.com/finledger/recon-backend/internal/application/recon"
	"github.com/finledger/recon-backend/internal/infrastructure/storage"
)

// ReconciliationsHandler exposes the matching engine over HTTP.
type ReconciliationsHandler struct {
	service *recon.Service
	repo    storage.Repository
}

// NewReconciliationsHandler creates a new reconciliations handler.
func NewReconciliationsHandler(service *recon.Service, repo storage.Repository) *ReconciliationsHandler {
	return &ReconciliationsHandler{service: service, repo: repo}
}

// AutoMatch runs automatic matching over every line of a statement.
// POST /api/reconciliations/{statementID}/matches
func (h *ReconciliationsHandler) AutoMatch(w http.ResponseWriter, r *http.Request) {
	statementID := chi.URLParam(r, "statementID")

	var req dto.AutoMatchRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.BusinessID == "" {
		WriteError(w, http.StatusBadRequest, dto.ValidationError("business_id is required"))
		return
	}

	matches, err := h.service.AutoMatch(r.Context(), req.BusinessID, statementID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, toMatchListResponse(matches))
}

// BuildSummary computes the reconciliation summary and persists its
// variances.
// POST /api/reconciliations/{statementID}/summary
func (h *ReconciliationsHandler) BuildSummary(w http.ResponseWriter, r *http.Request) {
	statementID := chi.URLParam(r, "statementID")

	var req dto.SummaryRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.BusinessID == "" || req.BankAccountID == "" {
		WriteError(w, http.StatusBadRequest, dto.ValidationError("business_id and bank_account_id are required"))
		return
	}

	summary, err := h.service.BuildSummary(r.Context(), req.BusinessID, req.BankAccountID, statementID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, toSummaryResponse(summary))
}

// ListMatches returns persisted matches for a statement.
// GET /api/reconciliations/{statementID}/matches
func (h *ReconciliationsHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	statementID := chi.URLParam(r, "statementID")

	matches, err := h.repo.ListMatchesByStatement(r.Context(), statementID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, toMatchListResponse(matches))
}

// ListVariances returns persisted variances for a statement.
// GET /api/reconciliations/{statementID}/variances
func (h *ReconciliationsHandler) ListVariances(w http.ResponseWriter, r *http.Request) {
	statementID := chi.URLParam(r, "statementID")

	variances, err := h.repo.ListVariancesByStatement(r.Context(), statementID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	response := dto.VarianceListResponse{
		Variances:  make([]dto.VarianceResponse, 0, len(variances)),
		TotalCount: len(variances),
	}
	for _, v := range variances {
		response.Variances = append(response.Variances, toVarianceResponse(v))
	}
	WriteJSON(w, http.StatusOK, response)
}

func toMatchResponse(m storage.ReconciliationMatch) dto.MatchResponse {
	return dto.MatchResponse{
		ID:            m.ID,
		StatementID:   m.StatementID,
		LineIndex:     m.LineIndex,
		TransactionID: m.TransactionID,
		MatchType:     m.MatchType,
		Confidence:    m.Confidence,
		MatchedBy:     m.MatchedBy,
		MatchedAt:     m.MatchedAt,
		Notes:         m.Notes,
	}
}

func toMatchListResponse(matches []storage.ReconciliationMatch) dto.MatchListResponse {
	response := dto.MatchListResponse{
		Matches:    make([]dto.MatchResponse, 0, len(matches)),
		TotalCount: len(matches),
	}
	for _, m := range matches {
		response.Matches = append(response.Matches, toMatchResponse(m))
	}
	return response
}

func toVarianceResponse(v storage.ReconciliationVariance) dto.VarianceResponse {
	return dto.VarianceResponse{
		ID:           v.ID,
		StatementID:  v.StatementID,
		VarianceType: v.VarianceType,
		Amount:       v.Amount.String(),
		Description:  v.Description,
		Resolved:     v.Resolved,
		ResolvedBy:   v.ResolvedBy,
		ResolvedAt:   v.ResolvedAt,
	}
}

func toSummaryResponse(s *recon.Summary) dto.SummaryResponse {
	response := dto.SummaryResponse{
		StatementID:          s.StatementID,
		TotalStatementLines:  s.TotalStatementLines,
		MatchedLines:         s.MatchedLines,
		UnmatchedLines:       s.UnmatchedLines,
		TotalStatementAmount: s.TotalStatementAmount.String(),
		MatchedAmount:        s.MatchedAmount.String(),
		UnmatchedAmount:      s.UnmatchedAmount.String(),
		MatchPercentage:      s.MatchPercentage,
		Variances:            make([]dto.VarianceResponse, 0, len(s.Variances)),
	}
	for _, v := range s.Variances {
		response.Variances = append(response.Variances, toVarianceResponse(v))
	}
	return response
}
