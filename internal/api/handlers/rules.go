package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/finledger/recon-backend/internal/api/dto"
	"github.com/finledger/recon-backend/internal/application/recon"
	"github.com/finledger/recon-backend/internal/domain/rules"
)

// RulesHandler handles reconciliation rule configuration.
type RulesHandler struct {
	service *recon.Service
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(service *recon.Service) *RulesHandler {
	return &RulesHandler{service: service}
}

// Create persists a new reconciliation rule.
// POST /api/rules
func (h *RulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRuleRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.BusinessID == "" {
		WriteError(w, http.StatusBadRequest, dto.ValidationError("business_id is required"))
		return
	}

	rule, apiErr := ruleFromRequest(req)
	if apiErr != nil {
		WriteError(w, http.StatusBadRequest, *apiErr)
		return
	}

	created, err := h.service.CreateRule(r.Context(), req.BusinessID, *rule)
	if err != nil {
		WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	response, err := toRuleResponse(*created)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, response)
}

// List returns all rules for a business, highest priority first.
// GET /api/rules?business_id=...
func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID := r.URL.Query().Get("business_id")
	if businessID == "" {
		WriteError(w, http.StatusBadRequest, dto.ValidationError("business_id is required"))
		return
	}

	ruleset, err := h.service.ListRules(r.Context(), businessID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	response := dto.RuleListResponse{
		Rules:      make([]dto.RuleResponse, 0, len(ruleset)),
		TotalCount: len(ruleset),
	}
	for _, rule := range ruleset {
		converted, err := toRuleResponse(rule)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		response.Rules = append(response.Rules, converted)
	}
	WriteJSON(w, http.StatusOK, response)
}

// ruleFromRequest builds a typed rule from its wire form. Unknown
// condition fields or operators are rejected here; fail-closed
// evaluation only applies to rules already in storage.
func ruleFromRequest(req dto.CreateRuleRequest) (*rules.Rule, *dto.APIError) {
	rule := rules.Rule{
		Name:     req.Name,
		Priority: req.Priority,
		Active:   req.Active,
	}

	for _, c := range req.Conditions {
		condition, err := rules.NewCondition(c.Field, c.Operator, c.Value, c.Days)
		if err != nil {
			apiErr := dto.ValidationError(err.Error())
			return nil, &apiErr
		}
		rule.Conditions = append(rule.Conditions, condition)
	}

	if req.AmountTolerance != "" {
		tolerance, err := decimal.NewFromString(req.AmountTolerance)
		if err != nil {
			apiErr := dto.ValidationError("invalid amount_tolerance: " + req.AmountTolerance)
			return nil, &apiErr
		}
		rule.Criteria.AmountTolerance = &tolerance
	}
	rule.Criteria.DateToleranceDays = req.DateToleranceDays

	return &rule, nil
}

func toRuleResponse(rule rules.Rule) (dto.RuleResponse, error) {
	conditions, err := rules.MarshalConditions(rule.Conditions)
	if err != nil {
		return dto.RuleResponse{}, err
	}

	response := dto.RuleResponse{
		ID:                rule.ID,
		BusinessID:        rule.BusinessID,
		Name:              rule.Name,
		Conditions:        conditions,
		DateToleranceDays: rule.Criteria.DateToleranceDays,
		Priority:          rule.Priority,
		Active:            rule.Active,
	}
	if rule.Criteria.AmountTolerance != nil {
		response.AmountTolerance = rule.Criteria.AmountTolerance.String()
	}
	return response, nil
}
