package dto

import (
	"encoding/json"
	"time"
)

// MatchResponse is one persisted reconciliation match.
type MatchResponse struct {
	ID            string    `json:"id"`
	StatementID   string    `json:"statement_id"`
	LineIndex     int       `json:"line_index"`
	TransactionID string    `json:"transaction_id"`
	MatchType     string    `json:"match_type"`
	Confidence    float64   `json:"confidence"`
	MatchedBy     string    `json:"matched_by"`
	MatchedAt     time.Time `json:"matched_at"`
	Notes         string    `json:"notes,omitempty"`
}

// MatchListResponse wraps a list of matches.
type MatchListResponse struct {
	Matches    []MatchResponse `json:"matches"`
	TotalCount int             `json:"total_count"`
}

// VarianceResponse is one persisted reconciliation variance.
// Amounts are decimal strings.
type VarianceResponse struct {
	ID           string     `json:"id"`
	StatementID  string     `json:"statement_id"`
	VarianceType string     `json:"variance_type"`
	Amount       string     `json:"amount"`
	Description  string     `json:"description"`
	Resolved     bool       `json:"resolved"`
	ResolvedBy   string     `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// VarianceListResponse wraps a list of variances.
type VarianceListResponse struct {
	Variances  []VarianceResponse `json:"variances"`
	TotalCount int                `json:"total_count"`
}

// SummaryResponse is the reconciliation summary for a statement.
// Amounts are decimal strings.
type SummaryResponse struct {
	StatementID          string             `json:"statement_id"`
	TotalStatementLines  int                `json:"total_statement_lines"`
	MatchedLines         int                `json:"matched_lines"`
	UnmatchedLines       int                `json:"unmatched_lines"`
	TotalStatementAmount string             `json:"total_statement_amount"`
	MatchedAmount        string             `json:"matched_amount"`
	UnmatchedAmount      string             `json:"unmatched_amount"`
	MatchPercentage      float64            `json:"match_percentage"`
	Variances            []VarianceResponse `json:"variances"`
}

// RuleResponse is one reconciliation rule. Conditions are returned in
// the same wire form they were created with.
type RuleResponse struct {
	ID                string          `json:"id"`
	BusinessID        string          `json:"business_id"`
	Name              string          `json:"name"`
	Conditions        json.RawMessage `json:"conditions"`
	AmountTolerance   string          `json:"amount_tolerance,omitempty"`
	DateToleranceDays *int            `json:"date_tolerance_days,omitempty"`
	Priority          int             `json:"priority"`
	Active            bool            `json:"active"`
}

// RuleListResponse wraps a list of rules.
type RuleListResponse struct {
	Rules      []RuleResponse `json:"rules"`
	TotalCount int            `json:"total_count"`
}
