package dto

// AutoMatchRequest starts an automatic matching run for a statement.
type AutoMatchRequest struct {
	BusinessID string `json:"business_id"`
}

// SummaryRequest builds the reconciliation summary for a statement.
type SummaryRequest struct {
	BusinessID    string `json:"business_id"`
	BankAccountID string `json:"bank_account_id"`
}

// ManualMatchRequest records a user-chosen match for a statement line.
type ManualMatchRequest struct {
	StatementID   string `json:"statement_id"`
	LineIndex     int    `json:"line_index"`
	TransactionID string `json:"transaction_id"`
	MatchedBy     string `json:"matched_by"`
	Notes         string `json:"notes,omitempty"`
}

// RuleConditionRequest is the wire form of one rule condition.
// Value carries the text needle for description conditions and the
// margin for amount between; Days is the window for date between.
type RuleConditionRequest struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value,omitempty"`
	Days     int    `json:"days,omitempty"`
}

// CreateRuleRequest creates a reconciliation rule for a business.
type CreateRuleRequest struct {
	BusinessID        string                 `json:"business_id"`
	Name              string                 `json:"name"`
	Conditions        []RuleConditionRequest `json:"conditions"`
	AmountTolerance   string                 `json:"amount_tolerance,omitempty"`
	DateToleranceDays *int                   `json:"date_tolerance_days,omitempty"`
	Priority          int                    `json:"priority"`
	Active            bool                   `json:"active"`
}
