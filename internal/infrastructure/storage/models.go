package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Match types. RULE_BASED means a configured rule produced the match,
// AUTO means the fuzzy fallback did, MANUAL means a user created it.
const (
	MatchTypeAuto      = "AUTO"
	MatchTypeRuleBased = "RULE_BASED"
	MatchTypeManual    = "MANUAL"
)

// MatchedBySystem is the matched_by value for engine-created matches.
const MatchedBySystem = "system"

// Variance types.
const (
	VarianceMissingTransaction = "MISSING_TRANSACTION"
)

// ReconciliationMatch pairs one statement line with one ledger
// transaction. At most one automatic match exists per
// (statement_id, line_index); re-matching a line requires deleting the
// prior match first.
type ReconciliationMatch struct {
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

// ReconciliationVariance is a statement line the engine could not
// confidently match; it requires human resolution.
type ReconciliationVariance struct {
	ID              string          `json:"id"`
	StatementID     string          `json:"statement_id"`
	VarianceType    string          `json:"variance_type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Resolved        bool            `json:"resolved"`
	ResolvedBy      string          `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	ResolutionNotes string          `json:"resolution_notes,omitempty"`
}

// ReconciliationResult is everything a completed reconciliation run
// writes besides its matches: the variance batch and the owning bank
// account's last reconciliation date. It is committed as one
// transaction so a crash can't leave variances without the account
// update or vice versa.
type ReconciliationResult struct {
	StatementID   string
	BankAccountID string
	StatementDate time.Time
	Variances     []ReconciliationVariance
}
