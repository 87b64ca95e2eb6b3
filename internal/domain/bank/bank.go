// Package bank holds the bank-side models the reconciliation engine
// works against: accounts, imported statements, and statement lines.
//
// Statements are immutable once imported; the only field on this side
// a reconciliation run ever writes is the account's last reconciliation
// date, and that happens through the storage layer.
package bank

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType categorizes a bank account.
type AccountType string

const (
	AccountChecking AccountType = "checking"
	AccountSavings  AccountType = "savings"
	AccountCredit   AccountType = "credit"
	AccountBusiness AccountType = "business"
)

// Account is a bank account owned by a business.
type Account struct {
	ID                     string      `json:"id"`
	BusinessID             string      `json:"business_id"`
	AccountName            string      `json:"account_name"`
	AccountNumber          string      `json:"account_number"`
	BankName               string      `json:"bank_name"`
	AccountType            AccountType `json:"account_type"`
	Currency               string      `json:"currency"`
	Active                 bool        `json:"active"`
	LastReconciliationDate *time.Time  `json:"last_reconciliation_date,omitempty"`
}

// Statement is an imported bank statement with its ordered lines.
type Statement struct {
	ID             string          `json:"id"`
	BankAccountID  string          `json:"bank_account_id"`
	StatementDate  time.Time       `json:"statement_date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Lines          []StatementLine `json:"lines"`
	ImportSource   string          `json:"import_source"`
	ImportedAt     time.Time       `json:"imported_at"`
}

// StatementLine is one entry on a statement. Amount keeps the
// statement's native sign convention.
type StatementLine struct {
	Index           int             `json:"index"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate time.Time       `json:"transaction_date"`
}
