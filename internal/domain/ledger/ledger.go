// Package ledger provides a read-only view of double-entry ledger
// transactions for the reconciliation engine.
//
// The engine never posts or balances transactions; the external ledger
// service owns those rules. The only derived quantity this package adds
// is a transaction's net signed amount, which is what gets compared
// against bank statement line amounts.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is a single debit/credit leg of a ledger transaction.
type Line struct {
	AccountID string          `json:"account_id"`
	Debit     decimal.Decimal `json:"debit_amount"`
	Credit    decimal.Decimal `json:"credit_amount"`
}

// Transaction is a posted double-entry transaction. For posted
// transactions the ledger guarantees sum(debits) == sum(credits);
// this package does not re-check that.
type Transaction struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Lines       []Line    `json:"lines"`
}

// NetAmount returns the transaction's net signed amount: the sum of
// credit amounts minus the sum of debit amounts across its lines.
func (t Transaction) NetAmount() decimal.Decimal {
	net := decimal.Zero
	for _, line := range t.Lines {
		net = net.Add(line.Credit).Sub(line.Debit)
	}
	return net
}
