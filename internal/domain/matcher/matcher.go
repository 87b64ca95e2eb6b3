// Package matcher provides the fallback fuzzy matching strategy used
// when no reconciliation rule produces a result for a statement line.
//
// The matcher uses strict matching criteria:
//   - Net amount must equal the line amount exactly (zero tolerance)
//   - Transaction date must be within the date window (default 7 days)
//
// Example usage:
//
//	m := matcher.NewMatcher(matcher.DefaultConfig())
//	result := m.FindMatch(line, transactions)
//	if result != nil {
//		// Found a match
//	}
package matcher

import (
	"fmt"

	"github.com/finledger/recon-backend/internal/domain/bank"
	"github.com/finledger/recon-backend/internal/domain/ledger"
	"github.com/finledger/recon-backend/internal/domain/rules"
)

// Matcher matches statement lines with ledger transactions by exact
// amount within a date window.
type Matcher struct {
	config Config
}

// NewMatcher creates a new matcher with the given config.
func NewMatcher(config Config) *Matcher {
	return &Matcher{
		config: config,
	}
}

// FindMatch finds the best fuzzy match for a statement line.
// Returns nil if no transaction satisfies both constraints.
//
// Candidates are ranked by date closeness. Equal date distance is
// broken by the lexicographically lowest transaction ID so the result
// does not depend on the store's row ordering.
func (m *Matcher) FindMatch(line bank.StatementLine, transactions []ledger.Transaction) *Result {
	var best *ledger.Transaction
	var bestDiff float64

	for i := range transactions {
		tx := &transactions[i]

		// Exact amount equality, not tolerance-based. A transaction a
		// cent off is not a fuzzy candidate.
		if !tx.NetAmount().Equal(line.Amount) {
			continue
		}

		dateDiff := rules.DaysApart(line.TransactionDate, tx.Date)
		if dateDiff > float64(m.config.DateWindowDays) {
			continue
		}

		if best == nil || dateDiff < bestDiff || (dateDiff == bestDiff && tx.ID < best.ID) {
			best = tx
			bestDiff = dateDiff
		}
	}

	if best == nil {
		return nil
	}

	return &Result{
		TransactionID: best.ID,
		Confidence:    m.config.Confidence,
		DateDiff:      bestDiff,
		Notes:         fmt.Sprintf("exact amount match, %.0f day(s) apart", bestDiff),
	}
}
