package rules

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/finledger/recon-backend/internal/domain/bank"
	"github.com/finledger/recon-backend/internal/domain/ledger"
)

// Confidence scoring weights. A condition-satisfying candidate starts
// at the base; each satisfied tolerance adds its bonus; the total is
// clamped to 1.0. A rule with no tolerances therefore tops out at 0.5,
// which sits below the automatic acceptance threshold on purpose: such
// rules feed manual review, they never auto-match on their own.
const (
	baseConfidence       = 0.5
	amountToleranceBonus = 0.3
	dateToleranceBonus   = 0.2
	maxConfidence        = 1.0
)

// Result is a successful rule evaluation for one statement line.
type Result struct {
	TransactionID string
	Confidence    float64
	Notes         string
}

// Evaluate applies one rule to a statement line against the full
// candidate transaction set. It returns nil when no transaction
// satisfies every condition on the rule.
//
// Among the transactions that satisfy all conditions, the one whose net
// amount is closest to the line amount is taken as the representative
// match, and confidence is scored from the rule's criteria.
func Evaluate(line bank.StatementLine, transactions []ledger.Transaction, rule Rule) *Result {
	var best *ledger.Transaction
	var bestDiff decimal.Decimal

	for i := range transactions {
		if !satisfiesAll(line, transactions[i], rule.Conditions) {
			continue
		}
		diff := line.Amount.Sub(transactions[i].NetAmount()).Abs()
		if best == nil || diff.LessThan(bestDiff) {
			best = &transactions[i]
			bestDiff = diff
		}
	}

	if best == nil {
		return nil
	}

	confidence := baseConfidence
	if rule.Criteria.AmountTolerance != nil && bestDiff.LessThanOrEqual(*rule.Criteria.AmountTolerance) {
		confidence += amountToleranceBonus
	}
	if rule.Criteria.DateToleranceDays != nil &&
		DaysApart(line.TransactionDate, best.Date) <= float64(*rule.Criteria.DateToleranceDays) {
		confidence += dateToleranceBonus
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	return &Result{
		TransactionID: best.ID,
		Confidence:    confidence,
		Notes:         fmt.Sprintf("matched by rule %q", rule.Name),
	}
}

func satisfiesAll(line bank.StatementLine, tx ledger.Transaction, conditions []Condition) bool {
	for _, c := range conditions {
		if !c.Matches(line, tx) {
			return false
		}
	}
	return true
}
