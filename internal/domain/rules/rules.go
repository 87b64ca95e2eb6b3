// Package rules implements business-configured reconciliation rules and
// their evaluation against statement lines.
//
// A rule is a set of conditions (all must hold) plus match criteria that
// drive confidence scoring. Rules are immutable configuration: users
// create and edit them, the engine only reads them.
package rules

import (
	"github.com/shopspring/decimal"
)

// Criteria tunes confidence scoring for a rule. Both tolerances are
// optional; a rule with neither configured scores a flat base
// confidence that sits below the automatic acceptance threshold.
type Criteria struct {
	AmountTolerance   *decimal.Decimal `json:"amount_tolerance,omitempty"`
	DateToleranceDays *int             `json:"date_tolerance_days,omitempty"`
}

// Rule is one reconciliation rule for a business.
type Rule struct {
	ID         string      `json:"id"`
	BusinessID string      `json:"business_id"`
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
	Criteria   Criteria    `json:"criteria"`
	Priority   int         `json:"priority"`
	Active     bool        `json:"active"`
}
