package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finledger/recon-backend/internal/domain/bank"
	"github.com/finledger/recon-backend/internal/domain/ledger"
)

// Condition is one clause of a rule. A transaction is a candidate for a
// statement line only if every condition on the rule holds for the pair.
//
// The set of condition kinds is closed: amount, description, and date.
// Conditions loaded from storage with an unknown field or operator
// decode to a condition that never matches, so one bad rule can't take
// down a whole reconciliation run.
type Condition interface {
	Matches(line bank.StatementLine, tx ledger.Transaction) bool
	envelope() conditionEnvelope
}

// Condition field names as persisted.
const (
	FieldAmount      = "amount"
	FieldDescription = "description"
	FieldDate        = "date"
)

// AmountOperator compares a statement line's amount to a transaction's
// net amount.
type AmountOperator string

const (
	AmountEquals      AmountOperator = "equals"
	AmountGreaterThan AmountOperator = "greater_than"
	AmountLessThan    AmountOperator = "less_than"
	AmountBetween     AmountOperator = "between"
)

// AmountCondition relates the line amount to the transaction's net
// amount. Margin is only consulted by the between operator, where it
// bounds the absolute difference between the two amounts.
type AmountCondition struct {
	Operator AmountOperator
	Margin   decimal.Decimal
}

func (c AmountCondition) Matches(line bank.StatementLine, tx ledger.Transaction) bool {
	net := tx.NetAmount()
	switch c.Operator {
	case AmountEquals:
		return line.Amount.Equal(net)
	case AmountGreaterThan:
		return line.Amount.GreaterThan(net)
	case AmountLessThan:
		return line.Amount.LessThan(net)
	case AmountBetween:
		return line.Amount.Sub(net).Abs().LessThanOrEqual(c.Margin)
	default:
		return false
	}
}

func (c AmountCondition) envelope() conditionEnvelope {
	return conditionEnvelope{Field: FieldAmount, Operator: string(c.Operator), Value: c.Margin.String()}
}

// TextOperator compares condition text against a description.
type TextOperator string

const (
	TextContains   TextOperator = "contains"
	TextEquals     TextOperator = "equals"
	TextStartsWith TextOperator = "starts_with"
)

// DescriptionCondition checks its value against the statement line's
// description and the transaction's description; the condition holds if
// either side satisfies it. All comparisons are case-insensitive.
type DescriptionCondition struct {
	Operator TextOperator
	Value    string
}

func (c DescriptionCondition) Matches(line bank.StatementLine, tx ledger.Transaction) bool {
	return c.matchesText(line.Description) || c.matchesText(tx.Description)
}

func (c DescriptionCondition) matchesText(text string) bool {
	haystack := strings.ToLower(text)
	needle := strings.ToLower(c.Value)
	switch c.Operator {
	case TextContains:
		return strings.Contains(haystack, needle)
	case TextEquals:
		return haystack == needle
	case TextStartsWith:
		return strings.HasPrefix(haystack, needle)
	default:
		return false
	}
}

func (c DescriptionCondition) envelope() conditionEnvelope {
	return conditionEnvelope{Field: FieldDescription, Operator: string(c.Operator), Value: c.Value}
}

// DateOperator compares a statement line's transaction date to a
// transaction's date.
type DateOperator string

const (
	DateEquals      DateOperator = "equals"
	DateGreaterThan DateOperator = "greater_than"
	DateLessThan    DateOperator = "less_than"
	DateBetween     DateOperator = "between"
)

// DateCondition relates the line date to the transaction date. Equals
// means same calendar day. WindowDays is only consulted by the between
// operator, where it bounds the distance between the two dates.
type DateCondition struct {
	Operator   DateOperator
	WindowDays int
}

func (c DateCondition) Matches(line bank.StatementLine, tx ledger.Transaction) bool {
	switch c.Operator {
	case DateEquals:
		return sameDay(line.TransactionDate, tx.Date)
	case DateGreaterThan:
		return line.TransactionDate.After(tx.Date)
	case DateLessThan:
		return line.TransactionDate.Before(tx.Date)
	case DateBetween:
		return DaysApart(line.TransactionDate, tx.Date) <= float64(c.WindowDays)
	default:
		return false
	}
}

func (c DateCondition) envelope() conditionEnvelope {
	return conditionEnvelope{Field: FieldDate, Operator: string(c.Operator), Days: c.WindowDays}
}

// invalidCondition is the decoded form of a condition whose field or
// operator is not recognized. It never matches.
type invalidCondition struct {
	Field    string
	Operator string
	Value    string
	Days     int
}

func (c invalidCondition) Matches(bank.StatementLine, ledger.Transaction) bool { return false }

func (c invalidCondition) envelope() conditionEnvelope {
	return conditionEnvelope{Field: c.Field, Operator: c.Operator, Value: c.Value, Days: c.Days}
}

// conditionEnvelope is the wire/storage form of a condition.
type conditionEnvelope struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value,omitempty"`
	Days     int    `json:"days,omitempty"`
}

// NewCondition builds a typed condition from its wire form. Unknown
// fields or operators return an error; storage decoding deliberately
// swallows that error into a never-matching condition instead.
func NewCondition(field, operator, value string, days int) (Condition, error) {
	switch field {
	case FieldAmount:
		op := AmountOperator(operator)
		switch op {
		case AmountEquals, AmountGreaterThan, AmountLessThan, AmountBetween:
		default:
			return nil, fmt.Errorf("unknown amount operator %q", operator)
		}
		margin := decimal.Zero
		if value != "" {
			var err error
			margin, err = decimal.NewFromString(value)
			if err != nil {
				return nil, fmt.Errorf("invalid amount condition value %q: %w", value, err)
			}
		}
		return AmountCondition{Operator: op, Margin: margin}, nil
	case FieldDescription:
		op := TextOperator(operator)
		switch op {
		case TextContains, TextEquals, TextStartsWith:
		default:
			return nil, fmt.Errorf("unknown description operator %q", operator)
		}
		return DescriptionCondition{Operator: op, Value: value}, nil
	case FieldDate:
		op := DateOperator(operator)
		switch op {
		case DateEquals, DateGreaterThan, DateLessThan, DateBetween:
		default:
			return nil, fmt.Errorf("unknown date operator %q", operator)
		}
		return DateCondition{Operator: op, WindowDays: days}, nil
	default:
		return nil, fmt.Errorf("unknown condition field %q", field)
	}
}

// MarshalConditions encodes conditions for storage.
func MarshalConditions(conditions []Condition) ([]byte, error) {
	envelopes := make([]conditionEnvelope, 0, len(conditions))
	for _, c := range conditions {
		envelopes = append(envelopes, c.envelope())
	}
	return json.Marshal(envelopes)
}

// UnmarshalConditions decodes stored conditions. Entries with an
// unknown field or operator become never-matching conditions rather
// than errors, so a rule saved by a newer (or buggier) writer degrades
// to "does not match" instead of failing the run.
func UnmarshalConditions(data []byte) ([]Condition, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var envelopes []conditionEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("decode rule conditions: %w", err)
	}
	conditions := make([]Condition, 0, len(envelopes))
	for _, env := range envelopes {
		c, err := NewCondition(env.Field, env.Operator, env.Value, env.Days)
		if err != nil {
			c = invalidCondition{Field: env.Field, Operator: env.Operator, Value: env.Value, Days: env.Days}
		}
		conditions = append(conditions, c)
	}
	return conditions, nil
}

// DaysApart returns the absolute distance between two instants in days.
func DaysApart(a, b time.Time) float64 {
	return math.Abs(a.Sub(b).Hours() / 24)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
