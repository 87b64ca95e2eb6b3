package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/finledger/recon-backend/internal/domain/bank"
	"github.com/finledger/recon-backend/internal/domain/ledger"
	"github.com/finledger/recon-backend/internal/domain/rules"
)

// MockRepository is an in-memory implementation of Repository for
// testing. It stores all data in maps and slices, making tests fast
// and isolated.
type MockRepository struct {
	accounts     map[string]*bank.Account
	statements   map[string]*bank.Statement
	transactions map[string][]ledger.Transaction // Keyed by business_id
	rules        map[string][]rules.Rule         // Keyed by business_id
	matches      []ReconciliationMatch
	variances    []ReconciliationVariance

	// Hooks for test assertions
	SaveMatchesCalled       bool
	LastSavedMatches        []ReconciliationMatch
	CreateMatchCalled       bool
	LastCreatedMatch        *ReconciliationMatch
	CompleteReconCalled     bool
	LastReconciliationEvent *ReconciliationResult

	// Error injection for testing error paths
	SaveMatchesErr     error
	CreateMatchErr     error
	CompleteReconErr   error
	ListTransactionErr error
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		accounts:     make(map[string]*bank.Account),
		statements:   make(map[string]*bank.Statement),
		transactions: make(map[string][]ledger.Transaction),
		rules:        make(map[string][]rules.Rule),
	}
}

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// CreateBankAccount stores an account in the in-memory map
func (m *MockRepository) CreateBankAccount(_ context.Context, account *bank.Account) error {
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

// GetBankAccount retrieves an account from the in-memory map
func (m *MockRepository) GetBankAccount(_ context.Context, id string) (*bank.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("bank account %s: %w", id, ErrNotFound)
	}
	copied := *account
	return &copied, nil
}

// CreateStatement stores a statement in the in-memory map
func (m *MockRepository) CreateStatement(_ context.Context, statement *bank.Statement) error {
	copied := *statement
	copied.Lines = append([]bank.StatementLine(nil), statement.Lines...)
	m.statements[statement.ID] = &copied
	return nil
}

// GetStatement retrieves a statement from the in-memory map
func (m *MockRepository) GetStatement(_ context.Context, id string) (*bank.Statement, error) {
	statement, ok := m.statements[id]
	if !ok {
		return nil, fmt.Errorf("statement %s: %w", id, ErrNotFound)
	}
	copied := *statement
	copied.Lines = append([]bank.StatementLine(nil), statement.Lines...)
	return &copied, nil
}

// SetLastReconciliationDate updates the stored account
func (m *MockRepository) SetLastReconciliationDate(_ context.Context, accountID string, date time.Time) error {
	account, ok := m.accounts[accountID]
	if !ok {
		return fmt.Errorf("bank account %s: %w", accountID, ErrNotFound)
	}
	account.LastReconciliationDate = &date
	return nil
}

// SaveTransaction appends a ledger transaction
func (m *MockRepository) SaveTransaction(_ context.Context, tx *ledger.Transaction) error {
	copied := *tx
	copied.Lines = append([]ledger.Line(nil), tx.Lines...)
	m.transactions[tx.BusinessID] = append(m.transactions[tx.BusinessID], copied)
	return nil
}

// ListTransactions returns all transactions for a business
func (m *MockRepository) ListTransactions(_ context.Context, businessID string) ([]ledger.Transaction, error) {
	if m.ListTransactionErr != nil {
		return nil, m.ListTransactionErr
	}
	return append([]ledger.Transaction(nil), m.transactions[businessID]...), nil
}

// CreateRule appends a rule
func (m *MockRepository) CreateRule(_ context.Context, rule *rules.Rule) error {
	copied := *rule
	copied.Conditions = append([]rules.Condition(nil), rule.Conditions...)
	m.rules[rule.BusinessID] = append(m.rules[rule.BusinessID], copied)
	return nil
}

// ListRules returns rules for a business ordered by priority desc
func (m *MockRepository) ListRules(_ context.Context, businessID string) ([]rules.Rule, error) {
	result := append([]rules.Rule(nil), m.rules[businessID]...)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority > result[j].Priority
	})
	return result, nil
}

// SaveMatches appends a batch of matches
func (m *MockRepository) SaveMatches(_ context.Context, matches []ReconciliationMatch) error {
	m.SaveMatchesCalled = true
	m.LastSavedMatches = append([]ReconciliationMatch(nil), matches...)
	if m.SaveMatchesErr != nil {
		return m.SaveMatchesErr
	}
	m.matches = append(m.matches, matches...)
	return nil
}

// CreateMatch appends a single match
func (m *MockRepository) CreateMatch(_ context.Context, match *ReconciliationMatch) error {
	m.CreateMatchCalled = true
	copied := *match
	m.LastCreatedMatch = &copied
	if m.CreateMatchErr != nil {
		return m.CreateMatchErr
	}
	m.matches = append(m.matches, copied)
	return nil
}

// ListMatchesByStatement filters matches by statement id
func (m *MockRepository) ListMatchesByStatement(_ context.Context, statementID string) ([]ReconciliationMatch, error) {
	var result []ReconciliationMatch
	for _, match := range m.matches {
		if match.StatementID == statementID {
			result = append(result, match)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LineIndex < result[j].LineIndex
	})
	return result, nil
}

// DeleteMatch removes a match by id
func (m *MockRepository) DeleteMatch(_ context.Context, id string) error {
	for i, match := range m.matches {
		if match.ID == id {
			m.matches = append(m.matches[:i], m.matches[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("match %s: %w", id, ErrNotFound)
}

// CompleteReconciliation records variances and the account date update
func (m *MockRepository) CompleteReconciliation(_ context.Context, result ReconciliationResult) error {
	m.CompleteReconCalled = true
	copied := result
	copied.Variances = append([]ReconciliationVariance(nil), result.Variances...)
	m.LastReconciliationEvent = &copied
	if m.CompleteReconErr != nil {
		return m.CompleteReconErr
	}
	account, ok := m.accounts[result.BankAccountID]
	if !ok {
		return fmt.Errorf("bank account %s: %w", result.BankAccountID, ErrNotFound)
	}
	m.variances = append(m.variances, result.Variances...)
	date := result.StatementDate
	account.LastReconciliationDate = &date
	return nil
}

// ListVariancesByStatement filters variances by statement id
func (m *MockRepository) ListVariancesByStatement(_ context.Context, statementID string) ([]ReconciliationVariance, error) {
	var result []ReconciliationVariance
	for _, v := range m.variances {
		if v.StatementID == statementID {
			result = append(result, v)
		}
	}
	return result, nil
}

// DeleteVariancesByStatement removes all variances for a statement
func (m *MockRepository) DeleteVariancesByStatement(_ context.Context, statementID string) error {
	kept := m.variances[:0]
	for _, v := range m.variances {
		if v.StatementID != statementID {
			kept = append(kept, v)
		}
	}
	m.variances = kept
	return nil
}
