package storage

import (
	"context"
	"errors"
	"time"

	"github.com/finledger/recon-backend/internal/domain/bank"
	"github.com/finledger/recon-backend/internal/domain/ledger"
	"github.com/finledger/recon-backend/internal/domain/rules"
)

// ErrNotFound is returned when a referenced record does not exist.
// Callers wrap it with context (which record, which id).
var ErrNotFound = errors.New("record not found")

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	BankRepository
	LedgerRepository
	RuleRepository
	MatchRepository
	VarianceRepository
	Close() error
}

// BankRepository handles bank accounts and imported statements.
type BankRepository interface {
	// CreateBankAccount persists a new bank account.
	CreateBankAccount(ctx context.Context, account *bank.Account) error

	// GetBankAccount retrieves an account by id. Returns ErrNotFound
	// if it does not exist.
	GetBankAccount(ctx context.Context, id string) (*bank.Account, error)

	// CreateStatement persists a statement and its lines.
	CreateStatement(ctx context.Context, statement *bank.Statement) error

	// GetStatement retrieves a statement with its lines ordered by
	// line index. Returns ErrNotFound if it does not exist.
	GetStatement(ctx context.Context, id string) (*bank.Statement, error)

	// SetLastReconciliationDate updates the account's last
	// reconciliation date in a single atomic write.
	SetLastReconciliationDate(ctx context.Context, accountID string, date time.Time) error
}

// LedgerRepository is the engine's read-only view of the ledger, plus
// a seed path used by the CLI and tests. The engine never updates or
// deletes transactions.
type LedgerRepository interface {
	// SaveTransaction persists a ledger transaction and its lines.
	SaveTransaction(ctx context.Context, tx *ledger.Transaction) error

	// ListTransactions returns all transactions for a business.
	ListTransactions(ctx context.Context, businessID string) ([]ledger.Transaction, error)
}

// RuleRepository handles reconciliation rule configuration.
type RuleRepository interface {
	// CreateRule persists a new rule.
	CreateRule(ctx context.Context, rule *rules.Rule) error

	// ListRules returns all rules for a business ordered by priority
	// descending.
	ListRules(ctx context.Context, businessID string) ([]rules.Rule, error)
}

// MatchRepository handles reconciliation matches.
type MatchRepository interface {
	// SaveMatches writes a batch of matches in one transaction, so a
	// reconciliation run is never partially visible.
	SaveMatches(ctx context.Context, matches []ReconciliationMatch) error

	// CreateMatch writes a single match (the manual path).
	CreateMatch(ctx context.Context, match *ReconciliationMatch) error

	// ListMatchesByStatement returns all matches for a statement
	// ordered by line index.
	ListMatchesByStatement(ctx context.Context, statementID string) ([]ReconciliationMatch, error)

	// DeleteMatch removes a match by id. Administrative re-match path.
	DeleteMatch(ctx context.Context, id string) error
}

// VarianceRepository handles reconciliation variances and the
// completion write of a reconciliation run.
type VarianceRepository interface {
	// CompleteReconciliation commits a run's variance batch and the
	// bank account's last reconciliation date as one unit of work.
	// It does not clear prior variances; callers re-running a
	// reconciliation must call DeleteVariancesByStatement first or
	// variance rows will duplicate.
	CompleteReconciliation(ctx context.Context, result ReconciliationResult) error

	// ListVariancesByStatement returns all variances for a statement.
	ListVariancesByStatement(ctx context.Context, statementID string) ([]ReconciliationVariance, error)

	// DeleteVariancesByStatement removes all variances for a statement.
	DeleteVariancesByStatement(ctx context.Context, statementID string) error
}
