// Package recon is the reconciliation engine's application layer: it
// drives rule evaluation and fuzzy matching over a statement's lines,
// persists accepted matches, handles manual overrides, and builds the
// post-run summary with its variances.
package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/finledger/recon-backend/internal/domain/matcher"
	"github.com/finledger/recon-backend/internal/domain/rules"
	"github.com/finledger/recon-backend/internal/infrastructure/storage"
)

// DefaultAcceptThreshold is the minimum confidence an automatic
// candidate needs before its match is persisted. Manual matches are
// always 1.0 and never go through this gate.
const DefaultAcceptThreshold = 0.7

// ErrLineOutOfRange is returned when a match references a statement
// line index the statement does not have.
var ErrLineOutOfRange = errors.New("statement line index out of range")

// Config holds engine tuning.
type Config struct {
	AcceptThreshold float64
	Workers         int // Concurrent line evaluations (default: NumCPU)
	Matcher         matcher.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AcceptThreshold: DefaultAcceptThreshold,
		Workers:         runtime.NumCPU(),
		Matcher:         matcher.DefaultConfig(),
	}
}

// Service is the reconciliation engine. It is stateless: all shared
// data lives behind the repository, so two statements may be
// reconciled concurrently on one Service.
type Service struct {
	repo    storage.Repository
	matcher *matcher.Matcher
	config  Config
	logger  *slog.Logger
}

// NewService creates the engine with an explicit repository dependency.
func NewService(repo storage.Repository, config Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if config.AcceptThreshold == 0 {
		config.AcceptThreshold = DefaultAcceptThreshold
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.Matcher.DateWindowDays == 0 {
		config.Matcher = matcher.DefaultConfig()
	}
	return &Service{
		repo:    repo,
		matcher: matcher.NewMatcher(config.Matcher),
		config:  config,
		logger:  logger,
	}
}

// CreateManualMatch records a user-chosen pairing of a statement line
// with a transaction. It bypasses rule evaluation and scoring
// entirely: the match is MANUAL with confidence 1.0.
//
// Creation does not check for or remove a pre-existing match on the
// same line; callers that want the line re-matched must delete the old
// match first.
func (s *Service) CreateManualMatch(ctx context.Context, statementID string, lineIndex int, transactionID, matchedBy, notes string) (*storage.ReconciliationMatch, error) {
	statement, err := s.repo.GetStatement(ctx, statementID)
	if err != nil {
		return nil, fmt.Errorf("load statement: %w", err)
	}
	if lineIndex < 0 || lineIndex >= len(statement.Lines) {
		return nil, fmt.Errorf("statement %s has no line %d: %w", statementID, lineIndex, ErrLineOutOfRange)
	}

	match := &storage.ReconciliationMatch{
		ID:            uuid.NewString(),
		StatementID:   statementID,
		LineIndex:     lineIndex,
		TransactionID: transactionID,
		MatchType:     storage.MatchTypeManual,
		Confidence:    1.0,
		MatchedBy:     matchedBy,
		MatchedAt:     time.Now().UTC(),
		Notes:         notes,
	}

	if err := s.repo.CreateMatch(ctx, match); err != nil {
		return nil, fmt.Errorf("persist manual match: %w", err)
	}

	s.logger.Info("manual match created",
		"statement_id", statementID,
		"line_index", lineIndex,
		"transaction_id", transactionID,
		"matched_by", matchedBy,
	)

	return match, nil
}

// CreateRule validates and persists a reconciliation rule.
func (s *Service) CreateRule(ctx context.Context, businessID string, rule rules.Rule) (*rules.Rule, error) {
	if rule.Name == "" {
		return nil, fmt.Errorf("rule name is required")
	}
	if len(rule.Conditions) == 0 {
		return nil, fmt.Errorf("rule needs at least one condition")
	}

	rule.ID = uuid.NewString()
	rule.BusinessID = businessID

	if err := s.repo.CreateRule(ctx, &rule); err != nil {
		return nil, fmt.Errorf("persist rule: %w", err)
	}

	s.logger.Info("rule created", "rule_id", rule.ID, "name", rule.Name, "priority", rule.Priority)
	return &rule, nil
}

// ListRules returns all rules for a business, highest priority first.
func (s *Service) ListRules(ctx context.Context, businessID string) ([]rules.Rule, error) {
	return s.repo.ListRules(ctx, businessID)
}
