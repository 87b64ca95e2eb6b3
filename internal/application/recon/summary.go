package recon

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finledger/recon-backend/internal/infrastructure/storage"
)

// Summary aggregates the outcome of reconciling one statement. For a
// completed run, every line index is either matched or carries a
// variance; the two classes never overlap.
type Summary struct {
	StatementID          string                           `json:"statement_id"`
	TotalStatementLines  int                              `json:"total_statement_lines"`
	MatchedLines         int                              `json:"matched_lines"`
	UnmatchedLines       int                              `json:"unmatched_lines"`
	TotalStatementAmount decimal.Decimal                  `json:"total_statement_amount"`
	MatchedAmount        decimal.Decimal                  `json:"matched_amount"`
	UnmatchedAmount      decimal.Decimal                  `json:"unmatched_amount"`
	MatchPercentage      float64                          `json:"match_percentage"`
	Variances            []storage.ReconciliationVariance `json:"variances"`
}

// BuildSummary computes the reconciliation summary for a statement,
// persists one MISSING_TRANSACTION variance per unmatched line, and
// stamps the bank account's last reconciliation date with the
// statement date. The variance batch and the date stamp commit as one
// unit of work.
//
// The summary math is idempotent for an unchanged match set, but
// variance creation is not: re-running without first calling
// DeleteVariancesByStatement duplicates variance rows. Clearing is the
// caller's responsibility.
func (s *Service) BuildSummary(ctx context.Context, businessID, bankAccountID, statementID string) (*Summary, error) {
	account, err := s.repo.GetBankAccount(ctx, bankAccountID)
	if err != nil {
		return nil, fmt.Errorf("load bank account: %w", err)
	}
	if account.BusinessID != businessID {
		return nil, fmt.Errorf("bank account %s does not belong to business %s: %w",
			bankAccountID, businessID, storage.ErrNotFound)
	}

	statement, err := s.repo.GetStatement(ctx, statementID)
	if err != nil {
		return nil, fmt.Errorf("load statement: %w", err)
	}

	matches, err := s.repo.ListMatchesByStatement(ctx, statementID)
	if err != nil {
		return nil, fmt.Errorf("load matches: %w", err)
	}
	matchedIndex := make(map[int]bool, len(matches))
	for _, m := range matches {
		matchedIndex[m.LineIndex] = true
	}

	summary := &Summary{
		StatementID:         statementID,
		TotalStatementLines: len(statement.Lines),
	}

	for _, line := range statement.Lines {
		summary.TotalStatementAmount = summary.TotalStatementAmount.Add(line.Amount)
		if matchedIndex[line.Index] {
			summary.MatchedLines++
			summary.MatchedAmount = summary.MatchedAmount.Add(line.Amount)
			continue
		}
		summary.Variances = append(summary.Variances, storage.ReconciliationVariance{
			ID:           uuid.NewString(),
			StatementID:  statementID,
			VarianceType: storage.VarianceMissingTransaction,
			Amount:       line.Amount,
			Description:  fmt.Sprintf("no ledger transaction matched statement line %q", line.Description),
		})
	}

	summary.UnmatchedLines = summary.TotalStatementLines - summary.MatchedLines
	summary.UnmatchedAmount = summary.TotalStatementAmount.Sub(summary.MatchedAmount)
	if summary.TotalStatementLines > 0 {
		summary.MatchPercentage = float64(summary.MatchedLines) / float64(summary.TotalStatementLines) * 100
	}

	err = s.repo.CompleteReconciliation(ctx, storage.ReconciliationResult{
		StatementID:   statementID,
		BankAccountID: bankAccountID,
		StatementDate: statement.StatementDate,
		Variances:     summary.Variances,
	})
	if err != nil {
		return nil, fmt.Errorf("complete reconciliation: %w", err)
	}

	s.logger.Info("reconciliation summary built",
		"statement_id", statementID,
		"matched_lines", summary.MatchedLines,
		"unmatched_lines", summary.UnmatchedLines,
		"match_percentage", summary.MatchPercentage,
	)

	return summary, nil
}
