package recon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finledger/recon-backend/internal/domain/bank"
	"github.com/finledger/recon-backend/internal/domain/ledger"
	"github.com/finledger/recon-backend/internal/domain/rules"
	"github.com/finledger/recon-backend/internal/infrastructure/storage"
)

// AutoMatch runs the matching loop over every line of a statement and
// persists the accepted matches in one batch.
//
// Per line: every active rule is evaluated and the highest-confidence
// result wins (RULE_BASED); when no rule applies, the fuzzy matcher is
// the fallback (AUTO). A candidate is accepted only if its confidence
// meets the threshold. Lines that already carry a match are skipped.
//
// Line evaluation is pure in-memory work against the pre-fetched rule
// set and transaction list, so lines are scored concurrently. Nothing
// is written until every line is done; if ctx is cancelled before the
// batch write, no matches are persisted at all.
func (s *Service) AutoMatch(ctx context.Context, businessID, statementID string) ([]storage.ReconciliationMatch, error) {
	statement, err := s.repo.GetStatement(ctx, statementID)
	if err != nil {
		return nil, fmt.Errorf("load statement: %w", err)
	}
	if _, err := s.repo.GetBankAccount(ctx, statement.BankAccountID); err != nil {
		return nil, fmt.Errorf("load bank account: %w", err)
	}

	allRules, err := s.repo.ListRules(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	active := allRules[:0:0]
	for _, r := range allRules {
		if r.Active {
			active = append(active, r)
		}
	}

	transactions, err := s.repo.ListTransactions(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("load ledger transactions: %w", err)
	}

	existing, err := s.repo.ListMatchesByStatement(ctx, statementID)
	if err != nil {
		return nil, fmt.Errorf("load existing matches: %w", err)
	}
	alreadyMatched := make(map[int]bool, len(existing))
	for _, m := range existing {
		alreadyMatched[m.LineIndex] = true
	}

	s.logger.Info("starting auto-match",
		"statement_id", statementID,
		"lines", len(statement.Lines),
		"active_rules", len(active),
		"transactions", len(transactions),
	)

	results := s.scoreLines(ctx, statement, active, transactions, alreadyMatched)

	// Cancellation is only honored here, before the batch write, so a
	// run's matches are written all-or-nothing.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Merge in statement-line order for a deterministic batch.
	var accepted []storage.ReconciliationMatch
	for _, candidate := range results {
		if candidate != nil {
			accepted = append(accepted, *candidate)
		}
	}

	if err := s.repo.SaveMatches(ctx, accepted); err != nil {
		return nil, fmt.Errorf("persist matches: %w", err)
	}

	s.logger.Info("auto-match complete",
		"statement_id", statementID,
		"matched", len(accepted),
		"unmatched", len(statement.Lines)-len(alreadyMatched)-len(accepted),
	)

	return accepted, nil
}

// scoreLines evaluates statement lines on a bounded worker pool and
// returns candidates indexed by line position. Entries are nil for
// skipped, unmatched, and below-threshold lines.
func (s *Service) scoreLines(
	ctx context.Context,
	statement *bank.Statement,
	active []rules.Rule,
	transactions []ledger.Transaction,
	alreadyMatched map[int]bool,
) []*storage.ReconciliationMatch {
	results := make([]*storage.ReconciliationMatch, len(statement.Lines))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.matchLine(statement.ID, statement.Lines[i], active, transactions)
			}
		}()
	}

feed:
	for i := range statement.Lines {
		if alreadyMatched[statement.Lines[i].Index] {
			continue
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

// matchLine produces the accepted candidate for one line, or nil.
func (s *Service) matchLine(statementID string, line bank.StatementLine, active []rules.Rule, transactions []ledger.Transaction) *storage.ReconciliationMatch {
	var candidate *storage.ReconciliationMatch

	// Every active rule is tried; evaluation order does not affect the
	// outcome because only the highest confidence survives.
	var best *rules.Result
	for _, rule := range active {
		result := rules.Evaluate(line, transactions, rule)
		if result == nil {
			continue
		}
		if best == nil || result.Confidence > best.Confidence {
			best = result
		}
	}

	switch {
	case best != nil:
		candidate = &storage.ReconciliationMatch{
			TransactionID: best.TransactionID,
			MatchType:     storage.MatchTypeRuleBased,
			Confidence:    best.Confidence,
			Notes:         best.Notes,
		}
	default:
		if fuzzy := s.matcher.FindMatch(line, transactions); fuzzy != nil {
			candidate = &storage.ReconciliationMatch{
				TransactionID: fuzzy.TransactionID,
				MatchType:     storage.MatchTypeAuto,
				Confidence:    fuzzy.Confidence,
				Notes:         fuzzy.Notes,
			}
		}
	}

	if candidate == nil || candidate.Confidence < s.config.AcceptThreshold {
		return nil
	}

	candidate.ID = uuid.NewString()
	candidate.StatementID = statementID
	candidate.LineIndex = line.Index
	candidate.MatchedBy = storage.MatchedBySystem
	candidate.MatchedAt = time.Now().UTC()
	return candidate
}
