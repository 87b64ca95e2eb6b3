package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finledger/recon-backend/internal/domain/bank"
	"github.com/finledger/recon-backend/internal/domain/ledger"
	"github.com/finledger/recon-backend/internal/domain/rules"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedAccount(t *testing.T, s *Storage, id string) {
	t.Helper()
	require.NoError(t, s.CreateBankAccount(context.Background(), &bank.Account{
		ID:            id,
		BusinessID:    "biz-1",
		AccountName:   "Operating",
		AccountNumber: "0001",
		BankName:      "First National",
		AccountType:   bank.AccountChecking,
		Currency:      "USD",
		Active:        true,
	}))
}

func seedStatement(t *testing.T, s *Storage, id, accountID string, lines []bank.StatementLine) {
	t.Helper()
	require.NoError(t, s.CreateStatement(context.Background(), &bank.Statement{
		ID:             id,
		BankAccountID:  accountID,
		StatementDate:  time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		OpeningBalance: dec("1000.00"),
		ClosingBalance: dec("1250.75"),
		Lines:          lines,
		ImportSource:   "csv",
		ImportedAt:     time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
	}))
}

func TestBankAccountCRUD(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		seedAccount(t, s, "acct-1")

		got, err := s.GetBankAccount(ctx, "acct-1")
		require.NoError(t, err)
		assert.Equal(t, "biz-1", got.BusinessID)
		assert.Equal(t, bank.AccountChecking, got.AccountType)
		assert.True(t, got.Active)
		assert.Nil(t, got.LastReconciliationDate)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.GetBankAccount(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set last reconciliation date", func(t *testing.T) {
		date := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.SetLastReconciliationDate(ctx, "acct-1", date))

		got, err := s.GetBankAccount(ctx, "acct-1")
		require.NoError(t, err)
		require.NotNil(t, got.LastReconciliationDate)
		assert.True(t, got.LastReconciliationDate.Equal(date))

		assert.ErrorIs(t, s.SetLastReconciliationDate(ctx, "missing", date), ErrNotFound)
	})
}

func TestStatementRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	seedAccount(t, s, "acct-1")

	lines := []bank.StatementLine{
		{Index: 0, Description: "wire in", Amount: dec("500.25"), TransactionDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{Index: 1, Description: "card payment", Amount: dec("-42.10"), TransactionDate: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)},
	}
	seedStatement(t, s, "stmt-1", "acct-1", lines)

	got, err := s.GetStatement(ctx, "stmt-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", got.BankAccountID)
	assert.True(t, got.OpeningBalance.Equal(dec("1000.00")))
	assert.True(t, got.ClosingBalance.Equal(dec("1250.75")))
	assert.Equal(t, "csv", got.ImportSource)

	require.Len(t, got.Lines, 2)
	assert.Equal(t, 0, got.Lines[0].Index)
	assert.Equal(t, "wire in", got.Lines[0].Description)
	assert.True(t, got.Lines[0].Amount.Equal(dec("500.25")))
	assert.True(t, got.Lines[1].Amount.Equal(dec("-42.10")), "negative amounts survive the round trip")

	_, err = s.GetStatement(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	// A balanced two-line entry: cash debit against revenue credit.
	require.NoError(t, s.SaveTransaction(ctx, &ledger.Transaction{
		ID:          "tx-1",
		BusinessID:  "biz-1",
		Date:        time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Description: "invoice 42",
		Lines: []ledger.Line{
			{AccountID: "cash", Debit: dec("500.25")},
			{AccountID: "revenue", Credit: dec("500.25")},
		},
	}))
	require.NoError(t, s.SaveTransaction(ctx, &ledger.Transaction{
		ID:          "tx-2",
		BusinessID:  "biz-1",
		Date:        time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Description: "refund",
		Lines: []ledger.Line{
			{AccountID: "cash", Credit: dec("42.10")},
		},
	}))

	listed, err := s.ListTransactions(ctx, "biz-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)

	// Ordered by date.
	assert.Equal(t, "tx-2", listed[0].ID)
	assert.Equal(t, "tx-1", listed[1].ID)

	require.Len(t, listed[1].Lines, 2)
	assert.True(t, listed[1].NetAmount().Equal(dec("0")), "balanced entry nets to zero")
	assert.True(t, listed[0].NetAmount().Equal(dec("42.10")))

	other, err := s.ListTransactions(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRuleRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	amountCond, err := rules.NewCondition("amount", "between", "0.05", 0)
	require.NoError(t, err)
	descCond, err := rules.NewCondition("description", "contains", "ACME", 0)
	require.NoError(t, err)

	tolerance := dec("0.05")
	days := 2
	require.NoError(t, s.CreateRule(ctx, &rules.Rule{
		ID:         "rule-1",
		BusinessID: "biz-1",
		Name:       "payroll",
		Conditions: []rules.Condition{amountCond, descCond},
		Criteria:   rules.Criteria{AmountTolerance: &tolerance, DateToleranceDays: &days},
		Priority:   5,
		Active:     true,
	}))
	require.NoError(t, s.CreateRule(ctx, &rules.Rule{
		ID:         "rule-2",
		BusinessID: "biz-1",
		Name:       "bare",
		Conditions: []rules.Condition{descCond},
		Priority:   9,
		Active:     false,
	}))

	listed, err := s.ListRules(ctx, "biz-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)

	// Highest priority first.
	assert.Equal(t, "rule-2", listed[0].ID)
	assert.False(t, listed[0].Active)
	assert.Nil(t, listed[0].Criteria.AmountTolerance)
	assert.Nil(t, listed[0].Criteria.DateToleranceDays)

	full := listed[1]
	assert.Equal(t, "payroll", full.Name)
	assert.Equal(t, []rules.Condition{amountCond, descCond}, full.Conditions)
	require.NotNil(t, full.Criteria.AmountTolerance)
	assert.True(t, full.Criteria.AmountTolerance.Equal(tolerance))
	require.NotNil(t, full.Criteria.DateToleranceDays)
	assert.Equal(t, 2, *full.Criteria.DateToleranceDays)
}

func TestMatchPersistence(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	seedAccount(t, s, "acct-1")
	seedStatement(t, s, "stmt-1", "acct-1", []bank.StatementLine{
		{Index: 0, Description: "a", Amount: dec("10.00"), TransactionDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{Index: 1, Description: "b", Amount: dec("20.00"), TransactionDate: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)},
	})

	matchedAt := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	batch := []ReconciliationMatch{
		{ID: "m-1", StatementID: "stmt-1", LineIndex: 1, TransactionID: "tx-2",
			MatchType: MatchTypeAuto, Confidence: 0.8, MatchedBy: MatchedBySystem, MatchedAt: matchedAt},
		{ID: "m-0", StatementID: "stmt-1", LineIndex: 0, TransactionID: "tx-1",
			MatchType: MatchTypeRuleBased, Confidence: 1.0, MatchedBy: MatchedBySystem, MatchedAt: matchedAt, Notes: "matched by rule \"payroll\""},
	}
	require.NoError(t, s.SaveMatches(ctx, batch))
	require.NoError(t, s.SaveMatches(ctx, nil), "empty batch is a no-op")

	require.NoError(t, s.CreateMatch(ctx, &ReconciliationMatch{
		ID: "m-manual", StatementID: "stmt-1", LineIndex: 0, TransactionID: "tx-9",
		MatchType: MatchTypeManual, Confidence: 1.0, MatchedBy: "alex@example.com", MatchedAt: matchedAt.Add(time.Hour),
	}))

	listed, err := s.ListMatchesByStatement(ctx, "stmt-1")
	require.NoError(t, err)
	require.Len(t, listed, 3)

	// Ordered by line index, then match time. Line 0 holds both the
	// rule match and the later manual one.
	assert.Equal(t, "m-0", listed[0].ID)
	assert.Equal(t, "m-manual", listed[1].ID)
	assert.Equal(t, "m-1", listed[2].ID)
	assert.Equal(t, MatchTypeManual, listed[1].MatchType)
	assert.Equal(t, 0.8, listed[2].Confidence)
	assert.Contains(t, listed[0].Notes, "payroll")

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.DeleteMatch(ctx, "m-manual"))
		listed, err := s.ListMatchesByStatement(ctx, "stmt-1")
		require.NoError(t, err)
		assert.Len(t, listed, 2)

		assert.ErrorIs(t, s.DeleteMatch(ctx, "m-manual"), ErrNotFound)
	})
}

func TestCompleteReconciliation(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	seedAccount(t, s, "acct-1")
	seedStatement(t, s, "stmt-1", "acct-1", nil)

	statementDate := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	variances := []ReconciliationVariance{
		{ID: "v-1", StatementID: "stmt-1", VarianceType: VarianceMissingTransaction,
			Amount: dec("-9.99"), Description: `no ledger transaction matched statement line "mystery fee"`},
	}

	t.Run("commits variances and date together", func(t *testing.T) {
		require.NoError(t, s.CompleteReconciliation(ctx, ReconciliationResult{
			StatementID:   "stmt-1",
			BankAccountID: "acct-1",
			StatementDate: statementDate,
			Variances:     variances,
		}))

		stored, err := s.ListVariancesByStatement(ctx, "stmt-1")
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, VarianceMissingTransaction, stored[0].VarianceType)
		assert.True(t, stored[0].Amount.Equal(dec("-9.99")))
		assert.False(t, stored[0].Resolved)
		assert.Nil(t, stored[0].ResolvedAt)

		account, err := s.GetBankAccount(ctx, "acct-1")
		require.NoError(t, err)
		require.NotNil(t, account.LastReconciliationDate)
		assert.True(t, account.LastReconciliationDate.Equal(statementDate))
	})

	t.Run("rolls back on unknown account", func(t *testing.T) {
		err := s.CompleteReconciliation(ctx, ReconciliationResult{
			StatementID:   "stmt-1",
			BankAccountID: "missing",
			StatementDate: statementDate,
			Variances: []ReconciliationVariance{
				{ID: "v-orphan", StatementID: "stmt-1", VarianceType: VarianceMissingTransaction,
					Amount: dec("1.00"), Description: "should not persist"},
			},
		})
		assert.ErrorIs(t, err, ErrNotFound)

		stored, listErr := s.ListVariancesByStatement(ctx, "stmt-1")
		require.NoError(t, listErr)
		assert.Len(t, stored, 1, "the failed run's variance was rolled back")
	})

	t.Run("delete variances", func(t *testing.T) {
		require.NoError(t, s.DeleteVariancesByStatement(ctx, "stmt-1"))
		stored, err := s.ListVariancesByStatement(ctx, "stmt-1")
		require.NoError(t, err)
		assert.Empty(t, stored)
	})
}
