package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/finledger/recon-backend/internal/domain/bank"
	"github.com/finledger/recon-backend/internal/domain/ledger"
	"github.com/finledger/recon-backend/internal/domain/rules"
)

// Storage provides SQLite database access for the reconciliation
// engine. It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	// Run all pending migrations
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// CreateBankAccount persists a new bank account
func (s *Storage) CreateBankAccount(ctx context.Context, account *bank.Account) error {
	query := `
	INSERT INTO bank_accounts
	(id, business_id, account_name, account_number, bank_name, account_type,
	 currency, active, last_reconciliation_date)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var lastRecon interface{}
	if account.LastReconciliationDate != nil {
		lastRecon = *account.LastReconciliationDate
	}

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.BusinessID,
		account.AccountName,
		account.AccountNumber,
		account.BankName,
		string(account.AccountType),
		account.Currency,
		account.Active,
		lastRecon,
	)
	if err != nil {
		return fmt.Errorf("create bank account: %w", err)
	}
	return nil
}

// GetBankAccount retrieves an account by id
func (s *Storage) GetBankAccount(ctx context.Context, id string) (*bank.Account, error) {
	query := `
	SELECT id, business_id, account_name, account_number, bank_name,
	       account_type, currency, active, last_reconciliation_date
	FROM bank_accounts WHERE id = ?
	`

	account := &bank.Account{}
	var accountType string
	var lastRecon sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.BusinessID,
		&account.AccountName,
		&account.AccountNumber,
		&account.BankName,
		&accountType,
		&account.Currency,
		&account.Active,
		&lastRecon,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bank account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get bank account: %w", err)
	}

	account.AccountType = bank.AccountType(accountType)
	if lastRecon.Valid {
		t := lastRecon.Time
		account.LastReconciliationDate = &t
	}
	return account, nil
}

// CreateStatement persists a statement and its lines in one transaction
func (s *Storage) CreateStatement(ctx context.Context, statement *bank.Statement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create statement: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bank_statements
		(id, bank_account_id, statement_date, opening_balance, closing_balance,
		 import_source, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		statement.ID,
		statement.BankAccountID,
		statement.StatementDate,
		statement.OpeningBalance.String(),
		statement.ClosingBalance.String(),
		statement.ImportSource,
		statement.ImportedAt,
	)
	if err != nil {
		return fmt.Errorf("create statement: %w", err)
	}

	for _, line := range statement.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO statement_lines
			(statement_id, line_index, description, amount, transaction_date)
			VALUES (?, ?, ?, ?, ?)
		`,
			statement.ID,
			line.Index,
			line.Description,
			line.Amount.String(),
			line.TransactionDate,
		)
		if err != nil {
			return fmt.Errorf("create statement line %d: %w", line.Index, err)
		}
	}

	return tx.Commit()
}

// GetStatement retrieves a statement with its lines ordered by index
func (s *Storage) GetStatement(ctx context.Context, id string) (*bank.Statement, error) {
	statement := &bank.Statement{}
	var opening, closing string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, bank_account_id, statement_date, opening_balance,
		       closing_balance, import_source, imported_at
		FROM bank_statements WHERE id = ?
	`, id).Scan(
		&statement.ID,
		&statement.BankAccountID,
		&statement.StatementDate,
		&opening,
		&closing,
		&statement.ImportSource,
		&statement.ImportedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("statement %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get statement: %w", err)
	}

	if statement.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
		return nil, fmt.Errorf("statement %s opening balance: %w", id, err)
	}
	if statement.ClosingBalance, err = decimal.NewFromString(closing); err != nil {
		return nil, fmt.Errorf("statement %s closing balance: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT line_index, description, amount, transaction_date
		FROM statement_lines WHERE statement_id = ?
		ORDER BY line_index
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get statement lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line bank.StatementLine
		var amount string
		if err := rows.Scan(&line.Index, &line.Description, &amount, &line.TransactionDate); err != nil {
			return nil, fmt.Errorf("scan statement line: %w", err)
		}
		if line.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("statement line %d amount: %w", line.Index, err)
		}
		statement.Lines = append(statement.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statement lines: %w", err)
	}

	return statement, nil
}

// SetLastReconciliationDate updates the account's last reconciliation
// date. Single UPDATE, so two concurrent runs against the same account
// resolve last-writer-wins without interleaving.
func (s *Storage) SetLastReconciliationDate(ctx context.Context, accountID string, date time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bank_accounts SET last_reconciliation_date = ? WHERE id = ?
	`, date, accountID)
	if err != nil {
		return fmt.Errorf("set last reconciliation date: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("bank account %s: %w", accountID, ErrNotFound)
	}
	return nil
}

// SaveTransaction persists a ledger transaction and its lines
func (s *Storage) SaveTransaction(ctx context.Context, transaction *ledger.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_transactions (id, business_id, date, description)
		VALUES (?, ?, ?, ?)
	`, transaction.ID, transaction.BusinessID, transaction.Date, transaction.Description)
	if err != nil {
		return fmt.Errorf("save ledger transaction: %w", err)
	}

	for i, line := range transaction.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_transaction_lines
			(transaction_id, line_no, account_id, debit_amount, credit_amount)
			VALUES (?, ?, ?, ?, ?)
		`, transaction.ID, i, line.AccountID, line.Debit.String(), line.Credit.String())
		if err != nil {
			return fmt.Errorf("save ledger transaction line %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// ListTransactions returns all transactions for a business with their
// lines
func (s *Storage) ListTransactions(ctx context.Context, businessID string) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, date, description
		FROM ledger_transactions WHERE business_id = ?
		ORDER BY date, id
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list ledger transactions: %w", err)
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	index := make(map[string]int)
	for rows.Next() {
		var t ledger.Transaction
		if err := rows.Scan(&t.ID, &t.BusinessID, &t.Date, &t.Description); err != nil {
			return nil, fmt.Errorf("scan ledger transaction: %w", err)
		}
		index[t.ID] = len(transactions)
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger transactions: %w", err)
	}
	if len(transactions) == 0 {
		return nil, nil
	}

	lineRows, err := s.db.QueryContext(ctx, `
		SELECT l.transaction_id, l.account_id, l.debit_amount, l.credit_amount
		FROM ledger_transaction_lines l
		JOIN ledger_transactions t ON t.id = l.transaction_id
		WHERE t.business_id = ?
		ORDER BY l.transaction_id, l.line_no
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list ledger transaction lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var txID, accountID, debit, credit string
		if err := lineRows.Scan(&txID, &accountID, &debit, &credit); err != nil {
			return nil, fmt.Errorf("scan ledger transaction line: %w", err)
		}
		line := ledger.Line{AccountID: accountID}
		if line.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, fmt.Errorf("transaction %s debit amount: %w", txID, err)
		}
		if line.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, fmt.Errorf("transaction %s credit amount: %w", txID, err)
		}
		i, ok := index[txID]
		if !ok {
			continue
		}
		transactions[i].Lines = append(transactions[i].Lines, line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger transaction lines: %w", err)
	}

	return transactions, nil
}

// CreateRule persists a new reconciliation rule
func (s *Storage) CreateRule(ctx context.Context, rule *rules.Rule) error {
	conditionsJSON, err := rules.MarshalConditions(rule.Conditions)
	if err != nil {
		return fmt.Errorf("encode rule conditions: %w", err)
	}

	var amountTolerance interface{}
	if rule.Criteria.AmountTolerance != nil {
		amountTolerance = rule.Criteria.AmountTolerance.String()
	}
	var dateTolerance interface{}
	if rule.Criteria.DateToleranceDays != nil {
		dateTolerance = *rule.Criteria.DateToleranceDays
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_rules
		(id, business_id, name, conditions_json, amount_tolerance,
		 date_tolerance_days, priority, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rule.ID,
		rule.BusinessID,
		rule.Name,
		string(conditionsJSON),
		amountTolerance,
		dateTolerance,
		rule.Priority,
		rule.Active,
	)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

// ListRules returns all rules for a business ordered by priority desc
func (s *Storage) ListRules(ctx context.Context, businessID string) ([]rules.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, name, conditions_json, amount_tolerance,
		       date_tolerance_days, priority, active
		FROM reconciliation_rules WHERE business_id = ?
		ORDER BY priority DESC, name
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var result []rules.Rule
	for rows.Next() {
		var rule rules.Rule
		var conditionsJSON string
		var amountTolerance sql.NullString
		var dateTolerance sql.NullInt64
		if err := rows.Scan(
			&rule.ID,
			&rule.BusinessID,
			&rule.Name,
			&conditionsJSON,
			&amountTolerance,
			&dateTolerance,
			&rule.Priority,
			&rule.Active,
		); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}

		if rule.Conditions, err = rules.UnmarshalConditions([]byte(conditionsJSON)); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if amountTolerance.Valid {
			tolerance, err := decimal.NewFromString(amountTolerance.String)
			if err != nil {
				return nil, fmt.Errorf("rule %s amount tolerance: %w", rule.ID, err)
			}
			rule.Criteria.AmountTolerance = &tolerance
		}
		if dateTolerance.Valid {
			days := int(dateTolerance.Int64)
			rule.Criteria.DateToleranceDays = &days
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

// SaveMatches writes a batch of matches in one transaction
func (s *Storage) SaveMatches(ctx context.Context, matches []ReconciliationMatch) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save matches: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, match := range matches {
		if err := insertMatch(ctx, tx, &match); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CreateMatch writes a single match (the manual path)
func (s *Storage) CreateMatch(ctx context.Context, match *ReconciliationMatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create match: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertMatch(ctx, tx, match); err != nil {
		return err
	}
	return tx.Commit()
}

func insertMatch(ctx context.Context, tx *sql.Tx, match *ReconciliationMatch) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reconciliation_matches
		(id, statement_id, line_index, transaction_id, match_type,
		 confidence, matched_by, matched_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		match.ID,
		match.StatementID,
		match.LineIndex,
		match.TransactionID,
		match.MatchType,
		match.Confidence,
		match.MatchedBy,
		match.MatchedAt,
		match.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert match for line %d: %w", match.LineIndex, err)
	}
	return nil
}

// ListMatchesByStatement returns all matches for a statement
func (s *Storage) ListMatchesByStatement(ctx context.Context, statementID string) ([]ReconciliationMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, statement_id, line_index, transaction_id, match_type,
		       confidence, matched_by, matched_at, notes
		FROM reconciliation_matches WHERE statement_id = ?
		ORDER BY line_index, matched_at
	`, statementID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []ReconciliationMatch
	for rows.Next() {
		var m ReconciliationMatch
		if err := rows.Scan(
			&m.ID,
			&m.StatementID,
			&m.LineIndex,
			&m.TransactionID,
			&m.MatchType,
			&m.Confidence,
			&m.MatchedBy,
			&m.MatchedAt,
			&m.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteMatch removes a match by id
func (s *Storage) DeleteMatch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reconciliation_matches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	return nil
}

// CompleteReconciliation commits the variance batch and the account
// date update as one unit of work
func (s *Storage) CompleteReconciliation(ctx context.Context, result ReconciliationResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete reconciliation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, v := range result.Variances {
		var resolvedAt interface{}
		if v.ResolvedAt != nil {
			resolvedAt = *v.ResolvedAt
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reconciliation_variances
			(id, statement_id, variance_type, amount, description,
			 resolved, resolved_by, resolved_at, resolution_notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			v.ID,
			v.StatementID,
			v.VarianceType,
			v.Amount.String(),
			v.Description,
			v.Resolved,
			v.ResolvedBy,
			resolvedAt,
			v.ResolutionNotes,
		)
		if err != nil {
			return fmt.Errorf("insert variance: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE bank_accounts SET last_reconciliation_date = ? WHERE id = ?
	`, result.StatementDate, result.BankAccountID)
	if err != nil {
		return fmt.Errorf("update last reconciliation date: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("bank account %s: %w", result.BankAccountID, ErrNotFound)
	}

	return tx.Commit()
}

// ListVariancesByStatement returns all variances for a statement
func (s *Storage) ListVariancesByStatement(ctx context.Context, statementID string) ([]ReconciliationVariance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, statement_id, variance_type, amount, description,
		       resolved, resolved_by, resolved_at, resolution_notes
		FROM reconciliation_variances WHERE statement_id = ?
		ORDER BY id
	`, statementID)
	if err != nil {
		return nil, fmt.Errorf("list variances: %w", err)
	}
	defer rows.Close()

	var variances []ReconciliationVariance
	for rows.Next() {
		var v ReconciliationVariance
		var amount string
		var resolvedAt sql.NullTime
		if err := rows.Scan(
			&v.ID,
			&v.StatementID,
			&v.VarianceType,
			&amount,
			&v.Description,
			&v.Resolved,
			&v.ResolvedBy,
			&resolvedAt,
			&v.ResolutionNotes,
		); err != nil {
			return nil, fmt.Errorf("scan variance: %w", err)
		}
		if v.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("variance %s amount: %w", v.ID, err)
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			v.ResolvedAt = &t
		}
		variances = append(variances, v)
	}
	return variances, rows.Err()
}

// DeleteVariancesByStatement removes all variances for a statement
func (s *Storage) DeleteVariancesByStatement(ctx context.Context, statementID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM reconciliation_variances WHERE statement_id = ?
	`, statementID)
	if err != nil {
		return fmt.Errorf("delete variances: %w", err)
	}
	return nil
}
