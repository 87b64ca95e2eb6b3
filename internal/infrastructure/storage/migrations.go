package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_reconciliation_tables",
		Up:      migration002AddReconciliationTables,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	// Ensure migrations table exists
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get applied migrations
	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	// Run pending migrations
	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue // Already applied
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		// Run migration in transaction
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		// Execute migration
		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		// Record migration
		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table if needed
func (s *Storage) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// migration001InitialSchema creates the bank, ledger, and rule tables
func migration001InitialSchema(tx *sql.Tx) error {
	// Money columns are TEXT: decimal values round-trip through their
	// canonical string form, never through float64.
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS bank_accounts (
			id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			account_name TEXT NOT NULL,
			account_number TEXT NOT NULL,
			bank_name TEXT NOT NULL,
			account_type TEXT NOT NULL,
			currency TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			last_reconciliation_date DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_bank_accounts_business
			ON bank_accounts(business_id);

		CREATE TABLE IF NOT EXISTS bank_statements (
			id TEXT PRIMARY KEY,
			bank_account_id TEXT NOT NULL REFERENCES bank_accounts(id),
			statement_date DATETIME NOT NULL,
			opening_balance TEXT NOT NULL,
			closing_balance TEXT NOT NULL,
			import_source TEXT NOT NULL DEFAULT '',
			imported_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS statement_lines (
			statement_id TEXT NOT NULL REFERENCES bank_statements(id),
			line_index INTEGER NOT NULL,
			description TEXT NOT NULL,
			amount TEXT NOT NULL,
			transaction_date DATETIME NOT NULL,
			PRIMARY KEY (statement_id, line_index)
		);

		CREATE TABLE IF NOT EXISTS ledger_transactions (
			id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			date DATETIME NOT NULL,
			description TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ledger_transactions_business
			ON ledger_transactions(business_id);

		CREATE TABLE IF NOT EXISTS ledger_transaction_lines (
			transaction_id TEXT NOT NULL REFERENCES ledger_transactions(id),
			line_no INTEGER NOT NULL,
			account_id TEXT NOT NULL,
			debit_amount TEXT NOT NULL,
			credit_amount TEXT NOT NULL,
			PRIMARY KEY (transaction_id, line_no)
		);

		CREATE TABLE IF NOT EXISTS reconciliation_rules (
			id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			name TEXT NOT NULL,
			conditions_json TEXT NOT NULL,
			amount_tolerance TEXT,
			date_tolerance_days INTEGER,
			priority INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1
		);

		CREATE INDEX IF NOT EXISTS idx_rules_business
			ON reconciliation_rules(business_id);
	`)
	return err
}

// migration002AddReconciliationTables creates match and variance tables
func migration002AddReconciliationTables(tx *sql.Tx) error {
	// No unique constraint on (statement_id, line_index): manual
	// matches may sit alongside an automatic match for the same line.
	// The automatic path enforces one-match-per-line in code.
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS reconciliation_matches (
			id TEXT PRIMARY KEY,
			statement_id TEXT NOT NULL REFERENCES bank_statements(id),
			line_index INTEGER NOT NULL,
			transaction_id TEXT NOT NULL,
			match_type TEXT NOT NULL,
			confidence REAL NOT NULL,
			matched_by TEXT NOT NULL,
			matched_at DATETIME NOT NULL,
			notes TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_matches_statement
			ON reconciliation_matches(statement_id);

		CREATE TABLE IF NOT EXISTS reconciliation_variances (
			id TEXT PRIMARY KEY,
			statement_id TEXT NOT NULL REFERENCES bank_statements(id),
			variance_type TEXT NOT NULL,
			amount TEXT NOT NULL,
			description TEXT NOT NULL,
			resolved INTEGER NOT NULL DEFAULT 0,
			resolved_by TEXT NOT NULL DEFAULT '',
			resolved_at DATETIME,
			resolution_notes TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_variances_statement
			ON reconciliation_variances(statement_id);
	`)
	return err
}
