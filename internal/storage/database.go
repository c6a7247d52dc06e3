// Package storage archives parsed statements in SQLite.
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New opens (creating if needed) the SQLite database at path and applies
// the schema.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY under the HTTP server.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	d := &DB{db}
	if err := d.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Migrate creates the tables when missing.
func (db *DB) Migrate() error {
	for _, migration := range []string{createStatementsTable, createOperationsTable} {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

const createStatementsTable = `
CREATE TABLE IF NOT EXISTS statements (
	id TEXT PRIMARY KEY,
	broker TEXT NOT NULL,
	source_name TEXT NOT NULL DEFAULT '',
	account_id TEXT NOT NULL DEFAULT '',
	account_date_start TEXT NOT NULL DEFAULT '',
	date_start TEXT NOT NULL DEFAULT '',
	date_end TEXT NOT NULL DEFAULT '',
	operations_count INTEGER NOT NULL DEFAULT 0,
	unrecognized_names TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_statements_account_id ON statements(account_id);
`

const createOperationsTable = `
CREATE TABLE IF NOT EXISTS operations (
	statement_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	date TEXT NOT NULL,
	operation_type TEXT NOT NULL,
	payment_sum TEXT NOT NULL DEFAULT '0',
	currency TEXT NOT NULL DEFAULT '',
	ticker TEXT NOT NULL DEFAULT '',
	isin TEXT NOT NULL DEFAULT '',
	reg_number TEXT NOT NULL DEFAULT '',
	price TEXT NOT NULL DEFAULT '0',
	quantity INTEGER NOT NULL DEFAULT 0,
	aci TEXT NOT NULL DEFAULT '0',
	comment TEXT NOT NULL DEFAULT '',
	operation_id TEXT NOT NULL DEFAULT '',
	commission TEXT NOT NULL DEFAULT '0',
	PRIMARY KEY (statement_id, seq),
	FOREIGN KEY (statement_id) REFERENCES statements(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_operations_isin ON operations(isin);
`
