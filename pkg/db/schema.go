// Package db provides the SQLite job-cost import ledger: which external
// transaction lines have already been imported, the internal project
// registry, and run metadata.
package db

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Imported entries table
-- One row per imported transaction line. Rows with a NULL line_id are legacy
-- markers from before per-line tracking: they mean the whole transaction was
-- imported, at any line.
CREATE TABLE IF NOT EXISTS imported_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    txn_type TEXT NOT NULL,            -- 'Bill', 'Purchase', 'Check', 'VendorCredit'
    txn_id TEXT NOT NULL,              -- ID from the accounting API
    line_id TEXT,                      -- line ID, NULL for legacy whole-txn markers
    account_type TEXT,                 -- job-cost category at import time
    project_external_id TEXT,          -- external job ID, if any
    txn_date TEXT,                     -- YYYY-MM-DD
    amount REAL,
    imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(txn_type, txn_id, line_id)
);

CREATE INDEX IF NOT EXISTS idx_imported_entries_key
    ON imported_entries(txn_type, txn_id);

CREATE INDEX IF NOT EXISTS idx_imported_entries_date
    ON imported_entries(txn_date);

-- Projects table
-- Internal registry of contractor projects and their external job mapping.
CREATE TABLE IF NOT EXISTS projects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    external_id TEXT,                  -- job ID in the accounting system
    name TEXT NOT NULL,
    visible INTEGER NOT NULL DEFAULT 1,
    archived INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(external_id)
);

-- Ledger metadata table
-- Stores key-value metadata about reconciliation runs
CREATE TABLE IF NOT EXISTS ledger_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}
