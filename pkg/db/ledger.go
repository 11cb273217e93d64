package db

import (
	"database/sql"
	"fmt"
	"time"
)

// ImportedEntry represents one imported transaction line.
type ImportedEntry struct {
	ID                int64
	TxnType           string
	TxnID             string
	LineID            sql.NullString // NULL marks a legacy whole-txn import
	AccountType       string
	ProjectExternalID string
	TxnDate           string
	Amount            float64
	ImportedAt        time.Time
}

// ImportedKey identifies one imported line.
type ImportedKey struct {
	TxnType string
	TxnID   string
	LineID  string
}

// LegacyKey identifies a whole transaction imported before per-line tracking.
type LegacyKey struct {
	TxnType string
	TxnID   string
}

// Project represents one internal project and its external job mapping.
type Project struct {
	ID         int64
	ExternalID string
	Name       string
	Visible    bool
	Archived   bool
}

// ImportLedger manages import-state operations.
type ImportLedger struct {
	conn *Connection
}

// NewImportLedger creates a new ImportLedger instance.
func NewImportLedger(conn *Connection) *ImportLedger {
	return &ImportLedger{conn: conn}
}

// RecordImport records an imported line.
// If the record already exists (same txn_type + txn_id + line_id), it updates it.
func (l *ImportLedger) RecordImport(entry ImportedEntry) error {
	query := `
		INSERT INTO imported_entries (txn_type, txn_id, line_id, account_type, project_external_id, txn_date, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(txn_type, txn_id, line_id) DO UPDATE SET
			account_type = excluded.account_type,
			project_external_id = excluded.project_external_id,
			txn_date = excluded.txn_date,
			amount = excluded.amount,
			imported_at = CURRENT_TIMESTAMP
	`

	_, err := l.conn.Exec(query,
		entry.TxnType,
		entry.TxnID,
		entry.LineID,
		entry.AccountType,
		entry.ProjectExternalID,
		entry.TxnDate,
		entry.Amount,
	)

	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}

	return nil
}

// RecordImportBatch records a set of imported lines in one transaction.
// Either every entry lands or none do.
func (l *ImportLedger) RecordImportBatch(entries []ImportedEntry) error {
	return l.conn.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO imported_entries (txn_type, txn_id, line_id, account_type, project_external_id, txn_date, amount)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(txn_type, txn_id, line_id) DO UPDATE SET
				account_type = excluded.account_type,
				project_external_id = excluded.project_external_id,
				txn_date = excluded.txn_date,
				amount = excluded.amount,
				imported_at = CURRENT_TIMESTAMP
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare import statement: %w", err)
		}
		defer stmt.Close()

		for _, entry := range entries {
			_, err := stmt.Exec(
				entry.TxnType,
				entry.TxnID,
				entry.LineID,
				entry.AccountType,
				entry.ProjectExternalID,
				entry.TxnDate,
				entry.Amount,
			)
			if err != nil {
				return fmt.Errorf("failed to record import %s/%s: %w", entry.TxnType, entry.TxnID, err)
			}
		}
		return nil
	})
}

// ImportedKeys loads every recorded import, split into per-line keys and
// legacy whole-transaction markers. This is the bulk load the dedup pass
// runs against.
func (l *ImportLedger) ImportedKeys() (map[ImportedKey]bool, map[LegacyKey]bool, error) {
	query := `SELECT txn_type, txn_id, line_id FROM imported_entries`

	rows, err := l.conn.Query(query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load imported keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[ImportedKey]bool)
	legacy := make(map[LegacyKey]bool)

	for rows.Next() {
		var txnType, txnID string
		var lineID sql.NullString
		if err := rows.Scan(&txnType, &txnID, &lineID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan imported key: %w", err)
		}
		if lineID.Valid {
			keys[ImportedKey{TxnType: txnType, TxnID: txnID, LineID: lineID.String}] = true
		} else {
			legacy[LegacyKey{TxnType: txnType, TxnID: txnID}] = true
		}
	}

	return keys, legacy, rows.Err()
}

// RecordLegacyMarker records a whole-transaction import marker with a NULL
// line id. Kept for backfill tooling; new imports are always per-line.
// SQLite treats NULLs as distinct in the unique constraint, so the insert
// guards against an existing marker itself.
func (l *ImportLedger) RecordLegacyMarker(txnType, txnID string) error {
	query := `
		INSERT INTO imported_entries (txn_type, txn_id, line_id)
		SELECT ?, ?, NULL
		WHERE NOT EXISTS (
			SELECT 1 FROM imported_entries
			WHERE txn_type = ? AND txn_id = ? AND line_id IS NULL
		)
	`
	if _, err := l.conn.Exec(query, txnType, txnID, txnType, txnID); err != nil {
		return fmt.Errorf("failed to record legacy marker: %w", err)
	}
	return nil
}

// UpsertProject inserts or updates a project by external id.
func (l *ImportLedger) UpsertProject(p Project) error {
	query := `
		INSERT INTO projects (external_id, name, visible, archived)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			name = excluded.name,
			visible = excluded.visible,
			archived = excluded.archived,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := l.conn.Exec(query, p.ExternalID, p.Name, boolToInt(p.Visible), boolToInt(p.Archived))
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	return nil
}

// ListProjects retrieves all projects.
func (l *ImportLedger) ListProjects() ([]Project, error) {
	query := `
		SELECT id, COALESCE(external_id, ''), name, visible, archived
		FROM projects
		ORDER BY name
	`

	rows, err := l.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var visible, archived int
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.Name, &visible, &archived); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.Visible = visible != 0
		p.Archived = archived != 0
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

// Stats represents ledger statistics.
type Stats struct {
	ImportedByType map[string]int
	TotalImported  int
	TotalProjects  int
	LastImport     sql.NullString
}

// GetStats retrieves ledger statistics.
func (l *ImportLedger) GetStats() (*Stats, error) {
	stats := &Stats{ImportedByType: make(map[string]int)}

	rows, err := l.conn.Query(`SELECT txn_type, COUNT(*) FROM imported_entries GROUP BY txn_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to get import counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txnType string
		var count int
		if err := rows.Scan(&txnType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan import count: %w", err)
		}
		stats.ImportedByType[txnType] = count
		stats.TotalImported += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = l.conn.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&stats.TotalProjects)
	if err != nil {
		return nil, fmt.Errorf("failed to get project count: %w", err)
	}

	err = l.conn.QueryRow(`SELECT MAX(imported_at) FROM imported_entries`).Scan(&stats.LastImport)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get last import time: %w", err)
	}

	return stats, nil
}

// GetMetadata retrieves a metadata value.
func (l *ImportLedger) GetMetadata(key string) (string, error) {
	query := `SELECT value FROM ledger_metadata WHERE key = ?`

	var value string
	err := l.conn.QueryRow(query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}

	return value, nil
}

// SetMetadata sets a metadata value.
func (l *ImportLedger) SetMetadata(key, value string) error {
	query := `
		INSERT INTO ledger_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := l.conn.Exec(query, key, value); err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
