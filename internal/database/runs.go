package database

import "database/sql"

// RecordUpdateRun records that a month of ADS results has been reviewed.
// Re-running a month replaces the previous entry.
func (db *DB) RecordUpdateRun(month string, reviewed, added int) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO update_runs (month, reviewed, added, completed_at)
		VALUES (?, ?, ?, datetime('now'))`,
		month, reviewed, added,
	)
	return err
}

// GetLastUpdateRun returns the most recently completed update run, or nil
// if none exist.
func (db *DB) GetLastUpdateRun() (*UpdateRun, error) {
	row := db.conn.QueryRow(
		`SELECT month, reviewed, added, completed_at FROM update_runs
		ORDER BY completed_at DESC, month DESC LIMIT 1`,
	)

	var r UpdateRun
	if err := row.Scan(&r.Month, &r.Reviewed, &r.Added, &r.CompletedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}
