package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "publications table",
		Up: func(tx *sql.Tx) error {
			// Column types stay loose so that databases written by the
			// original tool remain readable.
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS pubs (
    id TEXT UNIQUE,
    bibcode TEXT UNIQUE,
    year TEXT,
    month TEXT,
    date TEXT,
    mission TEXT,
    science TEXT,
    metrics TEXT
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "publication indexes",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_pubs_mission ON pubs(mission);
CREATE INDEX IF NOT EXISTS idx_pubs_year ON pubs(year);
CREATE INDEX IF NOT EXISTS idx_pubs_date ON pubs(date);
`)
			return err
		},
	},
	{
		Version:     3,
		Description: "update run ledger",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS update_runs (
    month TEXT PRIMARY KEY,
    reviewed INTEGER DEFAULT 0,
    added INTEGER DEFAULT 0,
    completed_at TEXT DEFAULT (datetime('now'))
);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
