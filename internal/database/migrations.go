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
		Description: "triage_logs table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS triage_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT,
    patient_id TEXT,
    symptoms TEXT,
    brief TEXT,
    confidence INTEGER,
    triage_level TEXT CHECK (triage_level IN ('Red', 'Yellow', 'Green')),
    pdf_blob BLOB
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "index triage_logs by level",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_triage_logs_level ON triage_logs(triage_level)`)
			return err
		},
	},
}

func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
