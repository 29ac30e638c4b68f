// Package history records every SPED operation run by the toolkit in a
// SQLite database.
package history

// Schema defines the SQL statements to create database tables.
const Schema = `
-- One row per operation run (filter, keys, aggregate, validate)
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,               -- UUID assigned by the runner
    session_id TEXT NOT NULL,          -- session that ran the operation
    user TEXT NOT NULL,
    operation TEXT NOT NULL,
    input_path TEXT NOT NULL,
    output_path TEXT NOT NULL DEFAULT '',
    success INTEGER NOT NULL,          -- 0 or 1
    message TEXT NOT NULL DEFAULT '',
    lines_read INTEGER NOT NULL DEFAULT 0,
    lines_written INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,          -- RFC 3339
    finished_at TEXT NOT NULL          -- RFC 3339
);

CREATE INDEX IF NOT EXISTS idx_runs_started
    ON runs(started_at);

CREATE INDEX IF NOT EXISTS idx_runs_session
    ON runs(session_id);
`

// InitializeSchema creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}
