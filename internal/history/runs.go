package history

import (
	"database/sql"
	"fmt"
	"time"
)

// timeLayout is how timestamps are stored.
const timeLayout = time.RFC3339Nano

// Run is one recorded operation run.
type Run struct {
	ID           string
	SessionID    string
	User         string
	Operation    string
	InputPath    string
	OutputPath   string
	Success      bool
	Message      string
	LinesRead    int
	LinesWritten int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Runs manages run history operations.
type Runs struct {
	conn *Connection
}

// NewRuns creates a new Runs instance.
func NewRuns(conn *Connection) *Runs {
	return &Runs{conn: conn}
}

// Record stores a run. Recording the same ID again replaces the row.
func (r *Runs) Record(run Run) error {
	query := `
		INSERT INTO runs (id, session_id, user, operation, input_path, output_path,
			success, message, lines_read, lines_written, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			output_path = excluded.output_path,
			success = excluded.success,
			message = excluded.message,
			lines_read = excluded.lines_read,
			lines_written = excluded.lines_written,
			finished_at = excluded.finished_at
	`

	_, err := r.conn.Exec(query,
		run.ID,
		run.SessionID,
		run.User,
		run.Operation,
		run.InputPath,
		run.OutputPath,
		run.Success,
		run.Message,
		run.LinesRead,
		run.LinesWritten,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

const selectRuns = `
	SELECT id, session_id, user, operation, input_path, output_path,
		success, message, lines_read, lines_written, started_at, finished_at
	FROM runs
`

// Get returns the run with the given ID, or nil if there is none.
func (r *Runs) Get(id string) (*Run, error) {
	row := r.conn.QueryRow(selectRuns+` WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// Recent returns up to limit runs, newest first.
func (r *Runs) Recent(limit int) ([]*Run, error) {
	rows, err := r.conn.Query(selectRuns+` ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// BySession returns the runs of one session in start order.
func (r *Runs) BySession(sessionID string) ([]*Run, error) {
	rows, err := r.conn.Query(selectRuns+` WHERE session_id = ? ORDER BY started_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var started, finished string

	err := s.Scan(
		&run.ID,
		&run.SessionID,
		&run.User,
		&run.Operation,
		&run.InputPath,
		&run.OutputPath,
		&run.Success,
		&run.Message,
		&run.LinesRead,
		&run.LinesWritten,
		&started,
		&finished,
	)
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("bad started_at %q: %w", started, err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return nil, fmt.Errorf("bad finished_at %q: %w", finished, err)
	}
	return &run, nil
}
