package marketplace

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	core "taskmarket-backend/core/marketplace"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS marketplace_events (
  event_id    TEXT PRIMARY KEY,
  type        TEXT NOT NULL,
  task_id     INTEGER NOT NULL,
  dispute_id  TEXT,
  actor       TEXT NOT NULL,
  amount_sats INTEGER NOT NULL DEFAULT 0,
  message     TEXT,
  created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_marketplace_events_task ON marketplace_events(task_id);
`

// SQLiteArchive persists the audit trail in a local SQLite database, the
// single-node deployment driver.
type SQLiteArchive struct {
	conn *sql.DB
}

// NewSQLiteArchive opens (creating if needed) the database at dbPath and
// initializes the schema.
func NewSQLiteArchive(dbPath string) (*SQLiteArchive, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent read performance.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("executing schema: %w", err)
	}

	return &SQLiteArchive{conn: conn}, nil
}

// Append records an event.
func (a *SQLiteArchive) Append(ctx context.Context, evt core.Event) error {
	_, err := a.conn.ExecContext(ctx,
		`INSERT INTO marketplace_events
		   (event_id, type, task_id, dispute_id, actor, amount_sats, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.EventID, string(evt.Type), int64(evt.TaskID), evt.DisputeID,
		string(evt.Actor), evt.AmountSats, evt.Message, evt.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// TaskHistory returns all events for a task in append order.
func (a *SQLiteArchive) TaskHistory(ctx context.Context, taskID uint64) ([]core.Event, error) {
	rows, err := a.conn.QueryContext(ctx,
		`SELECT event_id, type, task_id, dispute_id, actor, amount_sats, message, created_at
		   FROM marketplace_events WHERE task_id = ? ORDER BY created_at, rowid`,
		int64(taskID))
	if err != nil {
		return nil, fmt.Errorf("querying task history: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoHistory
	}
	return events, nil
}

// ListEvents returns the most recent events, newest last.
func (a *SQLiteArchive) ListEvents(ctx context.Context, limit int) ([]core.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	// rowid is not visible through a derived table, so carry it out as a
	// named column for the outer ordering.
	rows, err := a.conn.QueryContext(ctx,
		`SELECT event_id, type, task_id, dispute_id, actor, amount_sats, message, created_at
		   FROM (SELECT event_id, type, task_id, dispute_id, actor, amount_sats, message, created_at, rowid AS rid
		           FROM marketplace_events ORDER BY created_at DESC, rowid DESC LIMIT ?)
		  ORDER BY created_at, rid`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Close releases the database connection.
func (a *SQLiteArchive) Close() {
	_ = a.conn.Close()
}

func scanEvents(rows *sql.Rows) ([]core.Event, error) {
	events := make([]core.Event, 0)
	for rows.Next() {
		var (
			evt       core.Event
			typ       string
			taskID    int64
			disputeID sql.NullString
			actor     string
			message   sql.NullString
		)
		if err := rows.Scan(&evt.EventID, &typ, &taskID, &disputeID, &actor,
			&evt.AmountSats, &message, &evt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		evt.Type = core.EventType(typ)
		evt.TaskID = uint64(taskID)
		evt.DisputeID = disputeID.String
		evt.Actor = core.Principal(actor)
		evt.Message = message.String
		events = append(events, evt)
	}
	return events, rows.Err()
}
