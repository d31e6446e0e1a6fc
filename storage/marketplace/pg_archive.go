package marketplace

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	core "taskmarket-backend/core/marketplace"
)

// PGArchive persists the audit trail in Postgres.
type PGArchive struct {
	pool *pgxpool.Pool
}

// NewPGArchive connects and initializes the schema.
func NewPGArchive(ctx context.Context, dsn string) (*PGArchive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	a := &PGArchive{pool: pool}
	if err := a.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func (a *PGArchive) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS marketplace_events (
  event_id    TEXT PRIMARY KEY,
  type        TEXT NOT NULL,
  task_id     BIGINT NOT NULL,
  dispute_id  TEXT,
  actor       TEXT NOT NULL,
  amount_sats BIGINT NOT NULL DEFAULT 0,
  message     TEXT,
  created_at  TIMESTAMPTZ NOT NULL,
  seq         BIGSERIAL
);
CREATE INDEX IF NOT EXISTS idx_marketplace_events_task ON marketplace_events(task_id);
`
	if _, err := a.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Append records an event.
func (a *PGArchive) Append(ctx context.Context, evt core.Event) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO marketplace_events
		   (event_id, type, task_id, dispute_id, actor, amount_sats, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		evt.EventID, string(evt.Type), int64(evt.TaskID), evt.DisputeID,
		string(evt.Actor), evt.AmountSats, evt.Message, evt.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// TaskHistory returns all events for a task in append order.
func (a *PGArchive) TaskHistory(ctx context.Context, taskID uint64) ([]core.Event, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT event_id, type, task_id, dispute_id, actor, amount_sats, message, created_at
		   FROM marketplace_events WHERE task_id = $1 ORDER BY seq`,
		int64(taskID))
	if err != nil {
		return nil, fmt.Errorf("querying task history: %w", err)
	}
	defer rows.Close()

	events := make([]core.Event, 0)
	for rows.Next() {
		evt, err := scanPGEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoHistory
	}
	return events, nil
}

// ListEvents returns the most recent events, newest last.
func (a *PGArchive) ListEvents(ctx context.Context, limit int) ([]core.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.pool.Query(ctx,
		`SELECT event_id, type, task_id, dispute_id, actor, amount_sats, message, created_at
		   FROM (SELECT * FROM marketplace_events ORDER BY seq DESC LIMIT $1) recent
		  ORDER BY seq`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := make([]core.Event, 0)
	for rows.Next() {
		evt, err := scanPGEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// Close releases the connection pool.
func (a *PGArchive) Close() {
	a.pool.Close()
}

type pgRow interface {
	Scan(dest ...any) error
}

func scanPGEvent(row pgRow) (core.Event, error) {
	var (
		evt       core.Event
		typ       string
		taskID    int64
		disputeID *string
		actor     string
		message   *string
	)
	if err := row.Scan(&evt.EventID, &typ, &taskID, &disputeID, &actor,
		&evt.AmountSats, &message, &evt.CreatedAt); err != nil {
		return core.Event{}, fmt.Errorf("scanning event: %w", err)
	}
	evt.Type = core.EventType(typ)
	evt.TaskID = uint64(taskID)
	if disputeID != nil {
		evt.DisputeID = *disputeID
	}
	evt.Actor = core.Principal(actor)
	if message != nil {
		evt.Message = *message
	}
	return evt, nil
}
