package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	commands "bluelink-bridge/internal/commands/domain"
)

// Entry is one recorded action in the history table.
type Entry struct {
	ActionID     string
	RequestID    string
	VehicleID    string
	Kind         commands.CommandKind
	Status       commands.ActionStatus
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Filter narrows a history listing.
type Filter struct {
	VehicleID string
	Kind      commands.CommandKind
	Status    commands.ActionStatus
	Since     time.Time
	Limit     int
}

const defaultListLimit = 200

// Repository persists the action history in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("history repo: nil db")
	}
	return &Repository{db: db}, nil
}

// EnsureSchema creates the history table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS command_actions (
	action_id     TEXT PRIMARY KEY,
	request_id    TEXT NOT NULL,
	vehicle_id    TEXT NOT NULL,
	kind          TEXT NOT NULL,
	status        TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS command_actions_vehicle_idx ON command_actions (vehicle_id, started_at DESC)`)
	return err
}

// InsertAction records a freshly dispatched action as pending.
func (r *Repository) InsertAction(ctx context.Context, entry Entry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO command_actions (action_id, request_id, vehicle_id, kind, status, started_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (action_id) DO NOTHING`,
		entry.ActionID, entry.RequestID, entry.VehicleID, string(entry.Kind), string(entry.Status), entry.StartedAt)
	return err
}

// MarkTerminal stamps an action's final state.
func (r *Repository) MarkTerminal(ctx context.Context, actionID string, status commands.ActionStatus, errorMessage string, completedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE command_actions
SET status = $2, error_message = $3, completed_at = $4
WHERE action_id = $1`,
		actionID, string(status), errorMessage, completedAt)
	return err
}

// List returns entries matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
SELECT action_id, request_id, vehicle_id, kind, status, error_message, started_at, completed_at
FROM command_actions
WHERE 1=1`
	args := make([]any, 0, 4)
	appendArg := func(clause string, value any) {
		args = append(args, value)
		query += clause + argPlaceholder(len(args))
	}
	if filter.VehicleID != "" {
		appendArg(" AND vehicle_id = ", filter.VehicleID)
	}
	if filter.Kind != "" {
		appendArg(" AND kind = ", string(filter.Kind))
	}
	if filter.Status != "" {
		appendArg(" AND status = ", string(filter.Status))
	}
	if !filter.Since.IsZero() {
		appendArg(" AND started_at >= ", filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += " ORDER BY started_at DESC LIMIT " + argPlaceholder(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var kind, status string
		var completedAt sql.NullTime
		if err := rows.Scan(&entry.ActionID, &entry.RequestID, &entry.VehicleID, &kind, &status, &entry.ErrorMessage, &entry.StartedAt, &completedAt); err != nil {
			return nil, err
		}
		entry.Kind = commands.CommandKind(kind)
		entry.Status = commands.ActionStatus(status)
		if completedAt.Valid {
			entry.CompletedAt = completedAt.Time
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func argPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
