package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/traffic-relay/internal/relay"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// timestampLayout sorts lexically in time order.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Logger is the logging surface used by RunRetention.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Repository stores light transitions in the light_history table.
//
// Thread Safety: safe for concurrent use; database/sql serialises access.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a repository over an open, migrated database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// RecordChange inserts one row for change. It satisfies relay.ChangeRecorder.
func (r *Repository) RecordChange(ctx context.Context, change relay.Change) error {
	if !change.Light.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLight, change.Light)
	}
	at := change.At
	if at.IsZero() {
		at = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO light_history (light, value, light1, light2, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(change.Light),
		change.Value,
		change.Snapshot.Light1,
		change.Snapshot.Light2,
		at.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting light history: %w", err)
	}
	return nil
}

// GetHistory returns recent transitions, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - light: "light1", "light2", or "" for both
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Entry: History entries ordered newest first (may be empty)
//   - error: ErrInvalidLight for an unknown slot, otherwise the query error
func (r *Repository) GetHistory(ctx context.Context, light string, limit int) ([]Entry, error) {
	if light != "" && !relay.Light(light).Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLight, light)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	query := `SELECT id, light, value, light1, light2, created_at FROM light_history`
	args := make([]any, 0, 2)
	if light != "" {
		query += ` WHERE light = ?`
		args = append(args, light)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying light history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.Light, &entry.Value, &entry.Light1, &entry.Light2, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning light history: %w", err)
		}

		entry.CreatedAt, err = parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating light history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than olderThan and returns how many went.
func (r *Repository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := r.now().UTC().Add(-olderThan).Format(timestampLayout)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM light_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting light history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// RunRetention prunes entries older than retention every interval until
// ctx is cancelled. A non-positive retention disables pruning and the
// call returns immediately. It returns nil on cancellation.
func (r *Repository) RunRetention(ctx context.Context, retention, interval time.Duration, logger Logger) error {
	if retention <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = noopLogger{}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.Prune(ctx, retention)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("pruning light history failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("pruned light history", "rows", n, "retention", retention)
			}
		}
	}
}

// parseTimestamp parses a created_at value. RecordChange and the column
// default both write RFC 3339 in UTC.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return ts, nil
}
