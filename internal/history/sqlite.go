package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// SQLiteRepository implements Repository using SQLite.
//
// Numeric channel values are stored as a JSON array in the value column;
// rows for non-value events leave it NULL.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite history repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record persists one control event.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - entry: Event to record; ElemID and Kind are required
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Record(ctx context.Context, entry Entry) error {
	if entry.ElemID == "" {
		return fmt.Errorf("element id is required")
	}
	if entry.Kind == "" {
		return fmt.Errorf("event kind is required")
	}
	if entry.Source == "" {
		entry.Source = SourceCard
	}

	var value sql.NullString
	if entry.Values != nil {
		data, err := json.Marshal(entry.Values)
		if err != nil {
			return fmt.Errorf("marshalling values: %w", err)
		}
		value = sql.NullString{String: string(data), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO control_history (numid, elem_id, kind, value, source) VALUES (?, ?, ?, ?, ?)",
		entry.Numid,
		entry.ElemID,
		entry.Kind,
		value,
		entry.Source,
	)
	if err != nil {
		return fmt.Errorf("inserting history: %w", err)
	}

	return nil
}

// Recent returns the newest entries across all elements, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 200)
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	limit = clampLimit(limit)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, numid, elem_id, kind, value, source, created_at
		 FROM control_history
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	return scanEntries(rows, limit)
}

// ForElement returns the newest entries for one element identity, newest
// first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - elemID: Textual element identity (without numid)
//   - limit: Maximum entries to return (default 50, max 200)
func (r *SQLiteRepository) ForElement(ctx context.Context, elemID string, limit int) ([]Entry, error) {
	if elemID == "" {
		return nil, fmt.Errorf("element id is required")
	}
	limit = clampLimit(limit)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, numid, elem_id, kind, value, source, created_at
		 FROM control_history
		 WHERE elem_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		elemID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	return scanEntries(rows, limit)
}

// Prune deletes history entries older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM control_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// scanEntries drains a history result set. It owns closing the rows.
func scanEntries(rows *sql.Rows, limit int) ([]Entry, error) {
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var value sql.NullString
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.Numid, &entry.ElemID, &entry.Kind, &value, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}

		if value.Valid {
			if err := json.Unmarshal([]byte(value.String), &entry.Values); err != nil {
				return nil, fmt.Errorf("unmarshalling values: %w", err)
			}
		}

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}

	return entries, nil
}

// parseTimestamp parses a timestamp stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
