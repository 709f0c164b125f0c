// Package source loads records from SQLite tables.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/arkilian/colindex/internal/collection"
	ierrors "github.com/arkilian/colindex/internal/errors"
)

// IDColumn is the column whose UUID values become record IDs.
const IDColumn = "id"

// maxRetries bounds the extra attempts made while the database is busy.
const maxRetries = 3

var (
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	// retryBackoff is the delay before the first retry; it doubles per attempt.
	retryBackoff = 100 * time.Millisecond
)

// LoadSQLite reads up to limit rows of table from the database at path, in
// rowid order. A limit of zero or less reads every row. The database is opened
// read-only. A busy or locked database is retried with exponential backoff.
func LoadSQLite(ctx context.Context, path, table string, limit int) ([]collection.Record, error) {
	if !identifier.MatchString(table) {
		return nil, ierrors.NewValidationError(ierrors.CodeInvalidProperty,
			fmt.Sprintf("invalid table name %q", table))
	}

	var records []collection.Record
	err := retryWithBackoff(ctx, maxRetries, retryBackoff, func() error {
		var err error
		records, err = load(ctx, path, table, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// retryWithBackoff runs operation until it succeeds, fails with an error that
// is not retryable, or has been retried retries times.
func retryWithBackoff(ctx context.Context, retries int, backoff time.Duration, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil || !ierrors.IsRetryable(lastErr) {
			return lastErr
		}

		if attempt < retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff << attempt):
			}
		}
	}
	return lastErr
}

func load(ctx context.Context, path, table string, limit int) ([]collection.Record, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, ierrors.NewSourceError(ierrors.CodeOpenFailed, "failed to open database", err).
			WithDetails(map[string]interface{}{"path": path})
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, classify(err, ierrors.CodeOpenFailed, "failed to open database").
			WithDetails(map[string]interface{}{"path": path})
	}

	var tables int
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?", table).Scan(&tables)
	if err != nil {
		return nil, classify(err, ierrors.CodeQueryFailed, "failed to read schema")
	}
	if tables == 0 {
		return nil, ierrors.NewSourceError(ierrors.CodeNotFound, fmt.Sprintf("table %s does not exist", table), nil).
			WithDetails(map[string]interface{}{"path": path, "table": table})
	}

	query := fmt.Sprintf(`SELECT * FROM "%s"`, table)
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, ierrors.CodeQueryFailed, fmt.Sprintf("failed to query table %s", table))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, classify(err, ierrors.CodeQueryFailed, "failed to read columns")
	}

	var records []collection.Record
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, classify(err, ierrors.CodeQueryFailed, fmt.Sprintf("failed to scan row from %s", table))
		}
		records = append(records, toRecord(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, ierrors.CodeQueryFailed, fmt.Sprintf("error iterating rows from %s", table))
	}

	return records, nil
}

func toRecord(columns []string, values []any) collection.Record {
	record := collection.Record{Fields: make(map[string]any, len(columns))}
	for i, column := range columns {
		value := values[i]
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		if column == IDColumn {
			if s, ok := value.(string); ok {
				if id, err := uuid.Parse(s); err == nil {
					record.ID = id
					continue
				}
			}
		}
		record.Fields[column] = value
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return record
}

// classify maps a driver error onto a source error. A busy or locked
// database is retryable.
func classify(err error, code, message string) *ierrors.IndexError {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		code = ierrors.CodeSourceBusy
	}
	return ierrors.NewSourceError(code, message, err)
}
