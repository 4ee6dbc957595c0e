// Package database provides the query adapter the executor runs alert
// checks through: a thin database/sql wrapper returning rows as
// string-keyed maps, with a DSN-scheme factory covering MySQL, PostgreSQL,
// SQL Server, and SQLite.
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/kyle-gehring/sqlsentinel/internal/errors"
)

const (
	connectTimeout = 10 * time.Second
	maxOpenConns   = 4
	connMaxIdle    = 5 * time.Minute
)

// Adapter executes alert queries against a data source.
type Adapter interface {
	// Connect establishes and verifies the connection.
	Connect(ctx context.Context) error
	// ExecuteQuery runs one SQL statement and returns all rows, each as a
	// column-name-keyed map.
	ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error)
	// Close releases the underlying connection pool.
	Close() error
}

// sqlAdapter implements Adapter over database/sql.
type sqlAdapter struct {
	driverName string
	dsn        string
	db         *sql.DB
}

func (a *sqlAdapter) Connect(ctx context.Context) error {
	db, err := sql.Open(a.driverName, a.dsn)
	if err != nil {
		return errors.Wrap(errors.CategoryExecution, err, "failed to open database")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxIdleTime(connMaxIdle)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return errors.Wrap(errors.CategoryExecution, err, "failed to connect to database")
	}
	a.db = db
	return nil
}

func (a *sqlAdapter) ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error) {
	if a.db == nil {
		return nil, errors.New(errors.CategoryExecution, "database connection not established")
	}
	if query == "" {
		return nil, errors.New(errors.CategoryExecution, "query cannot be empty")
	}

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(errors.CategoryExecution, err, "query execution failed")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(errors.CategoryExecution, err, "failed to read result columns")
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(errors.CategoryExecution, err, "failed to scan row")
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.CategoryExecution, err, "failed to iterate rows")
	}
	return out, nil
}

func (a *sqlAdapter) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// normalizeValue unwraps driver byte slices into strings so downstream
// consumers see comparable values across drivers.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
