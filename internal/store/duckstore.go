// Package store persists uploaded files as per-file DuckDB tables and runs
// validated read-only queries against them.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"
	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/qerr"
)

// DuckStore wraps a single DuckDB database holding one table per uploaded
// file. Tables are append-once-then-read-only: after materialization the
// only write ever issued against a table is its final DROP on expiry.
type DuckStore struct {
	db     *sql.DB
	dbPath string

	// Semaphore limiting concurrent queries (prevents memory spikes).
	querySem chan struct{}
}

// Open creates or opens the DuckDB database at dbPath.
func Open(dbPath string) (*DuckStore, error) {
	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='1GB'",
			"PRAGMA threads=4",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	return &DuckStore{
		db:       sql.OpenDB(connector),
		dbPath:   dbPath,
		querySem: make(chan struct{}, 3),
	}, nil
}

// TableNameForFile derives the physical table name from a file ID. The name
// is built only from the parsed UUID, never from user-controlled text.
func TableNameForFile(fileID string) (string, error) {
	id, err := uuid.Parse(fileID)
	if err != nil {
		return "", qerr.Newf(qerr.KindValidation, "invalid file id %q", fileID)
	}
	return "t_" + strings.ReplaceAll(id.String(), "-", ""), nil
}

// nativeType maps a semantic column type to its DuckDB column type.
func nativeType(t models.ColumnType) string {
	switch t {
	case models.TypeBoolean:
		return "BOOLEAN"
	case models.TypeInteger:
		return "BIGINT"
	case models.TypeDecimal:
		return "DOUBLE"
	case models.TypeDate:
		return "DATE"
	case models.TypeDatetime:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// CreateTable creates an empty table with one native column per schema column.
func (s *DuckStore) CreateTable(table string, cols []models.ColumnSchema) error {
	defs := make([]string, len(cols))
	for i, c := range cols {
		null := " NOT NULL"
		if c.Nullable {
			null = ""
		}
		defs[i] = fmt.Sprintf(`"%s" %s%s`, c.Name, nativeType(c.Type), null)
	}

	query := fmt.Sprintf(`CREATE TABLE %s (%s)`, table, strings.Join(defs, ", "))
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// AppendRows bulk-inserts all rows into the table using the DuckDB Appender.
// Any conversion or append failure aborts the whole insert; the caller is
// responsible for dropping the partial table.
func (s *DuckStore) AppendRows(table string, cols []models.ColumnSchema, rows [][]string) error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", table)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		values := make([]driver.Value, len(cols))
		for rowIdx, row := range rows {
			for colIdx, c := range cols {
				v, err := convertCell(row[colIdx], c.Type)
				if err != nil {
					return qerr.Newf(qerr.KindValidation,
						"row %d column %q: %v", rowIdx+2, c.Name, err)
				}
				values[colIdx] = v
			}
			if err := appender.AppendRow(values...); err != nil {
				return fmt.Errorf("failed to append row %d: %w", rowIdx, err)
			}
		}

		return appender.Flush()
	})
}

// convertCell parses a raw cell into the native value for its column type.
// Empty and whitespace-only cells become NULL.
func convertCell(cell string, t models.ColumnType) (driver.Value, error) {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil, nil
	}

	switch t {
	case models.TypeBoolean:
		switch strings.ToLower(trimmed) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0":
			return false, nil
		}
		return nil, fmt.Errorf("not a boolean literal: %q", cell)
	case models.TypeInteger:
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", cell)
		}
		return n, nil
	case models.TypeDecimal:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("not a decimal: %q", cell)
		}
		return f, nil
	case models.TypeDate:
		ts, err := time.Parse("2006-01-02", trimmed)
		if err != nil {
			return nil, fmt.Errorf("not an ISO date: %q", cell)
		}
		return ts, nil
	case models.TypeDatetime:
		for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, trimmed); err == nil {
				return ts, nil
			}
		}
		return nil, fmt.Errorf("not an ISO datetime: %q", cell)
	default:
		return cell, nil
	}
}

// DropTable removes a per-file table. Used on materialization failure and
// on file expiry.
func (s *DuckStore) DropTable(table string) error {
	if _, err := s.db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

// CountRows returns the number of rows in a table.
func (s *DuckStore) CountRows(table string) (int64, error) {
	var count int64
	err := s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}

// Query runs a validated read-only statement. Concurrent queries are bounded
// by a small semaphore; the context cancels both the wait and the query.
func (s *DuckStore) Query(ctx context.Context, query string) (*sql.Rows, error) {
	select {
	case s.querySem <- struct{}{}:
		defer func() { <-s.querySem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return s.db.QueryContext(ctx, query)
}

// Close closes the database.
func (s *DuckStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
