// Package query executes validated SQL against the per-file store and
// shapes the result set for transport.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/qerr"
	"github.com/tablechat/backend/internal/sqlcheck"
	"github.com/tablechat/backend/internal/store"
)

// Engine runs validated statements with a hard wall-clock timeout. A timed
// out query is cancelled and reported; the engine never retries on its own,
// so a pathological query cannot hide behind silent re-execution.
type Engine struct {
	store   *store.DuckStore
	timeout time.Duration
}

// NewEngine creates an engine over the given store.
func NewEngine(s *store.DuckStore, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Engine{store: s, timeout: timeout}
}

// Execute runs a validated query and materializes the result set. Values are
// converted to a uniform JSON-representable shape: temporal values become
// strings, byte slices become strings, numeric values pass through.
// Truncated is set when the returned row count equals the clamped limit.
func (e *Engine) Execute(ctx context.Context, vq sqlcheck.ValidatedQuery) (*models.QueryResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()

	rows, err := e.store.Query(execCtx, vq.SQL)
	if err != nil {
		if execCtx.Err() != nil {
			return nil, qerr.Newf(qerr.KindTimeout, "query exceeded %s", e.timeout)
		}
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	columns := make([]models.ResultColumn, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = models.ResultColumn{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	var resultRows []map[string]any
	scan := make([]any, len(colTypes))
	scanPtrs := make([]any, len(colTypes))
	for i := range scan {
		scanPtrs[i] = &scan[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanPtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(colTypes))
		for i, ct := range colTypes {
			row[ct.Name()] = convertValue(scan[i], ct.DatabaseTypeName())
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		if execCtx.Err() != nil {
			return nil, qerr.Newf(qerr.KindTimeout, "query exceeded %s", e.timeout)
		}
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	if resultRows == nil {
		resultRows = []map[string]any{}
	}

	return &models.QueryResult{
		SQL:         vq.SQL,
		Columns:     columns,
		Rows:        resultRows,
		RowCount:    len(resultRows),
		Truncated:   len(resultRows) == vq.Limit,
		ExecutionMs: time.Since(start).Milliseconds(),
		Status:      "success",
	}, nil
}

// convertValue maps a driver value to its JSON-representable form.
func convertValue(v any, dbType string) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		if dbType == "DATE" {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	default:
		return v
	}
}
