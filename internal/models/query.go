package models

// ResultColumn describes a column of a query result set.
type ResultColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryResult is the outcome of executing one validated SQL statement.
// SQL is the statement that actually ran, after validation and LIMIT
// clamping. Truncated is true when the returned row count equals the clamped
// limit, meaning more rows may exist.
type QueryResult struct {
	SQL         string           `json:"sql"`
	Columns     []ResultColumn   `json:"columns"`
	Rows        []map[string]any `json:"rows"`
	RowCount    int              `json:"rowCount"`
	Truncated   bool             `json:"truncated"`
	ExecutionMs int64            `json:"executionMs"`
	Status      string           `json:"status"` // "success" or "error"
	Error       string           `json:"error,omitempty"`
}
