package models

// ColumnType is the semantic type inferred for a column.
type ColumnType string

const (
	TypeText     ColumnType = "TEXT"
	TypeInteger  ColumnType = "INTEGER"
	TypeDecimal  ColumnType = "DECIMAL"
	TypeDate     ColumnType = "DATE"
	TypeDatetime ColumnType = "DATETIME"
	TypeBoolean  ColumnType = "BOOLEAN"
)

// ColumnSchema describes one column of a materialized table.
// Samples holds the first few distinct non-null source values, in order of
// first appearance, for UI preview.
type ColumnSchema struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
	Samples  []string   `json:"samples,omitempty"`
}

// TableSchema binds an uploaded file to its materialized table.
// Immutable after materialization completes; the table name is derived from
// the file ID, never from user-controlled text.
type TableSchema struct {
	FileID   string         `json:"fileId"`
	Table    string         `json:"table"`
	Columns  []ColumnSchema `json:"columns"`
	RowCount int64          `json:"rowCount"`
}

// ColumnNames returns the column names in source header order.
func (t TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
