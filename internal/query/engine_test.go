package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/sqlcheck"
	"github.com/tablechat/backend/internal/store"
)

// newTestEngine materializes a small table and returns an engine over it.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "engine.duckdb"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cols := []models.ColumnSchema{
		{Name: "id", Type: models.TypeInteger},
		{Name: "name", Type: models.TypeText},
		{Name: "day", Type: models.TypeDate},
	}
	if err := s.CreateTable("t_eng", cols); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	rows := [][]string{
		{"1", "alice", "2026-01-15"},
		{"2", "bob", "2026-02-01"},
		{"3", "carol", "2026-03-10"},
	}
	if err := s.AppendRows("t_eng", cols, rows); err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}

	return NewEngine(s, 5*time.Second)
}

func TestEngine_Execute(t *testing.T) {
	t.Run("returns shaped rows", func(t *testing.T) {
		e := newTestEngine(t)

		result, err := e.Execute(context.Background(), sqlcheck.ValidatedQuery{
			SQL:   "SELECT id, name, day FROM t_eng ORDER BY id LIMIT 500",
			Limit: 500,
		})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}

		if result.RowCount != 3 {
			t.Errorf("Expected 3 rows, got %d", result.RowCount)
		}
		if result.Truncated {
			t.Error("Expected Truncated=false below the limit")
		}
		if result.Status != "success" {
			t.Errorf("Expected status success, got %s", result.Status)
		}
		if len(result.Columns) != 3 || result.Columns[0].Name != "id" {
			t.Errorf("Unexpected columns: %+v", result.Columns)
		}
		if result.Rows[0]["name"] != "alice" {
			t.Errorf("Expected alice, got %v", result.Rows[0]["name"])
		}
		// DATE values come back as ISO strings.
		if result.Rows[0]["day"] != "2026-01-15" {
			t.Errorf("Expected ISO date string, got %v", result.Rows[0]["day"])
		}
	})

	t.Run("marks truncation when row count hits the limit", func(t *testing.T) {
		e := newTestEngine(t)

		result, err := e.Execute(context.Background(), sqlcheck.ValidatedQuery{
			SQL:   "SELECT id FROM t_eng ORDER BY id LIMIT 2",
			Limit: 2,
		})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if result.RowCount != 2 {
			t.Errorf("Expected 2 rows, got %d", result.RowCount)
		}
		if !result.Truncated {
			t.Error("Expected Truncated=true at the limit")
		}
	})

	t.Run("empty result set has empty rows slice", func(t *testing.T) {
		e := newTestEngine(t)

		result, err := e.Execute(context.Background(), sqlcheck.ValidatedQuery{
			SQL:   "SELECT id FROM t_eng WHERE id > 100 LIMIT 500",
			Limit: 500,
		})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if result.Rows == nil {
			t.Error("Expected non-nil empty rows")
		}
		if result.RowCount != 0 {
			t.Errorf("Expected 0 rows, got %d", result.RowCount)
		}
	})

	t.Run("records execution time", func(t *testing.T) {
		e := newTestEngine(t)

		result, err := e.Execute(context.Background(), sqlcheck.ValidatedQuery{
			SQL:   "SELECT COUNT(*) FROM t_eng LIMIT 500",
			Limit: 500,
		})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if result.ExecutionMs < 0 {
			t.Errorf("Expected non-negative ExecutionMs, got %d", result.ExecutionMs)
		}
	})
}

func TestConvertValue(t *testing.T) {
	if got := convertValue(nil, "VARCHAR"); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
	if got := convertValue([]byte("hi"), "VARCHAR"); got != "hi" {
		t.Errorf("Expected string hi, got %v", got)
	}
	ts := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	if got := convertValue(ts, "DATE"); got != "2026-01-15" {
		t.Errorf("Expected date string, got %v", got)
	}
	if got := convertValue(ts, "TIMESTAMP"); got != "2026-01-15 10:30:00" {
		t.Errorf("Expected datetime string, got %v", got)
	}
	if got := convertValue(int64(7), "BIGINT"); got != int64(7) {
		t.Errorf("Expected passthrough, got %v", got)
	}
}
