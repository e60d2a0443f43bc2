package schema

import (
	"testing"

	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/qerr"
)

func testSchema(fileID, table string) models.TableSchema {
	return models.TableSchema{
		FileID:   fileID,
		Table:    table,
		Columns:  []models.ColumnSchema{{Name: "id", Type: models.TypeInteger}},
		RowCount: 1,
	}
}

func TestRegistry(t *testing.T) {
	t.Run("register and resolve", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(testSchema("f1", "t_1")); err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		ts, err := r.Resolve("f1")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if ts.Table != "t_1" {
			t.Errorf("Expected table t_1, got %s", ts.Table)
		}
		if r.Len() != 1 {
			t.Errorf("Expected 1 entry, got %d", r.Len())
		}
	})

	t.Run("re-register is rejected", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(testSchema("f1", "t_1")); err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		err := r.Register(testSchema("f1", "t_other"))
		if err == nil {
			t.Fatal("Expected error on duplicate registration")
		}
		if !qerr.IsKind(err, qerr.KindValidation) {
			t.Errorf("Expected VALIDATION_ERROR, got %v", qerr.KindOf(err))
		}

		// The original binding stays intact.
		ts, _ := r.Resolve("f1")
		if ts.Table != "t_1" {
			t.Errorf("Expected original table t_1, got %s", ts.Table)
		}
	})

	t.Run("resolve unknown file", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Resolve("missing")
		if err == nil {
			t.Fatal("Expected error for unknown file")
		}
		if !qerr.IsKind(err, qerr.KindNotFound) {
			t.Errorf("Expected NOT_FOUND, got %v", qerr.KindOf(err))
		}
	})

	t.Run("remove", func(t *testing.T) {
		r := NewRegistry()
		r.Register(testSchema("f1", "t_1"))
		r.Remove("f1")

		if _, err := r.Resolve("f1"); err == nil {
			t.Error("Expected removed entry to be unresolvable")
		}
		if r.Len() != 0 {
			t.Errorf("Expected 0 entries, got %d", r.Len())
		}
	})
}
