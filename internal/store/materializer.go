package store

import (
	"fmt"

	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/schema"
)

// Materializer turns inferred schemas and parsed rows into queryable
// per-file tables. It is the only component allowed to write to the schema
// registry.
type Materializer struct {
	store    *DuckStore
	registry *schema.Registry
}

// NewMaterializer creates a materializer over the given store and registry.
func NewMaterializer(store *DuckStore, registry *schema.Registry) *Materializer {
	return &Materializer{store: store, registry: registry}
}

// Materialize creates the per-file table, bulk-inserts all rows, and
// registers the resulting TableSchema. The operation is all-or-nothing: on
// any failure the partial table is dropped and no schema is registered, so
// a partially-queryable table can never be observed.
func (m *Materializer) Materialize(fileID string, cols []models.ColumnSchema, rows [][]string) (models.TableSchema, error) {
	table, err := TableNameForFile(fileID)
	if err != nil {
		return models.TableSchema{}, err
	}

	if err := m.store.CreateTable(table, cols); err != nil {
		return models.TableSchema{}, err
	}

	if err := m.store.AppendRows(table, cols, rows); err != nil {
		if dropErr := m.store.DropTable(table); dropErr != nil {
			fmt.Printf("[Materializer] failed to drop partial table %s: %v\n", table, dropErr)
		}
		return models.TableSchema{}, err
	}

	ts := models.TableSchema{
		FileID:   fileID,
		Table:    table,
		Columns:  cols,
		RowCount: int64(len(rows)),
	}

	if err := m.registry.Register(ts); err != nil {
		if dropErr := m.store.DropTable(table); dropErr != nil {
			fmt.Printf("[Materializer] failed to drop table %s: %v\n", table, dropErr)
		}
		return models.TableSchema{}, err
	}

	return ts, nil
}

// Drop removes a file's table and registry entry. Invoked by the external
// lifecycle manager through the expire operation.
func (m *Materializer) Drop(fileID string) error {
	table, err := TableNameForFile(fileID)
	if err != nil {
		return err
	}
	if err := m.store.DropTable(table); err != nil {
		return err
	}
	m.registry.Remove(fileID)
	return nil
}
