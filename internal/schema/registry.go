// Package schema owns the mapping from file ID to materialized table schema.
// The registry is the single safety boundary for query scoping: the query
// path can only ever learn about the one table bound to the current file ID.
package schema

import (
	"sync"

	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/qerr"
)

// Registry maps file IDs to their immutable TableSchema. Only the store
// materializer registers entries; the query path holds it read-only.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]models.TableSchema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]models.TableSchema)}
}

// Register binds a file ID to its table schema. A TableSchema is immutable
// after materialization, so re-registering an existing file ID is an error.
func (r *Registry) Register(ts models.TableSchema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tables[ts.FileID]; exists {
		return qerr.Newf(qerr.KindValidation, "schema already registered for file %s", ts.FileID)
	}
	r.tables[ts.FileID] = ts
	return nil
}

// Resolve returns the table schema bound to the given file ID.
func (r *Registry) Resolve(fileID string) (models.TableSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ts, ok := r.tables[fileID]
	if !ok {
		return models.TableSchema{}, qerr.Newf(qerr.KindNotFound, "no schema for file %s", fileID)
	}
	return ts, nil
}

// Remove drops the registry entry for a file. Called only on expiry.
func (r *Registry) Remove(fileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables, fileID)
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}
