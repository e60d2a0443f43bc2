// Package testutil provides shared test doubles.
package testutil

import (
	"context"
	"sync"

	"github.com/tablechat/backend/internal/models"
)

// StaticTranslator returns a fixed SQL string (or error) for every prompt.
// It records the prompts it was asked to translate.
type StaticTranslator struct {
	SQL string
	Err error

	mu      sync.Mutex
	prompts []string
}

// Translate implements translate.Translator.
func (t *StaticTranslator) Translate(ctx context.Context, prompt string, ts models.TableSchema, rowLimit int) (string, error) {
	t.mu.Lock()
	t.prompts = append(t.prompts, prompt)
	t.mu.Unlock()

	if t.Err != nil {
		return "", t.Err
	}
	return t.SQL, nil
}

// Prompts returns all prompts seen so far.
func (t *StaticTranslator) Prompts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.prompts))
	copy(out, t.prompts)
	return out
}

// Calls returns the number of Translate invocations.
func (t *StaticTranslator) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.prompts)
}
