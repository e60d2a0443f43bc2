// Package translate turns a natural-language question plus a table schema
// into one candidate SQL statement via a language model. Everything
// downstream of it (validation, execution) is deterministic; the model is
// the only non-deterministic dependency and hides behind the Translator
// interface.
package translate

import (
	"context"
	"time"

	"github.com/tablechat/backend/internal/llm"
	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/qerr"
)

// Translator produces one candidate SQL statement for a prompt, or fails.
type Translator interface {
	Translate(ctx context.Context, prompt string, ts models.TableSchema, rowLimit int) (string, error)
}

// LLMTranslator implements Translator over an Ollama-compatible chat model.
// On a transient upstream failure (timeout, 5xx) it retries exactly once
// after a backoff; a second failure surfaces to the caller. It never falls
// back to a guessed query.
type LLMTranslator struct {
	client  *llm.Client
	model   string
	timeout time.Duration
	backoff time.Duration
}

// NewLLMTranslator creates a translator using the given client and model.
func NewLLMTranslator(client *llm.Client, model string, timeout, backoff time.Duration) *LLMTranslator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &LLMTranslator{client: client, model: model, timeout: timeout, backoff: backoff}
}

// Translate builds the schema-aware prompt, calls the model, and cleans the
// response into a bare SQL statement.
func (t *LLMTranslator) Translate(ctx context.Context, prompt string, ts models.TableSchema, rowLimit int) (string, error) {
	messages := []llm.Message{
		{Role: "system", Content: BuildSystemPrompt(ts, rowLimit)},
		{Role: "user", Content: prompt},
	}

	raw, err := t.chatOnce(ctx, messages)
	if err != nil && llm.IsTransient(err) && ctx.Err() == nil {
		select {
		case <-time.After(t.backoff):
		case <-ctx.Done():
			return "", qerr.Wrap(qerr.KindGeneration, "translation cancelled", ctx.Err())
		}
		raw, err = t.chatOnce(ctx, messages)
	}
	if err != nil {
		return "", qerr.Wrap(qerr.KindGeneration, "language model call failed", err)
	}

	sqlText, err := CleanSQL(raw)
	if err != nil {
		return "", err
	}
	return sqlText, nil
}

// chatOnce issues a single model call bounded by the translator's own
// timeout, independent of the overall chat-turn deadline.
func (t *LLMTranslator) chatOnce(ctx context.Context, messages []llm.Message) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.client.Chat(callCtx, t.model, messages)
}
