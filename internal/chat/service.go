// Package chat drives the prompt -> SQL -> execution cycle and owns the
// chat-turn state machine.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/qerr"
	"github.com/tablechat/backend/internal/query"
	"github.com/tablechat/backend/internal/schema"
	"github.com/tablechat/backend/internal/sqlcheck"
	"github.com/tablechat/backend/internal/translate"
)

// Service coordinates translator, validator, and execution engine for chat
// turns. Turns are ephemeral: they live in memory and are dropped after a
// retention window.
type Service struct {
	mu    sync.RWMutex
	turns map[string]*models.ChatTurn

	translator translate.Translator
	registry   *schema.Registry
	engine     *query.Engine
	limits     sqlcheck.Config
}

// NewService creates a chat service.
func NewService(translator translate.Translator, registry *schema.Registry, engine *query.Engine, limits sqlcheck.Config) *Service {
	return &Service{
		turns:      make(map[string]*models.ChatTurn),
		translator: translator,
		registry:   registry,
		engine:     engine,
		limits:     limits,
	}
}

// Chat runs one turn: translate the prompt against the file's schema, then
// either execute immediately (autorun) or park the turn until the caller
// confirms. Translation and validation failures end the turn in ERROR; the
// file and its schema stay intact for the next prompt.
func (s *Service) Chat(ctx context.Context, fileID, prompt string, autorun bool) (*models.ChatTurn, error) {
	ts, err := s.registry.Resolve(fileID)
	if err != nil {
		return nil, err
	}

	turn := &models.ChatTurn{
		ID:        uuid.New().String(),
		FileID:    fileID,
		Prompt:    prompt,
		Autorun:   autorun,
		State:     models.TurnPromptSubmitted,
		CreatedAt: time.Now(),
	}
	s.put(turn)

	sqlText, err := s.translator.Translate(ctx, prompt, ts, s.limits.DefaultLimit)
	if err != nil {
		s.fail(turn, err)
		return s.get(turn.ID), nil
	}

	s.update(turn.ID, func(t *models.ChatTurn) {
		t.SQL = sqlText
		t.State = models.TurnSQLGenerated
	})

	if !autorun {
		s.update(turn.ID, func(t *models.ChatTurn) {
			t.State = models.TurnAwaitingConfirmation
		})
		return s.get(turn.ID), nil
	}

	s.execute(ctx, turn.ID, fileID, sqlText)
	return s.get(turn.ID), nil
}

// Confirm executes a turn parked in AWAITING_CONFIRMATION using its
// already-generated SQL. The SQL is re-validated but never regenerated.
func (s *Service) Confirm(ctx context.Context, fileID, turnID string) (*models.ChatTurn, error) {
	turn := s.get(turnID)
	if turn == nil || turn.FileID != fileID {
		return nil, qerr.Newf(qerr.KindNotFound, "turn not found: %s", turnID)
	}
	if turn.State != models.TurnAwaitingConfirmation {
		return nil, qerr.Newf(qerr.KindValidation,
			"turn %s is in state %s, not awaiting confirmation", turnID, turn.State)
	}

	s.execute(ctx, turnID, fileID, turn.SQL)
	return s.get(turnID), nil
}

// ExecuteConfirmed validates and runs caller-supplied SQL against the file's
// table. Validation is never skipped, even when the SQL came from a prior
// turn of this same service.
func (s *Service) ExecuteConfirmed(ctx context.Context, fileID, sqlText string) (*models.QueryResult, error) {
	ts, err := s.registry.Resolve(fileID)
	if err != nil {
		return nil, err
	}

	vq, err := sqlcheck.Validate(sqlText, ts.Table, s.limits)
	if err != nil {
		return nil, err
	}

	return s.engine.Execute(ctx, vq)
}

// GetTurn returns a turn by ID, scoped to the file that created it.
func (s *Service) GetTurn(fileID, turnID string) (*models.ChatTurn, error) {
	turn := s.get(turnID)
	if turn == nil || turn.FileID != fileID {
		return nil, qerr.Newf(qerr.KindNotFound, "turn not found: %s", turnID)
	}
	return turn, nil
}

// DropFileTurns removes all turns belonging to a file. Called on expiry.
func (s *Service) DropFileTurns(fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.turns {
		if t.FileID == fileID {
			delete(s.turns, id)
		}
	}
}

// CleanupOldTurns drops terminal turns older than maxAge and parked turns
// that were never confirmed within the same window.
func (s *Service) CleanupOldTurns(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.turns {
		if t.CreatedAt.Before(cutoff) {
			delete(s.turns, id)
		}
	}
}

// execute validates and runs the turn's SQL, moving it to RESULT or ERROR.
func (s *Service) execute(ctx context.Context, turnID, fileID, sqlText string) {
	s.update(turnID, func(t *models.ChatTurn) {
		t.State = models.TurnExecuting
	})

	result, err := s.ExecuteConfirmed(ctx, fileID, sqlText)
	if err != nil {
		s.update(turnID, func(t *models.ChatTurn) {
			t.State = models.TurnError
			t.Error = err.Error()
			t.ErrorKind = string(qerr.KindOf(err))
		})
		fmt.Printf("[Chat %s] Turn failed: %v\n", shortID(turnID), err)
		return
	}

	s.update(turnID, func(t *models.ChatTurn) {
		t.State = models.TurnResult
		t.Result = result
	})
}

func (s *Service) fail(turn *models.ChatTurn, err error) {
	s.update(turn.ID, func(t *models.ChatTurn) {
		t.State = models.TurnError
		t.Error = err.Error()
		t.ErrorKind = string(qerr.KindOf(err))
	})
	fmt.Printf("[Chat %s] Turn failed: %v\n", shortID(turn.ID), err)
}

func (s *Service) put(turn *models.ChatTurn) {
	s.mu.Lock()
	s.turns[turn.ID] = turn
	s.mu.Unlock()
}

func (s *Service) get(turnID string) *models.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.turns[turnID]
	if !ok {
		return nil
	}
	copied := *t
	return &copied
}

func (s *Service) update(turnID string, fn func(*models.ChatTurn)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.turns[turnID]; ok {
		fn(t)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
