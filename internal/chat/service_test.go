package chat

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/qerr"
	"github.com/tablechat/backend/internal/query"
	"github.com/tablechat/backend/internal/schema"
	"github.com/tablechat/backend/internal/sqlcheck"
	"github.com/tablechat/backend/internal/store"
	"github.com/tablechat/backend/internal/testutil"
)

// newTestService materializes one small table and wires a chat service over
// it using the given fake translator.
func newTestService(t *testing.T, translator *testutil.StaticTranslator) (*Service, string, string) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "chat.duckdb"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	reg := schema.NewRegistry()
	mat := store.NewMaterializer(s, reg)

	fileID := uuid.New().String()
	cols := []models.ColumnSchema{
		{Name: "id", Type: models.TypeInteger},
		{Name: "name", Type: models.TypeText},
	}
	ts, err := mat.Materialize(fileID, cols, [][]string{
		{"1", "alice"},
		{"2", "bob"},
	})
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	engine := query.NewEngine(s, 5*time.Second)
	svc := NewService(translator, reg, engine, sqlcheck.Config{DefaultLimit: 500, MaxLimit: 5000})
	return svc, fileID, ts.Table
}

func TestService_Chat(t *testing.T) {
	t.Run("autorun executes and returns result", func(t *testing.T) {
		translator := &testutil.StaticTranslator{}
		svc, fileID, table := newTestService(t, translator)
		translator.SQL = "SELECT * FROM " + table + " ORDER BY id"

		turn, err := svc.Chat(context.Background(), fileID, "show all people", true)
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}

		if turn.State != models.TurnResult {
			t.Fatalf("Expected RESULT state, got %s (%s)", turn.State, turn.Error)
		}
		if turn.Result == nil || turn.Result.RowCount != 2 {
			t.Errorf("Expected 2 result rows, got %+v", turn.Result)
		}
		// The executed SQL carries the injected limit.
		if turn.Result.SQL != translator.SQL+" LIMIT 500" {
			t.Errorf("Unexpected executed SQL %q", turn.Result.SQL)
		}
		if translator.Calls() != 1 {
			t.Errorf("Expected 1 translation, got %d", translator.Calls())
		}
	})

	t.Run("without autorun parks for confirmation", func(t *testing.T) {
		translator := &testutil.StaticTranslator{}
		svc, fileID, table := newTestService(t, translator)
		translator.SQL = "SELECT COUNT(*) AS n FROM " + table

		turn, err := svc.Chat(context.Background(), fileID, "how many?", false)
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if turn.State != models.TurnAwaitingConfirmation {
			t.Fatalf("Expected AWAITING_CONFIRMATION, got %s", turn.State)
		}
		if turn.SQL != translator.SQL {
			t.Errorf("Expected generated SQL stored on turn, got %q", turn.SQL)
		}
		if turn.Result != nil {
			t.Error("Expected no result before confirmation")
		}

		confirmed, err := svc.Confirm(context.Background(), fileID, turn.ID)
		if err != nil {
			t.Fatalf("Confirm failed: %v", err)
		}
		if confirmed.State != models.TurnResult {
			t.Fatalf("Expected RESULT after confirm, got %s (%s)", confirmed.State, confirmed.Error)
		}
		if translator.Calls() != 1 {
			t.Errorf("Expected SQL not regenerated on confirm, got %d calls", translator.Calls())
		}
	})

	t.Run("translation failure ends turn in error", func(t *testing.T) {
		translator := &testutil.StaticTranslator{
			Err: qerr.New(qerr.KindGeneration, "model returned no SQL"),
		}
		svc, fileID, _ := newTestService(t, translator)

		turn, err := svc.Chat(context.Background(), fileID, "gibberish", true)
		if err != nil {
			t.Fatalf("Chat returned transport error: %v", err)
		}
		if turn.State != models.TurnError {
			t.Fatalf("Expected ERROR state, got %s", turn.State)
		}
		if turn.ErrorKind != string(qerr.KindGeneration) {
			t.Errorf("Expected GENERATION_ERROR kind, got %s", turn.ErrorKind)
		}
	})

	t.Run("scope violation ends turn in error but keeps schema usable", func(t *testing.T) {
		translator := &testutil.StaticTranslator{SQL: "SELECT * FROM t_other"}
		svc, fileID, table := newTestService(t, translator)

		turn, err := svc.Chat(context.Background(), fileID, "bad", true)
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if turn.State != models.TurnError {
			t.Fatalf("Expected ERROR state, got %s", turn.State)
		}
		if turn.ErrorKind != string(qerr.KindScopeViolation) {
			t.Errorf("Expected SCOPE_VIOLATION, got %s", turn.ErrorKind)
		}

		// The file is still queryable on the next turn.
		translator.SQL = "SELECT * FROM " + table
		turn2, err := svc.Chat(context.Background(), fileID, "good", true)
		if err != nil {
			t.Fatalf("Second chat failed: %v", err)
		}
		if turn2.State != models.TurnResult {
			t.Errorf("Expected RESULT, got %s (%s)", turn2.State, turn2.Error)
		}
	})

	t.Run("chat on unknown file", func(t *testing.T) {
		svc, _, _ := newTestService(t, &testutil.StaticTranslator{SQL: "SELECT 1"})

		_, err := svc.Chat(context.Background(), "missing", "q", true)
		if err == nil {
			t.Fatal("Expected error")
		}
		if !qerr.IsKind(err, qerr.KindNotFound) {
			t.Errorf("Expected NOT_FOUND, got %v", qerr.KindOf(err))
		}
	})
}

func TestService_Confirm(t *testing.T) {
	t.Run("confirm on turn not awaiting confirmation", func(t *testing.T) {
		translator := &testutil.StaticTranslator{}
		svc, fileID, table := newTestService(t, translator)
		translator.SQL = "SELECT * FROM " + table

		turn, err := svc.Chat(context.Background(), fileID, "q", true)
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}

		_, err = svc.Confirm(context.Background(), fileID, turn.ID)
		if err == nil {
			t.Fatal("Expected error confirming an already-executed turn")
		}
		if !qerr.IsKind(err, qerr.KindValidation) {
			t.Errorf("Expected VALIDATION_ERROR, got %v", qerr.KindOf(err))
		}
	})

	t.Run("confirm scoped to owning file", func(t *testing.T) {
		translator := &testutil.StaticTranslator{}
		svc, fileID, table := newTestService(t, translator)
		translator.SQL = "SELECT * FROM " + table

		turn, _ := svc.Chat(context.Background(), fileID, "q", false)

		_, err := svc.Confirm(context.Background(), "other-file", turn.ID)
		if err == nil {
			t.Fatal("Expected error for wrong file")
		}
		if !qerr.IsKind(err, qerr.KindNotFound) {
			t.Errorf("Expected NOT_FOUND, got %v", qerr.KindOf(err))
		}
	})
}

func TestService_ExecuteConfirmed(t *testing.T) {
	translator := &testutil.StaticTranslator{}
	svc, fileID, table := newTestService(t, translator)

	t.Run("validates caller SQL", func(t *testing.T) {
		_, err := svc.ExecuteConfirmed(context.Background(), fileID, "DROP TABLE "+table)
		if err == nil {
			t.Fatal("Expected rejection")
		}
		if !qerr.IsKind(err, qerr.KindUnsupportedOperation) {
			t.Errorf("Expected UNSUPPORTED_OPERATION, got %v", qerr.KindOf(err))
		}
	})

	t.Run("rejects expression after limit literal", func(t *testing.T) {
		_, err := svc.ExecuteConfirmed(context.Background(), fileID,
			"SELECT * FROM "+table+" LIMIT 4999+999999")
		if err == nil {
			t.Fatal("Expected rejection")
		}
		if !qerr.IsKind(err, qerr.KindUnsupportedOperation) {
			t.Errorf("Expected UNSUPPORTED_OPERATION, got %v", qerr.KindOf(err))
		}
	})

	t.Run("rejects prefix statement subquery", func(t *testing.T) {
		_, err := svc.ExecuteConfirmed(context.Background(), fileID,
			"SELECT * FROM (SUMMARIZE t_other)")
		if err == nil {
			t.Fatal("Expected rejection")
		}
		if !qerr.IsKind(err, qerr.KindUnsupportedOperation) {
			t.Errorf("Expected UNSUPPORTED_OPERATION, got %v", qerr.KindOf(err))
		}
	})

	t.Run("runs valid SQL", func(t *testing.T) {
		result, err := svc.ExecuteConfirmed(context.Background(), fileID, "SELECT * FROM "+table)
		if err != nil {
			t.Fatalf("ExecuteConfirmed failed: %v", err)
		}
		if result.RowCount != 2 {
			t.Errorf("Expected 2 rows, got %d", result.RowCount)
		}
	})
}

func TestService_Retention(t *testing.T) {
	t.Run("drop file turns", func(t *testing.T) {
		translator := &testutil.StaticTranslator{}
		svc, fileID, table := newTestService(t, translator)
		translator.SQL = "SELECT * FROM " + table

		turn, _ := svc.Chat(context.Background(), fileID, "q", false)
		svc.DropFileTurns(fileID)

		if _, err := svc.GetTurn(fileID, turn.ID); err == nil {
			t.Error("Expected turn removed with its file")
		}
	})

	t.Run("cleanup removes old turns", func(t *testing.T) {
		translator := &testutil.StaticTranslator{}
		svc, fileID, table := newTestService(t, translator)
		translator.SQL = "SELECT * FROM " + table

		turn, _ := svc.Chat(context.Background(), fileID, "q", false)

		svc.CleanupOldTurns(0)
		if _, err := svc.GetTurn(fileID, turn.ID); err == nil {
			t.Error("Expected aged-out turn removed")
		}
	})
}
