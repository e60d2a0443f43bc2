package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tablechat/backend/internal/llm"
	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/qerr"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func chatReply(w http.ResponseWriter, content string) {
	json.NewEncoder(w).Encode(map[string]any{
		"message": map[string]string{"role": "assistant", "content": content},
	})
}

func testTableSchema() models.TableSchema {
	return models.TableSchema{
		FileID:   "f1",
		Table:    "t_abc",
		RowCount: 3,
		Columns:  []models.ColumnSchema{{Name: "id", Type: models.TypeInteger}},
	}
}

func TestLLMTranslator_Translate(t *testing.T) {
	t.Run("returns cleaned SQL", func(t *testing.T) {
		srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/chat" {
				t.Errorf("Unexpected path %s", r.URL.Path)
			}
			chatReply(w, "```sql\nSELECT * FROM t_abc;\n```")
		})

		tr := NewLLMTranslator(llm.New(srv.URL), "test-model", 5*time.Second, 10*time.Millisecond)
		sql, err := tr.Translate(context.Background(), "show everything", testTableSchema(), 500)
		if err != nil {
			t.Fatalf("Translate failed: %v", err)
		}
		if sql != "SELECT * FROM t_abc" {
			t.Errorf("Translate = %q", sql)
		}
	})

	t.Run("sends schema context and prompt", func(t *testing.T) {
		var body struct {
			Model    string        `json:"model"`
			Messages []llm.Message `json:"messages"`
			Stream   bool          `json:"stream"`
		}
		srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&body)
			chatReply(w, "SELECT 1")
		})

		tr := NewLLMTranslator(llm.New(srv.URL), "test-model", 5*time.Second, 10*time.Millisecond)
		if _, err := tr.Translate(context.Background(), "how many rows?", testTableSchema(), 500); err != nil {
			t.Fatalf("Translate failed: %v", err)
		}

		if body.Model != "test-model" {
			t.Errorf("Expected model test-model, got %s", body.Model)
		}
		if body.Stream {
			t.Error("Expected stream=false")
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Content != "how many rows?" {
			t.Errorf("Unexpected messages: %+v", body.Messages)
		}
	})

	t.Run("retries once on 5xx", func(t *testing.T) {
		var calls int32
		srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			chatReply(w, "SELECT * FROM t_abc")
		})

		tr := NewLLMTranslator(llm.New(srv.URL), "test-model", 5*time.Second, 10*time.Millisecond)
		sql, err := tr.Translate(context.Background(), "q", testTableSchema(), 500)
		if err != nil {
			t.Fatalf("Translate failed after retry: %v", err)
		}
		if sql != "SELECT * FROM t_abc" {
			t.Errorf("Translate = %q", sql)
		}
		if atomic.LoadInt32(&calls) != 2 {
			t.Errorf("Expected 2 calls, got %d", calls)
		}
	})

	t.Run("persistent 5xx surfaces as generation error", func(t *testing.T) {
		var calls int32
		srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadGateway)
		})

		tr := NewLLMTranslator(llm.New(srv.URL), "test-model", 5*time.Second, 10*time.Millisecond)
		_, err := tr.Translate(context.Background(), "q", testTableSchema(), 500)
		if err == nil {
			t.Fatal("Expected error")
		}
		if !qerr.IsKind(err, qerr.KindGeneration) {
			t.Errorf("Expected GENERATION_ERROR, got %v", qerr.KindOf(err))
		}
		if atomic.LoadInt32(&calls) != 2 {
			t.Errorf("Expected exactly 2 calls (one retry), got %d", calls)
		}
	})

	t.Run("4xx is not retried", func(t *testing.T) {
		var calls int32
		srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		})

		tr := NewLLMTranslator(llm.New(srv.URL), "test-model", 5*time.Second, 10*time.Millisecond)
		_, err := tr.Translate(context.Background(), "q", testTableSchema(), 500)
		if err == nil {
			t.Fatal("Expected error")
		}
		if atomic.LoadInt32(&calls) != 1 {
			t.Errorf("Expected 1 call, got %d", calls)
		}
	})

	t.Run("prose response is a generation error", func(t *testing.T) {
		srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
			chatReply(w, "I cannot answer that question from this table.")
		})

		tr := NewLLMTranslator(llm.New(srv.URL), "test-model", 5*time.Second, 10*time.Millisecond)
		_, err := tr.Translate(context.Background(), "q", testTableSchema(), 500)
		if err == nil {
			t.Fatal("Expected error")
		}
		if !qerr.IsKind(err, qerr.KindGeneration) {
			t.Errorf("Expected GENERATION_ERROR, got %v", qerr.KindOf(err))
		}
	})
}
