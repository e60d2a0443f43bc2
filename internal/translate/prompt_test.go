package translate

import (
	"strings"
	"testing"

	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/qerr"
)

func TestBuildSystemPrompt(t *testing.T) {
	ts := models.TableSchema{
		FileID:   "f1",
		Table:    "t_abc",
		RowCount: 42,
		Columns: []models.ColumnSchema{
			{Name: "id", Type: models.TypeInteger},
			{Name: "age", Type: models.TypeInteger, Nullable: true, Samples: []string{"30", "25"}},
		},
	}

	prompt := BuildSystemPrompt(ts, 500)

	for _, want := range []string{"t_abc", "42 rows", "id INTEGER", "age INTEGER NULL", "e.g. 30, 25", "at most 500 rows"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q\nprompt:\n%s", want, prompt)
		}
	}

	// Deterministic: same schema, same prompt.
	if prompt != BuildSystemPrompt(ts, 500) {
		t.Error("Expected identical prompt for identical schema")
	}
}

func TestCleanSQL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "bare select",
			raw:  "SELECT * FROM t_abc",
			want: "SELECT * FROM t_abc",
		},
		{
			name: "strips sql code fence",
			raw:  "```sql\nSELECT * FROM t_abc\n```",
			want: "SELECT * FROM t_abc",
		},
		{
			name: "strips plain code fence",
			raw:  "```\nSELECT 1\n```",
			want: "SELECT 1",
		},
		{
			name: "trims trailing semicolon and whitespace",
			raw:  "  SELECT 1;  ",
			want: "SELECT 1",
		},
		{
			name: "with statement is accepted",
			raw:  "WITH x AS (SELECT 1) SELECT * FROM x",
			want: "WITH x AS (SELECT 1) SELECT * FROM x",
		},
		{
			name:    "empty response",
			raw:     "   ",
			wantErr: true,
		},
		{
			name:    "prose instead of SQL",
			raw:     "Sure! Here is the query you asked for.",
			wantErr: true,
		},
		{
			name:    "fence with only prose",
			raw:     "```\n\n```",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanSQL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CleanSQL(%q) succeeded, expected error", tt.raw)
				}
				if !qerr.IsKind(err, qerr.KindGeneration) {
					t.Errorf("Expected GENERATION_ERROR, got %v", qerr.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("CleanSQL(%q) failed: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("CleanSQL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
