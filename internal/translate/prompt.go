package translate

import (
	"fmt"
	"strings"

	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/qerr"
)

// BuildSystemPrompt renders the schema context for the model. The output is
// deterministic for a given schema: columns appear in table order with their
// semantic type, nullability, and up to three sample values.
func BuildSystemPrompt(ts models.TableSchema, rowLimit int) string {
	var sb strings.Builder

	sb.WriteString("You translate questions about a single SQL table into one SELECT statement.\n\n")
	fmt.Fprintf(&sb, "Table: %s (%d rows)\nColumns:\n", ts.Table, ts.RowCount)

	for _, c := range ts.Columns {
		fmt.Fprintf(&sb, "  - %s %s", c.Name, c.Type)
		if c.Nullable {
			sb.WriteString(" NULL")
		}
		if len(c.Samples) > 0 {
			fmt.Fprintf(&sb, " (e.g. %s)", strings.Join(c.Samples, ", "))
		}
		sb.WriteByte('\n')
	}

	fmt.Fprintf(&sb, "\nRules:\n"+
		"- Answer with exactly one SQL SELECT statement and nothing else.\n"+
		"- Query only the table %s.\n"+
		"- Do not modify data. No INSERT, UPDATE, DELETE, or DDL.\n"+
		"- Return at most %d rows.\n"+
		"- Do not explain the query.\n", ts.Table, rowLimit)

	return sb.String()
}

// CleanSQL normalizes a model response into a bare SQL statement: markdown
// code fences are stripped, surrounding whitespace and a trailing semicolon
// are trimmed. Empty output or anything that does not start with SELECT or
// WITH is a GENERATION_ERROR - natural-language commentary is not SQL.
func CleanSQL(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```sql")
		s = strings.TrimPrefix(s, "```SQL")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	s = strings.TrimSuffix(s, ";")
	s = strings.TrimSpace(s)

	if s == "" {
		return "", qerr.New(qerr.KindGeneration, "model returned no SQL")
	}

	first := firstWord(s)
	if first != "select" && first != "with" {
		return "", qerr.Newf(qerr.KindGeneration, "model response is not a SELECT statement (starts with %q)", first)
	}

	return s, nil
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
