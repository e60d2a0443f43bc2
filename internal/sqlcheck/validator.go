// Package sqlcheck is the static analysis gate in front of the execution
// engine. It accepts exactly one read-only SELECT scoped to the caller's own
// table and enforces a row limit; everything else is rejected before any SQL
// reaches the store.
package sqlcheck

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tablechat/backend/internal/qerr"
)

// Config holds the row limit policy. The clamp always tightens: a missing
// LIMIT gets DefaultLimit injected, a LIMIT above MaxLimit is reduced to
// MaxLimit, and a LIMIT at or below MaxLimit is kept as written.
type Config struct {
	DefaultLimit int
	MaxLimit     int
}

// ValidatedQuery is a statement that passed all checks, ready for execution.
// Limit is the effective row limit present in SQL after clamping.
type ValidatedQuery struct {
	SQL   string
	Limit int
}

// forbiddenWords are verbs and keywords that make a statement non-read-only
// or let it escape the per-file store. Any bare occurrence outside a string
// literal or quoted identifier is rejected.
var forbiddenWords = map[string]struct{}{
	"insert": {}, "update": {}, "delete": {}, "drop": {}, "alter": {},
	"create": {}, "attach": {}, "detach": {}, "pragma": {}, "copy": {},
	"export": {}, "import": {}, "call": {}, "install": {}, "load": {},
	"set": {}, "reset": {}, "vacuum": {}, "checkpoint": {}, "grant": {},
	"revoke": {}, "truncate": {}, "merge": {}, "replace": {}, "begin": {},
	"commit": {}, "rollback": {}, "transaction": {}, "into": {}, "use": {},
}

// sqlKeywords is used to tell a grouping parenthesis from a function call:
// an identifier directly before "(" that is not a keyword is a function name.
var sqlKeywords = map[string]struct{}{
	"select": {}, "from": {}, "where": {}, "and": {}, "or": {}, "not": {},
	"on": {}, "in": {}, "as": {}, "join": {}, "union": {}, "all": {},
	"distinct": {}, "by": {}, "group": {}, "order": {}, "having": {},
	"limit": {}, "offset": {}, "when": {}, "then": {}, "else": {},
	"case": {}, "end": {}, "exists": {}, "between": {}, "like": {},
	"ilike": {}, "is": {}, "null": {}, "asc": {}, "desc": {}, "with": {},
	"recursive": {}, "values": {}, "intersect": {}, "except": {},
	"lateral": {}, "left": {}, "right": {}, "inner": {}, "outer": {},
	"cross": {}, "full": {}, "using": {}, "qualify": {}, "window": {},
	"over": {},
}

// fromConsumingFuncs are functions whose argument list legally contains a
// FROM keyword (EXTRACT(year FROM d)); a FROM inside them is not a table
// reference.
var fromConsumingFuncs = map[string]struct{}{
	"extract": {}, "substring": {}, "trim": {}, "position": {}, "overlay": {},
}

// Validate statically checks sqlText against the single table authorized for
// the caller and returns the statement with its LIMIT injected or clamped.
//
// Rejections:
//   - UNSUPPORTED_OPERATION: empty input, more than one statement, a verb
//     other than SELECT/WITH, any forbidden keyword, table functions, or a
//     non-literal LIMIT.
//   - SCOPE_VIOLATION: any table reference that is not allowedTable (CTE
//     names defined by the statement itself are permitted).
func Validate(sqlText, allowedTable string, cfg Config) (ValidatedQuery, error) {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 500
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 5000
	}
	if allowedTable == "" {
		return ValidatedQuery{}, qerr.New(qerr.KindScopeViolation, "no table bound to request")
	}

	tokens, err := lex(sqlText)
	if err != nil {
		return ValidatedQuery{}, err
	}
	if len(tokens) == 0 {
		return ValidatedQuery{}, qerr.New(qerr.KindUnsupportedOperation, "empty statement")
	}

	tokens, err = stripStatementSeparators(tokens)
	if err != nil {
		return ValidatedQuery{}, err
	}

	first := tokens[0]
	if first.kind != tokWord || (first.lower() != "select" && first.lower() != "with") {
		return ValidatedQuery{}, qerr.Newf(qerr.KindUnsupportedOperation,
			"only read-only SELECT statements are allowed, got %q", first.text)
	}

	for _, t := range tokens {
		if t.kind == tokWord {
			if _, bad := forbiddenWords[t.lower()]; bad {
				return ValidatedQuery{}, qerr.Newf(qerr.KindUnsupportedOperation,
					"keyword %s is not allowed", strings.ToUpper(t.lower()))
			}
		}
	}

	cteNames := collectCTENames(tokens)

	if err := checkTableReferences(tokens, strings.ToLower(allowedTable), cteNames); err != nil {
		return ValidatedQuery{}, err
	}

	return applyLimit(sqlText, tokens, cfg)
}

// stripStatementSeparators drops a trailing semicolon and rejects input
// that contains more than one non-empty statement.
func stripStatementSeparators(tokens []token) ([]token, error) {
	for i, t := range tokens {
		if t.kind == tokPunct && t.text == ";" {
			for _, rest := range tokens[i+1:] {
				if rest.kind != tokPunct || rest.text != ";" {
					return nil, qerr.New(qerr.KindUnsupportedOperation,
						"multiple statements are not allowed")
				}
			}
			return tokens[:i], nil
		}
	}
	return tokens, nil
}

// collectCTENames gathers the names defined in a leading WITH clause, so
// that references to them are not mistaken for foreign tables.
func collectCTENames(tokens []token) map[string]struct{} {
	names := make(map[string]struct{})
	if len(tokens) == 0 || tokens[0].lower() != "with" {
		return names
	}

	i := 1
	if i < len(tokens) && tokens[i].lower() == "recursive" {
		i++
	}

	for i < len(tokens) {
		if tokens[i].kind != tokWord && tokens[i].kind != tokQuotedIdent {
			break
		}
		names[tokens[i].lower()] = struct{}{}
		i++

		// Optional column list before AS.
		if i < len(tokens) && tokens[i].text == "(" {
			i = skipParens(tokens, i)
		}
		if i >= len(tokens) || tokens[i].lower() != "as" {
			break
		}
		i++
		if i >= len(tokens) || tokens[i].text != "(" {
			break
		}
		i = skipParens(tokens, i)

		if i < len(tokens) && tokens[i].text == "," {
			i++
			continue
		}
		break
	}

	return names
}

// skipParens advances past the balanced parenthesis group opening at index i
// and returns the index of the first token after it.
func skipParens(tokens []token, i int) int {
	open := tokens[i].depth
	i++
	for i < len(tokens) {
		if tokens[i].kind == tokPunct && tokens[i].text == ")" && tokens[i].depth == open {
			return i + 1
		}
		i++
	}
	return i
}

// checkTableReferences walks the statement and verifies that every table
// named after FROM or JOIN (including comma-separated from-lists and
// subqueries) is either the allowed table or a CTE defined by the statement.
func checkTableReferences(tokens []token, allowed string, cteNames map[string]struct{}) error {
	expectTable := false
	fromDepth := -1

	// funcStack tracks, per open parenthesis, whether it belongs to a
	// function call whose arguments may contain a bare FROM keyword.
	var funcStack []bool

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]

		if expectTable && (t.kind == tokString || t.kind == tokNumber) {
			// DuckDB accepts FROM 'file.csv'; a literal in table position
			// reads outside the store.
			return qerr.New(qerr.KindUnsupportedOperation,
				"literal in table position is not allowed")
		}

		if t.kind == tokPunct {
			switch t.text {
			case "(":
				isFromFunc := false
				if i > 0 {
					prev := tokens[i-1]
					if prev.kind == tokWord {
						if _, kw := sqlKeywords[prev.lower()]; !kw {
							_, isFromFunc = fromConsumingFuncs[prev.lower()]
						}
					}
				}
				funcStack = append(funcStack, isFromFunc)
				if expectTable {
					// DuckDB also accepts prefix statements (SUMMARIZE,
					// DESCRIBE, PIVOT) in subquery position; only a plain
					// query may open here. Its own FROM is checked as the
					// scan continues.
					if i+1 >= len(tokens) || tokens[i+1].kind != tokWord {
						return qerr.New(qerr.KindUnsupportedOperation,
							"subquery in table position must start with SELECT")
					}
					switch tokens[i+1].lower() {
					case "select", "with", "from":
					default:
						return qerr.Newf(qerr.KindUnsupportedOperation,
							"subquery in table position must start with SELECT, got %q", tokens[i+1].lower())
					}
					expectTable = false
				}
			case ")":
				if len(funcStack) > 0 {
					funcStack = funcStack[:len(funcStack)-1]
				}
				if fromDepth > t.depth {
					fromDepth = -1
				}
			case ",":
				if fromDepth == t.depth {
					expectTable = true
				}
			}
			continue
		}

		if t.kind == tokWord || t.kind == tokQuotedIdent {
			word := t.lower()

			if expectTable {
				if word == "lateral" {
					continue
				}
				// Table function: identifier in table position followed by
				// an argument list can read outside the store.
				if i+1 < len(tokens) && tokens[i+1].text == "(" {
					return qerr.Newf(qerr.KindUnsupportedOperation,
						"table function %q is not allowed", t.lower())
				}
				if i+1 < len(tokens) && tokens[i+1].text == "." {
					return qerr.Newf(qerr.KindScopeViolation,
						"qualified table reference %q is not allowed", t.lower())
				}
				if _, isCTE := cteNames[word]; !isCTE && word != allowed {
					return qerr.Newf(qerr.KindScopeViolation,
						"query references table %q outside the authorized scope", t.lower())
				}
				expectTable = false
				continue
			}

			switch word {
			case "from":
				inFromFunc := len(funcStack) > 0 && funcStack[len(funcStack)-1]
				if !inFromFunc {
					expectTable = true
					fromDepth = t.depth
				}
			case "join":
				expectTable = true
			case "where", "group", "order", "limit", "having", "qualify",
				"window", "union", "intersect", "except":
				if fromDepth == t.depth {
					fromDepth = -1
				}
			}
		}
	}

	return nil
}

// applyLimit injects the default LIMIT or clamps an explicit one down to the
// configured maximum. The clamp never loosens an existing limit.
func applyLimit(sqlText string, tokens []token, cfg Config) (ValidatedQuery, error) {
	base := strings.TrimLeft(sqlText[:tokens[len(tokens)-1].end], " \t\r\n")
	trimmed := len(sqlText[:tokens[len(tokens)-1].end]) - len(base)

	// Find the outermost LIMIT clause (depth 0, last occurrence).
	limitIdx := -1
	for i, t := range tokens {
		if t.kind == tokWord && t.depth == 0 && t.lower() == "limit" {
			limitIdx = i
		}
	}

	if limitIdx < 0 {
		return ValidatedQuery{
			SQL:   fmt.Sprintf("%s LIMIT %d", base, cfg.DefaultLimit),
			Limit: cfg.DefaultLimit,
		}, nil
	}

	if limitIdx+1 >= len(tokens) || tokens[limitIdx+1].kind != tokNumber {
		return ValidatedQuery{}, qerr.New(qerr.KindUnsupportedOperation,
			"LIMIT must be a literal integer")
	}

	numTok := tokens[limitIdx+1]
	limit, err := strconv.Atoi(numTok.text)
	if err != nil {
		return ValidatedQuery{}, qerr.Newf(qerr.KindUnsupportedOperation,
			"LIMIT must be a literal integer, got %q", numTok.text)
	}

	// DuckDB evaluates expressions and percentages after LIMIT, which would
	// defeat the clamp. Only end-of-statement or OFFSET <integer> may follow
	// the literal.
	rest := tokens[limitIdx+2:]
	switch {
	case len(rest) == 0:
	case len(rest) == 2 && rest[0].kind == tokWord && rest[0].lower() == "offset" &&
		rest[1].kind == tokNumber:
		if _, err := strconv.Atoi(rest[1].text); err != nil {
			return ValidatedQuery{}, qerr.Newf(qerr.KindUnsupportedOperation,
				"OFFSET must be a literal integer, got %q", rest[1].text)
		}
	default:
		return ValidatedQuery{}, qerr.New(qerr.KindUnsupportedOperation,
			"LIMIT must be a literal integer, optionally followed by OFFSET")
	}

	if limit <= cfg.MaxLimit {
		return ValidatedQuery{SQL: base, Limit: limit}, nil
	}

	clamped := base[:numTok.start-trimmed] + strconv.Itoa(cfg.MaxLimit) + base[numTok.end-trimmed:]
	return ValidatedQuery{SQL: clamped, Limit: cfg.MaxLimit}, nil
}
