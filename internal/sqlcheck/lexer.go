package sqlcheck

import (
	"strings"

	"github.com/tablechat/backend/internal/qerr"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokNumber
	tokString
	tokQuotedIdent
	tokPunct
)

// token is one lexical unit of the statement. start/end are byte offsets
// into the original text, depth is the parenthesis nesting level at the
// token's position.
type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
	depth int
}

// lower returns the lowercased token text; for quoted identifiers the
// surrounding quotes are stripped first.
func (t token) lower() string {
	s := t.text
	if t.kind == tokQuotedIdent && len(s) >= 2 {
		s = strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return strings.ToLower(s)
}

// lex splits a SQL statement into tokens, treating comments as whitespace.
// String literals and quoted identifiers are kept as single tokens so
// keyword scanning can never be fooled by their contents.
func lex(input string) ([]token, error) {
	var tokens []token
	depth := 0
	i := 0
	n := len(input)

	for i < n {
		c := input[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '-' && i+1 < n && input[i+1] == '-':
			// Line comment.
			for i < n && input[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && input[i+1] == '*':
			end := strings.Index(input[i+2:], "*/")
			if end < 0 {
				return nil, qerr.New(qerr.KindUnsupportedOperation, "unterminated block comment")
			}
			i += 2 + end + 2

		case c == '\'':
			start := i
			i++
			for {
				if i >= n {
					return nil, qerr.New(qerr.KindUnsupportedOperation, "unterminated string literal")
				}
				if input[i] == '\'' {
					if i+1 < n && input[i+1] == '\'' {
						i += 2 // escaped quote
						continue
					}
					i++
					break
				}
				i++
			}
			tokens = append(tokens, token{tokString, input[start:i], start, i, depth})

		case c == '"':
			start := i
			i++
			for {
				if i >= n {
					return nil, qerr.New(qerr.KindUnsupportedOperation, "unterminated quoted identifier")
				}
				if input[i] == '"' {
					if i+1 < n && input[i+1] == '"' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			tokens = append(tokens, token{tokQuotedIdent, input[start:i], start, i, depth})

		case isWordStart(c):
			start := i
			for i < n && isWordChar(input[i]) {
				i++
			}
			tokens = append(tokens, token{tokWord, input[start:i], start, i, depth})

		case c >= '0' && c <= '9':
			start := i
			for i < n && isNumberChar(input[i]) {
				i++
			}
			tokens = append(tokens, token{tokNumber, input[start:i], start, i, depth})

		case c == '(':
			tokens = append(tokens, token{tokPunct, "(", i, i + 1, depth})
			depth++
			i++

		case c == ')':
			depth--
			if depth < 0 {
				return nil, qerr.New(qerr.KindUnsupportedOperation, "unbalanced parentheses")
			}
			tokens = append(tokens, token{tokPunct, ")", i, i + 1, depth})
			i++

		default:
			tokens = append(tokens, token{tokPunct, string(c), i, i + 1, depth})
			i++
		}
	}

	if depth != 0 {
		return nil, qerr.New(qerr.KindUnsupportedOperation, "unbalanced parentheses")
	}

	return tokens, nil
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordChar(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9') || c == '$'
}

func isNumberChar(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E'
}
