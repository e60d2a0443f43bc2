package ingest

import (
	"strconv"
	"strings"
)

// reservedWords are SQL keywords that cannot be used as bare column names.
// A reserved header gets the same deterministic suffix as a duplicate.
var reservedWords = map[string]struct{}{
	"all": {}, "and": {}, "as": {}, "asc": {}, "between": {}, "by": {},
	"case": {}, "cast": {}, "column": {}, "create": {}, "cross": {},
	"delete": {}, "desc": {}, "distinct": {}, "drop": {}, "else": {},
	"end": {}, "exists": {}, "from": {}, "group": {}, "having": {},
	"in": {}, "index": {}, "inner": {}, "insert": {}, "into": {},
	"is": {}, "join": {}, "left": {}, "like": {}, "limit": {},
	"not": {}, "null": {}, "offset": {}, "on": {}, "or": {},
	"order": {}, "outer": {}, "right": {}, "select": {}, "set": {},
	"table": {}, "then": {}, "union": {}, "update": {}, "values": {},
	"when": {}, "where": {}, "with": {},
}

// NormalizeColumns maps raw header cells to safe, unique SQL column names.
// The rule is deterministic: lowercase, runs of non-alphanumerics collapse
// to "_", leading digits get a "c" prefix, empty results become "col", and
// reserved words or collisions are disambiguated with "_2", "_3", ... in
// header order.
func NormalizeColumns(header []string) []string {
	used := make(map[string]bool, len(header))
	names := make([]string, len(header))

	for i, raw := range header {
		name := normalizeName(raw)

		if _, reserved := reservedWords[name]; reserved {
			name = name + "_2"
		}

		if used[name] {
			base := name
			for n := 2; ; n++ {
				candidate := base + "_" + strconv.Itoa(n)
				if !used[candidate] {
					name = candidate
					break
				}
			}
		}
		used[name] = true
		names[i] = name
	}

	return names
}

func normalizeName(raw string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "col"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "c" + name
	}
	return name
}
