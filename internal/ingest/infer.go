package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/qerr"
)

const maxSampleValues = 3

// Temporal layouts accepted by inference. Only unambiguous ISO forms are
// recognized; locale-dependent formats like 03/04/2025 stay TEXT.
var (
	dateLayout      = "2006-01-02"
	datetimeLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05",
	}
)

// booleanLiterals is the closed set of cell values accepted as booleans.
var booleanLiterals = map[string]bool{
	"true": true, "false": false,
	"yes": true, "no": false,
	"1": true, "0": false,
}

// InferColumns classifies every column of a parsed file by scanning up to
// sampleRows data rows. Classification per column tries, in order: BOOLEAN,
// INTEGER, DECIMAL, DATE, DATETIME, falling back to TEXT. A single
// non-conforming sampled value demotes the whole column.
//
// Column names are normalized deterministically (see NormalizeColumns);
// output order matches source header order.
func InferColumns(header []string, rows [][]string, sampleRows int) ([]models.ColumnSchema, error) {
	if len(header) == 0 {
		return nil, qerr.New(qerr.KindUnsupportedFormat, "no columns to infer")
	}
	if len(rows) == 0 {
		return nil, qerr.New(qerr.KindUnsupportedFormat, "no data rows to infer from")
	}

	names := NormalizeColumns(header)

	sample := rows
	if sampleRows > 0 && len(sample) > sampleRows {
		sample = sample[:sampleRows]
	}

	columns := make([]models.ColumnSchema, len(header))
	for col := range header {
		columns[col] = inferColumn(names[col], sample, col)
	}

	return columns, nil
}

// inferColumn classifies a single column from sampled rows.
func inferColumn(name string, sample [][]string, col int) models.ColumnSchema {
	boolOK, intOK, decOK, dateOK, datetimeOK := true, true, true, true, true
	nullable := false
	nonNull := 0
	var samples []string

	for _, row := range sample {
		cell := row[col]
		if strings.TrimSpace(cell) == "" {
			nullable = true
			continue
		}
		nonNull++

		if len(samples) < maxSampleValues && !containsString(samples, cell) {
			samples = append(samples, cell)
		}

		v := strings.TrimSpace(cell)
		if boolOK && !isBooleanLiteral(v) {
			boolOK = false
		}
		if intOK && !isInteger(v) {
			intOK = false
		}
		if decOK && !isDecimal(v) {
			decOK = false
		}
		if dateOK && !isDate(v) {
			dateOK = false
		}
		if datetimeOK && !isDatetime(v) {
			datetimeOK = false
		}
	}

	typ := models.TypeText
	switch {
	case nonNull == 0:
		// All-null column: nothing to classify.
		typ = models.TypeText
	case boolOK:
		typ = models.TypeBoolean
	case intOK:
		typ = models.TypeInteger
	case decOK:
		typ = models.TypeDecimal
	case dateOK:
		typ = models.TypeDate
	case datetimeOK:
		typ = models.TypeDatetime
	}

	return models.ColumnSchema{
		Name:     name,
		Type:     typ,
		Nullable: nullable,
		Samples:  samples,
	}
}

func isBooleanLiteral(v string) bool {
	_, ok := booleanLiterals[strings.ToLower(v)]
	return ok
}

// isInteger accepts base-10 integers with no fractional part and no leading
// zero. Leading zeros indicate identifiers (ZIP codes), which must stay TEXT.
func isInteger(v string) bool {
	s := v
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	return true
}

// isDecimal accepts finite decimal numbers, optionally with an exponent.
// Values without a decimal point follow the INTEGER leading-zero rule so
// identifier-like strings ("00501") never become numeric; an explicit
// decimal point is unambiguous and "01.5" stays DECIMAL.
func isDecimal(v string) bool {
	s := v
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if s == "" {
		return false
	}

	mantissa := s
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mantissa = s[:i]
		exp := s[i+1:]
		if strings.HasPrefix(exp, "-") || strings.HasPrefix(exp, "+") {
			exp = exp[1:]
		}
		if exp == "" || !allDigits(exp) {
			return false
		}
	}

	intPart := mantissa
	fracPart := ""
	hasDot := false
	if i := strings.IndexByte(mantissa, '.'); i >= 0 {
		hasDot = true
		intPart = mantissa[:i]
		fracPart = mantissa[i+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return false
		}
	}
	if intPart == "" && fracPart == "" {
		return false
	}
	if intPart != "" && !allDigits(intPart) {
		return false
	}
	if fracPart != "" && !allDigits(fracPart) {
		return false
	}
	if !hasDot && len(intPart) > 1 && intPart[0] == '0' {
		return false
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return false
	}
	return !isInf(f)
}

func isInf(f float64) bool {
	return f > 1.797e308 || f < -1.797e308
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isDate(v string) bool {
	if len(v) != len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, v)
	return err == nil
}

func isDatetime(v string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
