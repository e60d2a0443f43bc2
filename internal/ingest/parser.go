package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/tablechat/backend/internal/qerr"
)

// Parsed is the raw decoded content of a tabular file: a header row plus
// data rows, every row guaranteed to have exactly len(Header) cells.
type Parsed struct {
	Header    []string
	Rows      [][]string
	Delimiter rune
}

// ParseTable decodes a CSV or TSV file. The delimiter is sniffed from the
// header line (tab wins over comma when it appears more often).
//
// A data row whose cell count differs from the header fails the whole file
// with a VALIDATION_ERROR; malformed quoting, empty input, or a file with no
// data rows fails with UNSUPPORTED_FORMAT.
func ParseTable(r io.Reader) (*Parsed, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, qerr.Wrap(qerr.KindUnsupportedFormat, "failed to read file", err)
	}

	// Strip UTF-8 BOM if present.
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, qerr.New(qerr.KindUnsupportedFormat, "file is empty")
	}

	delim := sniffDelimiter(data)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delim
	// FieldsPerRecord is set from the header record, so every later row with
	// a different cell count surfaces as csv.ErrFieldCount.

	header, err := reader.Read()
	if err != nil {
		return nil, qerr.Wrap(qerr.KindUnsupportedFormat, "failed to read header row", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) == 0 {
		return nil, qerr.New(qerr.KindUnsupportedFormat, "header has no columns")
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrFieldCount) {
				return nil, qerr.Newf(qerr.KindValidation,
					"row %d has a different cell count than the header", parseErr.Line)
			}
			return nil, qerr.Wrap(qerr.KindUnsupportedFormat, "malformed file", err)
		}
		rows = append(rows, record)
	}

	if len(rows) == 0 {
		return nil, qerr.New(qerr.KindUnsupportedFormat, "file has no data rows")
	}

	return &Parsed{Header: header, Rows: rows, Delimiter: delim}, nil
}

// sniffDelimiter inspects the first line and picks tab or comma.
func sniffDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}
	if bytes.Count(line, []byte{'\t'}) > bytes.Count(line, []byte{','}) {
		return '\t'
	}
	return ','
}
