// handlers_result.go - Compact result transfer for large result sets
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tablechat/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// msgpackResult is the wire shape of a result set when encoded compactly.
// Rows are positional (matching Columns order) to avoid repeating keys.
type msgpackResult struct {
	SQL         string   `msgpack:"sql"`
	Columns     []string `msgpack:"columns"`
	Types       []string `msgpack:"types"`
	Rows        [][]any  `msgpack:"rows"`
	RowCount    int      `msgpack:"rowCount"`
	Truncated   bool     `msgpack:"truncated"`
	ExecutionMs int64    `msgpack:"executionMs"`
}

// HandleTurnResultMsgpack returns a finished turn's result set as msgpack,
// for clients pulling large result sets.
func (h *Handler) HandleTurnResultMsgpack(c echo.Context) error {
	id := c.Param("id")
	turnID := c.Param("turnId")
	if id == "" || turnID == "" {
		return NewValidationError("id")
	}

	turn, err := h.chat.GetTurn(id, turnID)
	if err != nil {
		return FromDomain(err)
	}
	if turn.State != models.TurnResult || turn.Result == nil {
		return NewBadRequestError("turn has no result", nil)
	}

	data, err := msgpack.Marshal(packResult(turn.Result))
	if err != nil {
		return NewInternalError("failed to encode result", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

func packResult(r *models.QueryResult) msgpackResult {
	cols := make([]string, len(r.Columns))
	types := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		cols[i] = c.Name
		types[i] = c.Type
	}

	rows := make([][]any, len(r.Rows))
	for i, row := range r.Rows {
		packed := make([]any, len(cols))
		for j, name := range cols {
			packed[j] = row[name]
		}
		rows[i] = packed
	}

	return msgpackResult{
		SQL:         r.SQL,
		Columns:     cols,
		Types:       types,
		Rows:        rows,
		RowCount:    r.RowCount,
		Truncated:   r.Truncated,
		ExecutionMs: r.ExecutionMs,
	}
}
