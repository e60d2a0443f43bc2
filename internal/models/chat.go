package models

import "time"

// TurnState is the lifecycle state of a chat turn.
//
//	PROMPT_SUBMITTED -> SQL_GENERATED -> (AWAITING_CONFIRMATION | EXECUTING)
//	                                  -> (RESULT | ERROR)
//
// RESULT and ERROR are terminal. A parked turn moves to EXECUTING only on an
// explicit confirmation, reusing the already-generated SQL.
type TurnState string

const (
	TurnPromptSubmitted      TurnState = "PROMPT_SUBMITTED"
	TurnSQLGenerated         TurnState = "SQL_GENERATED"
	TurnAwaitingConfirmation TurnState = "AWAITING_CONFIRMATION"
	TurnExecuting            TurnState = "EXECUTING"
	TurnResult               TurnState = "RESULT"
	TurnError                TurnState = "ERROR"
)

// ChatTurn is one prompt -> SQL -> execution cycle. Turns are ephemeral and
// live only for the active session window.
type ChatTurn struct {
	ID        string       `json:"id"`
	FileID    string       `json:"fileId"`
	Prompt    string       `json:"prompt"`
	SQL       string       `json:"sql,omitempty"`
	Autorun   bool         `json:"autorun"`
	State     TurnState    `json:"state"`
	Result    *QueryResult `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorKind string       `json:"errorKind,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}
