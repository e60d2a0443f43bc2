// handlers.go - HTTP handlers for upload, schema, chat, and expiry
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tablechat/backend/internal/chat"
	"github.com/tablechat/backend/internal/ingest"
	"github.com/tablechat/backend/internal/models"
	"github.com/tablechat/backend/internal/schema"
)

// Handler bundles the core components behind the HTTP surface.
type Handler struct {
	ingest   *ingest.Manager
	chat     *chat.Service
	registry *schema.Registry
}

// NewHandler creates the API handler.
func NewHandler(ingestMgr *ingest.Manager, chatSvc *chat.Service, registry *schema.Registry) *Handler {
	return &Handler{
		ingest:   ingestMgr,
		chat:     chatSvc,
		registry: registry,
	}
}

// HandleHealth reports service liveness.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// HandleUploadFile accepts a multipart file upload and starts asynchronous
// ingestion. The response carries the file in "processing" state; the schema
// becomes queryable once the status reaches "completed".
func (h *Handler) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.ingest.Ingest(file.Filename, src)
	if err != nil {
		return FromDomain(err)
	}

	return c.JSON(http.StatusAccepted, info)
}

// HandleGetFile returns metadata for a specific file.
func (h *Handler) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.ingest.Get(id)
	if err != nil {
		return FromDomain(err)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleGetSchema returns the table schema bound to a completed file.
func (h *Handler) HandleGetSchema(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	ts, err := h.registry.Resolve(id)
	if err != nil {
		return FromDomain(err)
	}

	return c.JSON(http.StatusOK, ts)
}

// HandleIngestStatusStream streams ingestion status via SSE until the file
// reaches a terminal state or the client disconnects.
func (h *Handler) HandleIngestStatusStream(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		info, err := h.ingest.Get(id)
		if err != nil {
			fmt.Fprintf(c.Response(), "event: error\ndata: %s\n\n", jsonString(map[string]string{"error": err.Error()}))
			c.Response().Flush()
			return nil
		}

		fmt.Fprintf(c.Response(), "data: %s\n\n", jsonString(info))
		c.Response().Flush()

		if info.Status == models.StatusCompleted || info.Status == models.StatusError {
			return nil
		}

		select {
		case <-c.Request().Context().Done():
			return nil
		case <-ticker.C:
		}
	}
}

// HandleChat runs one chat turn against a file.
func (h *Handler) HandleChat(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Prompt == "" {
		return NewValidationError("prompt")
	}

	turn, err := h.chat.Chat(c.Request().Context(), id, req.Prompt, req.Autorun)
	if err != nil {
		return FromDomain(err)
	}

	return c.JSON(http.StatusOK, turn)
}

// HandleGetTurn returns a chat turn by ID.
func (h *Handler) HandleGetTurn(c echo.Context) error {
	id := c.Param("id")
	turnID := c.Param("turnId")
	if id == "" || turnID == "" {
		return NewValidationError("id")
	}

	turn, err := h.chat.GetTurn(id, turnID)
	if err != nil {
		return FromDomain(err)
	}

	return c.JSON(http.StatusOK, turn)
}

// HandleConfirmTurn executes a turn parked in AWAITING_CONFIRMATION. The
// stored SQL is re-validated before running; it is never regenerated.
func (h *Handler) HandleConfirmTurn(c echo.Context) error {
	id := c.Param("id")
	turnID := c.Param("turnId")
	if id == "" || turnID == "" {
		return NewValidationError("id")
	}

	turn, err := h.chat.Confirm(c.Request().Context(), id, turnID)
	if err != nil {
		return FromDomain(err)
	}

	return c.JSON(http.StatusOK, turn)
}

// HandleExecute validates and runs caller-supplied SQL against the file's
// table. Validation is never skipped, even for SQL this service generated.
func (h *Handler) HandleExecute(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req executeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.SQL == "" {
		return NewValidationError("sql")
	}

	result, err := h.chat.ExecuteConfirmed(c.Request().Context(), id, req.SQL)
	if err != nil {
		return FromDomain(err)
	}

	return c.JSON(http.StatusOK, result)
}

// HandleExpireFile drops the file's table, schema, and chat turns. Invoked
// by the external lifecycle manager when the retention window closes.
func (h *Handler) HandleExpireFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.ingest.Expire(id); err != nil {
		return FromDomain(err)
	}
	h.chat.DropFileTurns(id)

	return c.NoContent(http.StatusNoContent)
}

// Request types

type chatRequest struct {
	Prompt  string `json:"prompt"`
	Autorun bool   `json:"autorun"`
}

type executeRequest struct {
	SQL string `json:"sql"`
}

func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
