// routes.go - API route registration
package api

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all API endpoints onto the echo instance.
func RegisterRoutes(e *echo.Echo, h *Handler, hub *Hub) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", h.HandleHealth)

	// WebSocket ingest event stream
	apiGroup.GET("/ws/ingest", hub.HandleWebSocket)

	// File management
	apiGroup.POST("/files/upload", h.HandleUploadFile)
	apiGroup.GET("/files/:id", h.HandleGetFile)
	apiGroup.GET("/files/:id/schema", h.HandleGetSchema)
	apiGroup.GET("/files/:id/status/stream", h.HandleIngestStatusStream)
	apiGroup.DELETE("/files/:id", h.HandleExpireFile)

	// Chat
	apiGroup.POST("/files/:id/chat", h.HandleChat)
	apiGroup.GET("/files/:id/chat/:turnId", h.HandleGetTurn)
	apiGroup.POST("/files/:id/chat/:turnId/confirm", h.HandleConfirmTurn)
	apiGroup.GET("/files/:id/chat/:turnId/msgpack", h.HandleTurnResultMsgpack)

	// Direct execution of previously generated SQL (always re-validated)
	apiGroup.POST("/files/:id/execute", h.HandleExecute)
}
