// Package handlers exposes the client's monitor surface: health, metrics
// and a debug snapshot of the live sync state.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/presence"
	"chat-client/internal/socket"
	"chat-client/internal/unread"
)

// MonitorHandler serves the debug/monitor endpoints.
type MonitorHandler struct {
	manager  *socket.Manager
	unread   *unread.Aggregator
	presence *presence.Set
}

// NewMonitorHandler builds a MonitorHandler.
func NewMonitorHandler(manager *socket.Manager, agg *unread.Aggregator, ps *presence.Set) *MonitorHandler {
	return &MonitorHandler{manager: manager, unread: agg, presence: ps}
}

// Healthz reports liveness.
func (h *MonitorHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// State returns a snapshot of the sync engine for debugging.
func (h *MonitorHandler) State(c *gin.Context) {
	rooms, users := h.unread.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"connection":     h.manager.State().String(),
		"unread_rooms":   rooms,
		"unread_users":   users,
		"online":         h.presence.Online(),
		"presence_stale": h.presence.Stale(),
	})
}

// MonitorAuth guards the monitor surface with a static token when one is
// configured; an empty token leaves the surface open.
func MonitorAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-Monitor-Token") != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid monitor token"})
			return
		}
		c.Next()
	}
}
