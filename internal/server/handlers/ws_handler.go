package handlers

import (
	"github.com/gin-gonic/gin"

	"chat-app/internal/ws"
)

type WSHandler struct {
	hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Serve upgrades the connection. The user id arrives as handshake metadata;
// leaving it out is legal and yields a connection that is excluded from
// presence and cannot be addressed by the router.
func (h *WSHandler) Serve(c *gin.Context) {
	userID := c.Query("userId")
	ws.ServeWS(h.hub, c.Writer, c.Request, userID)
}
