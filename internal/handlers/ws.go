package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tariel-x/referral/internal/auth"
)

// HandleClickFeed upgrades to a websocket that streams click events on the
// caller's links. Browsers cannot set headers on the upgrade request, so the
// token may also come as ?token=.
func (h *Handlers) HandleClickFeed(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = auth.BearerToken(c.GetHeader("Authorization"))
	}

	claims, status, msg := h.verify(token)
	if claims == nil {
		c.JSON(status, gin.H{"error": msg})
		return
	}

	conn, err := h.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "user_id", claims.UserID, "error", err)
		return
	}

	h.hub.Serve(conn, claims.UserID)
}
