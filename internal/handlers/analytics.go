package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tariel-x/referral/internal/analytics"
	"github.com/tariel-x/referral/internal/store"
)

func (h *Handlers) Analytics(c *gin.Context) {
	report, err := h.reporter.Report(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": msgUserNotFound})
			return
		}
		h.internalError(c, "analytics", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handlers) Achievements(c *gin.Context) {
	list, err := h.program.Achievements(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": msgUserNotFound})
			return
		}
		h.internalError(c, "achievements", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": list})
}

func (h *Handlers) AdminStats(c *gin.Context) {
	stats, err := h.program.AdminStats(c.Request.Context())
	if err != nil {
		h.internalError(c, "admin stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handlers) Leaderboard(c *gin.Context) {
	limit := analytics.DefaultLeaderboardSize
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	entries, err := h.program.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, "leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
