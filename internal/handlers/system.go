package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const APIVersion = "1.0.0"

func (h *Handlers) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Referral System API",
		"version": APIVersion,
		"endpoints": gin.H{
			"health":       "/health",
			"metrics":      "/metrics",
			"register":     "/api/register",
			"login":        "/api/login",
			"profile":      "/api/profile",
			"referrals":    "/api/referrals",
			"analytics":    "/api/analytics",
			"achievements": "/api/achievements",
			"track_click":  "/api/track-click/:linkCode",
			"click_feed":   "/api/ws/clicks",
			"leaderboard":  "/api/leaderboard",
			"admin_stats":  "/api/admin/stats",
			"demo_seed":    "/api/demo/seed",
		},
	})
}

func (h *Handlers) Health(c *gin.Context) {
	counts, err := h.store.Counts(c.Request.Context())
	if err != nil {
		h.internalError(c, "health", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "OK",
		"message":         "Referral API is running",
		"timestamp":       h.nowFn().UTC().Format(time.RFC3339),
		"users_count":     counts.Users,
		"referrals_count": counts.Links,
	})
}

func (h *Handlers) SeedDemo(c *gin.Context) {
	creds, err := h.seeder.Seed(c.Request.Context())
	if err != nil {
		h.internalError(c, "demo seed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Demo data created successfully",
		"credentials": creds,
	})
}
