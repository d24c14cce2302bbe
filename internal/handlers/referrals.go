package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tariel-x/referral/internal/store"
)

type createReferralRequest struct {
	UserName string `json:"userName"`
}

type trackClickRequest struct {
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
}

func (h *Handlers) ListReferrals(c *gin.Context) {
	links, err := h.registry.ListForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.internalError(c, "list referrals", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"referrals": links})
}

func (h *Handlers) CreateReferral(c *gin.Context) {
	// The body is optional; an empty or missing name falls back to the owner's.
	var req createReferralRequest
	_ = c.ShouldBindJSON(&req)

	link, err := h.registry.Create(c.Request.Context(), currentUserID(c), req.UserName)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": msgUserNotFound})
			return
		}
		h.internalError(c, "create referral", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Referral link created successfully",
		"referral": link,
	})
}

// TrackClick records a visit to a referral link. Unknown codes are accepted
// and stored without touching any link.
func (h *Handlers) TrackClick(c *gin.Context) {
	var req trackClickRequest
	_ = c.ShouldBindJSON(&req)

	ip := req.IPAddress
	if ip == "" {
		ip = c.ClientIP()
	}
	ua := req.UserAgent
	if ua == "" {
		ua = c.Request.UserAgent()
	}

	if _, err := h.tracker.Record(c.Request.Context(), c.Param("linkCode"), ip, ua); err != nil {
		h.internalError(c, "track click", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Click tracked successfully"})
}
