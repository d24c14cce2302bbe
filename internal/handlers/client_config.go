package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type clientConfigResponse struct {
	Debug         bool   `json:"debug"`
	FrontendURL   string `json:"frontend_url"`
	MockAnalytics bool   `json:"mock_analytics"`
}

func (h *Handlers) GetClientConfig(c *gin.Context) {
	resp := clientConfigResponse{MockAnalytics: h.reporter.Mock()}
	if h.config != nil {
		resp.Debug = h.config.LogLevel <= slog.LevelDebug
		resp.FrontendURL = h.config.FrontendURL
	}
	c.JSON(http.StatusOK, resp)
}
