package main

import (
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func slogGinLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"route", c.FullPath(),
			"ip", c.ClientIP(),
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if userID := c.GetString("user_id"); userID != "" {
			fields = append(fields, "user_id", userID)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		if status >= 500 {
			logger.Error("http request", fields...)
			return
		}
		logger.Debug("http request", fields...)
	}
}

// newServerErrorLog sends net/http server errors to slog at warn level.
func newServerErrorLog(logger *slog.Logger) *log.Logger {
	return log.New(serverErrorWriter{logger: logger}, "", 0)
}

type serverErrorWriter struct {
	logger *slog.Logger
}

// Write drops handshake errors for hosts autocert refused.
func (w serverErrorWriter) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	switch {
	case line == "":
	case strings.Contains(line, "TLS handshake error") && strings.Contains(line, "not configured"):
	default:
		w.logger.Warn("http server", "message", line)
	}
	return len(p), nil
}
