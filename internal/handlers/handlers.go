package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tariel-x/referral/internal/accounts"
	"github.com/tariel-x/referral/internal/analytics"
	"github.com/tariel-x/referral/internal/auth"
	"github.com/tariel-x/referral/internal/config"
	"github.com/tariel-x/referral/internal/demo"
	"github.com/tariel-x/referral/internal/referral"
	"github.com/tariel-x/referral/internal/store"
	feed "github.com/tariel-x/referral/internal/websocket"
)

const (
	msgInternalError = "Internal server error"
	msgUserNotFound  = "User not found"
)

type Handlers struct {
	config   *config.Config
	store    store.Store
	accounts *accounts.Service
	tokens   *auth.TokenService
	registry *referral.Registry
	tracker  *referral.Tracker
	reporter *analytics.Reporter
	program  *analytics.Program
	seeder   *demo.Seeder
	hub      *feed.Hub

	wsUpgrader websocket.Upgrader
	logger     *slog.Logger
	nowFn      func() time.Time
}

// Deps carries the services the HTTP layer delegates to.
type Deps struct {
	Config   *config.Config
	Store    store.Store
	Accounts *accounts.Service
	Tokens   *auth.TokenService
	Registry *referral.Registry
	Tracker  *referral.Tracker
	Reporter *analytics.Reporter
	Program  *analytics.Program
	Seeder   *demo.Seeder
	Hub      *feed.Hub
	Logger   *slog.Logger
}

func New(d Deps) *Handlers {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		config:   d.Config,
		store:    d.Store,
		accounts: d.Accounts,
		tokens:   d.Tokens,
		registry: d.Registry,
		tracker:  d.Tracker,
		reporter: d.Reporter,
		program:  d.Program,
		seeder:   d.Seeder,
		hub:      d.Hub,
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
		nowFn:  time.Now,
	}
}

// RegisterRoutes mounts the API on router. Middleware is left to the caller.
func (h *Handlers) RegisterRoutes(router gin.IRouter) {
	router.GET("/", h.Info)
	router.GET("/health", h.Health)

	api := router.Group("/api")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.POST("/track-click/:linkCode", h.TrackClick)
		api.POST("/demo/seed", h.SeedDemo)
		api.GET("/admin/stats", h.AdminStats)
		api.GET("/leaderboard", h.Leaderboard)
		api.GET("/client-config", h.GetClientConfig)
		api.GET("/ws/clicks", h.HandleClickFeed)
	}

	protected := api.Group("")
	protected.Use(h.AuthMiddleware())
	{
		protected.GET("/profile", h.Profile)
		protected.GET("/referrals", h.ListReferrals)
		protected.POST("/referrals", h.CreateReferral)
		protected.GET("/analytics", h.Analytics)
		protected.GET("/achievements", h.Achievements)
	}
}

func (h *Handlers) internalError(c *gin.Context, op string, err error) {
	h.logger.Error(op, "error", err, "path", c.Request.URL.Path)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
}

func currentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
