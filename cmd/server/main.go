package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tariel-x/referral/internal/accounts"
	"github.com/tariel-x/referral/internal/analytics"
	"github.com/tariel-x/referral/internal/auth"
	"github.com/tariel-x/referral/internal/config"
	"github.com/tariel-x/referral/internal/demo"
	"github.com/tariel-x/referral/internal/handlers"
	"github.com/tariel-x/referral/internal/metrics"
	"github.com/tariel-x/referral/internal/referral"
	"github.com/tariel-x/referral/internal/scheduler"
	"github.com/tariel-x/referral/internal/store"
	feed "github.com/tariel-x/referral/internal/websocket"
)

const AppVersion = "1.0.0"

func main() {
	httpOnly := flag.Bool("http-only", false, "Serve plain HTTP even when DOMAIN is set")
	flag.Parse()

	if err := run(*httpOnly); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(httpOnly bool) error {
	cfg, err := config.Load(httpOnly)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info(fmt.Sprintf("Referral API v%s", AppVersion), "store", cfg.StoreBackend, "mock_analytics", cfg.MockAnalytics)

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	accountService := accounts.NewService(st, cfg.BcryptCost, logger)
	registry := referral.NewRegistry(st, cfg.FrontendURL, logger)
	hub := feed.NewHub(logger)
	seeder := demo.NewSeeder(st, accountService, cfg.FrontendURL, logger)

	if cfg.SeedOnStart {
		if _, err := seeder.Seed(context.Background()); err != nil {
			return fmt.Errorf("seed on start: %w", err)
		}
	}

	reseeder, err := scheduler.StartReseed(seeder, cfg.DemoReseedInterval, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := reseeder.Stop(); err != nil {
			logger.Warn("stop reseed scheduler", "error", err)
		}
	}()

	h := handlers.New(handlers.Deps{
		Config:   cfg,
		Store:    st,
		Accounts: accountService,
		Tokens:   tokens,
		Registry: registry,
		Tracker:  referral.NewTracker(st, registry, hub, logger),
		Reporter: analytics.NewReporter(st, cfg.MockAnalytics),
		Program:  analytics.NewProgram(st),
		Seeder:   seeder,
		Hub:      hub,
		Logger:   logger,
	})

	router := setupRouter(h, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPS() {
		return startHTTPS(ctx, router, cfg, logger)
	}
	return startHTTP(ctx, router, cfg, logger)
}

func openStore(cfg *config.Config) (store.Store, func(), error) {
	if cfg.StoreBackend != config.StoreSQLite {
		return store.NewMemoryStore(), func() {}, nil
	}

	sqlStore, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return sqlStore, func() {
		if err := sqlStore.Close(); err != nil {
			slog.Warn("close database", "error", err)
		}
	}, nil
}

func setupRouter(h *handlers.Handlers, logger *slog.Logger) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", "error", recovered, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}))
	router.Use(slogGinLogger(logger))
	router.Use(metrics.GinMiddleware())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	h.RegisterRoutes(router)

	return router
}

func newServer(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     newServerErrorLog(logger),
	}
}

func startHTTP(ctx context.Context, router *gin.Engine, cfg *config.Config, logger *slog.Logger) error {
	srv := newServer(":"+cfg.HTTPPort, router, logger)

	logger.Info("Starting HTTP server", "port", cfg.HTTPPort)
	logger.Info(fmt.Sprintf("Referral links point to: %s/register", cfg.FrontendURL))

	return serveUntilDone(ctx, logger, srv, srv.ListenAndServe)
}

// serveUntilDone runs serve and shuts the servers down once ctx is cancelled.
func serveUntilDone(ctx context.Context, logger *slog.Logger, primary *http.Server, serve func() error, others ...*http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, srv := range append([]*http.Server{primary}, others...) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", "addr", srv.Addr, "error", err)
		}
	}
	return nil
}
