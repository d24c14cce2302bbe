package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/acme/autocert"

	"github.com/tariel-x/referral/internal/config"
)

const renewBefore = 30 * 24 * time.Hour

// startHTTPS serves the API over TLS with Let's Encrypt certificates. The
// plain HTTP port answers ACME challenges and redirects everything else.
func startHTTPS(ctx context.Context, router *gin.Engine, cfg *config.Config, logger *slog.Logger) error {
	certsDir := config.CertsDirectory()
	if err := os.MkdirAll(certsDir, 0700); err != nil {
		return fmt.Errorf("create certs directory: %w", err)
	}

	domain := normalizeDomain(cfg.Domain)
	logger.Info("configured domain", "domain", cfg.Domain, "normalized", domain)

	m := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		HostPolicy: func(ctx context.Context, host string) error {
			if normalizeDomain(host) != domain {
				return fmt.Errorf("host %q not configured (expected %q)", host, domain)
			}
			return nil
		},
		Cache: autocert.DirCache(certsDir),
	}

	httpServer := newServer(":"+cfg.HTTPPort, m.HTTPHandler(http.HandlerFunc(redirectToHTTPS)), logger)
	httpsServer := newServer(":"+cfg.HTTPSPort, router, logger)
	httpsServer.TLSConfig = m.TLSConfig()

	go func() {
		logger.Info("HTTP server (ACME challenge & redirects) starting", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	go watchCertificate(ctx, m, domain, logger)

	logger.Info("HTTPS server starting", "port", cfg.HTTPSPort, "domain", domain, "certs_dir", certsDir)
	if domain == "localhost" || domain == "127.0.0.1" {
		logger.Warn("Let's Encrypt will not issue certificates for localhost; use -http-only for local development")
	}

	return serveUntilDone(ctx, logger, httpsServer, func() error {
		return httpsServer.ListenAndServeTLS("", "")
	}, httpServer)
}

func redirectToHTTPS(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "https://"+r.Host+r.RequestURI, http.StatusMovedPermanently)
}

// watchCertificate checks the cached certificate daily and touches it when it
// is close to expiry so autocert renews it ahead of the first client.
func watchCertificate(ctx context.Context, m *autocert.Manager, domain string, logger *slog.Logger) {
	select {
	case <-time.After(30 * time.Second):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		checkCertificate(m, domain, logger)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func checkCertificate(m *autocert.Manager, domain string, logger *slog.Logger) {
	hello := &tls.ClientHelloInfo{ServerName: domain}
	cert, err := m.GetCertificate(hello)
	if err != nil || cert == nil || len(cert.Certificate) == 0 {
		logger.Warn("certificate not available yet, it will be obtained on the next request", "domain", domain, "error", err)
		return
	}

	leaf := cert.Leaf
	if leaf == nil {
		leaf, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			logger.Error("parse certificate", "error", err)
			return
		}
	}

	expiresIn := time.Until(leaf.NotAfter)
	logger.Info("certificate status", "domain", domain, "expires", leaf.NotAfter.Format("2006-01-02"), "days_left", int(expiresIn.Hours()/24))
	if expiresIn > renewBefore {
		return
	}

	if _, err := m.GetCertificate(hello); err != nil {
		logger.Error("certificate renewal", "error", err)
		return
	}
	logger.Info("certificate renewal triggered", "domain", domain)
}

// normalizeDomain lowercases the host and strips a leading "www.".
func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimPrefix(domain, "www.")
}
