package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type Config struct {
	HTTPPort  string
	HTTPSPort string
	// Domain enables HTTPS with Let's Encrypt certificates when set.
	Domain   string
	HTTPOnly bool

	FrontendURL string
	JWTSecret   string
	TokenTTL    time.Duration
	BcryptCost  int

	StoreBackend string
	DatabasePath string

	MockAnalytics      bool
	SeedOnStart        bool
	DemoReseedInterval time.Duration

	LogLevel slog.Level
}

// Load reads .env (if present) and the process environment. httpOnly comes
// from the command line and wins over DOMAIN.
func Load(httpOnly bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "3002"),
		HTTPSPort:          getEnv("HTTPS_PORT", "443"),
		Domain:             getEnv("DOMAIN", ""),
		HTTPOnly:           httpOnly,
		FrontendURL:        strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:8080"), "/"),
		TokenTTL:           getEnvDuration("TOKEN_TTL", 24*time.Hour),
		BcryptCost:         getEnvInt("BCRYPT_COST", 10),
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		DatabasePath:       getEnv("DATABASE_PATH", "referral.db"),
		MockAnalytics:      getEnvBool("MOCK_ANALYTICS", true),
		SeedOnStart:        getEnvBool("SEED_ON_START", false),
		DemoReseedInterval: getEnvDuration("DEMO_RESEED_INTERVAL", 0),
		LogLevel:           parseLevel(getEnv("LOG_LEVEL", "info")),
	}

	switch cfg.StoreBackend {
	case StoreMemory, StoreSQLite:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	secret, err := loadOrGenerateJWTSecret()
	if err != nil {
		return nil, err
	}
	cfg.JWTSecret = secret

	return cfg, nil
}

// HTTPS reports whether the server should terminate TLS itself.
func (c *Config) HTTPS() bool {
	return c.Domain != "" && !c.HTTPOnly
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseLevel(value string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func generateRandomSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

func loadOrGenerateJWTSecret() (string, error) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return secret, nil
	}

	keysDir := KeysDirectory()
	secretFile := filepath.Join(keysDir, "jwt-secret.key")

	if secretData, err := os.ReadFile(secretFile); err == nil {
		secret := strings.TrimSpace(string(secretData))
		if secret != "" {
			slog.Info("jwt secret loaded", "path", secretFile)
			return secret, nil
		}
	}

	secret, err := generateRandomSecret()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(keysDir, 0700); err == nil {
		if err := os.WriteFile(secretFile, []byte(secret), 0600); err == nil {
			slog.Info("jwt secret saved", "path", secretFile)
		} else {
			slog.Warn("failed to save jwt secret, it will be regenerated on restart unless JWT_SECRET is set", "error", err)
		}
	}

	return secret, nil
}

// KeysDirectory is the keys/ directory next to the executable.
func KeysDirectory() string {
	return besideExecutable("keys")
}

// CertsDirectory holds the autocert cache.
func CertsDirectory() string {
	return besideExecutable("certs")
}

func besideExecutable(name string) string {
	execPath, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(execPath), name)
}
