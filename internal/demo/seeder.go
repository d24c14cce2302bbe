package demo

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/tariel-x/referral/internal/metrics"
	"github.com/tariel-x/referral/internal/models"
	"github.com/tariel-x/referral/internal/referral"
	"github.com/tariel-x/referral/internal/store"
)

const (
	UserID       = "demo-user-123"
	Email        = "demo@cloudwalk.com"
	Password     = "demo123"
	ReferralCode = "DEMO123"

	linkCount        = 3
	maxClicks        = 50
	maxRegistrations = 10
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordHasher turns the demo password into a stored hash.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

type Seeder struct {
	store       store.Store
	hasher      PasswordHasher
	frontendURL string
	intn        func(n int) int
	logger      *slog.Logger
}

func NewSeeder(s store.Store, hasher PasswordHasher, frontendURL string, logger *slog.Logger) *Seeder {
	if frontendURL == "" {
		frontendURL = referral.DefaultFrontendURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		store:       s,
		hasher:      hasher,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		intn:        rand.Intn,
		logger:      logger,
	}
}

// Seed wipes every collection and installs the demo account with three links.
func (s *Seeder) Seed(ctx context.Context) (Credentials, error) {
	hash, err := s.hasher.HashPassword(Password)
	if err != nil {
		return Credentials{}, err
	}

	user := models.User{
		ID:             UserID,
		FirstName:      "John",
		LastName:       "Doe",
		Email:          Email,
		PasswordHash:   hash,
		ReferralCode:   ReferralCode,
		TotalReferrals: 5,
		TotalEarnings:  125.50,
	}

	links := make([]models.ReferralLink, 0, linkCount)
	for i := 1; i <= linkCount; i++ {
		code := fmt.Sprintf("%s-%d", ReferralCode, i)
		links = append(links, models.ReferralLink{
			ID:                fmt.Sprintf("demo-link-%d", i),
			UserID:            UserID,
			UserName:          fmt.Sprintf("Friend %d", i),
			LinkCode:          code,
			FullURL:           s.frontendURL + "/register?ref=" + code,
			ClickCount:        s.intn(maxClicks),
			RegistrationCount: s.intn(maxRegistrations),
		})
	}

	if err := s.store.Reset(ctx, store.Snapshot{Users: []models.User{user}, Links: links}); err != nil {
		return Credentials{}, fmt.Errorf("reset store: %w", err)
	}

	metrics.RecordSeed()
	s.logger.Info("demo data seeded", "user_id", UserID, "links", len(links))
	return Credentials{Email: Email, Password: Password}, nil
}
