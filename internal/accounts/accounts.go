package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tariel-x/referral/internal/metrics"
	"github.com/tariel-x/referral/internal/models"
	"github.com/tariel-x/referral/internal/store"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const DefaultBcryptCost = 10

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Service owns user records: registration, login and lookups.
type Service struct {
	store      store.Store
	bcryptCost int
	// dummyHash is compared against when the email is unknown. It shares the
	// service's cost so both failure paths spend the same bcrypt time.
	dummyHash []byte
	nowFn     func() time.Time
	logger    *slog.Logger
}

func NewService(s store.Store, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = DefaultBcryptCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	dummyHash, _ := bcrypt.GenerateFromPassword([]byte("referral-dummy-password"), bcryptCost)
	return &Service{
		store:      s,
		bcryptCost: bcryptCost,
		dummyHash:  dummyHash,
		nowFn:      func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.TrimSpace(in.Email)

	if _, err := s.store.UserByEmail(ctx, email); err == nil {
		return nil, store.ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	// A concurrent registration can take the drawn code between the check and
	// the insert; the store rejects it and we draw again.
	for attempt := 0; attempt < 3; attempt++ {
		code, err := generateReferralCode(ctx, s.store.ReferralCodeTaken)
		if err != nil {
			return nil, err
		}

		user := &models.User{
			FirstName:      in.FirstName,
			LastName:       in.LastName,
			Email:          email,
			PasswordHash:   hash,
			ReferralCode:   code,
			TotalReferrals: 0,
			TotalEarnings:  0,
			CreatedAt:      s.nowFn(),
		}

		err = s.store.CreateUser(ctx, user)
		switch {
		case err == nil:
			metrics.RecordRegistration()
			s.logger.Info("user registered", "user_id", user.ID, "referral_code", user.ReferralCode)
			return user, nil
		case errors.Is(err, store.ErrDuplicateReferralCode):
			continue
		default:
			return nil, err
		}
	}
	return nil, ErrReferralCodeExhausted
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.UserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			metrics.RecordLogin(false)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.RecordLogin(false)
		return nil, ErrInvalidCredentials
	}
	metrics.RecordLogin(true)
	return user, nil
}

func (s *Service) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.store.UserByID(ctx, id)
}

func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
