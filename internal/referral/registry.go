package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tariel-x/referral/internal/metrics"
	"github.com/tariel-x/referral/internal/models"
	"github.com/tariel-x/referral/internal/store"
)

const DefaultFrontendURL = "http://localhost:8080"

// Registry manages the referral links owned by users.
type Registry struct {
	store       store.Store
	frontendURL string
	nowFn       func() time.Time
	logger      *slog.Logger
}

func NewRegistry(s store.Store, frontendURL string, logger *slog.Logger) *Registry {
	if frontendURL == "" {
		frontendURL = DefaultFrontendURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:       s,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		nowFn:       func() time.Time { return time.Now().UTC() },
		logger:      logger,
	}
}

func (r *Registry) ListForUser(ctx context.Context, userID string) ([]models.ReferralLink, error) {
	return r.store.LinksByUser(ctx, userID)
}

// Create adds a link for userID. An empty userName defaults to the owner's
// full name. Two calls within the same millisecond derive the same link code;
// the store rejects the second one with ErrDuplicateLinkCode.
func (r *Registry) Create(ctx context.Context, userID, userName string) (*models.ReferralLink, error) {
	owner, err := r.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(userName) == "" {
		userName = owner.FullName()
	}

	now := r.nowFn()
	code := LinkCode(owner.ReferralCode, now)
	link := &models.ReferralLink{
		UserID:            owner.ID,
		UserName:          userName,
		LinkCode:          code,
		FullURL:           r.FullURL(code),
		ClickCount:        0,
		RegistrationCount: 0,
		CreatedAt:         now,
	}

	if err := r.store.CreateLink(ctx, link); err != nil {
		return nil, fmt.Errorf("create link %s: %w", code, err)
	}

	metrics.RecordLinkCreated()
	r.logger.Info("referral link created", "user_id", owner.ID, "link_code", code)
	return link, nil
}

// IncrementClick bumps the click counter of a known link. Unknown codes are
// ignored and reported as a nil link.
func (r *Registry) IncrementClick(ctx context.Context, linkCode string) (*models.ReferralLink, error) {
	link, err := r.store.IncrementClick(ctx, linkCode)
	if err != nil {
		if errors.Is(err, store.ErrLinkNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return link, nil
}

func (r *Registry) FullURL(linkCode string) string {
	return r.frontendURL + "/register?ref=" + linkCode
}

// LinkCode derives a link code from the owner's referral code and the creation
// time in base36 milliseconds.
func LinkCode(referralCode string, at time.Time) string {
	return referralCode + "-" + strconv.FormatInt(at.UnixMilli(), 36)
}
