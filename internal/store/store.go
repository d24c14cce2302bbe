package store

import (
	"context"
	"errors"
	"time"

	"github.com/tariel-x/referral/internal/models"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrLinkNotFound          = errors.New("referral link not found")
	ErrDuplicateEmail        = errors.New("user already exists")
	ErrDuplicateReferralCode = errors.New("referral code already taken")
	ErrDuplicateLinkCode     = errors.New("link code already taken")
)

// Store holds users, referral links and clicks. Implementations must make
// every method atomic with respect to the others so the uniqueness checks in
// CreateUser and CreateLink cannot race with concurrent writers.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	ReferralCodeTaken(ctx context.Context, code string) (bool, error)
	// ListUsers returns all users in creation order.
	ListUsers(ctx context.Context) ([]models.User, error)

	CreateLink(ctx context.Context, link *models.ReferralLink) error
	// LinksByUser returns the user's links in creation order.
	LinksByUser(ctx context.Context, userID string) ([]models.ReferralLink, error)
	LinkByCode(ctx context.Context, code string) (*models.ReferralLink, error)
	// IncrementClick bumps click_count and returns the updated link, or
	// ErrLinkNotFound when the code is unknown.
	IncrementClick(ctx context.Context, code string) (*models.ReferralLink, error)

	AppendClick(ctx context.Context, click *models.ReferralClick) error
	// ClicksForLinks returns clicks on the given codes at or after since.
	ClicksForLinks(ctx context.Context, codes []string, since time.Time) ([]models.ReferralClick, error)

	Counts(ctx context.Context) (Counts, error)
	// Reset drops every collection and installs the snapshot.
	Reset(ctx context.Context, snapshot Snapshot) error
}

type Counts struct {
	Users         int
	Links         int
	Clicks        int
	LinkClicks    int
	Registrations int
}

type Snapshot struct {
	Users []models.User
	Links []models.ReferralLink
}
