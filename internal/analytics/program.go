package analytics

import (
	"context"
	"sort"

	"github.com/tariel-x/referral/internal/models"
	"github.com/tariel-x/referral/internal/store"
)

const DefaultLeaderboardSize = 10

type AdminStats struct {
	TotalUsers         int     `json:"total_users"`
	TotalReferrals     int     `json:"total_referrals"`
	TotalClicks        int     `json:"total_clicks"`
	TotalRegistrations int     `json:"total_registrations"`
	ConversionRate     float64 `json:"conversion_rate"`
}

type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	UserID         string  `json:"user_id"`
	UserName       string  `json:"user_name"`
	TotalReferrals int     `json:"total_referrals"`
	TotalEarnings  float64 `json:"total_earnings"`
}

type AchievementCategory string

const (
	CategoryReferrals AchievementCategory = "referrals"
	CategoryEarnings  AchievementCategory = "earnings"
)

type Achievement struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	TargetValue  float64             `json:"target_value"`
	RewardAmount float64             `json:"reward_amount"`
	Category     AchievementCategory `json:"category"`
}

type AchievementProgress struct {
	Achievement
	IsUnlocked bool    `json:"is_unlocked"`
	Progress   float64 `json:"progress"`
}

// Catalogue lists the program's achievements in display order.
var Catalogue = []Achievement{
	{ID: "first_referral", Title: "First Referral", Description: "Make your first successful referral", TargetValue: 1, RewardAmount: 10, Category: CategoryReferrals},
	{ID: "five_referrals", Title: "Networker", Description: "Achieve 5 successful referrals", TargetValue: 5, RewardAmount: 25, Category: CategoryReferrals},
	{ID: "ten_referrals", Title: "Influencer", Description: "Reach 10 successful referrals", TargetValue: 10, RewardAmount: 50, Category: CategoryReferrals},
	{ID: "twenty_referrals", Title: "Super Star", Description: "Amazing! 20 successful referrals", TargetValue: 20, RewardAmount: 100, Category: CategoryReferrals},
	{ID: "hundred_earnings", Title: "Earner", Description: "Earn your first $100", TargetValue: 100, RewardAmount: 20, Category: CategoryEarnings},
	{ID: "five_hundred_earnings", Title: "Money Maker", Description: "Earn $500 in total", TargetValue: 500, RewardAmount: 50, Category: CategoryEarnings},
}

// Program computes program-wide views over the store.
type Program struct {
	store store.Store
}

func NewProgram(s store.Store) *Program {
	return &Program{store: s}
}

func (p *Program) AdminStats(ctx context.Context) (*AdminStats, error) {
	counts, err := p.store.Counts(ctx)
	if err != nil {
		return nil, err
	}

	stats := &AdminStats{
		TotalUsers:         counts.Users,
		TotalReferrals:     counts.Links,
		TotalClicks:        counts.LinkClicks,
		TotalRegistrations: counts.Registrations,
	}
	if counts.LinkClicks > 0 {
		stats.ConversionRate = float64(counts.Registrations) / float64(counts.LinkClicks) * 100
	}
	return stats, nil
}

func (p *Program) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}

	users, err := p.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].TotalReferrals > users[j].TotalReferrals
	})
	if len(users) > limit {
		users = users[:limit]
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, LeaderboardEntry{
			Rank:           i + 1,
			UserID:         u.ID,
			UserName:       u.FullName(),
			TotalReferrals: u.TotalReferrals,
			TotalEarnings:  u.TotalEarnings,
		})
	}
	return entries, nil
}

// Achievements reports progress towards every catalogue entry. It only reads
// the user's counters; unlocking never pays out a reward.
func (p *Program) Achievements(ctx context.Context, userID string) ([]AchievementProgress, error) {
	user, err := p.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return achievementProgress(user), nil
}

func achievementProgress(user *models.User) []AchievementProgress {
	list := make([]AchievementProgress, 0, len(Catalogue))
	for _, a := range Catalogue {
		var current float64
		switch a.Category {
		case CategoryReferrals:
			current = float64(user.TotalReferrals)
		case CategoryEarnings:
			current = user.TotalEarnings
		}

		progress := 0.0
		if a.TargetValue > 0 {
			progress = min(current/a.TargetValue, 1)
		}
		list = append(list, AchievementProgress{
			Achievement: a,
			IsUnlocked:  current >= a.TargetValue,
			Progress:    progress,
		})
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].IsUnlocked != list[j].IsUnlocked {
			return list[i].IsUnlocked
		}
		return list[i].Category < list[j].Category
	})
	return list
}
