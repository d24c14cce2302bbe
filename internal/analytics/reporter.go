package analytics

import (
	"context"
	"math/rand"
	"time"

	"github.com/tariel-x/referral/internal/models"
	"github.com/tariel-x/referral/internal/store"
)

const (
	reportDays   = 7
	topLinkCount = 5
	dateLayout   = "2006-01-02"

	mockMaxClicks      = 20
	mockMaxConversions = 5
)

type UserStats struct {
	TotalReferrals int     `json:"total_referrals"`
	TotalEarnings  float64 `json:"total_earnings"`
}

type DailyClicks struct {
	Date        string `json:"date"`
	Clicks      int    `json:"clicks"`
	Conversions int    `json:"conversions"`
}

type Report struct {
	UserStats  UserStats             `json:"userStats"`
	ClickStats []DailyClicks         `json:"clickStats"`
	TopLinks   []models.ReferralLink `json:"topLinks"`
}

// Reporter builds the per-user analytics view. In mock mode the daily series
// is random filler; otherwise it is counted from recorded clicks.
type Reporter struct {
	store store.Store
	mock  bool
	nowFn func() time.Time
	intn  func(n int) int
}

func NewReporter(s store.Store, mock bool) *Reporter {
	return &Reporter{
		store: s,
		mock:  mock,
		nowFn: func() time.Time { return time.Now().UTC() },
		intn:  rand.Intn,
	}
}

func (r *Reporter) Mock() bool {
	return r.mock
}

func (r *Reporter) Report(ctx context.Context, userID string) (*Report, error) {
	user, err := r.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	links, err := r.store.LinksByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var series []DailyClicks
	if r.mock {
		series = r.mockSeries()
	} else {
		series, err = r.clickSeries(ctx, links)
		if err != nil {
			return nil, err
		}
	}

	top := links
	if len(top) > topLinkCount {
		top = top[:topLinkCount]
	}

	return &Report{
		UserStats: UserStats{
			TotalReferrals: user.TotalReferrals,
			TotalEarnings:  user.TotalEarnings,
		},
		ClickStats: series,
		TopLinks:   top,
	}, nil
}

// days returns the trailing week ending today, oldest first.
func (r *Reporter) days() []time.Time {
	now := r.nowFn().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	days := make([]time.Time, 0, reportDays)
	for i := reportDays - 1; i >= 0; i-- {
		days = append(days, today.AddDate(0, 0, -i))
	}
	return days
}

func (r *Reporter) mockSeries() []DailyClicks {
	days := r.days()
	series := make([]DailyClicks, 0, len(days))
	for _, day := range days {
		series = append(series, DailyClicks{
			Date:        day.Format(dateLayout),
			Clicks:      r.intn(mockMaxClicks),
			Conversions: r.intn(mockMaxConversions),
		})
	}
	return series
}

func (r *Reporter) clickSeries(ctx context.Context, links []models.ReferralLink) ([]DailyClicks, error) {
	days := r.days()
	series := make([]DailyClicks, 0, len(days))
	index := make(map[string]int, len(days))
	for i, day := range days {
		date := day.Format(dateLayout)
		index[date] = i
		series = append(series, DailyClicks{Date: date})
	}

	if len(links) == 0 {
		return series, nil
	}

	codes := make([]string, 0, len(links))
	for _, l := range links {
		codes = append(codes, l.LinkCode)
	}

	clicks, err := r.store.ClicksForLinks(ctx, codes, days[0])
	if err != nil {
		return nil, err
	}
	for _, click := range clicks {
		i, ok := index[click.ClickedAt.UTC().Format(dateLayout)]
		if !ok {
			continue
		}
		series[i].Clicks++
		if click.CompletedRegistration {
			series[i].Conversions++
		}
	}
	return series, nil
}
