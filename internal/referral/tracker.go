package referral

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tariel-x/referral/internal/metrics"
	"github.com/tariel-x/referral/internal/models"
	"github.com/tariel-x/referral/internal/store"
)

// ClickNotifier receives clicks that resolved to a link.
type ClickNotifier interface {
	NotifyClick(ownerID string, link models.ReferralLink, click models.ReferralClick)
}

// Tracker records raw click events and keeps link counters in sync.
type Tracker struct {
	store    store.Store
	registry *Registry
	notifier ClickNotifier
	nowFn    func() time.Time
	logger   *slog.Logger
}

func NewTracker(s store.Store, registry *Registry, notifier ClickNotifier, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:    s,
		registry: registry,
		notifier: notifier,
		nowFn:    func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// Record appends the click whether or not linkCode resolves to a link, then
// bumps the link's counter when it does.
func (t *Tracker) Record(ctx context.Context, linkCode, ipAddress, userAgent string) (*models.ReferralClick, error) {
	click := &models.ReferralClick{
		LinkCode:              linkCode,
		IPAddress:             ipAddress,
		UserAgent:             userAgent,
		ClickedAt:             t.nowFn(),
		CompletedRegistration: false,
	}
	if err := t.store.AppendClick(ctx, click); err != nil {
		return nil, fmt.Errorf("append click: %w", err)
	}

	link, err := t.registry.IncrementClick(ctx, linkCode)
	if err != nil {
		return nil, fmt.Errorf("increment click %s: %w", linkCode, err)
	}

	metrics.RecordClick(link != nil)
	if link == nil {
		t.logger.Debug("click on unknown link code", "link_code", linkCode)
		return click, nil
	}

	if t.notifier != nil {
		t.notifier.NotifyClick(link.UserID, *link, *click)
	}
	return click, nil
}
