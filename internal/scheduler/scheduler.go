package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/tariel-x/referral/internal/demo"
)

const seedTimeout = 30 * time.Second

// Seeder is the part of demo.Seeder the reseed job needs.
type Seeder interface {
	Seed(ctx context.Context) (demo.Credentials, error)
}

// Reseeder periodically restores the demo data set.
type Reseeder struct {
	sched  gocron.Scheduler
	logger *slog.Logger
}

// StartReseed schedules seeder to run every interval. It returns nil, nil when
// interval is not positive.
func StartReseed(seeder Seeder, interval time.Duration, logger *slog.Logger) (*Reseeder, error) {
	if interval <= 0 {
		return nil, nil
	}
	if seeder == nil {
		return nil, errors.New("scheduler: nil seeder")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
			defer cancel()
			if _, err := seeder.Seed(ctx); err != nil {
				logger.Error("scheduled demo reseed failed", "error", err)
				return
			}
			logger.Info("scheduled demo reseed done")
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule reseed: %w", err)
	}

	sched.Start()
	logger.Info("demo reseed scheduled", "interval", interval.String())
	return &Reseeder{sched: sched, logger: logger}, nil
}

func (r *Reseeder) Stop() error {
	if r == nil {
		return nil
	}
	return r.sched.Shutdown()
}
