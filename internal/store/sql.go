package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tariel-x/referral/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLStore keeps the referral program in a SQLite database through gorm.
// Unique indexes on email, referral_code and link_code back the uniqueness
// checks, so concurrent writers cannot both win.
type SQLStore struct {
	db *gorm.DB
}

func OpenSQLite(dbPath string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	return NewSQLStore(db)
}

func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(
		&models.User{},
		&models.ReferralLink{},
		&models.ReferralClick{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateEmail
		}
		if err := tx.Model(&models.User{}).Where("referral_code = ?", user.ReferralCode).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateReferralCode
		}
		if err := tx.Create(user).Error; err != nil {
			return translateUnique(err)
		}
		return nil
	})
}

func (s *SQLStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *SQLStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *SQLStore) ReferralCodeTaken(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("referral_code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at ASC").Order("rowid ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *SQLStore) CreateLink(ctx context.Context, link *models.ReferralLink) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", link.UserID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrUserNotFound
		}
		seq, err := nextLinkSeq(tx)
		if err != nil {
			return err
		}
		link.Seq = seq
		if err := tx.Create(link).Error; err != nil {
			return translateUnique(err)
		}
		return nil
	})
}

func (s *SQLStore) LinksByUser(ctx context.Context, userID string) ([]models.ReferralLink, error) {
	links := make([]models.ReferralLink, 0)
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("seq ASC").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (s *SQLStore) LinkByCode(ctx context.Context, code string) (*models.ReferralLink, error) {
	var link models.ReferralLink
	if err := s.db.WithContext(ctx).Where("link_code = ?", code).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (s *SQLStore) IncrementClick(ctx context.Context, code string) (*models.ReferralLink, error) {
	var link models.ReferralLink
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ReferralLink{}).
			Where("link_code = ?", code).
			UpdateColumn("click_count", gorm.Expr("click_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrLinkNotFound
		}
		return tx.Where("link_code = ?", code).First(&link).Error
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *SQLStore) AppendClick(ctx context.Context, click *models.ReferralClick) error {
	if click.ClickedAt.IsZero() {
		click.ClickedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(click).Error
}

func (s *SQLStore) ClicksForLinks(ctx context.Context, codes []string, since time.Time) ([]models.ReferralClick, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var clicks []models.ReferralClick
	err := s.db.WithContext(ctx).
		Where("link_code IN ? AND clicked_at >= ?", codes, since).
		Order("clicked_at ASC").
		Find(&clicks).Error
	if err != nil {
		return nil, err
	}
	return clicks, nil
}

func (s *SQLStore) Counts(ctx context.Context) (Counts, error) {
	db := s.db.WithContext(ctx)

	var users, links, clicks int64
	if err := db.Model(&models.User{}).Count(&users).Error; err != nil {
		return Counts{}, err
	}
	if err := db.Model(&models.ReferralLink{}).Count(&links).Error; err != nil {
		return Counts{}, err
	}
	if err := db.Model(&models.ReferralClick{}).Count(&clicks).Error; err != nil {
		return Counts{}, err
	}

	var sums struct {
		LinkClicks    int
		Registrations int
	}
	err := db.Model(&models.ReferralLink{}).
		Select("COALESCE(SUM(click_count), 0) AS link_clicks, COALESCE(SUM(registration_count), 0) AS registrations").
		Scan(&sums).Error
	if err != nil {
		return Counts{}, err
	}

	return Counts{
		Users:         int(users),
		Links:         int(links),
		Clicks:        int(clicks),
		LinkClicks:    sums.LinkClicks,
		Registrations: sums.Registrations,
	}, nil
}

func (s *SQLStore) Reset(ctx context.Context, snapshot Snapshot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.ReferralClick{}, &models.ReferralLink{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		for i := range snapshot.Users {
			user := snapshot.Users[i]
			if err := tx.Create(&user).Error; err != nil {
				return translateUnique(err)
			}
		}
		for i := range snapshot.Links {
			link := snapshot.Links[i]
			link.Seq = int64(i + 1)
			if err := tx.Create(&link).Error; err != nil {
				return translateUnique(err)
			}
		}
		return nil
	})
}

func nextLinkSeq(tx *gorm.DB) (int64, error) {
	var maxSeq int64
	if err := tx.Model(&models.ReferralLink{}).Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
		return 0, err
	}
	return maxSeq + 1, nil
}

func translateUnique(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.email"):
		return ErrDuplicateEmail
	case strings.Contains(msg, "users.referral_code"):
		return ErrDuplicateReferralCode
	case strings.Contains(msg, "referral_links.link_code"):
		return ErrDuplicateLinkCode
	}
	return err
}
