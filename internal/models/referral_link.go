package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReferralLink struct {
	ID                string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID            string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	UserName          string    `gorm:"type:varchar(200)" json:"user_name"`
	LinkCode          string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"link_code"`
	FullURL           string    `gorm:"type:text;not null" json:"full_url"`
	ClickCount        int       `gorm:"not null;default:0" json:"click_count"`
	RegistrationCount int       `gorm:"not null;default:0" json:"registration_count"`
	CreatedAt         time.Time `json:"created_at"`

	// Seq keeps creation order stable when several links share a timestamp.
	Seq int64 `gorm:"index" json:"-"`
}

func (l *ReferralLink) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}
