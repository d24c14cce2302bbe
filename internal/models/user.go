package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	FirstName      string    `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName       string    `gorm:"type:varchar(100);not null" json:"last_name"`
	Email          string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash   string    `gorm:"type:varchar(100);not null" json:"-"`
	ReferralCode   string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"referral_code"`
	TotalReferrals int       `gorm:"not null;default:0" json:"total_referrals"`
	TotalEarnings  float64   `gorm:"not null;default:0" json:"total_earnings"`
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// FullName is the default label for links created without an explicit user name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
