package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferralClick is an append-only audit record. LinkCode is not a foreign key:
// clicks on unknown codes are kept as well.
type ReferralClick struct {
	ID                    string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	LinkCode              string    `gorm:"type:varchar(64);not null;index" json:"link_code"`
	IPAddress             string    `gorm:"type:varchar(64)" json:"ip_address"`
	UserAgent             string    `gorm:"type:text" json:"user_agent"`
	ClickedAt             time.Time `gorm:"index" json:"clicked_at"`
	CompletedRegistration bool      `gorm:"not null;default:false" json:"completed_registration"`
}

func (c *ReferralClick) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
