// Package domain contains partner-level settings consumed read-only by
// payout-date arithmetic.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// PartnerSettings carries the disbursement defaults a partner configured.
type PartnerSettings struct {
	PartnerID snowflake.ID `gorm:"primaryKey"`
	// StandardPayoutDate is the day of month disbursements go out unless a
	// contract overrides it.
	StandardPayoutDate int       `gorm:"not null;default:1"`
	Timezone           string    `gorm:"type:text;not null;default:'UTC'"`
	DateFormat         string    `gorm:"type:text;not null;default:'2006-01-02'"`
	CreatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PartnerSettings) TableName() string { return "partner_settings" }

// Provider reads partner settings; missing partners fall back to defaults.
type Provider interface {
	GetByPartner(ctx context.Context, partnerID snowflake.ID) (PartnerSettings, error)
}
