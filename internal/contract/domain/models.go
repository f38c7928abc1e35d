// Package domain contains persistence models for rental leases.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ContractStatus represents lease lifecycle states.
type ContractStatus string

const (
	ContractStatusActive ContractStatus = "active"
	ContractStatusClosed ContractStatus = "closed"
)

// SettlementStatus tracks the final settlement of a closed lease.
// Transitions are forward-only: none -> in_progress -> completed.
type SettlementStatus string

const (
	SettlementStatusNone       SettlementStatus = "none"
	SettlementStatusInProgress SettlementStatus = "in_progress"
	SettlementStatusCompleted  SettlementStatus = "completed"
)

// Contract represents a rental lease between a partner's property and its tenants.
type Contract struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	PartnerID  snowflake.ID `gorm:"not null;index"`
	PropertyID snowflake.ID `gorm:"not null;index"`
	AccountID  snowflake.ID `gorm:"not null;index"`
	TenantIDs  []int64      `gorm:"serializer:json;type:text"`

	Status                ContractStatus   `gorm:"type:text;not null;default:'active'"`
	FinalSettlementStatus SettlementStatus `gorm:"type:text;not null;default:'none'"`
	IsFinalSettlementDone bool             `gorm:"not null;default:false"`

	// MonthlyPayoutDate overrides the partner's standard disbursement day.
	MonthlyPayoutDate *int `gorm:""`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Contract) TableName() string { return "contracts" }

// IsClosed reports whether the lease has been terminated.
func (c *Contract) IsClosed() bool { return c.Status == ContractStatusClosed }
