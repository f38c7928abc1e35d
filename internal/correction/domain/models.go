// Package domain contains persistence models for one-off corrections:
// manually added charges or credits attached to a rent invoice or a payout.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CorrectionStatus string

const (
	CorrectionStatusActive    CorrectionStatus = "active"
	CorrectionStatusCancelled CorrectionStatus = "cancelled"
)

// CorrectionTarget is where the correction amount is applied once consumed.
type CorrectionTarget string

const (
	CorrectionTargetRentInvoice CorrectionTarget = "rent_invoice"
	CorrectionTargetPayout      CorrectionTarget = "payout"
)

// Correction is a manual charge (positive) or credit (negative) raised
// against a lease. An active rent-invoice correction that has not been
// consumed into an invoice blocks final settlement.
type Correction struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	ContractID snowflake.ID `gorm:"not null;index"`
	PartnerID  snowflake.ID `gorm:"not null;index"`
	PropertyID snowflake.ID `gorm:"not null;index"`

	Amount float64          `gorm:"type:decimal(12,2);not null"`
	Status CorrectionStatus `gorm:"type:text;not null;default:'active'"`
	AddTo  CorrectionTarget `gorm:"type:text;not null"`

	// InvoiceID / PayoutID are set once the correction has been consumed.
	InvoiceID *snowflake.ID `gorm:"index"`
	PayoutID  *snowflake.ID `gorm:"index"`

	Note      string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Correction) TableName() string { return "corrections" }

// IsConsumed reports whether the correction has been attached to an
// invoice or payout and is no longer editable.
func (c *Correction) IsConsumed() bool {
	return c.InvoiceID != nil || c.PayoutID != nil
}

var (
	// ErrSettlementDone rejects corrections against a lease whose final
	// settlement is already completed.
	ErrSettlementDone = errors.New("final settlement already completed for contract")
	// ErrCorrectionConsumed rejects edits once the correction has been
	// consumed into an invoice or payout.
	ErrCorrectionConsumed = errors.New("correction already consumed")
	// ErrCorrectionCancelled rejects edits to a cancelled correction.
	ErrCorrectionCancelled = errors.New("correction is cancelled")
)

type CreateCorrectionRequest struct {
	ContractID snowflake.ID
	PartnerID  snowflake.ID
	PropertyID snowflake.ID
	Amount     float64
	AddTo      CorrectionTarget
	Note       string
}

type UpdateCorrectionRequest struct {
	Amount *float64
	Note   *string
}

type Service interface {
	Create(ctx context.Context, req CreateCorrectionRequest) (Correction, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateCorrectionRequest) (Correction, error)
	Cancel(ctx context.Context, id snowflake.ID) (Correction, error)
	GetByID(ctx context.Context, id snowflake.ID) (Correction, error)
	ListByContract(ctx context.Context, contractID snowflake.ID, status *CorrectionStatus) ([]Correction, error)
	// MarkConsumed links the correction to the invoice or payout that
	// absorbed its amount.
	MarkConsumed(ctx context.Context, id snowflake.ID, invoiceID, payoutID *snowflake.ID) error
}
