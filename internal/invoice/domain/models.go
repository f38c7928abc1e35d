// Package domain contains persistence models for rent and landlord invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/period"
	"gorm.io/datatypes"
)

// InvoiceType distinguishes tenant-facing rent invoices from invoices
// billed to the property owner.
type InvoiceType string

const (
	InvoiceTypeRent               InvoiceType = "rent_invoice"
	InvoiceTypeCreditNote         InvoiceType = "credit_note"
	InvoiceTypeLandlord           InvoiceType = "landlord_invoice"
	InvoiceTypeLandlordCreditNote InvoiceType = "landlord_credit_note"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusNew       InvoiceStatus = "new"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCredited  InvoiceStatus = "credited"
	InvoiceStatusLost      InvoiceStatus = "lost"
	InvoiceStatusBalanced  InvoiceStatus = "balanced"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice represents a rent or landlord invoice.
type Invoice struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	ContractID snowflake.ID `gorm:"not null;index"`
	PartnerID  snowflake.ID `gorm:"not null;index"`
	PropertyID snowflake.ID `gorm:"not null;index"`
	AccountID  snowflake.ID `gorm:"not null;index"`

	InvoiceType       InvoiceType   `gorm:"type:text;not null;index"`
	Status            InvoiceStatus `gorm:"type:text;not null;default:'new'"`
	IsFinalSettlement bool          `gorm:"not null;default:false"`

	InvoiceTotal     float64 `gorm:"type:decimal(12,2);not null;default:0"`
	TotalPaid        float64 `gorm:"type:decimal(12,2);not null;default:0"`
	CreditedAmount   float64 `gorm:"type:decimal(12,2);not null;default:0"`
	LostAmount       float64 `gorm:"type:decimal(12,2);not null;default:0"`
	PayoutableAmount float64 `gorm:"type:decimal(12,2);not null;default:0"`

	// RemainingBalance and TotalBalanced are kept in sync with the
	// obligation lists by the balancing service:
	// remaining_balance == invoice_total - total_balanced.
	RemainingBalance float64 `gorm:"type:decimal(12,2);not null;default:0"`
	TotalBalanced    float64 `gorm:"type:decimal(12,2);not null;default:0"`

	CommissionsMeta ObligationList `gorm:"serializer:json;type:text"`
	AddonsMeta      ObligationList `gorm:"serializer:json;type:text"`
	// InvoiceContent is populated on final-settlement landlord invoices only.
	InvoiceContent ObligationList `gorm:"serializer:json;type:text"`

	InvoiceStartOn  *time.Time `gorm:"index"`
	DueDate         *time.Time `gorm:""`
	LastPaymentDate *time.Time `gorm:""`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// PeriodKey buckets the invoice into its accounting period: the invoice
// period start date when known, creation date otherwise.
func (i *Invoice) PeriodKey() period.Key {
	if i.InvoiceStartOn != nil {
		return period.FromTime(*i.InvoiceStartOn)
	}
	return period.FromTime(i.CreatedAt)
}

// IsLandlord reports whether the invoice is billed to the property owner.
func (i *Invoice) IsLandlord() bool {
	return i.InvoiceType == InvoiceTypeLandlord || i.InvoiceType == InvoiceTypeLandlordCreditNote
}

// IsCredit reports whether the invoice reverses a previous charge.
func (i *Invoice) IsCredit() bool {
	return i.InvoiceType == InvoiceTypeCreditNote || i.InvoiceType == InvoiceTypeLandlordCreditNote
}
