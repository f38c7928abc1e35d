// Package domain contains persistence models for landlord disbursements.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/smallbiznis/rentledger/pkg/period"
	"gorm.io/datatypes"
)

// PayoutStatus represents disbursement lifecycle states.
type PayoutStatus string

const (
	PayoutStatusEstimated          PayoutStatus = "estimated"
	PayoutStatusPendingForApproval PayoutStatus = "pending_for_approval"
	PayoutStatusWaitingForSign     PayoutStatus = "waiting_for_signature"
	PayoutStatusInProgress         PayoutStatus = "in_progress"
	PayoutStatusCompleted          PayoutStatus = "completed"
	PayoutStatusFailed             PayoutStatus = "failed"
)

// PaymentStatus marks whether a completed payout's money has settled.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusBalanced PaymentStatus = "balanced"
)

// MetaType labels one link in a payout's obligation chain.
type MetaType string

const (
	MetaTypeRentInvoice       MetaType = "rent_invoice"
	MetaTypeCreditRentInvoice MetaType = "credit_rent_invoice"
	// MetaTypeUnpaidEarlierPayout carries forward money the landlord was
	// owed by an earlier payout that never went out.
	MetaTypeUnpaidEarlierPayout MetaType = "unpaid_earlier_payout"
	// MetaTypeUnpaidExpenses carries forward money the landlord still owes
	// back (negative prior payout or under-applied balancing).
	MetaTypeUnpaidExpenses   MetaType = "unpaid_expenses_and_commissions"
	MetaTypeLandlordInvoice  MetaType = "landlord_invoice"
	MetaTypeFinalSettlement  MetaType = "final_settlement"
	MetaTypePayoutCorrection MetaType = "payout_correction"
)

// MetaEntry is one link in the payout's obligation chain. The entry
// amounts must sum to the payout amount, 2-decimal rounded.
type MetaEntry struct {
	Type              MetaType      `json:"type"`
	Amount            float64       `json:"amount"`
	InvoiceID         *snowflake.ID `json:"invoiceId,omitempty"`
	LandlordInvoiceID *snowflake.ID `json:"landlordInvoiceId,omitempty"`
	PayoutID          *snowflake.ID `json:"payoutId,omitempty"`
	CorrectionID      *snowflake.ID `json:"correctionId,omitempty"`
}

// MetaList is the ordered obligation chain stored as a JSON column.
// It only grows: balancing passes append entries, and an existing entry's
// amount is only ever incremented by a contribution from the same payout.
type MetaList []MetaEntry

// Sum totals the chain's amounts, 2-decimal rounded.
func (l MetaList) Sum() float64 {
	var total float64
	for i := range l {
		total += l[i].Amount
	}
	return money.Round2(total)
}

// Payout is one disbursement to a landlord. A negative amount means the
// landlord owes money back.
type Payout struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	ContractID snowflake.ID `gorm:"not null;index"`
	PartnerID  snowflake.ID `gorm:"not null;index"`
	PropertyID snowflake.ID `gorm:"not null;index"`
	AccountID  snowflake.ID `gorm:"not null;index"`

	// SerialID orders a contract's payouts; carry-forward walks it backwards.
	SerialID int64 `gorm:"not null;index;autoIncrement:false"`

	Amount        float64       `gorm:"type:decimal(12,2);not null;default:0"`
	Status        PayoutStatus  `gorm:"type:text;not null;default:'estimated'"`
	PaymentStatus PaymentStatus `gorm:"type:text;not null;default:'pending'"`

	IsFinalSettlement bool     `gorm:"not null;default:false"`
	BankReferenceID   string   `gorm:"type:text;index"`
	Meta              MetaList `gorm:"serializer:json;type:text"`

	InvoicePaid   bool       `gorm:"not null;default:false"`
	InvoicePaidOn *time.Time `gorm:""`

	PayoutDate *time.Time `gorm:"index"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payout) TableName() string { return "payouts" }

// MissingAmount is the shortfall between the payout amount and what its
// meta chain accounts for. A nonzero value is drift that the next payout
// must carry forward.
func (p *Payout) MissingAmount() float64 {
	return money.Round2(p.Amount - p.Meta.Sum())
}

// PeriodKey buckets the payout into the accounting period of its creation.
func (p *Payout) PeriodKey() period.Key {
	return period.FromTime(p.CreatedAt)
}
