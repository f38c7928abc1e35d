// Package domain contains persistence models for tenant payments and refunds.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/money"
)

// PaymentType separates money received from tenants from money returned.
type PaymentType string

const (
	PaymentTypePayment PaymentType = "payment"
	PaymentTypeRefund  PaymentType = "refund"
)

// RefundStatus tracks the lifecycle of a refund payment.
type RefundStatus string

const (
	RefundStatusCreated    RefundStatus = "created"
	RefundStatusEstimated  RefundStatus = "estimated"
	RefundStatusInProgress RefundStatus = "in_progress"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusFailed     RefundStatus = "failed"
)

// RefundPaymentStatus marks whether the refunded money actually left the account.
type RefundPaymentStatus string

const (
	RefundPaymentStatusPaid RefundPaymentStatus = "paid"
)

// PaymentInvoiceItem is the portion of a payment applied to one invoice.
type PaymentInvoiceItem struct {
	InvoiceID snowflake.ID `json:"invoiceId"`
	Amount    float64      `json:"amount"`
}

// InvoicePayment is a tenant payment or refund, linked to one or more
// invoices via its nested per-invoice amount breakdown.
type InvoicePayment struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	ContractID snowflake.ID `gorm:"not null;index"`
	PartnerID  snowflake.ID `gorm:"not null;index"`
	PropertyID snowflake.ID `gorm:"not null;index"`
	TenantID   snowflake.ID `gorm:"index"`

	Type   PaymentType `gorm:"type:text;not null;index"`
	Amount float64     `gorm:"type:decimal(12,2);not null"`

	IsFinalSettlement   bool                 `gorm:"not null;default:false"`
	RefundStatus        RefundStatus         `gorm:"type:text"`
	RefundPaymentStatus RefundPaymentStatus  `gorm:"type:text"`
	Invoices            []PaymentInvoiceItem `gorm:"serializer:json;type:text"`

	PaymentDate *time.Time `gorm:"index"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoicePayment) TableName() string { return "invoice_payments" }

// IsRefunded reports whether the payment's money has already been returned.
func (p *InvoicePayment) IsRefunded() bool {
	return p.RefundStatus == RefundStatusCompleted && p.RefundPaymentStatus == RefundPaymentStatusPaid
}

// AmountForInvoice returns the portion of this payment applied to the invoice.
func (p *InvoicePayment) AmountForInvoice(invoiceID snowflake.ID) float64 {
	var total float64
	for _, item := range p.Invoices {
		if item.InvoiceID == invoiceID {
			total += item.Amount
		}
	}
	return money.Round2(total)
}
