package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type RecordPaymentRequest struct {
	ContractID snowflake.ID
	PartnerID  snowflake.ID
	PropertyID snowflake.ID
	TenantID   snowflake.ID

	Invoices    []PaymentInvoiceItem
	PaymentDate time.Time
}

type CreateRefundRequest struct {
	ContractID snowflake.ID
	PartnerID  snowflake.ID
	PropertyID snowflake.ID
	TenantID   snowflake.ID

	Amount            float64
	IsFinalSettlement bool
}

// Service records tenant money movements. Payments fan their per-invoice
// amounts into the invoice lifecycle; refunds only move through their own
// status chain and are consumed by settlement evaluation.
type Service interface {
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (InvoicePayment, error)
	CreateRefund(ctx context.Context, req CreateRefundRequest) (InvoicePayment, error)
	MarkRefundCompleted(ctx context.Context, id snowflake.ID) (InvoicePayment, error)
	MarkRefundFailed(ctx context.Context, id snowflake.ID) (InvoicePayment, error)
	ListByContract(ctx context.Context, contractID snowflake.ID) ([]InvoicePayment, error)
}
