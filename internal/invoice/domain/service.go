package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateInvoiceRequest struct {
	ContractID snowflake.ID
	PartnerID  snowflake.ID
	PropertyID snowflake.ID
	AccountID  snowflake.ID

	InvoiceType       InvoiceType
	IsFinalSettlement bool

	InvoiceTotal     float64
	PayoutableAmount float64

	CommissionsMeta ObligationList
	AddonsMeta      ObligationList
	InvoiceContent  ObligationList

	InvoiceStartOn *time.Time
	DueDate        *time.Time
}

// Service owns the invoice lifecycle. Rent invoice events feed the payout
// builder; landlord invoice events feed the balancing engine.
type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (Invoice, error)
	ListByContract(ctx context.Context, contractID snowflake.ID) ([]Invoice, error)

	// MarkPaid records a received amount against the invoice and, once the
	// invoice is fully covered, creates the next payout from it.
	MarkPaid(ctx context.Context, id snowflake.ID, amount float64, paidAt time.Time) (Invoice, error)
	// Credit writes off part of the invoice with a credit note and pushes a
	// negative payoutable amount into the payout builder.
	Credit(ctx context.Context, id snowflake.ID, amount float64) (Invoice, error)
	// MarkLost writes the remaining receivable off as uncollectable.
	MarkLost(ctx context.Context, id snowflake.ID, amount float64) (Invoice, error)
}
