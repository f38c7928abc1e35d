package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
)

// BuildResult is the assembled obligation chain for a new payout.
type BuildResult struct {
	Meta        MetaList
	TotalAmount float64
}

type Service interface {
	// CreateForInvoice assembles and persists a payout for a rent invoice
	// event, carrying forward unpaid amounts from the contract's payout
	// history.
	CreateForInvoice(ctx context.Context, invoice *invoicedomain.Invoice) (Payout, error)
	// CreateClosingPayout creates the zero-amount payout that anchors a
	// final settlement.
	CreateClosingPayout(ctx context.Context, contractID snowflake.ID) (Payout, error)
	GetByID(ctx context.Context, id snowflake.ID) (Payout, error)
	ListByContract(ctx context.Context, contractID snowflake.ID) ([]Payout, error)
	// HandlePaid marks a disbursement as paid out and balances it against
	// the contract's outstanding landlord invoices.
	HandlePaid(ctx context.Context, id snowflake.ID) error
	// HandleFailed marks a disbursement as failed; its amount is carried
	// forward into the next payout built for the contract.
	HandleFailed(ctx context.Context, id snowflake.ID) error
}
