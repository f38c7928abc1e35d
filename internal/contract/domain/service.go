package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type CreateContractRequest struct {
	PartnerID  snowflake.ID
	PropertyID snowflake.ID
	AccountID  snowflake.ID
	TenantIDs  []int64

	MonthlyPayoutDate *int
}

// Service owns the lease lifecycle. Closing a lease kicks off final
// settlement evaluation.
type Service interface {
	Create(ctx context.Context, req CreateContractRequest) (Contract, error)
	GetByID(ctx context.Context, id snowflake.ID) (Contract, error)
	ListByPartner(ctx context.Context, partnerID snowflake.ID) ([]Contract, error)
	Close(ctx context.Context, id snowflake.ID) (Contract, error)
}
